package domain

import "time"

// Signal names the behavioural tendency a choice represents.
type Signal string

type Choice struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Signal Signal `json:"signal"`
}

// Decision is appended once and never changed afterwards.
type Decision struct {
	ProblemID              string        `json:"problem_id"`
	ChoiceID               string        `json:"choice_id"`
	Signal                 Signal        `json:"signal"`
	TimeToFirstInteraction time.Duration `json:"time_to_first_interaction"`
	TimeToLock             time.Duration `json:"time_to_lock"`
	ChangesOfMind          int           `json:"changes_of_mind"`
	Forced                 bool          `json:"forced"`
	Round                  int           `json:"round"`
	CommittedAt            time.Time     `json:"committed_at"`
}

type Reflection struct {
	Round    int    `json:"round"`
	Question string `json:"question"`
	Text     string `json:"text"`
}

// TimingHints come back from the decision recorder. Zero fields mean "keep
// the current value".
type TimingHints struct {
	ChoiceBudget  time.Duration `json:"choice_budget"`
	IdleThreshold time.Duration `json:"idle_threshold"`
}

func (h TimingHints) Empty() bool {
	return h.ChoiceBudget <= 0 && h.IdleThreshold <= 0
}

const (
	hintWindow         = 10
	choiceBudgetMargin = 30 * time.Second
	maxChoiceBudget    = 5 * time.Minute
	minIdleThreshold   = 20 * time.Second
)

// HintsFromHistory derives adaptive timings from a user's recent decisions,
// newest first. The choice budget is 1.5x the mean time-to-lock of unforced
// decisions, never shorter than the idle threshold plus a margin so the first
// warning can fire before the auto-pick. A user who is forced half the time
// gets nudged sooner.
func HintsFromHistory(history []Decision, archetype Archetype) TimingHints {
	if len(history) > hintWindow {
		history = history[:hintWindow]
	}
	var (
		total    time.Duration
		unforced int
		forced   int
	)
	for _, d := range history {
		if d.Forced {
			forced++
			continue
		}
		total += d.TimeToLock
		unforced++
	}
	hints := TimingHints{}
	threshold := IdleThreshold(Profile{Archetype: archetype})
	if len(history) >= 2 && forced*2 >= len(history) {
		threshold = max(threshold*3/4, minIdleThreshold)
		hints.IdleThreshold = threshold
	}
	if unforced > 0 {
		budget := total / time.Duration(unforced) * 3 / 2
		hints.ChoiceBudget = min(max(budget, threshold+choiceBudgetMargin), maxChoiceBudget)
	}
	return hints
}

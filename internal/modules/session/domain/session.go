package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrAlreadyLocked        = errors.New("choice already locked")
	ErrNoSelection          = errors.New("no choice selected")
	ErrUnknownChoice        = errors.New("unknown choice")
	ErrChangeOfMindUnusable = errors.New("change of mind is not available")
)

type Problem struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Context string `json:"context"`
}

type Profile struct {
	UserID    string    `json:"user_id"`
	Archetype Archetype `json:"archetype"`
}

type Scenario struct {
	Situation string   `json:"situation"`
	Choices   []Choice `json:"choices"`
	Question  string   `json:"question"`
}

type Outcome struct {
	Consequences []string `json:"consequences"`
	Insight      string   `json:"insight"`
}

// Session is the live aggregate owned by the controller.
type Session struct {
	ID           string    `json:"id"`
	Problem      Problem   `json:"problem"`
	Profile      Profile   `json:"profile"`
	StartedAt    time.Time `json:"started_at"`
	Round        int       `json:"round"`
	TargetRounds int       `json:"target_rounds"`

	Decisions   []Decision   `json:"decisions"`
	Reflections []Reflection `json:"reflections"`

	Selection          string    `json:"selection,omitempty"`
	Locked             bool      `json:"locked"`
	ChangesOfMind      int       `json:"changes_of_mind"`
	ChoiceOpenedAt     time.Time `json:"choice_opened_at"`
	FirstInteractionAt time.Time `json:"first_interaction_at"`

	Scenario Scenario `json:"scenario"`
	Prompt   string   `json:"prompt"`
	Outcome  Outcome  `json:"outcome"`
	Draft    string   `json:"draft,omitempty"`
	Loading  bool     `json:"loading,omitempty"`
}

func NewSession(id string, problem Problem, profile Profile, targetRounds int, now time.Time) *Session {
	if targetRounds < 1 {
		targetRounds = 1
	}
	return &Session{
		ID:           id,
		Problem:      problem,
		Profile:      profile,
		StartedAt:    now,
		Round:        1,
		TargetRounds: targetRounds,
	}
}

func (s *Session) choice(id string) (Choice, bool) {
	for _, c := range s.Scenario.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return Choice{}, false
}

func (s *Session) HasChoice(id string) bool {
	_, ok := s.choice(id)
	return ok
}

// Select marks a choice without locking it. Picking a different choice once
// one is selected is a change of mind and follows the same rule as ChangeMind.
func (s *Session) Select(choiceID string, now time.Time) error {
	if s.Locked {
		return ErrAlreadyLocked
	}
	if _, ok := s.choice(choiceID); !ok {
		return ErrUnknownChoice
	}
	if s.Selection != "" && s.Selection != choiceID {
		if !s.CanChangeMind() {
			return ErrChangeOfMindUnusable
		}
		s.ChangesOfMind++
	}
	if s.FirstInteractionAt.IsZero() {
		s.FirstInteractionAt = now
	}
	s.Selection = choiceID
	return nil
}

// CanChangeMind: first round only, once, before lock.
func (s *Session) CanChangeMind() bool {
	return s.Round == 1 && !s.Locked && s.ChangesOfMind == 0
}

// ChangeMind drops the current selection so a different choice can be picked.
func (s *Session) ChangeMind() error {
	if s.Selection == "" {
		return ErrNoSelection
	}
	if !s.CanChangeMind() {
		return ErrChangeOfMindUnusable
	}
	s.ChangesOfMind++
	s.Selection = ""
	return nil
}

// Lock commits the current selection. A forced lock without a selection
// falls back to the recommended signal's choice, then to the first choice,
// and records the recommended signal. A user's own selection keeps its signal.
func (s *Session) Lock(now time.Time, forced bool, signal Signal) (Decision, error) {
	if s.Locked {
		return Decision{}, ErrAlreadyLocked
	}
	choiceID := s.Selection
	picked := forced && choiceID == ""
	if picked {
		choiceID = s.defaultChoice(signal)
	}
	if choiceID == "" {
		return Decision{}, ErrNoSelection
	}
	chosen, ok := s.choice(choiceID)
	if !ok {
		return Decision{}, ErrUnknownChoice
	}
	if picked && signal != "" {
		chosen.Signal = signal
	}

	var firstInteraction time.Duration
	if !s.FirstInteractionAt.IsZero() {
		firstInteraction = s.FirstInteractionAt.Sub(s.ChoiceOpenedAt)
	}
	d := Decision{
		ProblemID:              s.Problem.ID,
		ChoiceID:               chosen.ID,
		Signal:                 chosen.Signal,
		TimeToFirstInteraction: firstInteraction,
		TimeToLock:             now.Sub(s.ChoiceOpenedAt),
		ChangesOfMind:          s.ChangesOfMind,
		Forced:                 forced,
		Round:                  s.Round,
		CommittedAt:            now,
	}
	s.Selection = chosen.ID
	s.Locked = true
	s.Decisions = append(s.Decisions, d)
	return d, nil
}

func (s *Session) defaultChoice(signal Signal) string {
	if signal != "" {
		for _, c := range s.Scenario.Choices {
			if c.Signal == signal {
				return c.ID
			}
		}
	}
	if len(s.Scenario.Choices) > 0 {
		return s.Scenario.Choices[0].ID
	}
	return ""
}

// OpenChoice stamps the start of a choice screen for time-to-lock.
func (s *Session) OpenChoice(now time.Time) {
	s.ChoiceOpenedAt = now
}

func (s *Session) AddReflection(text string) Reflection {
	r := Reflection{Round: s.Round, Question: s.Prompt, Text: strings.TrimSpace(text)}
	s.Reflections = append(s.Reflections, r)
	s.Draft = ""
	return r
}

// NewRound clears the per-round state. Decisions and reflections are kept.
func (s *Session) NewRound(round int) {
	s.Round = round
	s.Selection = ""
	s.Locked = false
	s.ChangesOfMind = 0
	s.ChoiceOpenedAt = time.Time{}
	s.FirstInteractionAt = time.Time{}
	s.Scenario = Scenario{}
	s.Outcome = Outcome{}
	s.Prompt = ""
	s.Draft = ""
	s.Loading = false
}

func (s *Session) LastDecision() (Decision, bool) {
	if len(s.Decisions) == 0 {
		return Decision{}, false
	}
	return s.Decisions[len(s.Decisions)-1], true
}

// Clone returns a deep copy safe to hand to collaborators.
func (s *Session) Clone() Session {
	out := *s
	out.Decisions = append([]Decision(nil), s.Decisions...)
	out.Reflections = append([]Reflection(nil), s.Reflections...)
	out.Scenario.Choices = append([]Choice(nil), s.Scenario.Choices...)
	out.Outcome.Consequences = append([]string(nil), s.Outcome.Consequences...)
	return out
}

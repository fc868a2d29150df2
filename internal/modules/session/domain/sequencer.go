package domain

import (
	"fmt"
	"time"
)

// Sequencer walks a fixed screen plan. Remaining time is always derived from
// the screen start and the supplied now, never from a decremented counter.
type Sequencer struct {
	screens   []Screen
	index     int
	startedAt time.Time
}

func NewSequencer(screens []Screen, now time.Time) (*Sequencer, error) {
	return RestoreSequencer(screens, 0, now)
}

// RestoreSequencer resumes at index with the original screen start, so a
// resumed session does not get its budget back.
func RestoreSequencer(screens []Screen, index int, startedAt time.Time) (*Sequencer, error) {
	if len(screens) == 0 {
		return nil, ErrEmptyPlan
	}
	if index < 0 || index >= len(screens) {
		return nil, fmt.Errorf("%w: index %d of %d", ErrUnknownScreen, index, len(screens))
	}
	plan := make([]Screen, len(screens))
	copy(plan, screens)
	return &Sequencer{screens: plan, index: index, startedAt: startedAt}, nil
}

func (s *Sequencer) Current() Screen {
	return s.screens[s.index]
}

func (s *Sequencer) Index() int { return s.index }

func (s *Sequencer) Len() int { return len(s.screens) }

func (s *Sequencer) StartedAt() time.Time { return s.startedAt }

func (s *Sequencer) Screens() []Screen {
	out := make([]Screen, len(s.screens))
	copy(out, s.screens)
	return out
}

func (s *Sequencer) Complete() bool {
	return s.Current().Terminal
}

func (s *Sequencer) TimeRemaining(now time.Time) time.Duration {
	cur := s.Current()
	if cur.Terminal {
		return 0
	}
	left := cur.Budget - now.Sub(s.startedAt)
	if left < 0 {
		return 0
	}
	return left
}

func (s *Sequencer) Expired(now time.Time) bool {
	return !s.Complete() && s.TimeRemaining(now) == 0
}

// ProgressFraction is index/(len-1); it is only meant for a coarse indicator.
func (s *Sequencer) ProgressFraction() float64 {
	if len(s.screens) <= 1 {
		return 1
	}
	return float64(s.index) / float64(len(s.screens)-1)
}

// Advance moves to the next screen. It reports false once the terminal screen
// has been reached.
func (s *Sequencer) Advance(now time.Time) bool {
	if s.Complete() || s.index >= len(s.screens)-1 {
		return false
	}
	s.index++
	s.startedAt = now
	return true
}

// GoTo jumps forward to the next screen with the given id inside the current round.
func (s *Sequencer) GoTo(id ScreenID, now time.Time) error {
	round := s.Current().Round
	for i := s.index + 1; i < len(s.screens); i++ {
		sc := s.screens[i]
		if sc.ID == id && (sc.Round == round || sc.Terminal) {
			s.index = i
			s.startedAt = now
			return nil
		}
		if sc.Round != round {
			break
		}
	}
	for i := 0; i <= s.index; i++ {
		if s.screens[i].ID == id {
			return fmt.Errorf("%w: %s", ErrBackwardMove, id)
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownScreen, id)
}

// SetBudget changes the budget of every screen with id that has not started yet.
func (s *Sequencer) SetBudget(id ScreenID, budget time.Duration) int {
	if budget <= 0 {
		return 0
	}
	changed := 0
	for i := s.index + 1; i < len(s.screens); i++ {
		if s.screens[i].ID == id {
			s.screens[i].Budget = budget
			changed++
		}
	}
	return changed
}

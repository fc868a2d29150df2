package domain

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidTransition = errors.New("invalid intervention transition")

type Tier string

const (
	TierNone          Tier = "none"
	TierWarning       Tier = "warning"
	TierComprehension Tier = "comprehension"
	TierCountdown     Tier = "countdown"
)

// MaxEscalations is the ladder length; past it the prompt evolves.
const MaxEscalations = 3

var tierTransitions = map[Tier][]Tier{
	TierNone:          {TierWarning, TierComprehension},
	TierWarning:       {TierNone},
	TierComprehension: {TierCountdown, TierNone},
	TierCountdown:     {TierNone},
}

func (t Tier) CanMoveTo(next Tier) bool {
	for _, candidate := range tierTransitions[t] {
		if candidate == next {
			return true
		}
	}
	return false
}

func (t Tier) Level() int {
	switch t {
	case TierWarning:
		return 1
	case TierComprehension:
		return 2
	case TierCountdown:
		return 3
	default:
		return 0
	}
}

type Intervention struct {
	Tier            Tier      `json:"tier"`
	Message         string    `json:"message,omitempty"`
	FiredAt         time.Time `json:"fired_at"`
	CountdownEndsAt time.Time `json:"countdown_ends_at,omitempty"`
}

func (i Intervention) Active() bool {
	return i.Tier != "" && i.Tier != TierNone
}

// Remaining is only meaningful for the countdown tier.
func (i Intervention) Remaining(now time.Time) time.Duration {
	if i.Tier != TierCountdown {
		return 0
	}
	left := i.CountdownEndsAt.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

type EscalationPolicy struct {
	Threshold      time.Duration
	WarningDismiss time.Duration
	Countdown      time.Duration
	MinInputChars  int
}

// Ladder is the escalation engine state for the active screen.
type Ladder struct {
	Active     Intervention `json:"active"`
	Count      int          `json:"count"`
	IdleAnchor time.Time    `json:"idle_anchor"`
	InputChars int          `json:"input_chars"`
	Evolving   bool         `json:"evolving,omitempty"`
}

func NewLadder(now time.Time) Ladder {
	return Ladder{Active: Intervention{Tier: TierNone}, IdleAnchor: now}
}

func (l *Ladder) move(next Intervention) error {
	from := l.Active.Tier
	if from == "" {
		from = TierNone
	}
	if !from.CanMoveTo(next.Tier) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, next.Tier)
	}
	l.Active = next
	return nil
}

// Check fires the next tier when the idle threshold has been crossed. It
// returns the fired intervention, if any.
func (l *Ladder) Check(now time.Time, policy EscalationPolicy, message string) (Intervention, bool) {
	if l.Active.Active() || l.Evolving || l.InputChars >= policy.MinInputChars {
		return Intervention{}, false
	}
	if now.Sub(l.IdleAnchor) < policy.Threshold {
		return Intervention{}, false
	}
	next := Intervention{Tier: TierWarning, Message: message, FiredAt: now}
	if l.Count >= 1 {
		next = Intervention{Tier: TierComprehension, Message: ComprehensionPrompt, FiredAt: now}
	}
	if err := l.move(next); err != nil {
		return Intervention{}, false
	}
	l.Count++
	if l.Count > MaxEscalations {
		l.Count = MaxEscalations
	}
	return next, true
}

// DismissWarning clears a warning. The next crossing is measured from here.
func (l *Ladder) DismissWarning(now time.Time) bool {
	if l.Active.Tier != TierWarning {
		return false
	}
	l.Active = Intervention{Tier: TierNone}
	l.IdleAnchor = now
	return true
}

// Input records qualifying input. It clears whatever is displayed and resets
// the ladder, except while an evolution request is in flight.
func (l *Ladder) Input(now time.Time, totalChars int) (cleared Intervention, ok bool) {
	l.InputChars = totalChars
	if l.Evolving {
		return Intervention{}, false
	}
	prev := l.Active
	l.Active = Intervention{Tier: TierNone}
	l.Count = 0
	l.IdleAnchor = now
	return prev, prev.Active()
}

// Understand moves a comprehension check into the countdown tier.
func (l *Ladder) Understand(now time.Time, policy EscalationPolicy) (Intervention, error) {
	next := Intervention{
		Tier:            TierCountdown,
		Message:         CountdownPrompt,
		FiredAt:         now,
		CountdownEndsAt: now.Add(policy.Countdown),
	}
	if err := l.move(next); err != nil {
		return Intervention{}, err
	}
	l.Count = MaxEscalations
	return next, nil
}

// NotUnderstand drops the comprehension check and starts evolving the prompt.
func (l *Ladder) NotUnderstand() error {
	if err := l.move(Intervention{Tier: TierNone}); err != nil {
		return err
	}
	l.BeginEvolution()
	return nil
}

// CountdownExpired reports whether the countdown ran out; when it did the
// ladder starts evolving.
func (l *Ladder) CountdownExpired(now time.Time) bool {
	if l.Active.Tier != TierCountdown || now.Before(l.Active.CountdownEndsAt) {
		return false
	}
	l.Active = Intervention{Tier: TierNone}
	l.BeginEvolution()
	return true
}

func (l *Ladder) BeginEvolution() {
	l.Active = Intervention{Tier: TierNone}
	l.Evolving = true
	l.Count = 0
}

func (l *Ladder) Evolved(now time.Time) {
	l.Evolving = false
	l.Count = 0
	l.IdleAnchor = now
}

// Reset is called when the active screen changes.
func (l *Ladder) Reset(now time.Time) {
	*l = NewLadder(now)
}

// Nudge shows an externally recommended warning without counting a crossing.
func (l *Ladder) Nudge(now time.Time, message string) (Intervention, bool) {
	if l.Active.Active() || l.Evolving {
		return Intervention{}, false
	}
	next := Intervention{Tier: TierWarning, Message: message, FiredAt: now}
	if err := l.move(next); err != nil {
		return Intervention{}, false
	}
	return next, true
}

// Offer jumps straight to the comprehension check, which lets the user ask for
// a simpler prompt.
func (l *Ladder) Offer(now time.Time, message string) (Intervention, bool) {
	if l.Active.Tier == TierComprehension || l.Active.Tier == TierCountdown || l.Evolving {
		return Intervention{}, false
	}
	if message == "" {
		message = ComprehensionPrompt
	}
	l.Active = Intervention{Tier: TierNone}
	next := Intervention{Tier: TierComprehension, Message: message, FiredAt: now}
	if err := l.move(next); err != nil {
		return Intervention{}, false
	}
	if l.Count < 2 {
		l.Count = 2
	}
	return next, true
}

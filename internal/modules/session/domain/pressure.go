package domain

import "time"

type Pressure string

const (
	PressureCalm     Pressure = "calm"
	PressureFocused  Pressure = "focused"
	PressureUrgent   Pressure = "urgent"
	PressureCritical Pressure = "critical"
)

var pressureTransitions = map[Pressure][]Pressure{
	PressureCalm:     {PressureFocused},
	PressureFocused:  {PressureUrgent, PressureCalm},
	PressureUrgent:   {PressureCritical, PressureFocused, PressureCalm},
	PressureCritical: {PressureFocused, PressureCalm},
}

// CanMoveTo reports whether next is reachable from p in one step.
func (p Pressure) CanMoveTo(next Pressure) bool {
	if p == next {
		return true
	}
	for _, candidate := range pressureTransitions[p] {
		if candidate == next {
			return true
		}
	}
	return false
}

// PressureThresholds: CriticalAfter is measured from the moment urgent began.
type PressureThresholds struct {
	UrgentAfter   time.Duration
	CriticalAfter time.Duration
}

// PressureFor maps continuous idle time onto a pressure state. Without any
// input since the last calm entry the state stays calm.
func PressureFor(idle time.Duration, hasInput bool, th PressureThresholds) Pressure {
	if !hasInput {
		return PressureCalm
	}
	switch {
	case idle >= th.UrgentAfter+th.CriticalAfter:
		return PressureCritical
	case idle >= th.UrgentAfter:
		return PressureUrgent
	default:
		return PressureFocused
	}
}

// PressureTracker keeps only the raw activity facts; the state itself is
// always recomputed from them.
type PressureTracker struct {
	CalmSince   time.Time `json:"calm_since"`
	HasInput    bool      `json:"has_input"`
	LastInputAt time.Time `json:"last_input_at"`
}

func NewPressureTracker(now time.Time) PressureTracker {
	return PressureTracker{CalmSince: now}
}

func (t *PressureTracker) Input(now time.Time) {
	t.HasInput = true
	t.LastInputAt = now
}

// Submit is the only way back to calm.
func (t *PressureTracker) Submit(now time.Time) {
	t.CalmSince = now
	t.HasInput = false
	t.LastInputAt = time.Time{}
}

func (t PressureTracker) Idle(now time.Time) time.Duration {
	if !t.HasInput {
		return 0
	}
	idle := now.Sub(t.LastInputAt)
	if idle < 0 {
		return 0
	}
	return idle
}

func (t PressureTracker) State(now time.Time, th PressureThresholds) Pressure {
	return PressureFor(t.Idle(now), t.HasInput, th)
}

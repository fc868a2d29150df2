package service

import (
	"time"

	"arena/internal/modules/session/domain"
)

// Settings holds the timing knobs of a controller. A zero
// Escalation.Threshold means the profile's archetype decides it.
type Settings struct {
	Budgets      domain.Budgets
	Pressure     domain.PressureThresholds
	Escalation   domain.EscalationPolicy
	DisplayTick  time.Duration
	IdleCheck    time.Duration
	PollInterval time.Duration
	CallTimeout  time.Duration
	MinRounds    int
	MaxRounds    int
	Language     string
}

func DefaultSettings() Settings {
	return Settings{
		Budgets: domain.Budgets{
			Situation:   20 * time.Second,
			Choice:      3 * time.Minute,
			Consequence: 20 * time.Second,
			Insight:     20 * time.Second,
			Reflection:  90 * time.Second,
		},
		Pressure: domain.PressureThresholds{UrgentAfter: 60 * time.Second, CriticalAfter: 30 * time.Second},
		Escalation: domain.EscalationPolicy{
			WarningDismiss: 5 * time.Second,
			Countdown:      30 * time.Second,
			MinInputChars:  20,
		},
		DisplayTick:  time.Second,
		IdleCheck:    5 * time.Second,
		PollInterval: 2500 * time.Millisecond,
		CallTimeout:  20 * time.Second,
		MinRounds:    2,
		MaxRounds:    4,
		Language:     "en",
	}
}

func (s Settings) callTimeout() time.Duration {
	if s.CallTimeout <= 0 {
		return 20 * time.Second
	}
	return s.CallTimeout
}

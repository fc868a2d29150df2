package domain

import "time"

// Event is the closed set of notifications the controller emits.
type Event interface {
	EventName() string
	At() time.Time
	event()
}

type ScreenChanged struct {
	SessionID string
	Screen    ScreenID
	Round     int
	Index     int
	Remaining time.Duration
	Time      time.Time
}

type InterventionFired struct {
	SessionID    string
	Intervention Intervention
	Count        int
	Time         time.Time
}

type InterventionCleared struct {
	SessionID string
	Tier      Tier
	Reason    string
	Time      time.Time
}

type DecisionCommitted struct {
	SessionID string
	Decision  Decision
	Time      time.Time
}

type SessionComplete struct {
	SessionID string
	Decisions []Decision
	Time      time.Time
}

type PressureChanged struct {
	SessionID string
	From      Pressure
	To        Pressure
	Time      time.Time
}

// ContentUpdated is emitted when generated or evolved content lands.
type ContentUpdated struct {
	SessionID string
	Screen    ScreenID
	Evolved   bool
	Time      time.Time
}

type Tick struct {
	SessionID string
	Remaining time.Duration
	Countdown time.Duration
	Time      time.Time
}

func (ScreenChanged) EventName() string       { return "screen_changed" }
func (InterventionFired) EventName() string   { return "intervention_fired" }
func (InterventionCleared) EventName() string { return "intervention_cleared" }
func (DecisionCommitted) EventName() string   { return "decision_committed" }
func (SessionComplete) EventName() string     { return "session_complete" }
func (PressureChanged) EventName() string     { return "pressure_changed" }
func (ContentUpdated) EventName() string      { return "content_updated" }
func (Tick) EventName() string                { return "tick" }

func (e ScreenChanged) At() time.Time       { return e.Time }
func (e InterventionFired) At() time.Time   { return e.Time }
func (e InterventionCleared) At() time.Time { return e.Time }
func (e DecisionCommitted) At() time.Time   { return e.Time }
func (e SessionComplete) At() time.Time     { return e.Time }
func (e PressureChanged) At() time.Time     { return e.Time }
func (e ContentUpdated) At() time.Time      { return e.Time }
func (e Tick) At() time.Time                { return e.Time }

func (ScreenChanged) event()       {}
func (InterventionFired) event()   {}
func (InterventionCleared) event() {}
func (DecisionCommitted) event()   {}
func (SessionComplete) event()     {}
func (PressureChanged) event()     {}
func (ContentUpdated) event()      {}
func (Tick) event()                {}

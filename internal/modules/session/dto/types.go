package dto

import "time"

type OpenInput struct {
	ProblemID string
	Title     string
	Context   string
	UserID    string
	Archetype string
}

type Choice struct {
	ID     string
	Label  string
	Signal string
}

type Intervention struct {
	Tier      string
	Message   string
	Countdown time.Duration
}

type Decision struct {
	ProblemID     string
	ChoiceID      string
	Signal        string
	TimeToLock    time.Duration
	ChangesOfMind int
	Forced        bool
	Round         int
	CommittedAt   time.Time
}

// State is the read model the UI renders from.
type State struct {
	SessionID     string
	ProblemID     string
	Title         string
	Screen        string
	Round         int
	TargetRounds  int
	Remaining     time.Duration
	Progress      float64
	Pressure      string
	Intervention  Intervention
	Situation     string
	Choices       []Choice
	Selection     string
	Locked        bool
	CanChangeMind bool
	Consequences  []string
	Insight       string
	Prompt        string
	Draft         string
	Loading       bool
	Decisions     []Decision
	Complete      bool
	Restored      bool
}

type Event struct {
	Name    string
	At      time.Time
	Message string
}

type SnapshotOutput struct {
	Key       string
	SessionID string
	Screen    string
	Round     int
	Remaining time.Duration
	Decisions int
	SavedAt   time.Time
	// Discarded explains why Open would not resume this snapshot.
	Discarded string
}

type ScenarioOutput struct {
	Situation string
	Choices   []Choice
	Question  string
}

type DecisionRecordOutput struct {
	SessionID   string
	ProblemID   string
	ChoiceID    string
	Signal      string
	TimeToLock  time.Duration
	Forced      bool
	Round       int
	CommittedAt time.Time
}

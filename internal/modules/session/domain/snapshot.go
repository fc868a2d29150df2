package domain

import (
	"errors"
	"time"
)

const SchemaVersion = 1

const DefaultStaleness = 30 * time.Minute

var (
	ErrSnapshotMismatch = errors.New("snapshot belongs to another problem")
	ErrSnapshotStale    = errors.New("snapshot is stale")
	ErrSnapshotTerminal = errors.New("snapshot is already complete")
	ErrSnapshotSchema   = errors.New("snapshot schema is not supported")
)

// Snapshot is the serialized projection of a running session, keyed by
// problem id. Pressure is not stored; it is recomputed from Activity.
type Snapshot struct {
	Schema          int             `json:"schema"`
	Key             string          `json:"key"`
	Screens         []Screen        `json:"screens"`
	Index           int             `json:"index"`
	ScreenStartedAt time.Time       `json:"screen_started_at"`
	Session         Session         `json:"session"`
	Ladder          Ladder          `json:"ladder"`
	Activity        PressureTracker `json:"activity"`
	Threshold       time.Duration   `json:"threshold"`
	SavedAt         time.Time       `json:"saved_at"`
}

// Validate reports why a stored snapshot must not be restored.
func (s Snapshot) Validate(key string, now time.Time, staleness time.Duration) error {
	if s.Schema != SchemaVersion {
		return ErrSnapshotSchema
	}
	if s.Key != key {
		return ErrSnapshotMismatch
	}
	if staleness <= 0 {
		staleness = DefaultStaleness
	}
	if now.Sub(s.SavedAt) > staleness {
		return ErrSnapshotStale
	}
	if s.Index < 0 || s.Index >= len(s.Screens) {
		return ErrUnknownScreen
	}
	if s.Screens[s.Index].Terminal {
		return ErrSnapshotTerminal
	}
	return nil
}

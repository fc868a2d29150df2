package out

import (
	"context"
	"time"

	"arena/internal/modules/session/domain"
)

type SnapshotStore interface {
	Save(ctx context.Context, snapshot domain.Snapshot) error
	Load(ctx context.Context, key string) (domain.Snapshot, error)
	Clear(ctx context.Context, key string) error
}

type SituationRequest struct {
	Problem   domain.Problem
	Profile   domain.Profile
	Round     int
	Decisions []domain.Decision
	Language  string
}

type ConsequenceRequest struct {
	Problem   domain.Problem
	Round     int
	Situation string
	Choice    domain.Choice
	Decisions []domain.Decision
	Language  string
}

type EvolveRequest struct {
	Problem  domain.Problem
	Prompt   string
	Partial  string
	Language string
}

// ContentGenerator produces the text for each round. Callers fall back to
// static content on any error.
type ContentGenerator interface {
	Situation(ctx context.Context, req SituationRequest) (domain.Scenario, error)
	Consequence(ctx context.Context, req ConsequenceRequest) (domain.Outcome, error)
	Evolve(ctx context.Context, req EvolveRequest) (string, error)
}

type DecisionRecord struct {
	SessionID string
	UserID    string
	Archetype domain.Archetype
	Decision  domain.Decision
}

type DecisionRecorder interface {
	Record(ctx context.Context, record DecisionRecord) (domain.TimingHints, error)
}

type DecisionLog interface {
	ListDecisions(ctx context.Context, userID string, limit int) ([]DecisionRecord, error)
}

type InterventionAdvisor interface {
	Recommend(ctx context.Context, sessionID, language string) (domain.Recommendation, error)
}

type EventSink interface {
	Publish(event domain.Event)
}

type Report struct {
	Session     domain.Session
	CompletedAt time.Time
	Duration    time.Duration
}

type ReportStore interface {
	Save(ctx context.Context, report Report) (string, error)
}

// DecisionStore is a recorder that can also list what it recorded.
type DecisionStore interface {
	DecisionRecorder
	DecisionLog
	Close() error
}

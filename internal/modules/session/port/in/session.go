package in

import (
	"context"

	"arena/internal/modules/session/dto"
)

type Usecase interface {
	Open(ctx context.Context, input dto.OpenInput) (Session, error)
	ShowSnapshot(ctx context.Context, problemID string) (dto.SnapshotOutput, error)
	ClearSnapshot(ctx context.Context, problemID string) error
	ListDecisions(ctx context.Context, userID string, limit int) ([]dto.DecisionRecordOutput, error)
	PreviewSituation(ctx context.Context, input dto.OpenInput) (dto.ScenarioOutput, error)
}

// Session is a running arena session.
type Session interface {
	State() dto.State
	Events() <-chan dto.Event
	Continue() error
	Input(draft string) error
	Select(choiceID string) error
	ChangeMind() error
	Lock() error
	Submit(text string) error
	DismissWarning() error
	Comprehension(understood bool) error
	Exit() error
	Abandon() error
}

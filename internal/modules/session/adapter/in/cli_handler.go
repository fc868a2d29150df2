package in

import (
	"context"

	sessiondto "arena/internal/modules/session/dto"
	sessionin "arena/internal/modules/session/port/in"
)

type CLIHandler struct {
	usecase sessionin.Usecase
}

func NewCLIHandler(usecase sessionin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) ShowSnapshot(ctx context.Context, problemID string) (sessiondto.SnapshotOutput, error) {
	return h.usecase.ShowSnapshot(ctx, problemID)
}

func (h CLIHandler) ClearSnapshot(ctx context.Context, problemID string) error {
	return h.usecase.ClearSnapshot(ctx, problemID)
}

func (h CLIHandler) ListDecisions(ctx context.Context, userID string, limit int) ([]sessiondto.DecisionRecordOutput, error) {
	return h.usecase.ListDecisions(ctx, userID, limit)
}

func (h CLIHandler) PreviewSituation(ctx context.Context, problemID, title, background string) (sessiondto.ScenarioOutput, error) {
	return h.usecase.PreviewSituation(ctx, sessiondto.OpenInput{ProblemID: problemID, Title: title, Context: background})
}

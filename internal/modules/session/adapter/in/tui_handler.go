package in

import (
	"context"

	sessiondto "arena/internal/modules/session/dto"
	sessionin "arena/internal/modules/session/port/in"
)

type TUIHandler struct {
	usecase sessionin.Usecase
}

func NewTUIHandler(usecase sessionin.Usecase) TUIHandler {
	return TUIHandler{usecase: usecase}
}

// Open resumes or starts the session for a problem and hands back the live
// session for the terminal UI to drive.
func (h TUIHandler) Open(ctx context.Context, input sessiondto.OpenInput) (sessionin.Session, error) {
	return h.usecase.Open(ctx, input)
}

package in

import (
	"context"

	sessiondto "dispatchdesk/internal/modules/session/dto"
	sessionin "dispatchdesk/internal/modules/session/port/in"
)

type CLIHandler struct {
	usecase sessionin.Usecase
}

func NewCLIHandler(usecase sessionin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Restore(ctx context.Context) (sessiondto.SessionOutput, error) {
	return h.usecase.Restore(ctx)
}

func (h CLIHandler) Login(ctx context.Context, email, password string) (sessiondto.SessionOutput, error) {
	return h.usecase.Login(ctx, sessiondto.LoginInput{Email: email, Password: password})
}

func (h CLIHandler) Logout(ctx context.Context) error {
	return h.usecase.Logout(ctx)
}

func (h CLIHandler) Status(ctx context.Context) sessiondto.SessionOutput {
	return h.usecase.Status(ctx)
}

func (h CLIHandler) Watch() (<-chan sessiondto.SessionOutput, func()) {
	return h.usecase.Watch()
}

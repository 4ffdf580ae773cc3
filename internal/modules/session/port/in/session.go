package in

import (
	"context"

	"dispatchdesk/internal/modules/session/dto"
)

type Usecase interface {
	Restore(ctx context.Context) (dto.SessionOutput, error)
	Login(ctx context.Context, input dto.LoginInput) (dto.SessionOutput, error)
	Logout(ctx context.Context) error
	Status(ctx context.Context) dto.SessionOutput
	Watch() (<-chan dto.SessionOutput, func())
}

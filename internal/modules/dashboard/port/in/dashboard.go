package in

import (
	"context"

	"dispatchdesk/internal/modules/dashboard/dto"
)

type Usecase interface {
	// Mount starts the pull and the live channel. It fails unless the
	// session is authenticated.
	Mount(ctx context.Context) error
	Unmount()
	Refresh(ctx context.Context) error
	Resize(height int)
	View() dto.ViewOutput
	// Changes receives a value whenever View may have changed.
	Changes() <-chan struct{}
}

package in

import (
	"context"

	dashboarddto "dispatchdesk/internal/modules/dashboard/dto"
	dashboardin "dispatchdesk/internal/modules/dashboard/port/in"
)

type CLIHandler struct {
	usecase dashboardin.Usecase
}

func NewCLIHandler(usecase dashboardin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

// Snapshot mounts the dashboard, waits for the first pull to resolve and
// unmounts again.
func (h CLIHandler) Snapshot(ctx context.Context) (dashboarddto.ViewOutput, error) {
	if err := h.usecase.Mount(ctx); err != nil {
		return dashboarddto.ViewOutput{}, err
	}
	defer h.usecase.Unmount()
	for {
		view := h.usecase.View()
		if !view.InitialLoading || !view.Mounted {
			return view, nil
		}
		select {
		case <-ctx.Done():
			return view, ctx.Err()
		case <-h.usecase.Changes():
		}
	}
}

// Watch calls render on every change until ctx ends or the dashboard is
// unmounted, for example because the session ended.
func (h CLIHandler) Watch(ctx context.Context, height int, render func(dashboarddto.ViewOutput)) error {
	if err := h.usecase.Mount(ctx); err != nil {
		return err
	}
	defer h.usecase.Unmount()
	if height > 0 {
		h.usecase.Resize(height)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.usecase.Changes():
			view := h.usecase.View()
			render(view)
			if !view.Mounted {
				return nil
			}
		}
	}
}

func (h CLIHandler) Refresh(ctx context.Context) error {
	return h.usecase.Refresh(ctx)
}

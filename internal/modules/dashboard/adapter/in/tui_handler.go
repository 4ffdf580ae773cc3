package in

import (
	"context"

	dashboarddto "dispatchdesk/internal/modules/dashboard/dto"
	dashboardin "dispatchdesk/internal/modules/dashboard/port/in"
)

// TUIHandler exposes the mount lifecycle to the terminal UI.
type TUIHandler struct {
	usecase dashboardin.Usecase
}

func NewTUIHandler(usecase dashboardin.Usecase) TUIHandler {
	return TUIHandler{usecase: usecase}
}

func (h TUIHandler) Mount(ctx context.Context) error   { return h.usecase.Mount(ctx) }
func (h TUIHandler) Unmount()                          { h.usecase.Unmount() }
func (h TUIHandler) Refresh(ctx context.Context) error { return h.usecase.Refresh(ctx) }
func (h TUIHandler) Resize(height int)                 { h.usecase.Resize(height) }
func (h TUIHandler) View() dashboarddto.ViewOutput     { return h.usecase.View() }
func (h TUIHandler) Changes() <-chan struct{}          { return h.usecase.Changes() }

package usecase

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"dispatchdesk/internal/modules/dashboard/domain"
	dashboarddto "dispatchdesk/internal/modules/dashboard/dto"
	dashboardin "dispatchdesk/internal/modules/dashboard/port/in"
	dashboardout "dispatchdesk/internal/modules/dashboard/port/out"
	"dispatchdesk/internal/modules/dashboard/service"
	apperrors "dispatchdesk/internal/platform/errors"
	"dispatchdesk/internal/platform/logger"
)

type Interactor struct {
	aggregator *service.Aggregator
	session    dashboardout.SessionReader
	log        *zap.Logger

	mu       sync.Mutex
	stopWait func()
}

func NewInteractor(aggregator *service.Aggregator, session dashboardout.SessionReader, log *zap.Logger) dashboardin.Usecase {
	return &Interactor{aggregator: aggregator, session: session, log: logger.OrNop(log).Named("dashboard")}
}

// Mount admits only an authenticated session and ties the mount to it: the
// dashboard unmounts itself when that authenticated period ends.
func (i *Interactor) Mount(ctx context.Context) error {
	current := i.session.Current()
	if !current.Authenticated() {
		return apperrors.ErrUnauthorized
	}
	if err := i.aggregator.Mount(ctx, current.Role); err != nil {
		return err
	}

	updates, cancel := i.session.Subscribe()
	i.mu.Lock()
	if i.stopWait != nil {
		i.stopWait()
	}
	i.stopWait = cancel
	i.mu.Unlock()

	go func() {
		for s := range updates {
			if !s.Authenticated() || s.Epoch != current.Epoch {
				i.log.Info("session ended, unmounting dashboard", zap.Stringer("status", s.Status))
				i.aggregator.Unmount()
				cancel()
				return
			}
		}
	}()
	return nil
}

func (i *Interactor) Unmount() {
	i.mu.Lock()
	if i.stopWait != nil {
		i.stopWait()
		i.stopWait = nil
	}
	i.mu.Unlock()
	i.aggregator.Unmount()
}

func (i *Interactor) Refresh(ctx context.Context) error {
	return i.aggregator.Refresh(ctx)
}

func (i *Interactor) Resize(height int) {
	i.aggregator.Resize(height)
}

func (i *Interactor) Changes() <-chan struct{} {
	return i.aggregator.Changes()
}

func (i *Interactor) View() dashboarddto.ViewOutput {
	v := i.aggregator.View()
	out := dashboarddto.ViewOutput{
		Mounted:        v.Mounted,
		InitialLoading: v.InitialLoading,
		Loading:        v.Loading,
		Verification: dashboarddto.VerificationOutput{
			Verified:    v.Verification.Verified,
			Pending:     v.Verification.Pending,
			VerifiedPct: v.Verification.VerifiedPct,
			PendingPct:  v.Verification.PendingPct,
		},
		TotalBookings: v.TotalBookings,
		PageSize:      v.PageSize,
		LastError:     v.LastError,
		Live:          v.Live,
		Source:        v.Source.String(),
		Seq:           v.Seq,
		UpdatedAt:     v.UpdatedAt,
	}
	for _, c := range v.Cards {
		out.Cards = append(out.Cards, dashboarddto.CardOutput{Title: c.Title, Value: c.Value, Caption: c.Caption})
	}
	for _, b := range v.Bookings {
		out.Bookings = append(out.Bookings, dashboarddto.BookingOutput{
			ID:        b.ID,
			RideID:    b.RideID,
			Customer:  b.Customer.Name(),
			Rider:     b.Rider.Name(),
			Status:    b.Status,
			Tone:      toneLabel(b.Tone()),
			Fare:      b.Fare,
			CreatedAt: b.CreatedAt,
		})
	}
	return out
}

func toneLabel(t domain.Tone) string {
	switch t {
	case domain.ToneDone:
		return "done"
	case domain.ToneCanceled:
		return "canceled"
	default:
		return "pending"
	}
}

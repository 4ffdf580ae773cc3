package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"dispatchdesk/internal/modules/session/domain"
	sessiondto "dispatchdesk/internal/modules/session/dto"
	sessionin "dispatchdesk/internal/modules/session/port/in"
	sessionout "dispatchdesk/internal/modules/session/port/out"
	"dispatchdesk/internal/modules/session/service"
	apperrors "dispatchdesk/internal/platform/errors"
	"dispatchdesk/internal/platform/logger"
)

type Interactor struct {
	svc     *service.StateMachine
	gateway sessionout.AuthGateway
	log     *zap.Logger
}

func NewInteractor(svc *service.StateMachine, gateway sessionout.AuthGateway, log *zap.Logger) sessionin.Usecase {
	return &Interactor{svc: svc, gateway: gateway, log: logger.OrNop(log).Named("login")}
}

func (i *Interactor) Restore(ctx context.Context) (sessiondto.SessionOutput, error) {
	if err := ctx.Err(); err != nil {
		return sessiondto.SessionOutput{}, err
	}
	return toOutput(i.svc.Restore(ctx)), nil
}

// Login exchanges the operator's credentials for a token. Only super-admins
// and admins are admitted; any other role leaves the session untouched.
func (i *Interactor) Login(ctx context.Context, input sessiondto.LoginInput) (sessiondto.SessionOutput, error) {
	email := strings.TrimSpace(input.Email)
	if email == "" || input.Password == "" {
		return sessiondto.SessionOutput{}, fmt.Errorf("%w: email and password are required", apperrors.ErrInvalidInput)
	}

	result, err := i.gateway.Login(ctx, email, input.Password)
	if err != nil {
		if errors.Is(err, apperrors.ErrLoginRejected) {
			i.log.Info("login rejected", zap.String("email", email))
			return sessiondto.SessionOutput{}, apperrors.ErrLoginRejected
		}
		i.log.Warn("login request failed", zap.String("email", email), zap.Error(err))
		return sessiondto.SessionOutput{}, fmt.Errorf("%w (%v)", apperrors.ErrLoginRejected, err)
	}

	role := domain.Role(result.Role)
	if !role.Allowed() {
		i.log.Warn("login refused for role", zap.Int("role", result.Role), zap.String("email", email))
		return sessiondto.SessionOutput{}, apperrors.ErrRoleNotAllowed
	}

	session, err := i.svc.Login(ctx, result.Token, role, result.SubjectID)
	if err != nil {
		return sessiondto.SessionOutput{}, err
	}
	return toOutput(session), nil
}

// Logout tells the back office first and then always tears down locally.
func (i *Interactor) Logout(ctx context.Context) error {
	current := i.svc.Current()
	if current.Authenticated() && i.gateway != nil {
		if err := i.gateway.Logout(ctx, current.Token); err != nil {
			i.log.Warn("remote logout failed", zap.Error(err))
		}
	}
	i.svc.Logout(ctx)
	return nil
}

func (i *Interactor) Status(_ context.Context) sessiondto.SessionOutput {
	return toOutput(i.svc.Current())
}

// Watch streams session changes as outputs. The channel holds only the
// latest value; cancel closes it.
func (i *Interactor) Watch() (<-chan sessiondto.SessionOutput, func()) {
	src, cancel := i.svc.Subscribe()
	out := make(chan sessiondto.SessionOutput, 1)
	go func() {
		defer close(out)
		for s := range src {
			select {
			case <-out:
			default:
			}
			out <- toOutput(s)
		}
	}()
	return out, cancel
}

func toOutput(s domain.Session) sessiondto.SessionOutput {
	out := sessiondto.SessionOutput{
		Status:    s.Status.String(),
		Role:      int(s.Role),
		RoleLabel: s.Role.String(),
		SubjectID: s.SubjectID,
		Epoch:     s.Epoch,
	}
	if s.Authenticated() {
		out.TokenExpiresAt = tokenExpiry(s.Token)
	}
	return out
}

// tokenExpiry reads the exp claim without verifying the signature; the
// console never holds the signing key.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time.UTC()
}

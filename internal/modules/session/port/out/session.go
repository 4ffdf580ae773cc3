package out

import (
	"context"

	"dispatchdesk/internal/modules/session/domain"
	"dispatchdesk/internal/modules/session/dto"
)

// CredentialStore persists the credential record across restarts. Get
// returns apperrors.ErrNoCredentials when any field is missing.
type CredentialStore interface {
	Put(ctx context.Context, record domain.CredentialRecord) error
	Get(ctx context.Context) (domain.CredentialRecord, error)
	Clear(ctx context.Context) error
}

// AuthGateway is the remote login/logout boundary.
type AuthGateway interface {
	Login(ctx context.Context, email, password string) (dto.LoginResult, error)
	// Logout notifies the back office; callers treat failures as best effort.
	Logout(ctx context.Context, token string) error
}

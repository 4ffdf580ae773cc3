package dto

import "time"

type LoginInput struct {
	Email    string
	Password string
}

// LoginResult is the login endpoint's answer before role validation.
type LoginResult struct {
	Token     string
	Role      int
	SubjectID string
}

// Status values of SessionOutput.
const (
	StatusUnknown       = "unknown"
	StatusRestoring     = "restoring"
	StatusAuthenticated = "authenticated"
	StatusAnonymous     = "anonymous"
)

type SessionOutput struct {
	Status    string
	Role      int
	RoleLabel string
	SubjectID string
	Epoch     uint64
	// TokenExpiresAt is zero when the token carries no readable exp claim.
	TokenExpiresAt time.Time
}

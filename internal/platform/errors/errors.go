package apperrors

import "errors"

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotFound       = errors.New("not found")
	ErrNoCredentials  = errors.New("no stored credentials")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrLoginRejected  = errors.New("username or password does not exist")
	ErrRoleNotAllowed = errors.New("unauthorized access")
	ErrNotMounted     = errors.New("dashboard is not mounted")
	ErrChannelClosed  = errors.New("live channel closed")
)

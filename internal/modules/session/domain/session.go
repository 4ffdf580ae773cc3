package domain

import (
	"strconv"
	"strings"
)

type Status int

const (
	StatusUnknown Status = iota
	StatusRestoring
	StatusAuthenticated
	StatusAnonymous
)

func (s Status) String() string {
	switch s {
	case StatusRestoring:
		return "restoring"
	case StatusAuthenticated:
		return "authenticated"
	case StatusAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// Role is the operator's privilege tier as issued by the login endpoint.
type Role int

const (
	RoleNone       Role = 0
	RoleSuperAdmin Role = 1
	RoleAdmin      Role = 2
)

// Allowed reports whether the console admits operators of this role.
func (r Role) Allowed() bool {
	return r == RoleSuperAdmin || r == RoleAdmin
}

func (r Role) String() string {
	switch r {
	case RoleSuperAdmin:
		return "super-admin"
	case RoleAdmin:
		return "admin"
	case RoleNone:
		return "none"
	default:
		return "role-" + strconv.Itoa(int(r))
	}
}

// Session is the process-wide authenticated identity. Token, Role and
// SubjectID are set together and only while Status is StatusAuthenticated.
type Session struct {
	Status    Status
	Token     string
	Role      Role
	SubjectID string
	// Epoch increases on every transition into StatusAuthenticated.
	Epoch uint64
}

func (s Session) Authenticated() bool {
	return s.Status == StatusAuthenticated
}

// Settled is false while the session has not been restored yet.
func (s Session) Settled() bool {
	return s.Status == StatusAuthenticated || s.Status == StatusAnonymous
}

// CredentialRecord is the durable projection of an authenticated Session.
type CredentialRecord struct {
	Token     string `json:"token"`
	Role      string `json:"role"`
	SubjectID string `json:"user_id"`
}

// Complete is true only when every field is present.
func (r CredentialRecord) Complete() bool {
	return strings.TrimSpace(r.Token) != "" &&
		strings.TrimSpace(r.Role) != "" &&
		strings.TrimSpace(r.SubjectID) != ""
}

// ParsedRole decodes the stored role; ok is false for non-numeric values.
func (r CredentialRecord) ParsedRole() (Role, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(r.Role))
	if err != nil {
		return RoleNone, false
	}
	return Role(v), true
}

func RecordFor(token string, role Role, subjectID string) CredentialRecord {
	return CredentialRecord{Token: token, Role: strconv.Itoa(int(role)), SubjectID: subjectID}
}

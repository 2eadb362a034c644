package auth

import "errors"

// Role represents an authorisation tier.
type Role string

const (
	// RoleViewer can read state but not change it.
	RoleViewer Role = "viewer"

	// RoleOperator has full control over rotation and groups.
	RoleOperator Role = "operator"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleViewer, RoleOperator:
		return true
	}
	return false
}

// Domain errors.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token has expired")
	ErrInvalidRole  = errors.New("invalid role")
	ErrNoSecret     = errors.New("signing secret is empty")
)

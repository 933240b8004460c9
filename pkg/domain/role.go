package domain

import dErrors "crowngate/pkg/domain-errors"

// Role is the closed set of user roles. A user's role is fixed at
// registration; there is no transition between roles.
//
// Usage: construct via ParseRole at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type Role string

const (
	RoleKing    Role = "king"
	RoleCitizen Role = "citizen"
)

// validRoles is the single source of truth for valid roles.
var validRoles = map[Role]bool{
	RoleKing:    true,
	RoleCitizen: true,
}

// ParseRole constructs a Role from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "role cannot be empty")
	}
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role")
	}
	return r, nil
}

// IsValid checks if the role is one of the supported enum values.
func (r Role) IsValid() bool {
	return validRoles[r]
}

func (r Role) String() string {
	return string(r)
}

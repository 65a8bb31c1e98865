package domain

import dErrors "comply/pkg/domain-errors"

// Role is the coarse access level carried by a session. Partner users are
// additionally company-scoped: they only ever see artifacts owned by their
// own company, regardless of any other grant.
type Role string

// Supported roles.
const (
	RolePartner  Role = "partner"
	RoleReviewer Role = "reviewer"
	RoleAdmin    Role = "admin"
)

// validRoles is the single source of truth for valid roles.
var validRoles = map[Role]bool{
	RolePartner:  true,
	RoleReviewer: true,
	RoleAdmin:    true,
}

// ParseRole constructs a Role from external input.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "role cannot be empty")
	}
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeBadRequest, "unsupported role")
	}
	return r, nil
}

// IsValid checks if the role is one of the supported enum values.
func (r Role) IsValid() bool {
	return validRoles[r]
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

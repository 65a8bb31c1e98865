// Package directory is the user lookup the session issuer consults. In
// production the upstream identity provider syncs into this table; the
// service itself never manages user lifecycle beyond lookup.
package directory

import (
	"context"

	id "comply/pkg/domain"
)

// User is one directory entry.
type User struct {
	ID           id.UserID
	Email        string
	PasswordHash string
	CompanyID    id.CompanyID
	Role         id.Role
	Active       bool
}

// Store looks up users by login identifier.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
}

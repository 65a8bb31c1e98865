package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	id "comply/pkg/domain"
	"comply/pkg/platform/sentinel"
)

// PostgresStore reads directory entries from the users table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, email, password_hash, company_id, role, active
		FROM users
		WHERE lower(email) = $1
	`

	var (
		userID    uuid.UUID
		companyID uuid.UUID
		user      User
		role      string
	)
	err := s.db.QueryRowContext(ctx, query, strings.ToLower(email)).Scan(
		&userID,
		&user.Email,
		&user.PasswordHash,
		&companyID,
		&role,
		&user.Active,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}

	user.ID = id.UserID(userID)
	user.CompanyID = id.CompanyID(companyID)
	user.Role = id.Role(role)
	return &user, nil
}

package artifact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"comply/internal/workflow/models"
	id "comply/pkg/domain"
	"comply/pkg/platform/sentinel"
	txcontext "comply/pkg/platform/tx"
)

// PostgresStore persists artifacts. Status changes go through a conditional
// UPDATE keyed on the expected current status, so concurrent transitions on
// the same artifact serialize at the database and the loser sees a conflict.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) runner(ctx context.Context) dbRunner {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const artifactColumns = "id, kind, status, title, owner_id, company_id, file_key, expiration_date, reviewer_id, created_at, updated_at"

func (s *PostgresStore) Create(ctx context.Context, artifact *models.Artifact) error {
	query := `
		INSERT INTO artifacts (` + artifactColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	var reviewerID *uuid.UUID
	if artifact.ReviewerID != nil {
		rid := uuid.UUID(*artifact.ReviewerID)
		reviewerID = &rid
	}

	_, err := s.runner(ctx).ExecContext(ctx, query,
		uuid.UUID(artifact.ID),
		string(artifact.Kind),
		string(artifact.Status),
		artifact.Title,
		uuid.UUID(artifact.OwnerID),
		uuid.UUID(artifact.CompanyID),
		artifact.FileKey,
		artifact.ExpirationDate,
		reviewerID,
		artifact.CreatedAt,
		artifact.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, artifactID id.ArtifactID) (*models.Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM artifacts WHERE id = $1`
	row := s.runner(ctx).QueryRowContext(ctx, query, uuid.UUID(artifactID))

	artifact, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query artifact: %w", err)
	}
	return artifact, nil
}

func (s *PostgresStore) List(ctx context.Context, filter models.Filter) ([]*models.Artifact, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Kind != "" {
		conds = append(conds, "kind = "+arg(string(filter.Kind)))
	}
	if filter.Status != "" {
		conds = append(conds, "status = "+arg(string(filter.Status)))
	}
	if !filter.CompanyID.IsNil() {
		conds = append(conds, "company_id = "+arg(uuid.UUID(filter.CompanyID)))
	}
	if !filter.OwnerID.IsNil() {
		conds = append(conds, "owner_id = "+arg(uuid.UUID(filter.OwnerID)))
	}
	if filter.ExpiringWithin > 0 {
		now := filter.Now
		if now.IsZero() {
			now = time.Now()
		}
		conds = append(conds, "expiration_date IS NOT NULL AND expiration_date <= "+arg(now.Add(filter.ExpiringWithin)))
	}

	query := `SELECT ` + artifactColumns + ` FROM artifacts`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	var out []*models.Artifact
	for rows.Next() {
		artifact, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		out = append(out, artifact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	return out, nil
}

// UpdateStatus performs the compare-and-swap. The WHERE clause carries the
// expected current status; zero rows affected means either the artifact is
// gone or another writer committed first.
func (s *PostgresStore) UpdateStatus(ctx context.Context, artifactID id.ArtifactID, expectedFrom, to id.Status, reviewerID id.UserID, now time.Time) (*models.Artifact, error) {
	query := `
		UPDATE artifacts
		SET status = $1, updated_at = $2, reviewer_id = COALESCE($3, reviewer_id)
		WHERE id = $4 AND status = $5
		RETURNING ` + artifactColumns

	var reviewer *uuid.UUID
	if !reviewerID.IsNil() {
		rid := uuid.UUID(reviewerID)
		reviewer = &rid
	}

	row := s.runner(ctx).QueryRowContext(ctx, query,
		string(to),
		now,
		reviewer,
		uuid.UUID(artifactID),
		string(expectedFrom),
	)

	artifact, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		// Disambiguate: missing artifact vs. lost race.
		if _, findErr := s.FindByID(ctx, artifactID); errors.Is(findErr, sentinel.ErrNotFound) {
			return nil, sentinel.ErrNotFound
		}
		return nil, sentinel.ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("update artifact status: %w", err)
	}
	return artifact, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row rowScanner) (*models.Artifact, error) {
	var (
		artifactID uuid.UUID
		kind       string
		status     string
		ownerID    uuid.UUID
		companyID  uuid.UUID
		reviewerID *uuid.UUID
		artifact   models.Artifact
	)

	err := row.Scan(
		&artifactID,
		&kind,
		&status,
		&artifact.Title,
		&ownerID,
		&companyID,
		&artifact.FileKey,
		&artifact.ExpirationDate,
		&reviewerID,
		&artifact.CreatedAt,
		&artifact.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	artifact.ID = id.ArtifactID(artifactID)
	artifact.Kind = id.ArtifactKind(kind)
	artifact.Status = id.Status(status)
	artifact.OwnerID = id.UserID(ownerID)
	artifact.CompanyID = id.CompanyID(companyID)
	if reviewerID != nil {
		rid := id.UserID(*reviewerID)
		artifact.ReviewerID = &rid
	}
	return &artifact, nil
}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"comply/internal/activity"
	id "comply/pkg/domain"
	txcontext "comply/pkg/platform/tx"
)

// Store is the Postgres-backed review event log. Inserts only; there is no
// update or delete path by design of the table and this type.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// execer joins an ambient transaction when one is in the context, so the
// event append commits atomically with the status swap it records.
func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) Append(ctx context.Context, event activity.Event) error {
	var metadata []byte
	if len(event.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("marshal event metadata: %w", err)
		}
	}

	query := `
		INSERT INTO review_events (id, artifact_id, actor_id, action, from_status, to_status, metadata, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(event.ID),
		uuid.UUID(event.ArtifactID),
		uuid.UUID(event.ActorID),
		string(event.Action),
		string(event.FromStatus),
		string(event.ToStatus),
		metadata,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert review event: %w", err)
	}
	return nil
}

// ListByArtifact returns an artifact's events, newest first.
func (s *Store) ListByArtifact(ctx context.Context, artifactID id.ArtifactID) ([]activity.Event, error) {
	query := `
		SELECT id, artifact_id, actor_id, action, from_status, to_status, metadata, timestamp
		FROM review_events
		WHERE artifact_id = $1
		ORDER BY timestamp DESC, id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(artifactID))
	if err != nil {
		return nil, fmt.Errorf("query review events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListRecent returns the most recent N events across all artifacts.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]activity.Event, error) {
	query := `
		SELECT id, artifact_id, actor_id, action, from_status, to_status, metadata, timestamp
		FROM review_events
		ORDER BY timestamp DESC, id DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query review events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]activity.Event, error) {
	var events []activity.Event

	for rows.Next() {
		var (
			eventID    uuid.UUID
			artifactID uuid.UUID
			actorID    uuid.UUID
			action     string
			fromStatus string
			toStatus   string
			metadata   []byte
			event      activity.Event
		)

		err := rows.Scan(&eventID, &artifactID, &actorID, &action, &fromStatus, &toStatus, &metadata, &event.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("scan review event: %w", err)
		}

		event.ID = id.EventID(eventID)
		event.ArtifactID = id.ArtifactID(artifactID)
		event.ActorID = id.UserID(actorID)
		event.Action = activity.Action(action)
		event.FromStatus = id.Status(fromStatus)
		event.ToStatus = id.Status(toStatus)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal event metadata: %w", err)
			}
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review events: %w", err)
	}
	return events, nil
}

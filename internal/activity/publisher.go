package activity

import (
	"context"

	id "comply/pkg/domain"
	"comply/pkg/requestcontext"
)

// Store persists review events. Implementations must be append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByArtifact(ctx context.Context, artifactID id.ArtifactID) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Publisher captures structured review events. It stamps IDs and timestamps
// and delegates persistence to the store so tests can swap sinks easily.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID.IsNil() {
		event.ID = id.NewEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	return p.store.Append(ctx, event)
}

// History returns an artifact's events, newest first.
func (p *Publisher) History(ctx context.Context, artifactID id.ArtifactID) ([]Event, error) {
	return p.store.ListByArtifact(ctx, artifactID)
}

// Recent returns the latest events across all artifacts (admin view).
func (p *Publisher) Recent(ctx context.Context, limit int) ([]Event, error) {
	return p.store.ListRecent(ctx, limit)
}

package memory

import (
	"context"
	"sort"
	"sync"

	"comply/internal/activity"
	id "comply/pkg/domain"
)

// InMemoryStore keeps review events in memory, grouped by artifact. Used in
// dev mode and as the test double for the Postgres store.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.ArtifactID][]activity.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.ArtifactID][]activity.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event activity.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.ArtifactID] = append(s.events[event.ArtifactID], event)
	return nil
}

// ListByArtifact returns an artifact's events, newest first.
func (s *InMemoryStore) ListByArtifact(_ context.Context, artifactID id.ArtifactID) ([]activity.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := append([]activity.Event{}, s.events[artifactID]...)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	return events, nil
}

// ListRecent returns the most recent N events across all artifacts.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]activity.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []activity.Event
	for _, events := range s.events {
		all = append(all, events...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.After(all[j].Timestamp)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

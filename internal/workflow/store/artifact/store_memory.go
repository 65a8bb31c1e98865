package artifact

import (
	"context"
	"sort"
	"sync"
	"time"

	"comply/internal/workflow/models"
	id "comply/pkg/domain"
	"comply/pkg/platform/sentinel"
)

// InMemoryStore keeps artifacts in memory for dev mode and unit tests. The
// write lock serializes UpdateStatus, giving the same compare-and-swap
// guarantee the Postgres store gets from its conditional UPDATE.
type InMemoryStore struct {
	mu        sync.RWMutex
	artifacts map[id.ArtifactID]*models.Artifact
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{artifacts: make(map[id.ArtifactID]*models.Artifact)}
}

func (s *InMemoryStore) Create(_ context.Context, artifact *models.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.artifacts[artifact.ID]; exists {
		return sentinel.ErrConflict
	}
	copied := *artifact
	s.artifacts[artifact.ID] = &copied
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, artifactID id.ArtifactID) (*models.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	artifact, ok := s.artifacts[artifactID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *artifact
	return &copied, nil
}

func (s *InMemoryStore) List(_ context.Context, filter models.Filter) ([]*models.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Artifact
	now := filter.Now
	if now.IsZero() {
		now = time.Now()
	}
	for _, artifact := range s.artifacts {
		if !matches(artifact, filter, now) {
			continue
		}
		copied := *artifact
		out = append(out, &copied)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// UpdateStatus swaps the status only when the stored value still equals
// expectedFrom. Returns sentinel.ErrConflict when another writer got there
// first, so two concurrent transitions can never both apply.
func (s *InMemoryStore) UpdateStatus(_ context.Context, artifactID id.ArtifactID, expectedFrom, to id.Status, reviewerID id.UserID, now time.Time) (*models.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	artifact, ok := s.artifacts[artifactID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if artifact.Status != expectedFrom {
		return nil, sentinel.ErrConflict
	}

	artifact.Status = to
	artifact.UpdatedAt = now
	if !reviewerID.IsNil() {
		rid := reviewerID
		artifact.ReviewerID = &rid
	}

	copied := *artifact
	return &copied, nil
}

func matches(a *models.Artifact, f models.Filter, now time.Time) bool {
	if f.Kind != "" && a.Kind != f.Kind {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if !f.CompanyID.IsNil() && a.CompanyID != f.CompanyID {
		return false
	}
	if !f.OwnerID.IsNil() && a.OwnerID != f.OwnerID {
		return false
	}
	if f.ExpiringWithin > 0 {
		if a.ExpirationDate == nil {
			return false
		}
		if a.ExpirationDate.After(now.Add(f.ExpiringWithin)) {
			return false
		}
	}
	return true
}

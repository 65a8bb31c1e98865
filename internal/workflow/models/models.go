// Package models holds the workflow read and write models. Artifacts are the
// storage shape; ArtifactView is the explicit read-model handed to transport,
// decoupling API responses from the storage schema.
package models

import (
	"time"

	"comply/internal/expiry"
	id "comply/pkg/domain"
)

// Artifact is one trackable compliance item.
type Artifact struct {
	ID             id.ArtifactID
	Kind           id.ArtifactKind
	Status         id.Status
	Title          string
	OwnerID        id.UserID
	CompanyID      id.CompanyID
	FileKey        string
	ExpirationDate *time.Time
	ReviewerID     *id.UserID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ArtifactView is an Artifact annotated with its derived expiration
// classification. The classification is computed per read, never stored.
type ArtifactView struct {
	Artifact
	Expiry expiry.Classification
}

// Filter narrows artifact listings. Zero values mean "any".
type Filter struct {
	Kind      id.ArtifactKind
	Status    id.Status
	CompanyID id.CompanyID
	OwnerID   id.UserID
	// ExpiringWithin filters to artifacts whose expiration date falls within
	// the duration from Now. Zero disables the filter.
	ExpiringWithin time.Duration
	// Now anchors the ExpiringWithin window; stores fall back to the wall
	// clock when zero.
	Now   time.Time
	Limit int
}

// NewArtifact builds a draft artifact owned by the given user.
func NewArtifact(kind id.ArtifactKind, title string, ownerID id.UserID, companyID id.CompanyID, fileKey string, expires *time.Time, now time.Time) *Artifact {
	return &Artifact{
		ID:             id.NewArtifactID(),
		Kind:           kind,
		Status:         id.StatusDraft,
		Title:          title,
		OwnerID:        ownerID,
		CompanyID:      companyID,
		FileKey:        fileKey,
		ExpirationDate: expires,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

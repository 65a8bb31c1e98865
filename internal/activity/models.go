// Package activity is the append-only review log: one immutable event per
// status transition, kept for audit. Events reference artifacts by ID only;
// there is no embedded object graph.
package activity

import (
	"time"

	id "comply/pkg/domain"
)

// Action names what happened to the artifact.
type Action string

const (
	ActionCreated     Action = "created"
	ActionSubmitted   Action = "submitted"
	ActionReviewBegan Action = "review_began"
	ActionApproved    Action = "approved"
	ActionRejected    Action = "rejected"
	ActionBlocked     Action = "blocked"
	ActionUnblocked   Action = "unblocked"
	ActionResubmitted Action = "resubmitted"
)

// Event is one immutable review log entry. Once appended it is never mutated
// or deleted.
type Event struct {
	ID         id.EventID
	ArtifactID id.ArtifactID
	ActorID    id.UserID
	Action     Action
	FromStatus id.Status
	ToStatus   id.Status
	Timestamp  time.Time
	Metadata   map[string]string
}

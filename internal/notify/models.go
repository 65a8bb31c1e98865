// Package notify delivers transition-triggered messages to interested
// parties. Delivery is best-effort and decoupled from workflow correctness:
// one attempt per request, bounded by a timeout, failures logged and counted
// but never propagated to the transition caller.
package notify

import (
	"context"

	id "comply/pkg/domain"
)

// Request is one ephemeral notification. It exists only between the
// transition commit and the dispatch attempt; it is never persisted.
type Request struct {
	Recipients []string
	TemplateID string
	ArtifactID id.ArtifactID
	Payload    map[string]string
}

// Sender performs a single delivery attempt. Implementations must respect
// context cancellation; the dispatcher bounds every attempt with a deadline.
type Sender interface {
	Send(ctx context.Context, req Request) error
}

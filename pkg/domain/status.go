package domain

import dErrors "comply/pkg/domain-errors"

// Status is the review state of an artifact. Every stored artifact carries
// exactly one of these values; derived states such as "expired" are computed
// at read time and never persisted.
type Status string

// Review states shared across artifact kinds.
const (
	StatusDraft       Status = "draft"
	StatusSubmitted   Status = "submitted"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusBlocked     Status = "blocked"
)

// validStatuses is the single source of truth for valid review states.
var validStatuses = map[Status]bool{
	StatusDraft:       true,
	StatusSubmitted:   true,
	StatusUnderReview: true,
	StatusApproved:    true,
	StatusRejected:    true,
	StatusBlocked:     true,
}

// ParseStatus constructs a Status from external input.
//
// Errors: returns CodeBadRequest when the value is empty or unsupported.
func ParseStatus(s string) (Status, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "status cannot be empty")
	}
	st := Status(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeBadRequest, "unsupported status")
	}
	return st, nil
}

// IsValid checks if the status is one of the supported enum values.
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// IsTerminal reports whether the status ends a submission cycle. A new cycle
// may still be opened from approved/rejected where the kind's rules allow
// re-submission; blocked requires an admin to clear it.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusBlocked
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Package domain holds shared domain primitives: typed identifiers and the
// enumerations that gate the review workflow. Construct values via the Parse*
// functions at trust boundaries; direct casting bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "comply/pkg/domain-errors"
)

// Typed UUID identifiers. Wrapping uuid.UUID keeps call sites honest about
// which entity an identifier refers to.
type (
	ArtifactID uuid.UUID
	UserID     uuid.UUID
	CompanyID  uuid.UUID
	SessionID  uuid.UUID
	EventID    uuid.UUID
)

func NewArtifactID() ArtifactID { return ArtifactID(uuid.New()) }
func NewUserID() UserID         { return UserID(uuid.New()) }
func NewCompanyID() CompanyID   { return CompanyID(uuid.New()) }
func NewSessionID() SessionID   { return SessionID(uuid.New()) }
func NewEventID() EventID       { return EventID(uuid.New()) }

func (id ArtifactID) String() string { return uuid.UUID(id).String() }
func (id UserID) String() string     { return uuid.UUID(id).String() }
func (id CompanyID) String() string  { return uuid.UUID(id).String() }
func (id SessionID) String() string  { return uuid.UUID(id).String() }
func (id EventID) String() string    { return uuid.UUID(id).String() }

func (id ArtifactID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id CompanyID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// ParseArtifactID constructs an ArtifactID from external input.
// Returns CodeBadRequest on malformed or nil UUIDs.
func ParseArtifactID(s string) (ArtifactID, error) {
	u, err := parseUUID(s, "artifact id")
	return ArtifactID(u), err
}

// ParseUserID constructs a UserID from external input.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

// ParseCompanyID constructs a CompanyID from external input.
func ParseCompanyID(s string) (CompanyID, error) {
	u, err := parseUUID(s, "company id")
	return CompanyID(u), err
}

// ParseSessionID constructs a SessionID from external input.
func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s, "session id")
	return SessionID(u), err
}

// ParseEventID constructs an EventID from external input.
func ParseEventID(s string) (EventID, error) {
	u, err := parseUUID(s, "event id")
	return EventID(u), err
}

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, what+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "invalid "+what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, what+" cannot be nil")
	}
	return u, nil
}

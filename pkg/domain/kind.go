package domain

import dErrors "comply/pkg/domain-errors"

// ArtifactKind identifies what category of compliance item an artifact is.
// Invariant: the value must be one of the supported kinds.
type ArtifactKind string

// Supported artifact kinds.
const (
	KindDocument              ArtifactKind = "document"
	KindStartupFolderDocument ArtifactKind = "startup_folder_document"
	KindWorkPermit            ArtifactKind = "work_permit"
)

// validKinds is the single source of truth for valid artifact kinds.
var validKinds = map[ArtifactKind]bool{
	KindDocument:              true,
	KindStartupFolderDocument: true,
	KindWorkPermit:            true,
}

// ParseArtifactKind constructs an ArtifactKind from external input.
//
// Errors: returns CodeBadRequest when the value is empty or unsupported.
func ParseArtifactKind(s string) (ArtifactKind, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "artifact kind cannot be empty")
	}
	k := ArtifactKind(s)
	if !k.IsValid() {
		return "", dErrors.New(dErrors.CodeBadRequest, "unsupported artifact kind")
	}
	return k, nil
}

// IsValid checks if the kind is one of the supported enum values.
func (k ArtifactKind) IsValid() bool {
	return validKinds[k]
}

// String returns the string representation of the kind.
func (k ArtifactKind) String() string {
	return string(k)
}

// Kinds returns all supported artifact kinds.
func Kinds() []ArtifactKind {
	return []ArtifactKind{KindDocument, KindStartupFolderDocument, KindWorkPermit}
}

package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "comply/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant: IDs must be
// valid, non-empty, non-nil UUIDs.
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseUserID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseUserID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseUserID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseUserID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, UserID(validUUID), id)
	})

	t.Run("case insensitive", func(t *testing.T) {
		validUUID := uuid.New()
		upper := strings.ToUpper(validUUID.String())
		id, err := ParseArtifactID(upper)
		require.NoError(t, err)
		assert.Equal(t, validUUID.String(), id.String())
	})
}

func TestParsersPerType(t *testing.T) {
	raw := uuid.New().String()

	artifactID, err := ParseArtifactID(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, artifactID.String())

	companyID, err := ParseCompanyID(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, companyID.String())

	sessionID, err := ParseSessionID(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, sessionID.String())
}

// TestTypeDistinction verifies the compiler enforces type safety between ID
// kinds. If this compiles, the invariant holds.
func TestTypeDistinction(t *testing.T) {
	userID := UserID(uuid.New())
	companyID := CompanyID(uuid.New())

	// These would fail to compile if types were interchangeable:
	// var _ UserID = companyID // compile error
	// var _ CompanyID = userID // compile error

	assert.NotEqual(t, uuid.UUID(userID), uuid.UUID(companyID))
}

func TestIsNil(t *testing.T) {
	assert.True(t, UserID{}.IsNil())
	assert.True(t, ArtifactID{}.IsNil())
	assert.False(t, NewUserID().IsNil())
	assert.False(t, NewArtifactID().IsNil())
}

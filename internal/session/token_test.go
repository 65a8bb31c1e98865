package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "comply/pkg/domain"
	dErrors "comply/pkg/domain-errors"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)
	userID := id.NewUserID()
	companyID := id.NewCompanyID()
	sessionID := id.NewSessionID()

	token, err := svc.Issue(userID, companyID, id.RoleReviewer, sessionID)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, companyID.String(), claims.CompanyID)
	assert.Equal(t, "reviewer", claims.Role)
	assert.Equal(t, sessionID.String(), claims.SessionID)
}

func TestValidateTokenRejections(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateToken("not.a.token")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("wrong signing key", func(t *testing.T) {
		other := NewTokenService("different-secret", time.Hour)
		token, err := other.Issue(id.NewUserID(), id.NewCompanyID(), id.RolePartner, id.NewSessionID())
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("expired", func(t *testing.T) {
		expired := NewTokenService("secret", -time.Minute)
		token, err := expired.Issue(id.NewUserID(), id.NewCompanyID(), id.RolePartner, id.NewSessionID())
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "comply/pkg/domain"
	"comply/pkg/requestcontext"
)

type stubValidator struct {
	claims *TokenClaims
	err    error
}

func (v stubValidator) ValidateToken(string) (*TokenClaims, error) {
	return v.claims, v.err
}

type stubChecker struct {
	revoked bool
	err     error
}

func (c stubChecker) IsRevoked(context.Context, string) (bool, error) {
	return c.revoked, c.err
}

func validClaims() *TokenClaims {
	return &TokenClaims{
		UserID:    id.NewUserID().String(),
		CompanyID: id.NewCompanyID().String(),
		Role:      "partner",
		SessionID: id.NewSessionID().String(),
	}
}

func runAuth(t *testing.T, validator TokenValidator, checker SessionChecker, authorization string) (*httptest.ResponseRecorder, *requestcontext.SessionPrincipal) {
	t.Helper()

	var seen *requestcontext.SessionPrincipal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := requestcontext.Principal(r.Context()); ok {
			seen = &p
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/artifacts", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rr := httptest.NewRecorder()
	RequireAuth(validator, checker, slog.Default())(next).ServeHTTP(rr, req)
	return rr, seen
}

func TestRequireAuth(t *testing.T) {
	t.Run("valid token resolves a principal", func(t *testing.T) {
		claims := validClaims()
		rr, principal := runAuth(t, stubValidator{claims: claims}, stubChecker{}, "Bearer good-token")

		require.Equal(t, http.StatusOK, rr.Code)
		require.NotNil(t, principal)
		assert.Equal(t, claims.UserID, principal.UserID.String())
		assert.Equal(t, id.RolePartner, principal.Role)
	})

	t.Run("missing header is a 401", func(t *testing.T) {
		rr, principal := runAuth(t, stubValidator{claims: validClaims()}, stubChecker{}, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Nil(t, principal)
	})

	t.Run("invalid token is a 401", func(t *testing.T) {
		rr, _ := runAuth(t, stubValidator{err: errors.New("bad signature")}, stubChecker{}, "Bearer junk")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("malformed claims are a 401", func(t *testing.T) {
		claims := validClaims()
		claims.Role = "superuser"
		rr, _ := runAuth(t, stubValidator{claims: claims}, stubChecker{}, "Bearer token")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("revoked session is a 401", func(t *testing.T) {
		rr, _ := runAuth(t, stubValidator{claims: validClaims()}, stubChecker{revoked: true}, "Bearer token")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("revocation list failure fails closed", func(t *testing.T) {
		rr, _ := runAuth(t, stubValidator{claims: validClaims()}, stubChecker{err: errors.New("redis down")}, "Bearer token")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("nil checker skips the revocation check", func(t *testing.T) {
		rr, principal := runAuth(t, stubValidator{claims: validClaims()}, nil, "Bearer token")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.NotNil(t, principal)
	})
}

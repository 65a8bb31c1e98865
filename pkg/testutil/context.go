package testutil

import (
	"net/http"
	"time"

	id "comply/pkg/domain"
	"comply/pkg/requestcontext"
)

// Principal builds a session principal from string IDs and a role, generating
// fresh IDs for empty fields. Invalid strings fall back to fresh IDs too, so
// tests can pass fixed UUIDs only where identity matters.
func Principal(userID, companyID string, role id.Role) requestcontext.SessionPrincipal {
	principal := requestcontext.SessionPrincipal{
		UserID:    id.NewUserID(),
		CompanyID: id.NewCompanyID(),
		Role:      role,
		SessionID: id.NewSessionID(),
	}
	if parsed, err := id.ParseUserID(userID); err == nil {
		principal.UserID = parsed
	}
	if parsed, err := id.ParseCompanyID(companyID); err == nil {
		principal.CompanyID = parsed
	}
	return principal
}

// WithPrincipal attaches an authenticated principal to the request context,
// simulating what the auth middleware does after token validation.
func WithPrincipal(req *http.Request, principal requestcontext.SessionPrincipal) *http.Request {
	return req.WithContext(requestcontext.WithPrincipal(req.Context(), principal))
}

// WithFrozenTime pins the request clock so assertions on timestamps are exact.
func WithFrozenTime(req *http.Request, at time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), at))
}

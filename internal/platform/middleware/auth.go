package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	id "comply/pkg/domain"
	"comply/pkg/requestcontext"
)

// TokenValidator validates a bearer token and returns its claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*TokenClaims, error)
}

// TokenClaims is what the session token must carry for a request to be
// attributable: who, for which company, with which role.
type TokenClaims struct {
	UserID    string
	CompanyID string
	Role      string
	SessionID string
}

// SessionChecker reports whether a session has been revoked since its token
// was issued. A nil checker disables the check (dev mode without Redis).
type SessionChecker interface {
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// RequireAuth resolves the bearer token into a SessionPrincipal in the
// request context. Requests without a valid, unrevoked session get a 401; the
// principal is the only identity downstream layers ever consult.
func RequireAuth(validator TokenValidator, revoked SessionChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized - missing bearer token",
					"request_id", requestID,
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			principal, err := principalFromClaims(claims)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized - malformed claims",
					"error", err,
					"request_id", requestID,
				)
				writeUnauthorized(w, "Invalid token claims")
				return
			}

			if revoked != nil {
				isRevoked, err := revoked.IsRevoked(ctx, claims.SessionID)
				if err != nil {
					// Fail closed: an unreachable revocation list must not
					// let revoked sessions through.
					logger.ErrorContext(ctx, "revocation check failed",
						"error", err,
						"request_id", requestID,
					)
					writeUnauthorized(w, "Session could not be verified")
					return
				}
				if isRevoked {
					logger.WarnContext(ctx, "unauthorized - revoked session",
						"session_id", claims.SessionID,
						"request_id", requestID,
					)
					writeUnauthorized(w, "Session has been revoked")
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithPrincipal(ctx, principal)))
		})
	}
}

func principalFromClaims(claims *TokenClaims) (requestcontext.SessionPrincipal, error) {
	var p requestcontext.SessionPrincipal

	userID, err := id.ParseUserID(claims.UserID)
	if err != nil {
		return p, err
	}
	companyID, err := id.ParseCompanyID(claims.CompanyID)
	if err != nil {
		return p, err
	}
	role, err := id.ParseRole(claims.Role)
	if err != nil {
		return p, err
	}
	sessionID, err := id.ParseSessionID(claims.SessionID)
	if err != nil {
		return p, err
	}

	return requestcontext.SessionPrincipal{
		UserID:    userID,
		CompanyID: companyID,
		Role:      role,
		SessionID: sessionID,
	}, nil
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}

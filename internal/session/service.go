package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mssola/useragent"
	"golang.org/x/crypto/bcrypt"

	"comply/internal/platform/metrics"
	"comply/internal/session/directory"
	id "comply/pkg/domain"
	dErrors "comply/pkg/domain-errors"
	emailutil "comply/pkg/email"
	"comply/pkg/platform/sentinel"
	"comply/pkg/requestcontext"
)

// RevocationStore is the session denylist consulted by auth middleware and
// written by admin revocation.
type RevocationStore interface {
	Revoke(ctx context.Context, sessionID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// Service issues session tokens against the user directory and handles admin
// revocation.
type Service struct {
	directory directory.Store
	tokens    *TokenService
	revoked   RevocationStore
	ttl       time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(dir directory.Store, tokens *TokenService, revoked RevocationStore, ttl time.Duration, opts ...Option) *Service {
	svc := &Service{
		directory: dir,
		tokens:    tokens,
		revoked:   revoked,
		ttl:       ttl,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// IssueResult is returned to a successful login.
type IssueResult struct {
	Token       string
	SessionID   id.SessionID
	UserID      id.UserID
	CompanyID   id.CompanyID
	Role        id.Role
	DisplayName string
	ExpiresAt   time.Time
}

// Issue verifies credentials and signs a session token. The userAgent string
// is only used to name the device in logs; it carries no authority.
func (s *Service) Issue(ctx context.Context, email, password, userAgent string) (*IssueResult, error) {
	if email == "" || password == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "email and password are required")
	}

	user, err := s.directory.FindByEmail(ctx, email)
	if errors.Is(err, sentinel.ErrNotFound) {
		// Same error as a bad password so probes cannot enumerate users.
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeDependency, "user directory unreachable")
	}

	if !user.Active {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "account is disabled")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	sessionID := id.NewSessionID()
	token, err := s.tokens.Issue(user.ID, user.CompanyID, user.Role, sessionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign session token")
	}

	s.logger.InfoContext(ctx, "session issued",
		"user_id", user.ID,
		"company_id", user.CompanyID,
		"role", user.Role,
		"session_id", sessionID,
		"device", deviceName(userAgent),
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.SessionsIssued.Inc()
	}

	first, last := emailutil.DeriveNameFromEmail(user.Email)

	return &IssueResult{
		Token:       token,
		SessionID:   sessionID,
		UserID:      user.ID,
		CompanyID:   user.CompanyID,
		Role:        user.Role,
		DisplayName: first + " " + last,
		ExpiresAt:   time.Now().Add(s.ttl),
	}, nil
}

// Revoke adds a session to the denylist. Admin only; the actor comes from the
// request principal, never from the payload.
func (s *Service) Revoke(ctx context.Context, sessionID id.SessionID) error {
	principal, ok := requestcontext.Principal(ctx)
	if !ok {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if principal.Role != id.RoleAdmin {
		return dErrors.New(dErrors.CodeForbidden, "only admins may revoke sessions")
	}

	if err := s.revoked.Revoke(ctx, sessionID.String(), s.ttl); err != nil {
		return dErrors.Wrap(err, dErrors.CodeDependency, "revocation list unreachable")
	}

	s.logger.InfoContext(ctx, "session revoked",
		"session_id", sessionID,
		"revoked_by", principal.UserID,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.SessionsRevoked.Inc()
	}
	return nil
}

// deviceName renders a short human-readable device label from a User-Agent.
func deviceName(uaString string) string {
	if uaString == "" {
		return "unknown"
	}
	ua := useragent.New(uaString)
	browser, version := ua.Browser()
	// The parser echoes unrecognized strings back as the browser name with
	// no version, so a missing version means the parse found nothing real.
	if browser == "" || version == "" {
		return "unknown"
	}
	if os := ua.OS(); os != "" {
		return browser + " on " + os
	}
	return browser
}

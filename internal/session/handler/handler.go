package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"comply/internal/platform/metrics"
	"comply/internal/platform/middleware"
	"comply/internal/session"
	id "comply/pkg/domain"
	dErrors "comply/pkg/domain-errors"
	"comply/pkg/platform/httputil"
)

// Service defines the session operations the handler exposes.
type Service interface {
	Issue(ctx context.Context, email, password, userAgent string) (*session.IssueResult, error)
	Revoke(ctx context.Context, sessionID id.SessionID) error
}

// Handler exposes session issue and revocation endpoints.
type Handler struct {
	sessions  Service
	logger    *slog.Logger
	metrics   *metrics.Metrics
	validator middleware.TokenValidator
	checker   middleware.SessionChecker
}

func New(sessions Service, validator middleware.TokenValidator, checker middleware.SessionChecker, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		sessions:  sessions,
		logger:    logger,
		metrics:   m,
		validator: validator,
		checker:   checker,
	}
}

// Register mounts the session routes. Issue is unauthenticated (it is the
// login); revocation requires an authenticated admin.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Recovery(h.logger))
		r.Use(middleware.RequestID)
		r.Use(middleware.Logger(h.logger))
		r.Use(middleware.Timeout(10 * time.Second))
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.Latency(h.metrics))
		r.Post("/auth/sessions", h.handleIssue)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Recovery(h.logger))
		r.Use(middleware.RequestID)
		r.Use(middleware.Logger(h.logger))
		r.Use(middleware.Timeout(10 * time.Second))
		r.Use(middleware.Latency(h.metrics))
		r.Use(middleware.RequireAuth(h.validator, h.checker, h.logger))
		r.Delete("/auth/sessions/{sessionID}", h.handleRevoke)
	})
}

type issueRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type issueResponse struct {
	Token       string `json:"token"`
	SessionID   string `json:"session_id"`
	UserID      string `json:"user_id"`
	CompanyID   string `json:"company_id"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
	ExpiresAt   string `json:"expires_at"`
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.sessions.Issue(r.Context(), req.Email, req.Password, r.UserAgent())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, issueResponse{
		Token:       result.Token,
		SessionID:   result.SessionID.String(),
		UserID:      result.UserID.String(),
		CompanyID:   result.CompanyID.String(),
		Role:        result.Role.String(),
		DisplayName: result.DisplayName,
		ExpiresAt:   result.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.sessions.Revoke(r.Context(), sessionID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

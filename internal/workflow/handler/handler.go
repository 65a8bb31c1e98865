package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"comply/internal/activity"
	"comply/internal/platform/metrics"
	"comply/internal/platform/middleware"
	"comply/internal/workflow/models"
	id "comply/pkg/domain"
	dErrors "comply/pkg/domain-errors"
	"comply/pkg/platform/httputil"
)

// Service defines the workflow operations the handler exposes.
type Service interface {
	CreateArtifact(ctx context.Context, kind id.ArtifactKind, title, fileKey string, expires *time.Time) (*models.ArtifactView, error)
	RequestTransition(ctx context.Context, artifactID id.ArtifactID, target id.Status) (*models.ArtifactView, error)
	GetArtifact(ctx context.Context, artifactID id.ArtifactID) (*models.ArtifactView, error)
	ListArtifacts(ctx context.Context, filter models.Filter) ([]*models.ArtifactView, error)
	GetHistory(ctx context.Context, artifactID id.ArtifactID) ([]activity.Event, error)
	RecentActivity(ctx context.Context, limit int) ([]activity.Event, error)
}

// Handler is the thin HTTP layer over the workflow service. It parses and
// validates at the boundary and delegates; no business rules live here.
type Handler struct {
	workflow       Service
	logger         *slog.Logger
	metrics        *metrics.Metrics
	validator      middleware.TokenValidator
	sessionChecker middleware.SessionChecker
	expiringWindow time.Duration
}

func New(workflow Service, validator middleware.TokenValidator, checker middleware.SessionChecker, logger *slog.Logger, m *metrics.Metrics, expiringWindow time.Duration) *Handler {
	return &Handler{
		workflow:       workflow,
		logger:         logger,
		metrics:        m,
		validator:      validator,
		sessionChecker: checker,
		expiringWindow: expiringWindow,
	}
}

// Register mounts all artifact routes. Every route is authenticated.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Recovery(h.logger))
		r.Use(middleware.RequestID)
		r.Use(middleware.Logger(h.logger))
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.Latency(h.metrics))
		r.Use(middleware.RequireAuth(h.validator, h.sessionChecker, h.logger))

		r.Post("/artifacts", h.handleCreate)
		r.Get("/artifacts", h.handleList)
		r.Get("/artifacts/{artifactID}", h.handleGet)
		r.Post("/artifacts/{artifactID}/transition", h.handleTransition)
		r.Get("/artifacts/{artifactID}/history", h.handleHistory)
		r.Get("/activity/recent", h.handleRecentActivity)
	})
}

type createRequest struct {
	Kind           string `json:"kind"`
	Title          string `json:"title"`
	FileKey        string `json:"file_key,omitempty"`
	ExpirationDate string `json:"expiration_date,omitempty"`
}

type transitionRequest struct {
	Target string `json:"target"`
}

type artifactResponse struct {
	ID             string `json:"id"`
	Kind           string `json:"kind"`
	Status         string `json:"status"`
	Title          string `json:"title"`
	OwnerID        string `json:"owner_id"`
	CompanyID      string `json:"company_id"`
	FileKey        string `json:"file_key,omitempty"`
	ExpirationDate string `json:"expiration_date,omitempty"`
	Expiry         string `json:"expiry"`
	ReviewerID     string `json:"reviewer_id,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

type eventResponse struct {
	ID         string            `json:"id"`
	ArtifactID string            `json:"artifact_id"`
	ActorID    string            `json:"actor_id"`
	Action     string            `json:"action"`
	FromStatus string            `json:"from_status,omitempty"`
	ToStatus   string            `json:"to_status"`
	Timestamp  string            `json:"timestamp"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	kind, err := id.ParseArtifactKind(req.Kind)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var expires *time.Time
	if req.ExpirationDate != "" {
		parsed, err := time.Parse("2006-01-02", req.ExpirationDate)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "expiration_date must be YYYY-MM-DD"))
			return
		}
		expires = &parsed
	}

	view, err := h.workflow.CreateArtifact(r.Context(), kind, req.Title, req.FileKey, expires)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toArtifactResponse(view))
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	artifactID, err := id.ParseArtifactID(chi.URLParam(r, "artifactID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	target, err := id.ParseStatus(req.Target)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	view, err := h.workflow.RequestTransition(r.Context(), artifactID, target)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toArtifactResponse(view))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	artifactID, err := id.ParseArtifactID(chi.URLParam(r, "artifactID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	view, err := h.workflow.GetArtifact(r.Context(), artifactID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toArtifactResponse(view))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := h.filterFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	views, err := h.workflow.ListArtifacts(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]artifactResponse, 0, len(views))
	for _, view := range views {
		out = append(out, toArtifactResponse(view))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"artifacts": out})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	artifactID, err := id.ParseArtifactID(chi.URLParam(r, "artifactID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	events, err := h.workflow.GetHistory(r.Context(), artifactID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": toEventResponses(events)})
}

func (h *Handler) handleRecentActivity(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	events, err := h.workflow.RecentActivity(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": toEventResponses(events)})
}

func (h *Handler) filterFromQuery(r *http.Request) (models.Filter, error) {
	var filter models.Filter
	q := r.URL.Query()

	if raw := q.Get("kind"); raw != "" {
		kind, err := id.ParseArtifactKind(raw)
		if err != nil {
			return filter, err
		}
		filter.Kind = kind
	}
	if raw := q.Get("status"); raw != "" {
		status, err := id.ParseStatus(raw)
		if err != nil {
			return filter, err
		}
		filter.Status = status
	}
	if raw := q.Get("company_id"); raw != "" {
		companyID, err := id.ParseCompanyID(raw)
		if err != nil {
			return filter, err
		}
		filter.CompanyID = companyID
	}
	if raw := q.Get("owner_id"); raw != "" {
		ownerID, err := id.ParseUserID(raw)
		if err != nil {
			return filter, err
		}
		filter.OwnerID = ownerID
	}
	if q.Get("due") == "expiring" {
		filter.ExpiringWithin = h.expiringWindow
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return filter, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer")
		}
		filter.Limit = limit
	}
	return filter, nil
}

func toArtifactResponse(view *models.ArtifactView) artifactResponse {
	resp := artifactResponse{
		ID:        view.ID.String(),
		Kind:      view.Kind.String(),
		Status:    view.Status.String(),
		Title:     view.Title,
		OwnerID:   view.OwnerID.String(),
		CompanyID: view.CompanyID.String(),
		FileKey:   view.FileKey,
		Expiry:    string(view.Expiry),
		CreatedAt: view.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: view.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if view.ExpirationDate != nil {
		resp.ExpirationDate = view.ExpirationDate.UTC().Format("2006-01-02")
	}
	if view.ReviewerID != nil {
		resp.ReviewerID = view.ReviewerID.String()
	}
	return resp
}

func toEventResponses(events []activity.Event) []eventResponse {
	out := make([]eventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, eventResponse{
			ID:         event.ID.String(),
			ArtifactID: event.ArtifactID.String(),
			ActorID:    event.ActorID.String(),
			Action:     string(event.Action),
			FromStatus: string(event.FromStatus),
			ToStatus:   string(event.ToStatus),
			Timestamp:  event.Timestamp.UTC().Format(time.RFC3339Nano),
			Metadata:   event.Metadata,
		})
	}
	return out
}

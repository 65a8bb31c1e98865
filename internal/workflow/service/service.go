package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"comply/internal/activity"
	"comply/internal/authz"
	"comply/internal/expiry"
	"comply/internal/notify"
	"comply/internal/workflow"
	wfmetrics "comply/internal/workflow/metrics"
	"comply/internal/workflow/models"
	id "comply/pkg/domain"
	dErrors "comply/pkg/domain-errors"
	"comply/pkg/platform/sentinel"
	txcontext "comply/pkg/platform/tx"
	"comply/pkg/requestcontext"
)

// ArtifactStore is the persistence the engine drives. UpdateStatus must be a
// compare-and-swap on the expected current status.
type ArtifactStore interface {
	Create(ctx context.Context, artifact *models.Artifact) error
	FindByID(ctx context.Context, artifactID id.ArtifactID) (*models.Artifact, error)
	List(ctx context.Context, filter models.Filter) ([]*models.Artifact, error)
	UpdateStatus(ctx context.Context, artifactID id.ArtifactID, expectedFrom, to id.Status, reviewerID id.UserID, now time.Time) (*models.Artifact, error)
}

// ActivityPublisher records review events and serves history reads.
type ActivityPublisher interface {
	Emit(ctx context.Context, event activity.Event) error
	History(ctx context.Context, artifactID id.ArtifactID) ([]activity.Event, error)
	Recent(ctx context.Context, limit int) ([]activity.Event, error)
}

// Gate authorizes capabilities against resources.
type Gate interface {
	Authorize(principal requestcontext.SessionPrincipal, capability authz.Capability, res authz.Resource) error
}

// NotificationQueue accepts fire-and-forget notification requests.
type NotificationQueue interface {
	Enqueue(ctx context.Context, req notify.Request)
}

// BlobChecker reports whether a file key resolves to stored content.
type BlobChecker interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Service is the transition engine: it validates and applies status changes,
// records review events, and queues notifications after commit.
type Service struct {
	store         ArtifactStore
	activity      ActivityPublisher
	gate          Gate
	notifications NotificationQueue
	// db is the shared database when both stores are Postgres-backed; the
	// status swap and event append then commit in one transaction. Nil for
	// memory-backed deployments.
	db            *sql.DB
	blobs         BlobChecker
	warningWindow time.Duration
	logger        *slog.Logger
	metrics       *wfmetrics.Metrics
	tracer        trace.Tracer

	onActivityFailure func()
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *wfmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithDB(db *sql.DB) Option {
	return func(s *Service) { s.db = db }
}

// WithBlobStore enables file key verification on create. Without it keys are
// accepted as opaque references.
func WithBlobStore(blobs BlobChecker) Option {
	return func(s *Service) { s.blobs = blobs }
}

func WithWarningWindow(window time.Duration) Option {
	return func(s *Service) { s.warningWindow = window }
}

// WithActivityFailureHook registers a counter bump for swallowed review log
// failures so operators see them even though the transition succeeds.
func WithActivityFailureHook(hook func()) Option {
	return func(s *Service) { s.onActivityFailure = hook }
}

func New(store ArtifactStore, activityPub ActivityPublisher, gate Gate, notifications NotificationQueue, opts ...Option) *Service {
	svc := &Service{
		store:         store,
		activity:      activityPub,
		gate:          gate,
		notifications: notifications,
		warningWindow: 30 * 24 * time.Hour,
		logger:        slog.Default(),
		tracer:        otel.Tracer("comply/workflow"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// CreateArtifact registers a new draft owned by the caller, for the caller's
// own company.
func (s *Service) CreateArtifact(ctx context.Context, kind id.ArtifactKind, title, fileKey string, expires *time.Time) (*models.ArtifactView, error) {
	principal, ok := requestcontext.Principal(ctx)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if title == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if !kind.IsValid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unsupported artifact kind")
	}

	if err := s.gate.Authorize(principal, authz.CapCreate, authz.Resource{
		OwnerID:   principal.UserID,
		CompanyID: principal.CompanyID,
	}); err != nil {
		return nil, err
	}

	if fileKey != "" && s.blobs != nil {
		if _, err := s.blobs.Get(ctx, fileKey); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeValidation, "file_key does not reference stored content")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeDependency, "failed to verify file key")
		}
	}

	now := requestcontext.Now(ctx)
	artifact := models.NewArtifact(kind, title, principal.UserID, principal.CompanyID, fileKey, expires, now)

	err := txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		if err := s.store.Create(ctx, artifact); err != nil {
			return dErrors.Wrap(err, dErrors.CodeDependency, "failed to create artifact")
		}
		s.recordEvent(ctx, activity.Event{
			ArtifactID: artifact.ID,
			ActorID:    principal.UserID,
			Action:     activity.ActionCreated,
			FromStatus: "",
			ToStatus:   id.StatusDraft,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ArtifactsCreated.WithLabelValues(kind.String()).Inc()
	}
	return s.view(artifact, now), nil
}

// RequestTransition moves an artifact to the target status if the kind's
// transition table allows it and the caller holds the gating capability.
// Exactly one review event is recorded per success, and at most one
// notification is queued after the write commits.
func (s *Service) RequestTransition(ctx context.Context, artifactID id.ArtifactID, target id.Status) (*models.ArtifactView, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.RequestTransition", trace.WithAttributes(
		attribute.String("artifact.id", artifactID.String()),
		attribute.String("transition.target", target.String()),
	))
	defer span.End()

	principal, ok := requestcontext.Principal(ctx)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if !target.IsValid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unsupported status")
	}

	artifact, err := s.store.FindByID(ctx, artifactID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "artifact not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeDependency, "artifact store unreachable")
	}
	span.SetAttributes(attribute.String("artifact.kind", artifact.Kind.String()))

	rule, found := workflow.FindRule(artifact.Kind, artifact.Status, target)
	if !found {
		s.denied(artifact.Kind, "invalid_transition")
		return nil, dErrors.New(dErrors.CodeInvalidTransition,
			"cannot move "+artifact.Kind.String()+" from "+artifact.Status.String()+" to "+target.String())
	}

	if err := s.gate.Authorize(principal, rule.Capability, authz.Resource{
		OwnerID:   artifact.OwnerID,
		CompanyID: artifact.CompanyID,
	}); err != nil {
		s.denied(artifact.Kind, "forbidden")
		return nil, err
	}

	now := requestcontext.Now(ctx)
	reviewerID := reviewerFor(rule.Capability, principal.UserID)

	var updated *models.Artifact
	err = txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		var swapErr error
		updated, swapErr = s.store.UpdateStatus(ctx, artifactID, artifact.Status, target, reviewerID, now)
		if errors.Is(swapErr, sentinel.ErrConflict) {
			// A concurrent transition won the race; our expected "from" is
			// stale, which makes this request an invalid transition now.
			s.denied(artifact.Kind, "stale_status")
			return dErrors.New(dErrors.CodeInvalidTransition, "artifact status changed concurrently")
		}
		if errors.Is(swapErr, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "artifact not found")
		}
		if swapErr != nil {
			return dErrors.Wrap(swapErr, dErrors.CodeDependency, "failed to update artifact status")
		}

		s.recordEvent(ctx, activity.Event{
			ArtifactID: artifactID,
			ActorID:    principal.UserID,
			Action:     rule.Action,
			FromStatus: artifact.Status,
			ToStatus:   target,
		})
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.Transitions.WithLabelValues(artifact.Kind.String(), target.String()).Inc()
	}
	s.logger.InfoContext(ctx, "transition applied",
		"artifact_id", artifactID,
		"kind", artifact.Kind,
		"from", artifact.Status,
		"to", target,
		"actor_id", principal.UserID,
		"request_id", requestcontext.RequestID(ctx),
	)

	// Queued only after the write committed; delivery failure or latency
	// never reaches the caller.
	if rule.Template != "" {
		s.notifications.Enqueue(ctx, notify.Request{
			Recipients: []string{"user:" + updated.OwnerID.String()},
			TemplateID: rule.Template,
			ArtifactID: artifactID,
			Payload: map[string]string{
				"title": updated.Title,
				"kind":  updated.Kind.String(),
				"from":  artifact.Status.String(),
				"to":    target.String(),
				"actor": principal.UserID.String(),
			},
		})
	}

	return s.view(updated, now), nil
}

// GetArtifact returns one artifact, company-scope checked, with its derived
// expiration classification.
func (s *Service) GetArtifact(ctx context.Context, artifactID id.ArtifactID) (*models.ArtifactView, error) {
	principal, ok := requestcontext.Principal(ctx)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	artifact, err := s.store.FindByID(ctx, artifactID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "artifact not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeDependency, "artifact store unreachable")
	}

	if err := s.gate.Authorize(principal, authz.CapReadAny, authz.Resource{
		OwnerID:   artifact.OwnerID,
		CompanyID: artifact.CompanyID,
	}); err != nil {
		return nil, err
	}

	return s.view(artifact, requestcontext.Now(ctx)), nil
}

// ListArtifacts returns artifacts matching the filter, annotated with their
// derived expiration status. Company-scoped callers are silently narrowed to
// their own company.
func (s *Service) ListArtifacts(ctx context.Context, filter models.Filter) ([]*models.ArtifactView, error) {
	principal, ok := requestcontext.Principal(ctx)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	if err := s.gate.Authorize(principal, authz.CapReadCompany, authz.Resource{
		CompanyID: scopeCompany(principal, filter),
	}); err != nil {
		return nil, err
	}
	if principal.Role == id.RolePartner {
		filter.CompanyID = principal.CompanyID
	}

	now := requestcontext.Now(ctx)
	filter.Now = now

	artifacts, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeDependency, "artifact store unreachable")
	}
	views := make([]*models.ArtifactView, 0, len(artifacts))
	for _, artifact := range artifacts {
		views = append(views, s.view(artifact, now))
	}
	return views, nil
}

// GetHistory returns an artifact's review events, newest first. Re-reads
// with no intervening transition return identical sequences.
func (s *Service) GetHistory(ctx context.Context, artifactID id.ArtifactID) ([]activity.Event, error) {
	principal, ok := requestcontext.Principal(ctx)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	artifact, err := s.store.FindByID(ctx, artifactID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "artifact not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeDependency, "artifact store unreachable")
	}

	if err := s.gate.Authorize(principal, authz.CapReadAny, authz.Resource{
		OwnerID:   artifact.OwnerID,
		CompanyID: artifact.CompanyID,
	}); err != nil {
		return nil, err
	}

	events, err := s.activity.History(ctx, artifactID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeDependency, "review log unreachable")
	}
	return events, nil
}

// RecentActivity returns the latest events across all artifacts. Admin only.
func (s *Service) RecentActivity(ctx context.Context, limit int) ([]activity.Event, error) {
	principal, ok := requestcontext.Principal(ctx)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if principal.Role != id.RoleAdmin {
		return nil, dErrors.New(dErrors.CodeForbidden, "only admins may read the activity feed")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	events, err := s.activity.Recent(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeDependency, "review log unreachable")
	}
	return events, nil
}

// recordEvent appends to the review log. Logging is observability, not a
// correctness dependency: a failed append is logged and counted, and the
// triggering transition is not reverted.
func (s *Service) recordEvent(ctx context.Context, event activity.Event) {
	if err := s.activity.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to record review event",
			"error", err,
			"artifact_id", event.ArtifactID,
			"action", event.Action,
		)
		if s.onActivityFailure != nil {
			s.onActivityFailure()
		}
	}
}

func (s *Service) view(artifact *models.Artifact, now time.Time) *models.ArtifactView {
	return &models.ArtifactView{
		Artifact: *artifact,
		Expiry:   expiry.Classify(artifact.ExpirationDate, now, s.warningWindow),
	}
}

func (s *Service) denied(kind id.ArtifactKind, reason string) {
	if s.metrics != nil {
		s.metrics.TransitionsDenied.WithLabelValues(kind.String(), reason).Inc()
	}
}

// reviewerFor stamps the acting reviewer on review-side transitions; owner
// submissions leave the reviewer untouched.
func reviewerFor(capability authz.Capability, actor id.UserID) id.UserID {
	switch capability {
	case authz.CapReview, authz.CapBlock, authz.CapClearBlock:
		return actor
	default:
		return id.UserID{}
	}
}

// scopeCompany picks the company the read check runs against: partners are
// checked against their own company, broader roles against the filter.
func scopeCompany(principal requestcontext.SessionPrincipal, filter models.Filter) id.CompanyID {
	if principal.Role == id.RolePartner {
		return principal.CompanyID
	}
	return filter.CompanyID
}

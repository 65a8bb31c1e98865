package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	dErrors "comply/pkg/domain-errors"
	stringutil "comply/pkg/platform/strings"
)

var (
	dispatchAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "comply_notification_dispatch_attempts_total",
		Help: "Notification dispatch attempts",
	})
	dispatchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "comply_notification_dispatch_failures_total",
		Help: "Notification dispatch attempts that failed",
	})
	dispatchDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "comply_notification_dropped_total",
		Help: "Notifications dropped because the dispatch queue was full",
	})
)

// Dispatcher queues notification requests and delivers them on a background
// worker, one attempt each, so the transition response never waits on the
// message broker.
type Dispatcher struct {
	sender  Sender
	logger  *slog.Logger
	timeout time.Duration
	inbox   chan Request
}

func NewDispatcher(sender Sender, logger *slog.Logger, timeout time.Duration, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Dispatcher{
		sender:  sender,
		logger:  logger,
		timeout: timeout,
		inbox:   make(chan Request, queueSize),
	}
}

// Enqueue hands a request to the worker without blocking. On overflow the
// request is dropped and logged; at-most-once semantics make this safe.
// Recipients are normalized here so duplicates never cause double delivery.
func (d *Dispatcher) Enqueue(ctx context.Context, req Request) {
	req.Recipients = stringutil.DedupeAndTrim(req.Recipients)
	select {
	case d.inbox <- req:
	default:
		dispatchDropped.Inc()
		d.logger.WarnContext(ctx, "notification queue full, dropping request",
			"template_id", req.TemplateID,
			"artifact_id", req.ArtifactID,
		)
	}
}

// Run consumes the queue until ctx is cancelled. The remaining backlog is
// abandoned on shutdown; notifications are best-effort.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-d.inbox:
			d.Dispatch(ctx, req)
		}
	}
}

// Dispatch performs exactly one delivery attempt bounded by the configured
// timeout. Returns the failure for callers that want it; the error is already
// logged and counted, and callers must not treat it as fatal.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) error {
	dispatchAttempts.Inc()

	attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.sender.Send(attemptCtx, req); err != nil {
		dispatchFailures.Inc()
		wrapped := dErrors.Wrap(err, dErrors.CodeDependency, "notification delivery failed")
		d.logger.ErrorContext(ctx, "notification dispatch failed",
			"error", err,
			"template_id", req.TemplateID,
			"artifact_id", req.ArtifactID,
			"recipients", len(req.Recipients),
		)
		return wrapped
	}
	return nil
}

// Package httptransport assembles the public router from feature handlers.
// Each feature registers its own routes and middleware; this package only
// adds the operational endpoints.
package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"comply/pkg/platform/httputil"
)

// Registrar is implemented by every feature handler.
type Registrar interface {
	Register(r chi.Router)
}

// HealthChecker reports readiness of a backing dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// NewRouter mounts the given feature handlers plus /healthz and /metrics.
// Checkers may be nil for deployments that run without that dependency.
func NewRouter(handlers []Registrar, checkers map[string]HealthChecker) http.Handler {
	r := chi.NewRouter()

	for _, h := range handlers {
		h.Register(r)
	}

	r.Get("/healthz", handleHealth(checkers))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

func handleHealth(checkers map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{}
		healthy := true
		for name, checker := range checkers {
			if checker == nil {
				status[name] = "disabled"
				continue
			}
			if err := checker.Health(r.Context()); err != nil {
				status[name] = "unavailable"
				healthy = false
				continue
			}
			status[name] = "ok"
		}

		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, code, map[string]any{
			"status":       statusWord(healthy),
			"dependencies": status,
		})
	}
}

func statusWord(healthy bool) string {
	if healthy {
		return "ok"
	}
	return "degraded"
}

// Package httpapi assembles the top-level router: the driver onboarding API,
// the admin review API, and the operational endpoints.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"onramp/internal/onboarding/handler"
)

// HealthChecker reports readiness of one backing dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// NewRouter wires all endpoints. Business routes carry their own middleware
// chains; the operational endpoints stay bare.
func NewRouter(onboarding *handler.Handler, admin *handler.AdminHandler, health []HealthChecker) http.Handler {
	r := chi.NewRouter()

	onboarding.Register(r)
	admin.Register(r)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		for _, check := range health {
			if check == nil {
				continue
			}
			if err := check.Health(req.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("unhealthy: " + err.Error()))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}

package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/procflow/retryd/internal/api"
	"github.com/procflow/retryd/internal/core"
	"github.com/procflow/retryd/internal/dispatch"
	"github.com/procflow/retryd/internal/metrics"
	"github.com/procflow/retryd/internal/procdef"
	"github.com/procflow/retryd/internal/retry"
	"github.com/procflow/retryd/internal/state"
)

// Deps bundles the wired components the router exposes over HTTP.
type Deps struct {
	Store      state.Store
	Cache      *procdef.Cache
	Retries    *retry.Handler
	Dispatcher dispatch.Dispatcher
	Subscriber core.EventSubscriber
	StoreName  string
}

// NewRouter creates and configures the HTTP router.
func NewRouter(deps Deps, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)
	r.Use(api.RequestLogger(logger))
	r.Use(api.ValidateContentType)

	r.Handle("/metrics", promhttp.Handler())

	jobHandler := api.NewJobHandler(deps.Store, deps.Retries, deps.Dispatcher)
	definitionHandler := api.NewDefinitionHandler(deps.Store, deps.Cache)
	executionHandler := api.NewExecutionHandler(deps.Store)
	systemHandler := api.NewSystemHandler(deps.Store, deps.StoreName)
	eventHandler := api.NewEventHandler(deps.Subscriber)

	r.Get("/v1/health", systemHandler.Health)

	r.Post("/v1/jobs", jobHandler.Create)
	r.Get("/v1/jobs/{id}", jobHandler.Get)
	r.Delete("/v1/jobs/{id}", jobHandler.Delete)
	r.Post("/v1/jobs/{id}/failure", jobHandler.ReportFailure)
	r.Get("/v1/jobs/{id}/events", eventHandler.StreamJob)

	r.Post("/v1/definitions", definitionHandler.Deploy)
	r.Get("/v1/definitions/{id}", definitionHandler.Get)
	r.Delete("/v1/definitions/{id}", definitionHandler.Delete)

	r.Put("/v1/executions/{id}", executionHandler.Put)
	r.Get("/v1/executions/{id}", executionHandler.Get)

	r.Get("/v1/events", eventHandler.StreamAll)

	return r
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		duration := time.Since(start).Seconds()
		path := metricRoutePattern(r)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, fmt.Sprintf("%d", ww.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, path, fmt.Sprintf("%d", ww.Status())).Observe(duration)
	})
}

func metricRoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

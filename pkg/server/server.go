// Package server exposes the query engine over HTTP: one JSON query
// endpoint plus collection listing, health and metrics.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aileronlabs/aileron/pkg/observability"
	"github.com/aileronlabs/aileron/pkg/vector"
	"github.com/aileronlabs/aileron/pkg/workflow"
)

const defaultAddr = ":8080"

// Runner is the engine surface the server fronts. *workflow.Engine
// implements it.
type Runner interface {
	Run(ctx context.Context, state *workflow.State) (*workflow.State, error)
	Retrieve(ctx context.Context, question, collection string, k int) ([]vector.Document, error)
	Collections(ctx context.Context) ([]vector.CollectionStat, error)
}

// Server serves the /v1 query API.
type Server struct {
	engine Runner
	obs    *observability.Manager
	addr   string
	server *http.Server
}

// Option configures the server.
type Option func(*Server)

// WithObservability attaches the telemetry manager; requests are then
// traced and measured, and /metrics serves the scrape registry.
func WithObservability(m *observability.Manager) Option {
	return func(s *Server) {
		s.obs = m
	}
}

// New builds a server for the given engine. addr defaults to :8080.
func New(engine Runner, addr string, opts ...Option) *Server {
	if addr == "" {
		addr = defaultAddr
	}
	s := &Server{
		engine: engine,
		addr:   addr,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Address returns the listen address.
func (s *Server) Address() string {
	return s.addr
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Get("/v1/collections", s.handleCollections)
	r.Post("/v1/query", s.handleQuery)

	if s.obs != nil && s.obs.MetricsEnabled() {
		r.Method(http.MethodGet, "/metrics", s.obs.MetricsHandler())
	}

	// Observability wraps everything so all requests are traced and
	// measured, including 404s.
	tracer := observability.GetTracer("aileron.http")
	metrics := observability.GetGlobalMetrics()
	if s.obs != nil {
		tracer = s.obs.GetTracer("aileron.http")
		metrics = s.obs.Metrics()
	}
	return observability.HTTPMiddleware(tracer, metrics)(r)
}

// Start runs the server until it fails or ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		// No WriteTimeout: response time is governed by the per-query
		// budget, which is configurable past any fixed write deadline.
	}

	slog.Info("HTTP server starting", "address", s.addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	slog.Info("HTTP server shutting down")
	return s.server.Shutdown(shutdownCtx)
}

// requestLogger logs one line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

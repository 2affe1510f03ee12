package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
)

// Config wires tracing and metrics for one process.
type Config struct {
	Tracing TracerConfig
	Metrics MetricsConfig
}

// Manager owns the process-wide telemetry state: the tracer provider,
// the metrics recorder and the optional standalone scrape listener.
type Manager struct {
	tracerProvider trace.TracerProvider
	metrics        *PrometheusMetrics
	registry       *prometheus.Registry
	metricsServer  *http.Server
	config         Config
	mu             sync.RWMutex
}

func NewManager(cfg Config) *Manager {
	return &Manager{
		config: cfg,
	}
}

// Initialize installs the global tracer provider and recorder. When
// metrics are enabled with a port, a standalone /metrics listener is
// started so one-shot and REPL invocations stay scrapeable without the
// HTTP server running.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tp, err := InitGlobalTracer(ctx, m.config.Tracing)
	if err != nil {
		return err
	}
	m.tracerProvider = tp

	metrics, registry, err := InitMetrics(m.config.Metrics)
	if err != nil {
		return err
	}
	m.metrics = metrics
	m.registry = registry

	SetGlobalMetrics(m.metrics)

	if registry != nil && m.config.Metrics.Port > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		m.metricsServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", m.config.Metrics.Port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func(srv *http.Server) {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics listener failed", "addr", srv.Addr, "error", err)
			}
		}(m.metricsServer)
	}

	return nil
}

func (m *Manager) GetTracer(name string) trace.Tracer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tracerProvider == nil {
		return GetTracer(name)
	}
	return m.tracerProvider.Tracer(name)
}

func (m *Manager) Metrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics
}

func (m *Manager) MetricsEnabled() bool {
	return m.config.Metrics.Enabled
}

// MetricsHandler serves the Prometheus registry. It answers 404 when
// metrics are disabled.
func (m *Manager) MetricsHandler() http.Handler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Shutdown stops the scrape listener and flushes buffered spans.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.metricsServer != nil {
		if err := m.metricsServer.Shutdown(ctx); err != nil {
			return err
		}
		m.metricsServer = nil
	}

	if spt, ok := m.tracerProvider.(interface{ Shutdown(context.Context) error }); ok {
		return spt.Shutdown(ctx)
	}
	return nil
}

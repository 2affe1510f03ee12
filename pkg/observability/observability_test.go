package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestInitMetricsDisabled(t *testing.T) {
	m, registry, err := InitMetrics(MetricsConfig{})
	if err != nil {
		t.Fatalf("InitMetrics() error = %v", err)
	}
	if m == nil {
		t.Fatal("InitMetrics() returned nil recorder")
	}
	if registry != nil {
		t.Error("disabled config should not produce a registry")
	}

	// A disabled recorder must swallow everything without panicking.
	ctx := context.Background()
	m.RecordRun(ctx, "general_query", time.Second, nil)
	m.RecordToolExecution(ctx, "python_calculator", time.Millisecond, errors.New("boom"))
	m.RecordLLMCall(ctx, "gpt-4o", time.Second, 10, 5, nil)
	m.RecordEmbedRequest(ctx, "text-embedding-3-small", time.Millisecond, 42, nil)
	m.RecordStoreQuery(ctx, "pgvector", "similarity_search", time.Millisecond, nil)
	m.RecordHTTPRequest(ctx, "POST", "/v1/query", 200, time.Millisecond)
}

func TestNilRecorderIsSafe(t *testing.T) {
	var m *PrometheusMetrics
	ctx := context.Background()
	m.RecordRun(ctx, "datcom_generation", time.Second, nil)
	m.RecordToolExecution(ctx, "wing_parameter_converter", time.Millisecond, nil)
	m.RecordLLMCall(ctx, "gpt-4o", time.Second, 0, 0, errors.New("boom"))
	m.RecordEmbedRequest(ctx, "text-embedding-3-small", time.Millisecond, 0, nil)
	m.RecordStoreQuery(ctx, "chromem", "metadata_lookup", time.Millisecond, nil)
	m.RecordHTTPRequest(ctx, "GET", "/healthz", 200, time.Millisecond)
}

func TestInitMetricsRecordsInstruments(t *testing.T) {
	m, registry, err := InitMetrics(MetricsConfig{Enabled: true})
	if err != nil {
		t.Fatalf("InitMetrics() error = %v", err)
	}
	if registry == nil {
		t.Fatal("enabled config should produce a registry")
	}

	ctx := context.Background()
	m.RecordRun(ctx, "general_query", 2*time.Second, nil)
	m.RecordRun(ctx, "datcom_generation", time.Second, errors.New("boom"))
	m.RecordToolExecution(ctx, "retrieve_datcom_archive", 50*time.Millisecond, nil)
	m.RecordLLMCall(ctx, "gpt-4o", time.Second, 120, 40, nil)
	m.RecordEmbedRequest(ctx, "text-embedding-3-small", 30*time.Millisecond, 17, nil)
	m.RecordStoreQuery(ctx, "pgvector", "similarity_search", 5*time.Millisecond, nil)
	m.RecordHTTPRequest(ctx, "POST", "/v1/query", 200, 10*time.Millisecond)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	byName := make(map[string]bool, len(families))
	for _, family := range families {
		byName[family.GetName()] = true
	}

	for _, want := range []string{
		"aileron_run_duration_seconds",
		"aileron_runs_total",
		"aileron_run_errors_total",
		"aileron_tool_execution_duration_seconds",
		"aileron_tool_calls_total",
		"aileron_llm_request_duration_seconds",
		"aileron_llm_tokens_input_total",
		"aileron_llm_tokens_output_total",
		"aileron_embed_request_duration_seconds",
		"aileron_embed_tokens_total",
		"aileron_store_query_duration_seconds",
		"aileron_http_request_duration_seconds",
		"aileron_http_requests_total",
	} {
		if !byName[want] {
			t.Errorf("metric family %q not gathered", want)
		}
	}

	for _, family := range families {
		if family.GetName() != "aileron_runs_total" {
			continue
		}
		var total float64
		for _, sample := range family.GetMetric() {
			total += sample.GetCounter().GetValue()
		}
		if total != 2 {
			t.Errorf("aileron_runs_total = %v, want 2", total)
		}
	}
}

func TestInitGlobalTracerDisabled(t *testing.T) {
	tp, err := InitGlobalTracer(context.Background(), TracerConfig{})
	if err != nil {
		t.Fatalf("InitGlobalTracer() error = %v", err)
	}

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	if span.SpanContext().IsValid() {
		t.Error("disabled tracer should produce no-op spans")
	}
}

func TestInitGlobalTracerStdoutExporter(t *testing.T) {
	tp, err := InitGlobalTracer(context.Background(), TracerConfig{
		Enabled:      true,
		ExporterType: "stdout",
		SamplingRate: 1.0,
	})
	if err != nil {
		t.Fatalf("InitGlobalTracer() error = %v", err)
	}

	shutdowner, ok := tp.(interface{ Shutdown(context.Context) error })
	if !ok {
		t.Fatal("enabled tracer provider should support Shutdown")
	}
	if err := shutdowner.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

func TestInitGlobalTracerRejectsUnknownExporter(t *testing.T) {
	_, err := InitGlobalTracer(context.Background(), TracerConfig{
		Enabled:      true,
		ExporterType: "zipkin",
	})
	if err == nil {
		t.Fatal("InitGlobalTracer() error = nil for unknown exporter")
	}
}

type capturingMetrics struct {
	method   string
	path     string
	status   int
	duration time.Duration
}

func (c *capturingMetrics) RecordRun(context.Context, string, time.Duration, error) {}
func (c *capturingMetrics) RecordToolExecution(context.Context, string, time.Duration, error) {
}
func (c *capturingMetrics) RecordLLMCall(context.Context, string, time.Duration, int, int, error) {
}
func (c *capturingMetrics) RecordEmbedRequest(context.Context, string, time.Duration, int, error) {
}
func (c *capturingMetrics) RecordStoreQuery(context.Context, string, string, time.Duration, error) {
}

func (c *capturingMetrics) RecordHTTPRequest(_ context.Context, method, path string, status int, duration time.Duration) {
	c.method = method
	c.path = path
	c.status = status
	c.duration = duration
}

func TestHTTPMiddlewareRecordsRequest(t *testing.T) {
	captured := &capturingMetrics{}
	handler := HTTPMiddleware(nil, captured)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/collections", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if captured.method != "GET" || captured.path != "/v1/collections" || captured.status != 404 {
		t.Errorf("recorded %s %s %d, want GET /v1/collections 404",
			captured.method, captured.path, captured.status)
	}
}

func TestHTTPMiddlewareDefaultsToOK(t *testing.T) {
	captured := &capturingMetrics{}
	handler := HTTPMiddleware(nil, captured)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok")) // implicit 200
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/query", nil))

	if captured.status != http.StatusOK {
		t.Errorf("recorded status = %d, want 200", captured.status)
	}
}

func TestManagerLifecycleDisabled(t *testing.T) {
	manager := NewManager(Config{})
	if err := manager.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer SetGlobalMetrics(nil)

	if manager.GetTracer("test") == nil {
		t.Error("GetTracer() = nil")
	}
	if manager.Metrics() == nil {
		t.Error("Metrics() = nil")
	}
	if manager.MetricsEnabled() {
		t.Error("MetricsEnabled() = true for disabled config")
	}

	rec := httptest.NewRecorder()
	manager.MetricsHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("disabled metrics handler status = %d, want 404", rec.Code)
	}

	if err := manager.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

func TestManagerServesMetrics(t *testing.T) {
	manager := NewManager(Config{Metrics: MetricsConfig{Enabled: true}})
	if err := manager.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer SetGlobalMetrics(nil)

	if GetGlobalMetrics() == nil {
		t.Fatal("Initialize() did not install the global recorder")
	}
	GetGlobalMetrics().RecordRun(context.Background(), "general_query", time.Second, nil)

	rec := httptest.NewRecorder()
	manager.MetricsHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics handler status = %d, want 200", rec.Code)
	}

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "aileron_runs_total") {
		t.Error("scrape output missing aileron_runs_total")
	}

	if err := manager.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

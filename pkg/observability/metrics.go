package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool
	Port    int
}

// InitMetrics builds the Prometheus-backed recorder. The returned
// registry feeds the /metrics handler; a disabled config yields a
// recorder that drops everything and a nil registry.
func InitMetrics(cfg MetricsConfig) (*PrometheusMetrics, *prometheus.Registry, error) {
	if !cfg.Enabled {
		return &PrometheusMetrics{}, nil, nil
	}

	registry := prometheus.NewRegistry()

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)

	meter := meterProvider.Meter("aileron")

	runDuration, err := meter.Float64Histogram(
		"aileron_run_duration_seconds",
		metric.WithDescription("Engine run duration in seconds"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create run duration histogram: %w", err)
	}

	runsTotal, err := meter.Int64Counter(
		"aileron_runs_total",
		metric.WithDescription("Total engine runs"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create runs counter: %w", err)
	}

	runErrors, err := meter.Int64Counter(
		"aileron_run_errors_total",
		metric.WithDescription("Total failed engine runs"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create run errors counter: %w", err)
	}

	toolDuration, err := meter.Float64Histogram(
		"aileron_tool_execution_duration_seconds",
		metric.WithDescription("Tool execution duration in seconds"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create tool duration histogram: %w", err)
	}

	toolCalls, err := meter.Int64Counter(
		"aileron_tool_calls_total",
		metric.WithDescription("Total tool calls"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create tool calls counter: %w", err)
	}

	toolErrors, err := meter.Int64Counter(
		"aileron_tool_errors_total",
		metric.WithDescription("Total tool errors"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create tool errors counter: %w", err)
	}

	llmDuration, err := meter.Float64Histogram(
		"aileron_llm_request_duration_seconds",
		metric.WithDescription("Chat completion request duration in seconds"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create llm duration histogram: %w", err)
	}

	llmInputTokens, err := meter.Int64Counter(
		"aileron_llm_tokens_input_total",
		metric.WithDescription("Total prompt tokens sent to the chat model"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create llm input tokens counter: %w", err)
	}

	llmOutputTokens, err := meter.Int64Counter(
		"aileron_llm_tokens_output_total",
		metric.WithDescription("Total completion tokens from the chat model"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create llm output tokens counter: %w", err)
	}

	llmErrors, err := meter.Int64Counter(
		"aileron_llm_errors_total",
		metric.WithDescription("Total chat completion errors"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create llm errors counter: %w", err)
	}

	embedDuration, err := meter.Float64Histogram(
		"aileron_embed_request_duration_seconds",
		metric.WithDescription("Embedding request duration in seconds"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embed duration histogram: %w", err)
	}

	embedTokens, err := meter.Int64Counter(
		"aileron_embed_tokens_total",
		metric.WithDescription("Total tokens sent to the embedding model"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embed tokens counter: %w", err)
	}

	embedErrors, err := meter.Int64Counter(
		"aileron_embed_errors_total",
		metric.WithDescription("Total embedding request errors"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embed errors counter: %w", err)
	}

	storeDuration, err := meter.Float64Histogram(
		"aileron_store_query_duration_seconds",
		metric.WithDescription("Vector store query duration in seconds"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create store duration histogram: %w", err)
	}

	storeErrors, err := meter.Int64Counter(
		"aileron_store_query_errors_total",
		metric.WithDescription("Total vector store query errors"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create store errors counter: %w", err)
	}

	httpDuration, err := meter.Float64Histogram(
		"aileron_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}

	httpRequests, err := meter.Int64Counter(
		"aileron_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create http requests counter: %w", err)
	}

	m := &PrometheusMetrics{
		runDuration:     runDuration,
		runsTotal:       runsTotal,
		runErrors:       runErrors,
		toolDuration:    toolDuration,
		toolCalls:       toolCalls,
		toolErrors:      toolErrors,
		llmDuration:     llmDuration,
		llmInputTokens:  llmInputTokens,
		llmOutputTokens: llmOutputTokens,
		llmErrors:       llmErrors,
		embedDuration:   embedDuration,
		embedTokens:     embedTokens,
		embedErrors:     embedErrors,
		storeDuration:   storeDuration,
		storeErrors:     storeErrors,
		httpDuration:    httpDuration,
		httpRequests:    httpRequests,
	}

	return m, registry, nil
}

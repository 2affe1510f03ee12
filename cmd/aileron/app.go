package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aileronlabs/aileron/pkg/config"
	"github.com/aileronlabs/aileron/pkg/embedders"
	"github.com/aileronlabs/aileron/pkg/llms"
	"github.com/aileronlabs/aileron/pkg/observability"
	"github.com/aileronlabs/aileron/pkg/tools"
	"github.com/aileronlabs/aileron/pkg/vector"
	"github.com/aileronlabs/aileron/pkg/workflow"
)

// app bundles the long-lived pieces a command wires together: loaded
// config, shared clients, telemetry and the query engine on top.
type app struct {
	cfg    *config.Config
	engine *workflow.Engine
	store  vector.Provider
	obs    *observability.Manager
}

// buildApp loads configuration and constructs the engine with its
// clients. standaloneMetrics starts the scrape listener for commands
// that never run the HTTP server; serve exposes /metrics on the API
// listener instead.
func (cli *CLI) buildApp(ctx context.Context, standaloneMetrics bool) (*app, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, err
	}
	cli.initLogger(cfg)

	a := &app{cfg: cfg}

	a.obs = observability.NewManager(observabilityConfig(cfg, standaloneMetrics))
	if err := a.obs.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initializing observability: %w", err)
	}

	a.store, err = vector.New(&cfg.Vector)
	if err != nil {
		a.Close()
		return nil, err
	}

	embedder, err := embedders.NewOpenAIEmbedder(&cfg.Embedding, &cfg.HTTP)
	if err != nil {
		a.Close()
		return nil, err
	}

	llm, err := llms.NewOpenAIProvider(&cfg.Chat, &cfg.HTTP)
	if err != nil {
		a.Close()
		return nil, err
	}

	registry, err := tools.NewDefaultRegistry(tools.Deps{
		Store:             a.store,
		Embedder:          embedder,
		LLM:               llm,
		DefaultCollection: cfg.Vector.DefaultCollection,
		TopK:              cfg.Query.TopK,
		ContentMaxLength:  cfg.Query.ContentMaxLength,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.engine = workflow.NewEngine(llm, registry, a.store, embedder, cfg)
	return a, nil
}

// Close releases the store and flushes telemetry.
func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Warn("store close failed", "error", err)
		}
	}
	if a.obs != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.obs.Shutdown(ctx); err != nil {
			slog.Warn("telemetry shutdown failed", "error", err)
		}
	}
}

// observabilityConfig maps the loaded observability settings onto the
// telemetry wiring. Tracing turns on when a trace endpoint is set; the
// literal endpoint "stdout" selects the pretty-print exporter used in
// development.
func observabilityConfig(cfg *config.Config, standaloneMetrics bool) observability.Config {
	obs := cfg.Observability

	tracing := observability.TracerConfig{
		Enabled:      obs.TraceEndpoint != "",
		EndpointURL:  obs.TraceEndpoint,
		SamplingRate: *obs.SamplingRate,
		ServiceName:  obs.ServiceName,
	}
	if obs.TraceEndpoint == "stdout" {
		tracing.ExporterType = "stdout"
		tracing.EndpointURL = ""
	}

	metrics := observability.MetricsConfig{
		Enabled: *obs.MetricsEnabled,
	}
	if standaloneMetrics {
		metrics.Port = obs.MetricsPort
	}

	return observability.Config{Tracing: tracing, Metrics: metrics}
}

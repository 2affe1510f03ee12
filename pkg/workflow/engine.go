package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aileronlabs/aileron/pkg/agent"
	"github.com/aileronlabs/aileron/pkg/config"
	"github.com/aileronlabs/aileron/pkg/embedders"
	"github.com/aileronlabs/aileron/pkg/llms"
	"github.com/aileronlabs/aileron/pkg/observability"
	"github.com/aileronlabs/aileron/pkg/tools"
	"github.com/aileronlabs/aileron/pkg/vector"
)

// budgetNotice is the graceful answer when the per-query deadline fires
// before a branch converges.
const budgetNotice = "查詢處理超過時間限制，未能完成回答。請簡化問題或稍後再試。"

// maxRetrieveK caps caller-chosen retrieval depths at the same bound
// the config applies to the default.
const maxRetrieveK = 20

// Engine runs one query end to end: classify, then either the fixed
// DATCOM pipeline or the reasoning agent. Engines are safe for
// concurrent use; every mutable value lives in the per-run State.
type Engine struct {
	llm      llms.LLM
	agent    *agent.Agent
	store    vector.Provider
	embedder embedders.Embedder

	defaultCollection string
	topK              int
	queryTimeout      time.Duration
	retrievalTimeout  time.Duration

	tracer trace.Tracer
}

// NewEngine wires the workflow around shared clients. The registry is
// frozen before the first run; llm, store and embedder are shared by all
// in-flight queries.
func NewEngine(llm llms.LLM, registry *tools.Registry, store vector.Provider, embedder embedders.Embedder, cfg *config.Config) *Engine {
	if cfg == nil {
		cfg = &config.Config{}
		cfg.SetDefaults()
	}
	return &Engine{
		llm:               llm,
		agent:             agent.New(llm, registry, agent.Config{MaxIterations: cfg.Query.MaxIterations}),
		store:             store,
		embedder:          embedder,
		defaultCollection: cfg.Vector.DefaultCollection,
		topK:              cfg.Query.TopK,
		queryTimeout:      cfg.Query.Timeout(),
		retrievalTimeout:  cfg.Query.RetrievalTimeout(),
		tracer:            observability.GetTracer("aileron.engine"),
	}
}

// Run executes one query under the per-query deadline and returns the
// extended state. The input state is not mutated. On cancellation the
// partial turns are discarded and the error is returned; every other
// failure degrades to prose in Generation so the run still answers.
func (e *Engine) Run(ctx context.Context, state *State) (*State, error) {
	if state == nil || strings.TrimSpace(state.Question) == "" {
		return nil, errors.New("question must not be empty")
	}

	runID := uuid.NewString()
	log := slog.With("run_id", runID)
	start := time.Now()

	ctx, span := e.tracer.Start(ctx, observability.SpanEngineRun,
		trace.WithAttributes(attribute.String(observability.AttrRunID, runID)))
	defer span.End()

	runCtx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	next := &State{
		Messages:      append([]llms.Message(nil), state.Messages...),
		Question:      state.Question,
		Collection:    state.Collection,
		RetrievedDocs: state.RetrievedDocs,
	}

	log.Info("run started", "collection", next.Collection, "history", len(next.Messages))
	err := e.execute(runCtx, log, next)

	intent := next.Intent
	if intent == "" {
		intent = "unrouted"
	}
	span.SetAttributes(attribute.String(observability.AttrRunIntent, intent))
	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordRun(ctx, intent, time.Since(start), err)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("run aborted", "error", err, "duration", time.Since(start))
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	log.Info("run finished", "intent", next.Intent, "duration", time.Since(start), "messages", len(next.Messages))
	return next, nil
}

// execute routes the question and drives the chosen branch, mutating
// next in place.
func (e *Engine) execute(ctx context.Context, log *slog.Logger, next *State) error {
	intent, err := classifyIntent(ctx, e.llm, next.Question)
	if err != nil {
		return err
	}
	next.Intent = intent
	log.Info("intent classified", "intent", intent)

	// Seed the user turn for a fresh conversation, or append it when the
	// history ends with an earlier exchange.
	if n := len(next.Messages); n == 0 || next.Messages[n-1].Role != llms.RoleUser {
		next.Messages = append(next.Messages, llms.User(next.Question))
	}

	switch intent {
	case IntentDatcomGeneration:
		generation, err := runDatcomPipeline(ctx, e.llm, next.Question)
		if err != nil {
			return degrade(ctx, log, next, err)
		}
		next.Generation = generation
		next.Messages = append(next.Messages, llms.Assistant(generation))
	default:
		result, err := e.agent.Run(ctx, next.Question, next.Messages)
		if err != nil {
			return degrade(ctx, log, next, err)
		}
		next.Generation = result.Generation
		next.Messages = result.Messages
	}
	return nil
}

// degrade maps a branch failure onto the run outcome. Cancellation
// propagates so no output reaches the user; a deadline turns into the
// budget notice; anything else becomes an apology carrying the cause.
func degrade(ctx context.Context, log *slog.Logger, next *State, err error) error {
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		log.Warn("query deadline exceeded", "error", err)
		next.Generation = budgetNotice
	default:
		log.Error("workflow branch failed", "intent", next.Intent, "error", err)
		next.Generation = fmt.Sprintf("抱歉，處理問題時發生錯誤: %v", err)
	}
	next.Messages = append(next.Messages, llms.Assistant(next.Generation))
	return nil
}

// Retrieve embeds the question and returns the closest documents from
// the collection. It backs retrieve-only queries and the HTTP source
// list; the reasoning loop reaches the store through the tool registry
// instead.
func (e *Engine) Retrieve(ctx context.Context, question, collection string, k int) ([]vector.Document, error) {
	if strings.TrimSpace(question) == "" {
		return nil, errors.New("question must not be empty")
	}
	if collection == "" {
		collection = e.defaultCollection
	}
	if k <= 0 {
		k = e.topK
	}
	if k > maxRetrieveK {
		k = maxRetrieveK
	}

	ctx, cancel := context.WithTimeout(ctx, e.retrievalTimeout)
	defer cancel()

	vec, err := e.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return e.store.SimilaritySearch(ctx, collection, vec, k, nil)
}

// Collections lists the store's collections with document counts.
func (e *Engine) Collections(ctx context.Context) ([]vector.CollectionStat, error) {
	return e.store.ListCollections(ctx)
}

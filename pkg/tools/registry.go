package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aileronlabs/aileron/pkg/embedders"
	"github.com/aileronlabs/aileron/pkg/llms"
	"github.com/aileronlabs/aileron/pkg/observability"
	"github.com/aileronlabs/aileron/pkg/registry"
	"github.com/aileronlabs/aileron/pkg/vector"
)

// Tool names as exposed to the model.
const (
	ToolDesignAreaRouter   = "design_area_router"
	ToolRetrieveArchive    = "retrieve_datcom_archive"
	ToolMetadataSearch     = "metadata_search"
	ToolArticleLookup      = "article_lookup"
	ToolCalculator         = "python_calculator"
	ToolConvertWing        = "convert_wing_to_datcom"
	ToolConvertTail        = "convert_tail_to_datcom"
	ToolSynthesisPositions = "calculate_synthesis_positions"
	ToolDefineBody         = "define_body_geometry"
	ToolFltconMatrix       = "generate_fltcon_matrix"
	ToolValidateParams     = "validate_datcom_parameters"
)

// RetrievalTools lists the tools that read from the vector store. The
// grounding check treats observations from these as citable evidence.
var RetrievalTools = map[string]bool{
	ToolDesignAreaRouter: true,
	ToolRetrieveArchive:  true,
	ToolMetadataSearch:   true,
	ToolArticleLookup:    true,
}

// execTimeouts fixes the wall-clock budget per tool invocation. The
// store-backed tools get the retrieval budget, the router the chat
// budget, the calculator its evaluation cap. Pure converters inherit
// the caller's deadline.
var execTimeouts = map[string]time.Duration{
	ToolDesignAreaRouter: 120 * time.Second,
	ToolRetrieveArchive:  30 * time.Second,
	ToolMetadataSearch:   30 * time.Second,
	ToolArticleLookup:    30 * time.Second,
	ToolCalculator:       5 * time.Second,
}

// Deps carries the shared clients the default tools close over.
// Everything here is read-only after startup.
type Deps struct {
	Store    vector.Provider
	Embedder embedders.Embedder
	LLM      llms.LLM

	// DefaultCollection is searched when the model did not pick one.
	DefaultCollection string

	// TopK and ContentMaxLength shape retrieval observations.
	TopK             int
	ContentMaxLength int
}

// Registry is the process-wide tool map. It is populated once at
// startup and then frozen, after which lookups need no locking.
type Registry struct {
	*registry.BaseRegistry[Tool]
	frozen atomic.Bool
}

func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[Tool]()}
}

// NewDefaultRegistry builds the frozen registry holding the eleven
// shared tools.
func NewDefaultRegistry(deps Deps) (*Registry, error) {
	r := NewRegistry()
	if err := r.RegisterDefaults(deps); err != nil {
		return nil, err
	}
	return r, nil
}

// Register adds a tool. It fails on empty or duplicate names and after
// the registry has been frozen.
func (r *Registry) Register(tool Tool) error {
	if r.frozen.Load() {
		return fmt.Errorf("tool registry is frozen, cannot register %q", tool.Name())
	}
	return r.BaseRegistry.Register(tool.Name(), tool)
}

// Freeze seals the registry against further registration.
func (r *Registry) Freeze() {
	r.frozen.Store(true)
}

// RegisterDefaults registers the eleven shared tools and freezes the
// registry.
func (r *Registry) RegisterDefaults(deps Deps) error {
	defaults := []Tool{
		newDesignAreaRouter(deps.LLM, deps.Store),
		newRetrieveTool(deps.Store, deps.Embedder, deps.DefaultCollection, deps.TopK, deps.ContentMaxLength),
		newMetadataSearchTool(deps.Store, deps.DefaultCollection),
		newArticleLookupTool(deps.Store, deps.DefaultCollection),
		newCalculatorTool(),
		newConvertWingTool(),
		newConvertTailTool(),
		newSynthesisPositionsTool(),
		newDefineBodyTool(),
		newFltconMatrixTool(),
		newValidateTool(),
	}
	for _, tool := range defaults {
		if err := r.Register(tool); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", tool.Name(), err)
		}
	}
	r.Freeze()
	return nil
}

// Definitions returns the registered tools as chat tool definitions,
// ordered by name.
func (r *Registry) Definitions() []llms.ToolDefinition {
	tools := r.List()
	defs := make([]llms.ToolDefinition, 0, len(tools))
	for _, tool := range tools {
		defs = append(defs, llms.ToolDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  schemaObject(tool.InputSchema()),
		})
	}
	return defs
}

// Execute runs one tool call and returns its observation. Deterministic
// failures, unknown tools included, come back as error observations so
// the model can correct course; the returned error is non-nil only when
// the caller's context is cancelled or past its deadline.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	start := time.Now()

	tracer := observability.GetTracer("aileron.tools")
	ctx, span := tracer.Start(ctx, observability.SpanToolExecution,
		trace.WithAttributes(attribute.String(observability.AttrToolName, name)),
	)
	defer span.End()

	tool, ok := r.Get(name)
	if !ok {
		err := &ToolError{Tool: name, Message: fmt.Sprintf("未知的工具 %q。可用工具: %s", name, strings.Join(r.Names(), ", "))}
		r.finish(ctx, span, name, time.Since(start), err)
		return err.Observation(), nil
	}

	execCtx := ctx
	if budget, ok := execTimeouts[name]; ok {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	slog.Debug("executing tool", "tool", name)
	observation, err := safeExecute(execCtx, tool, args)
	r.finish(ctx, span, name, time.Since(start), err)

	if err == nil {
		return observation, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return toolErr.Observation(), nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("工具 %s 執行逾時。", name), nil
	}
	return fmt.Sprintf("工具 %s 執行失敗: %v", name, err), nil
}

// safeExecute keeps a panicking tool from tearing down the reasoning
// loop.
func safeExecute(ctx context.Context, tool Tool, args map[string]interface{}) (observation string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = &ToolError{Tool: tool.Name(), Message: fmt.Sprintf("tool panicked: %v", recovered)}
		}
	}()
	return tool.Execute(ctx, args)
}

// finish records span status and metrics for one invocation.
func (r *Registry) finish(ctx context.Context, span trace.Span, name string, duration time.Duration, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Warn("tool execution failed", "tool", name, "duration", duration, "error", err)
	} else {
		span.SetStatus(codes.Ok, "success")
	}
	span.SetAttributes(
		attribute.Bool("tool.success", err == nil),
		attribute.Int64("tool.duration_ms", duration.Milliseconds()),
	)

	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordToolExecution(ctx, name, duration, err)
	}
}

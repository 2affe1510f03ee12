// Package tools implements the fixed tool surface exposed to the
// reasoning loop and the conversion pipeline: design-area routing,
// archive retrieval, metadata and article lookup, a sandboxed
// calculator, and the DATCOM namelist converters.
//
// Tools return observations as strings. Deterministic failures (bad
// arguments, rejected expressions, exhausted retrieval retries) are
// reported as *ToolError so the registry can surface the failure text
// to the model instead of aborting the run.
package tools

import (
	"context"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Tool is a single named capability callable by the model.
type Tool interface {
	// Name returns the tool's registry name.
	Name() string

	// Description returns the usage text shown to the model.
	Description() string

	// InputSchema returns the JSON schema of the tool's arguments.
	InputSchema() *jsonschema.Schema

	// Execute runs the tool with model-supplied arguments and returns
	// the observation text.
	Execute(ctx context.Context, args map[string]interface{}) (string, error)
}

// ToolError is a deterministic tool failure. Message carries the exact
// observation text shown to the model; Err preserves the underlying
// cause for logs and spans.
type ToolError struct {
	Tool    string
	Message string
	Err     error
}

func (e *ToolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tool %s: %s: %v", e.Tool, e.Message, e.Err)
	}
	return fmt.Sprintf("tool %s: %s", e.Tool, e.Message)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// Observation returns the failure text to append to the message list.
func (e *ToolError) Observation() string {
	return e.Message
}

// funcTool adapts a typed handler function into a Tool. The argument
// schema is reflected from the handler's input struct, and incoming
// arguments are decoded into it before the handler runs.
type funcTool[T any] struct {
	name        string
	description string
	schema      *jsonschema.Schema
	run         func(ctx context.Context, args T) (string, error)
}

func newFuncTool[T any](name, description string, run func(ctx context.Context, args T) (string, error)) Tool {
	var zero T
	return &funcTool[T]{
		name:        name,
		description: description,
		schema:      schemaFor(&zero),
		run:         run,
	}
}

func (t *funcTool[T]) Name() string {
	return t.name
}

func (t *funcTool[T]) Description() string {
	return t.description
}

func (t *funcTool[T]) InputSchema() *jsonschema.Schema {
	return t.schema
}

func (t *funcTool[T]) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	var typed T
	if err := decodeArgs(t.name, args, &typed); err != nil {
		return "", err
	}
	return t.run(ctx, typed)
}

package agent

import (
	"context"
	"testing"

	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/require"

	"github.com/aileronlabs/aileron/pkg/llms"
	"github.com/aileronlabs/aileron/pkg/tools"
)

// scriptedLLM replays canned replies in order, holding the last one so
// loops can run past the script's end. It records every request.
type scriptedLLM struct {
	replies  []llms.ChatResult
	err      error
	calls    int
	requests []llms.CompletionRequest
}

func (s *scriptedLLM) Complete(_ context.Context, req llms.CompletionRequest) (*llms.ChatResult, error) {
	s.calls++
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.replies) == 0 {
		return &llms.ChatResult{Text: "Default response"}, nil
	}
	reply := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return &reply, nil
}

func (s *scriptedLLM) ModelName() string { return "scripted" }
func (s *scriptedLLM) Close() error      { return nil }

// stubTool returns a fixed observation, or defers to run when set.
type stubTool struct {
	name        string
	observation string
	run         func(ctx context.Context) (string, error)
	order       *[]string
}

func (t *stubTool) Name() string        { return t.name }
func (t *stubTool) Description() string { return "stub " + t.name }

func (t *stubTool) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object"}
}

func (t *stubTool) Execute(ctx context.Context, _ map[string]interface{}) (string, error) {
	if t.order != nil {
		*t.order = append(*t.order, t.name)
	}
	if t.run != nil {
		return t.run(ctx)
	}
	return t.observation, nil
}

func newTestAgent(t *testing.T, llm llms.LLM, cfg Config, stubs ...tools.Tool) *Agent {
	t.Helper()
	reg := tools.NewRegistry()
	for _, stub := range stubs {
		require.NoError(t, reg.Register(stub))
	}
	return New(llm, reg, cfg)
}

func toolCall(id, name string) llms.ToolCall {
	return llms.ToolCall{ID: id, Name: name, Args: map[string]interface{}{}}
}

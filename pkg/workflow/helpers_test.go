package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aileronlabs/aileron/pkg/config"
	"github.com/aileronlabs/aileron/pkg/embedders"
	"github.com/aileronlabs/aileron/pkg/llms"
	"github.com/aileronlabs/aileron/pkg/tools"
	"github.com/aileronlabs/aileron/pkg/vector"
)

// llmStep is one scripted model turn: a reply or a failure.
type llmStep struct {
	reply llms.ChatResult
	err   error
}

func say(text string) llmStep { return llmStep{reply: llms.ChatResult{Text: text}} }

func callTool(id, name string, args map[string]interface{}) llmStep {
	if args == nil {
		args = map[string]interface{}{}
	}
	return llmStep{reply: llms.ChatResult{ToolCalls: []llms.ToolCall{{ID: id, Name: name, Args: args}}}}
}

func failWith(err error) llmStep { return llmStep{err: err} }

// scriptedLLM replays steps in order, repeating the last one when the
// script runs out, and refuses work once the context has ended the way
// a real client would. It records every request it saw.
type scriptedLLM struct {
	steps    []llmStep
	calls    int
	requests []llms.CompletionRequest
}

func (s *scriptedLLM) Complete(ctx context.Context, req llms.CompletionRequest) (*llms.ChatResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.calls++
	s.requests = append(s.requests, req)
	if len(s.steps) == 0 {
		return &llms.ChatResult{Text: "Default response"}, nil
	}
	step := s.steps[0]
	if len(s.steps) > 1 {
		s.steps = s.steps[1:]
	}
	if step.err != nil {
		return nil, step.err
	}
	reply := step.reply
	return &reply, nil
}

func (s *scriptedLLM) ModelName() string { return "scripted" }
func (s *scriptedLLM) Close() error      { return nil }

// fakeEmbedder returns the same vector for every text; similarity
// ordering does not matter in these tests, only that seeded documents
// come back.
type fakeEmbedder struct{}

func (e *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (e *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func (e *fakeEmbedder) Dimension(ctx context.Context) (int, error) { return 3, nil }
func (e *fakeEmbedder) ModelName() string                          { return "fake-embed" }
func (e *fakeEmbedder) Close() error                               { return nil }

var (
	_ llms.LLM           = (*scriptedLLM)(nil)
	_ embedders.Embedder = (*fakeEmbedder)(nil)
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.SetDefaults()
	return cfg
}

// seededStore builds an in-memory chromem store holding the given
// documents, embedded with the fake embedder.
func seededStore(t *testing.T, docs map[string][]vector.Document) *vector.ChromemProvider {
	t.Helper()
	store, err := vector.NewChromemProvider(vector.ChromemConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	embedder := &fakeEmbedder{}
	for collection, items := range docs {
		require.NoError(t, store.CreateCollection(ctx, collection))
		for _, doc := range items {
			vec, err := embedder.EmbedQuery(ctx, doc.Content)
			require.NoError(t, err)
			require.NoError(t, store.Upsert(ctx, collection, doc, vec))
		}
	}
	return store
}

func newTestEngine(t *testing.T, llm llms.LLM, store vector.Provider) *Engine {
	t.Helper()
	embedder := &fakeEmbedder{}
	registry, err := tools.NewDefaultRegistry(tools.Deps{
		Store:             store,
		Embedder:          embedder,
		LLM:               llm,
		DefaultCollection: "laws",
		TopK:              5,
		ContentMaxLength:  800,
	})
	require.NoError(t, err)
	return NewEngine(llm, registry, store, embedder, testConfig())
}

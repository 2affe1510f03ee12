package tools

import (
	"context"
	"testing"

	"github.com/aileronlabs/aileron/pkg/embedders"
	"github.com/aileronlabs/aileron/pkg/llms"
	"github.com/aileronlabs/aileron/pkg/vector"
)

// fakeStore serves canned documents and records the calls it saw.
type fakeStore struct {
	collections []vector.CollectionStat
	docs        map[string][]vector.Document

	// transientFailures makes the next N store calls fail with a
	// retryable error before behaving normally.
	transientFailures int

	searchCalls    int
	lookupCalls    int
	lastCollection string
	lastK          int
	lastLimit      int
	lastFilter     map[string]string
}

func (s *fakeStore) transient(collection string) error {
	if s.transientFailures > 0 {
		s.transientFailures--
		return &vector.StoreError{Kind: vector.KindUnavailable, Collection: collection, Message: "connection reset"}
	}
	return nil
}

func (s *fakeStore) ListCollections(ctx context.Context) ([]vector.CollectionStat, error) {
	if err := s.transient(""); err != nil {
		return nil, err
	}
	return s.collections, nil
}

func (s *fakeStore) SimilaritySearch(ctx context.Context, collection string, _ []float32, k int, _ map[string]string) ([]vector.Document, error) {
	s.searchCalls++
	s.lastCollection = collection
	s.lastK = k
	if err := s.transient(collection); err != nil {
		return nil, err
	}
	docs, ok := s.docs[collection]
	if !ok {
		return nil, &vector.StoreError{Kind: vector.KindUnknownCollection, Collection: collection, Message: "collection does not exist"}
	}
	if len(docs) > k {
		docs = docs[:k]
	}
	return docs, nil
}

func (s *fakeStore) MetadataLookup(ctx context.Context, collection string, filter map[string]string, limit int) ([]vector.Document, error) {
	s.lookupCalls++
	s.lastCollection = collection
	s.lastFilter = filter
	s.lastLimit = limit
	if err := s.transient(collection); err != nil {
		return nil, err
	}
	docs, ok := s.docs[collection]
	if !ok {
		return nil, &vector.StoreError{Kind: vector.KindUnknownCollection, Collection: collection, Message: "collection does not exist"}
	}
	var matched []vector.Document
	for _, doc := range docs {
		match := true
		for key, want := range filter {
			if doc.Metadata[key] != want {
				match = false
				break
			}
		}
		if match {
			matched = append(matched, doc)
		}
		if len(matched) == limit {
			break
		}
	}
	return matched, nil
}

func (s *fakeStore) Name() string { return "fake" }
func (s *fakeStore) Close() error { return nil }

// fakeEmbedder returns a fixed vector for any text.
type fakeEmbedder struct {
	err error
}

func (e *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (e *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (e *fakeEmbedder) Dimension(ctx context.Context) (int, error) { return 3, nil }
func (e *fakeEmbedder) ModelName() string                          { return "fake-embed" }
func (e *fakeEmbedder) Close() error                               { return nil }

// scriptedLLM replays canned completions in order, repeating the last
// one when the script runs out.
type scriptedLLM struct {
	replies []string
	err     error
	calls   int
	lastReq llms.CompletionRequest
}

func (l *scriptedLLM) Complete(ctx context.Context, req llms.CompletionRequest) (*llms.ChatResult, error) {
	l.calls++
	l.lastReq = req
	if l.err != nil {
		return nil, l.err
	}
	reply := ""
	if len(l.replies) > 0 {
		reply = l.replies[0]
		if len(l.replies) > 1 {
			l.replies = l.replies[1:]
		}
	}
	return &llms.ChatResult{Text: reply}, nil
}

func (l *scriptedLLM) ModelName() string { return "fake-chat" }
func (l *scriptedLLM) Close() error      { return nil }

var (
	_ vector.Provider    = (*fakeStore)(nil)
	_ embedders.Embedder = (*fakeEmbedder)(nil)
	_ llms.LLM           = (*scriptedLLM)(nil)
)

func testDeps(store vector.Provider, llm llms.LLM) Deps {
	return Deps{
		Store:             store,
		Embedder:          &fakeEmbedder{},
		LLM:               llm,
		DefaultCollection: "laws",
		TopK:              10,
		ContentMaxLength:  800,
	}
}

func newTestRegistry(t *testing.T, deps Deps) *Registry {
	t.Helper()
	r, err := NewDefaultRegistry(deps)
	if err != nil {
		t.Fatalf("Failed to build default registry: %v", err)
	}
	return r
}

// fastRetries shrinks the retry backoff for the duration of a test.
func fastRetries(t *testing.T) {
	t.Helper()
	original := storeRetryBase
	storeRetryBase = 0
	t.Cleanup(func() { storeRetryBase = original })
}

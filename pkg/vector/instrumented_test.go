package vector

import (
	"context"
	"testing"
	"time"

	"github.com/aileronlabs/aileron/pkg/observability"
)

type recordedQuery struct {
	provider  string
	operation string
	err       error
}

type fakeRecorder struct {
	queries []recordedQuery
}

func (r *fakeRecorder) RecordRun(context.Context, string, time.Duration, error)           {}
func (r *fakeRecorder) RecordToolExecution(context.Context, string, time.Duration, error) {}
func (r *fakeRecorder) RecordLLMCall(context.Context, string, time.Duration, int, int, error) {
}
func (r *fakeRecorder) RecordEmbedRequest(context.Context, string, time.Duration, int, error) {
}
func (r *fakeRecorder) RecordHTTPRequest(context.Context, string, string, int, time.Duration) {
}

func (r *fakeRecorder) RecordStoreQuery(_ context.Context, provider, operation string, _ time.Duration, err error) {
	r.queries = append(r.queries, recordedQuery{provider: provider, operation: operation, err: err})
}

func TestInstrumentedProviderRecordsQueries(t *testing.T) {
	recorder := &fakeRecorder{}
	observability.SetGlobalMetrics(recorder)
	defer observability.SetGlobalMetrics(nil)

	inner, err := NewChromemProvider(ChromemConfig{})
	if err != nil {
		t.Fatalf("NewChromemProvider() error = %v", err)
	}
	provider := instrument(inner)
	defer provider.Close()

	if provider.Name() != "chromem" {
		t.Fatalf("Name() = %q, want chromem", provider.Name())
	}

	if _, err := provider.ListCollections(context.Background()); err != nil {
		t.Fatalf("ListCollections() error = %v", err)
	}
	_, searchErr := provider.SimilaritySearch(context.Background(), "laws", []float32{0.1, 0.2}, 3, nil)
	if searchErr == nil {
		t.Fatal("SimilaritySearch() on unknown collection should fail")
	}

	if len(recorder.queries) != 2 {
		t.Fatalf("recorded %d queries, want 2", len(recorder.queries))
	}
	if got := recorder.queries[0]; got.provider != "chromem" || got.operation != "list_collections" || got.err != nil {
		t.Errorf("first query = %+v, want chromem list_collections without error", got)
	}
	if got := recorder.queries[1]; got.operation != "similarity_search" || got.err == nil {
		t.Errorf("second query = %+v, want similarity_search with error", got)
	}
}

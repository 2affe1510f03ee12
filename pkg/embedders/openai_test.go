package embedders

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aileronlabs/aileron/pkg/config"
)

type capturedBatch struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// fakeEmbedServer answers /embeddings with vectors of the given dimension,
// optionally shuffling result order to exercise index-based sorting.
func fakeEmbedServer(t *testing.T, dim int, shuffle bool, batches *[]capturedBatch) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("expected /embeddings, got %s", r.URL.Path)
		}
		var req capturedBatch
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if batches != nil {
			*batches = append(*batches, req)
		}

		type datum struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]datum, len(req.Input))
		for i := range req.Input {
			vec := make([]float32, dim)
			vec[0] = float32(i + 1)
			data[i] = datum{Embedding: vec, Index: i}
		}
		if shuffle && len(data) > 1 {
			data[0], data[len(data)-1] = data[len(data)-1], data[0]
		}

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data":  data,
			"model": req.Model,
		})
	}))
}

func testEmbedConfig(apiBase string, batchSize int) *config.EmbeddingConfig {
	cfg := &config.EmbeddingConfig{
		APIBase:   apiBase,
		APIKey:    "embed-key",
		Model:     "nvidia/nv-embed-v2",
		BatchSize: batchSize,
	}
	cfg.SetDefaults()
	return cfg
}

func TestOpenAIEmbedder_EmbedBatch_ChunksBySize(t *testing.T) {
	var batches []capturedBatch
	server := fakeEmbedServer(t, 4, false, &batches)
	defer server.Close()

	embedder, err := NewOpenAIEmbedder(testEmbedConfig(server.URL, 3), nil)
	if err != nil {
		t.Fatalf("NewOpenAIEmbedder() error = %v", err)
	}

	texts := []string{"a", "b", "c", "d", "e", "f", "g"}
	vectors, err := embedder.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}

	if len(vectors) != len(texts) {
		t.Fatalf("got %d vectors, want %d", len(vectors), len(texts))
	}

	// 7 texts with batch size 3 -> 3 remote calls of sizes 3, 3, 1.
	if len(batches) != 3 {
		t.Fatalf("got %d remote calls, want 3", len(batches))
	}
	sizes := []int{len(batches[0].Input), len(batches[1].Input), len(batches[2].Input)}
	if sizes[0] != 3 || sizes[1] != 3 || sizes[2] != 1 {
		t.Errorf("batch sizes = %v, want [3 3 1]", sizes)
	}
	if batches[0].Model != "nvidia/nv-embed-v2" {
		t.Errorf("model = %q", batches[0].Model)
	}
}

func TestOpenAIEmbedder_EmbedBatch_SortsByIndex(t *testing.T) {
	server := fakeEmbedServer(t, 4, true, nil)
	defer server.Close()

	embedder, err := NewOpenAIEmbedder(testEmbedConfig(server.URL, 8), nil)
	if err != nil {
		t.Fatalf("NewOpenAIEmbedder() error = %v", err)
	}

	vectors, err := embedder.EmbedBatch(context.Background(), []string{"first", "second", "third"})
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}

	// The marker at [0] encodes the original input position.
	for i, vec := range vectors {
		if vec[0] != float32(i+1) {
			t.Errorf("vector %d out of order: marker = %g", i, vec[0])
		}
	}
}

func TestOpenAIEmbedder_EmbedBatch_Empty(t *testing.T) {
	embedder, err := NewOpenAIEmbedder(testEmbedConfig("https://unused.example.com", 8), nil)
	if err != nil {
		t.Fatalf("NewOpenAIEmbedder() error = %v", err)
	}

	vectors, err := embedder.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch(nil) error = %v", err)
	}
	if len(vectors) != 0 {
		t.Errorf("EmbedBatch(nil) = %v, want empty", vectors)
	}
}

func TestOpenAIEmbedder_EmbedQuery(t *testing.T) {
	server := fakeEmbedServer(t, 6, false, nil)
	defer server.Close()

	embedder, err := NewOpenAIEmbedder(testEmbedConfig(server.URL, 8), nil)
	if err != nil {
		t.Fatalf("NewOpenAIEmbedder() error = %v", err)
	}

	vec, err := embedder.EmbedQuery(context.Background(), "wing area")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if len(vec) != 6 {
		t.Errorf("EmbedQuery() dimension = %d, want 6", len(vec))
	}
}

func TestOpenAIEmbedder_DimensionCached(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"embedding": []float32{0.1, 0.2, 0.3}, "index": 0},
			},
		})
	}))
	defer server.Close()

	embedder, err := NewOpenAIEmbedder(testEmbedConfig(server.URL, 8), nil)
	if err != nil {
		t.Fatalf("NewOpenAIEmbedder() error = %v", err)
	}

	dim, err := embedder.Dimension(context.Background())
	if err != nil {
		t.Fatalf("Dimension() error = %v", err)
	}
	if dim != 3 {
		t.Errorf("Dimension() = %d, want 3", dim)
	}
	if calls != 1 {
		t.Errorf("probe calls = %d, want 1", calls)
	}

	// Second call served from cache.
	if _, err := embedder.Dimension(context.Background()); err != nil {
		t.Fatalf("Dimension() second call error = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls after cached lookup = %d, want 1", calls)
	}
}

func TestOpenAIEmbedder_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Two inputs, one vector back.
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"embedding": []float32{0.1}, "index": 0},
			},
		})
	}))
	defer server.Close()

	embedder, err := NewOpenAIEmbedder(testEmbedConfig(server.URL, 8), nil)
	if err != nil {
		t.Fatalf("NewOpenAIEmbedder() error = %v", err)
	}

	_, err = embedder.EmbedBatch(context.Background(), []string{"a", "b"})
	if err == nil {
		t.Fatal("EmbedBatch() error = nil, want count mismatch")
	}
	var embedErr *EmbedError
	if !errors.As(err, &embedErr) {
		t.Fatalf("error type = %T, want *EmbedError", err)
	}
}

func TestOpenAIEmbedder_DimensionMismatch(t *testing.T) {
	call := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call++
		dim := 4
		if call > 1 {
			dim = 7
		}
		vec := make([]float32, dim)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"embedding": vec, "index": 0},
			},
		})
	}))
	defer server.Close()

	embedder, err := NewOpenAIEmbedder(testEmbedConfig(server.URL, 8), nil)
	if err != nil {
		t.Fatalf("NewOpenAIEmbedder() error = %v", err)
	}

	if _, err := embedder.EmbedQuery(context.Background(), "first"); err != nil {
		t.Fatalf("first EmbedQuery() error = %v", err)
	}

	_, err = embedder.EmbedQuery(context.Background(), "second")
	if err == nil {
		t.Fatal("EmbedQuery() error = nil, want dimension mismatch")
	}
	var embedErr *EmbedError
	if !errors.As(err, &embedErr) {
		t.Fatalf("error type = %T, want *EmbedError", err)
	}
}

func TestOpenAIEmbedder_RemoteErrorAfterRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "bad api key", "type": "auth_error"}}`))
	}))
	defer server.Close()

	embedder, err := NewOpenAIEmbedder(testEmbedConfig(server.URL, 8), nil)
	if err != nil {
		t.Fatalf("NewOpenAIEmbedder() error = %v", err)
	}

	_, err = embedder.EmbedQuery(context.Background(), "query")
	if err == nil {
		t.Fatal("EmbedQuery() error = nil, want EmbedError")
	}

	var embedErr *EmbedError
	if !errors.As(err, &embedErr) {
		t.Fatalf("error type = %T, want *EmbedError", err)
	}
	if embedErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", embedErr.StatusCode)
	}
	if embedErr.Message != "bad api key" {
		t.Errorf("Message = %q", embedErr.Message)
	}
}

package embedders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aileronlabs/aileron/pkg/config"
	"github.com/aileronlabs/aileron/pkg/httpclient"
	"github.com/aileronlabs/aileron/pkg/observability"
)

// OpenAIEmbedder talks to any OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	apiBase    string
	apiKey     string
	model      string
	batchSize  int
	httpClient *httpclient.Client

	mu        sync.Mutex
	dimension int
}

type embedRequest struct {
	Model          string   `json:"model"`
	Input          []string `json:"input"`
	EncodingFormat string   `json:"encoding_format"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

type embedErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// NewOpenAIEmbedder builds the embedding client from configuration.
func NewOpenAIEmbedder(cfg *config.EmbeddingConfig, httpCfg *config.HTTPConfig) (*OpenAIEmbedder, error) {
	opts := []httpclient.Option{
		httpclient.WithHTTPClient(&http.Client{Timeout: cfg.Timeout()}),
		httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders),
	}

	if httpCfg != nil {
		opts = append(opts,
			httpclient.WithMaxRetries(httpCfg.MaxRetries),
			httpclient.WithMaxInflight(int64(httpCfg.MaxInflight)),
		)
		if httpCfg.VerifySSL != nil && !*httpCfg.VerifySSL || httpCfg.CACertificate != "" {
			tlsOpt, err := httpclient.WithTLSConfig(&httpclient.TLSConfig{
				InsecureSkipVerify: httpCfg.VerifySSL != nil && !*httpCfg.VerifySSL,
				CACertificate:      httpCfg.CACertificate,
			})
			if err != nil {
				return nil, err
			}
			opts = append(opts, tlsOpt)
		}
	}

	return &OpenAIEmbedder{
		apiBase:    strings.TrimRight(cfg.APIBase, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		batchSize:  cfg.BatchSize,
		httpClient: httpclient.New(opts...),
	}, nil
}

func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}

func (e *OpenAIEmbedder) Close() error {
	return nil
}

// EmbedQuery embeds a single query string.
func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in chunks of at most the configured batch size,
// preserving input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += e.batchSize {
		end := i + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		vectors, err := e.embedChunk(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		results = append(results, vectors...)
	}

	return results, nil
}

// Dimension returns the cached vector dimension, probing the endpoint with
// a single embedding when nothing has been embedded yet.
func (e *OpenAIEmbedder) Dimension(ctx context.Context) (int, error) {
	e.mu.Lock()
	dim := e.dimension
	e.mu.Unlock()

	if dim > 0 {
		return dim, nil
	}

	if _, err := e.EmbedQuery(ctx, "dimension probe"); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimension, nil
}

// embedChunk sends one embeddings request, recording the span and
// request metrics around it.
func (e *OpenAIEmbedder) embedChunk(ctx context.Context, chunk []string) ([][]float32, error) {
	startTime := time.Now()

	tracer := observability.GetTracer("aileron.embed")
	ctx, span := tracer.Start(ctx, observability.SpanEmbedRequest,
		trace.WithAttributes(
			attribute.String(observability.AttrEmbedModel, e.model),
			attribute.Int("embed.batch_size", len(chunk)),
		),
	)
	defer span.End()

	vectors, tokens, err := e.requestEmbeddings(ctx, chunk)
	duration := time.Since(startTime)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int(observability.AttrEmbedTokens, tokens))
		span.SetStatus(codes.Ok, "success")
	}

	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordEmbedRequest(ctx, e.model, duration, tokens, err)
	}

	return vectors, err
}

func (e *OpenAIEmbedder) requestEmbeddings(ctx context.Context, chunk []string) ([][]float32, int, error) {
	reqBody, err := json.Marshal(embedRequest{
		Model:          e.model,
		Input:          chunk,
		EncodingFormat: "float",
	})
	if err != nil {
		return nil, 0, &EmbedError{Message: "failed to marshal request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.apiBase+"/embeddings", bytes.NewReader(reqBody))
	if err != nil {
		return nil, 0, &EmbedError{Message: "failed to create HTTP request", Err: err}
	}

	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(reqBody)), nil
	}

	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if resp != nil {
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			var errorResp embedErrorResponse
			if jsonErr := json.Unmarshal(body, &errorResp); jsonErr == nil && errorResp.Error.Message != "" {
				return nil, 0, &EmbedError{
					StatusCode: resp.StatusCode,
					Message:    errorResp.Error.Message,
					Err:        err,
				}
			}
			return nil, 0, &EmbedError{
				StatusCode: resp.StatusCode,
				Message:    strings.TrimSpace(string(body)),
				Err:        err,
			}
		}
	}

	if err != nil {
		return nil, 0, &EmbedError{Message: "request failed after retries", Err: err}
	}

	if resp == nil {
		return nil, 0, &EmbedError{Message: "no response received"}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &EmbedError{Message: "failed to read response", Err: err}
	}

	var response embedResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, 0, &EmbedError{Message: "failed to decode response", Err: err}
	}

	if len(response.Data) != len(chunk) {
		return nil, 0, &EmbedError{
			Message: fmt.Sprintf("embedding count mismatch: sent %d texts, got %d vectors", len(chunk), len(response.Data)),
		}
	}

	// Sort by index to match input order.
	vectors := make([][]float32, len(chunk))
	for _, item := range response.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, 0, &EmbedError{
				Message: fmt.Sprintf("embedding index %d out of range for batch of %d", item.Index, len(chunk)),
			}
		}
		vectors[item.Index] = item.Embedding
	}

	for i, vec := range vectors {
		if err := e.checkDimension(vec); err != nil {
			return nil, 0, err
		}
		if len(vec) == 0 {
			return nil, 0, &EmbedError{Message: fmt.Sprintf("empty embedding at index %d", i)}
		}
	}

	return vectors, response.Usage.PromptTokens, nil
}

// checkDimension pins the dimension on the first vector and rejects any
// later vector that disagrees.
func (e *OpenAIEmbedder) checkDimension(vec []float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dimension == 0 {
		e.dimension = len(vec)
		return nil
	}
	if len(vec) != e.dimension {
		return &EmbedError{
			Message: fmt.Sprintf("embedding dimension changed: expected %d, got %d", e.dimension, len(vec)),
		}
	}
	return nil
}

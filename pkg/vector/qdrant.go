package vector

import (
	"context"
	"fmt"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig configures the Qdrant vector provider.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`

	// Port is the Qdrant gRPC port (default: 6334).
	Port int `yaml:"port"`

	// APIKey for authenticated access (optional).
	APIKey string `yaml:"api_key,omitempty"`

	// UseTLS enables TLS connections.
	UseTLS bool `yaml:"use_tls,omitempty"`
}

// QdrantProvider implements Provider using the Qdrant vector database.
// Collections are expected to use cosine distance; the document text
// lives in the "content" payload key and remaining payload keys become
// metadata.
type QdrantProvider struct {
	client *qdrant.Client
	config QdrantConfig
}

// NewQdrantProvider creates a new Qdrant provider.
func NewQdrantProvider(cfg QdrantConfig) (*QdrantProvider, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334 // Qdrant gRPC port
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client for %s:%d: %w\n"+
			"  TIP: ensure Qdrant is running and the gRPC port is correct\n"+
			"       (docker run -p 6333:6333 -p 6334:6334 qdrant/qdrant)",
			cfg.Host, cfg.Port, err)
	}

	return &QdrantProvider{
		client: client,
		config: cfg,
	}, nil
}

// Name returns the provider name.
func (p *QdrantProvider) Name() string {
	return "qdrant"
}

// ListCollections returns all collections with document counts.
func (p *QdrantProvider) ListCollections(ctx context.Context) ([]CollectionStat, error) {
	names, err := p.client.ListCollections(ctx)
	if err != nil {
		return nil, &StoreError{Kind: KindUnavailable, Message: "failed to list collections", Err: err}
	}

	stats := make([]CollectionStat, 0, len(names))
	for _, name := range names {
		count, err := p.client.Count(ctx, &qdrant.CountPoints{CollectionName: name})
		if err != nil {
			return nil, &StoreError{Kind: KindUnavailable, Collection: name, Message: "failed to count documents", Err: err}
		}
		stats = append(stats, CollectionStat{Name: name, DocumentCount: int64(count)})
	}
	sortCollectionStats(stats)
	return stats, nil
}

// SimilaritySearch returns the top-k documents by cosine similarity.
func (p *QdrantProvider) SimilaritySearch(ctx context.Context, collection string, vector []float32, k int, filter map[string]string) ([]Document, error) {
	if k < 1 {
		return nil, &StoreError{Kind: KindQuery, Collection: collection, Message: fmt.Sprintf("k must be at least 1, got %d", k)}
	}
	if err := p.checkCollection(ctx, collection); err != nil {
		return nil, err
	}

	searchRequest := &qdrant.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(k),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if len(filter) > 0 {
		searchRequest.Filter = buildQdrantFilter(filter)
	}

	pointsClient := p.client.GetPointsClient()
	searchResult, err := pointsClient.Search(ctx, searchRequest)
	if err != nil {
		return nil, &StoreError{Kind: KindUnavailable, Collection: collection, Message: "similarity search failed", Err: err}
	}

	docs := make([]Document, 0, len(searchResult.Result))
	for _, point := range searchResult.Result {
		doc := convertQdrantPayload(pointID(point.Id), point.Payload)
		doc.Similarity = float64(point.Score)
		docs = append(docs, doc)
	}
	return docs, nil
}

// MetadataLookup scrolls documents matching the filter and orders them
// by section then chunk sequence.
func (p *QdrantProvider) MetadataLookup(ctx context.Context, collection string, filter map[string]string, limit int) ([]Document, error) {
	if limit < 1 {
		return nil, &StoreError{Kind: KindQuery, Collection: collection, Message: fmt.Sprintf("limit must be at least 1, got %d", limit)}
	}
	if err := p.checkCollection(ctx, collection); err != nil {
		return nil, err
	}

	scrollRequest := &qdrant.ScrollPoints{
		CollectionName: collection,
		Limit:          qdrant.PtrOf(uint32(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if len(filter) > 0 {
		scrollRequest.Filter = buildQdrantFilter(filter)
	}

	points, err := p.client.Scroll(ctx, scrollRequest)
	if err != nil {
		return nil, &StoreError{Kind: KindUnavailable, Collection: collection, Message: "metadata lookup failed", Err: err}
	}

	docs := make([]Document, 0, len(points))
	for _, point := range points {
		docs = append(docs, convertQdrantPayload(pointID(point.Id), point.Payload))
	}
	sortByLocator(docs)
	return docs, nil
}

// Close closes the Qdrant client.
func (p *QdrantProvider) Close() error {
	return p.client.Close()
}

// checkCollection fails with KindUnknownCollection for missing names.
func (p *QdrantProvider) checkCollection(ctx context.Context, collection string) error {
	exists, err := p.client.CollectionExists(ctx, collection)
	if err != nil {
		return &StoreError{Kind: KindUnavailable, Collection: collection, Message: "failed to check collection", Err: err}
	}
	if !exists {
		return &StoreError{Kind: KindUnknownCollection, Collection: collection, Message: "unknown collection"}
	}
	return nil
}

// buildQdrantFilter converts equality constraints to a Qdrant filter.
func buildQdrantFilter(filter map[string]string) *qdrant.Filter {
	conditions := make([]*qdrant.Condition, 0, len(filter))
	for key, value := range filter {
		conditions = append(conditions, qdrant.NewMatch(key, value))
	}
	return &qdrant.Filter{Must: conditions}
}

// pointID renders a point identifier as a string.
func pointID(id *qdrant.PointId) string {
	if id == nil || id.PointIdOptions == nil {
		return ""
	}
	switch idType := id.PointIdOptions.(type) {
	case *qdrant.PointId_Uuid:
		return idType.Uuid
	case *qdrant.PointId_Num:
		return strconv.FormatUint(idType.Num, 10)
	}
	return ""
}

// convertQdrantPayload splits a point payload into document text (the
// "content" key) and string metadata.
func convertQdrantPayload(id string, payload map[string]*qdrant.Value) Document {
	metadata := make(map[string]string, len(payload))
	content := ""
	for key, value := range payload {
		if key == "content" {
			content = value.GetStringValue()
			continue
		}
		metadata[key] = stringifyQdrantValue(value)
	}
	return Document{
		ID:       id,
		Content:  content,
		Metadata: metadata,
		Source:   DeriveSource(metadata),
	}
}

// stringifyQdrantValue renders a payload value for string metadata.
func stringifyQdrantValue(value *qdrant.Value) string {
	if value == nil {
		return ""
	}
	switch v := value.Kind.(type) {
	case *qdrant.Value_StringValue:
		return v.StringValue
	case *qdrant.Value_IntegerValue:
		return strconv.FormatInt(v.IntegerValue, 10)
	case *qdrant.Value_DoubleValue:
		return strconv.FormatFloat(v.DoubleValue, 'f', -1, 64)
	case *qdrant.Value_BoolValue:
		return strconv.FormatBool(v.BoolValue)
	default:
		return fmt.Sprint(value)
	}
}

// Ensure QdrantProvider implements Provider.
var _ Provider = (*QdrantProvider)(nil)

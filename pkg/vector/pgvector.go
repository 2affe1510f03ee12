package vector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
)

// PGVectorConfig configures the pgvector provider.
type PGVectorConfig struct {
	// DatabaseURL is the Postgres connection string. SQLAlchemy-style
	// "postgresql+psycopg2://" URLs are accepted and normalized.
	DatabaseURL string `yaml:"database_url"`

	// Connection pool bounds. Zero keeps the driver defaults.
	MaxConns int `yaml:"max_conns"`
	MaxIdle  int `yaml:"max_idle"`
}

// PGVectorProvider implements Provider over a Postgres database with the
// pgvector extension. Reference schema:
//
//	collection(id, name)
//	embedding(id, collection_id, document_text, metadata jsonb, embedding vector(D))
//
// Similarity is cosine: 1 - (embedding <=> query). Metadata filters map
// to jsonb containment (@>).
type PGVectorProvider struct {
	db *sql.DB

	// ids caches collection name -> id lookups.
	mu  sync.RWMutex
	ids map[string]string
}

const listCollectionsSQL = `
SELECT c.name, COUNT(e.id) AS document_count
FROM collection c
LEFT JOIN embedding e ON e.collection_id = c.id
GROUP BY c.name
ORDER BY document_count DESC, c.name`

const resolveCollectionSQL = `SELECT id FROM collection WHERE name = $1`

// NewPGVectorProvider opens a connection pool and verifies connectivity.
func NewPGVectorProvider(cfg PGVectorConfig) (*PGVectorProvider, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	dsn := strings.Replace(cfg.DatabaseURL, "postgresql+psycopg2://", "postgres://", 1)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, classifyStoreError("", "failed to connect to database", err)
	}

	return &PGVectorProvider{
		db:  db,
		ids: make(map[string]string),
	}, nil
}

// Name returns the provider name.
func (p *PGVectorProvider) Name() string {
	return "pgvector"
}

// ListCollections returns all collections with document counts.
func (p *PGVectorProvider) ListCollections(ctx context.Context) ([]CollectionStat, error) {
	rows, err := p.db.QueryContext(ctx, listCollectionsSQL)
	if err != nil {
		return nil, classifyStoreError("", "failed to list collections", err)
	}
	defer func() { _ = rows.Close() }()

	stats := make([]CollectionStat, 0)
	for rows.Next() {
		var stat CollectionStat
		if err := rows.Scan(&stat.Name, &stat.DocumentCount); err != nil {
			return nil, classifyStoreError("", "failed to scan collection row", err)
		}
		stats = append(stats, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyStoreError("", "failed to iterate collections", err)
	}
	return stats, nil
}

// SimilaritySearch returns the top-k documents by cosine similarity,
// optionally restricted by metadata equality constraints.
func (p *PGVectorProvider) SimilaritySearch(ctx context.Context, collection string, vector []float32, k int, filter map[string]string) ([]Document, error) {
	if k < 1 {
		return nil, &StoreError{Kind: KindQuery, Collection: collection, Message: fmt.Sprintf("k must be at least 1, got %d", k)}
	}
	if len(vector) == 0 {
		return nil, &StoreError{Kind: KindQuery, Collection: collection, Message: "query vector is empty"}
	}

	collectionID, err := p.resolveCollection(ctx, collection)
	if err != nil {
		return nil, err
	}

	query := similaritySearchQuery(len(filter) > 0, k)
	args := []interface{}{collectionID, vectorLiteral(vector)}
	if len(filter) > 0 {
		filterJSON, err := json.Marshal(filter)
		if err != nil {
			return nil, &StoreError{Kind: KindQuery, Collection: collection, Message: "failed to encode filter", Err: err}
		}
		args = append(args, string(filterJSON))
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyStoreError(collection, "similarity search failed", err)
	}
	defer func() { _ = rows.Close() }()

	docs := make([]Document, 0, k)
	for rows.Next() {
		var (
			doc     Document
			metaRaw []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &metaRaw, &doc.Similarity); err != nil {
			return nil, classifyStoreError(collection, "failed to scan result row", err)
		}
		doc.Metadata = decodeMetadata(metaRaw)
		doc.Source = DeriveSource(doc.Metadata)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyStoreError(collection, "failed to iterate results", err)
	}
	return docs, nil
}

// MetadataLookup returns documents matching the filter without vector
// ranking, ordered by section then chunk sequence.
func (p *PGVectorProvider) MetadataLookup(ctx context.Context, collection string, filter map[string]string, limit int) ([]Document, error) {
	if limit < 1 {
		return nil, &StoreError{Kind: KindQuery, Collection: collection, Message: fmt.Sprintf("limit must be at least 1, got %d", limit)}
	}

	collectionID, err := p.resolveCollection(ctx, collection)
	if err != nil {
		return nil, err
	}

	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return nil, &StoreError{Kind: KindQuery, Collection: collection, Message: "failed to encode filter", Err: err}
	}

	rows, err := p.db.QueryContext(ctx, metadataLookupQuery(limit), collectionID, string(filterJSON))
	if err != nil {
		return nil, classifyStoreError(collection, "metadata lookup failed", err)
	}
	defer func() { _ = rows.Close() }()

	docs := make([]Document, 0, limit)
	for rows.Next() {
		var (
			doc     Document
			metaRaw []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &metaRaw); err != nil {
			return nil, classifyStoreError(collection, "failed to scan result row", err)
		}
		doc.Metadata = decodeMetadata(metaRaw)
		doc.Source = DeriveSource(doc.Metadata)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyStoreError(collection, "failed to iterate results", err)
	}
	return docs, nil
}

// Close closes the connection pool.
func (p *PGVectorProvider) Close() error {
	return p.db.Close()
}

// resolveCollection maps a collection name to its primary key, caching
// hits. Unknown names fail with KindUnknownCollection.
func (p *PGVectorProvider) resolveCollection(ctx context.Context, name string) (string, error) {
	p.mu.RLock()
	if id, ok := p.ids[name]; ok {
		p.mu.RUnlock()
		return id, nil
	}
	p.mu.RUnlock()

	var id string
	err := p.db.QueryRowContext(ctx, resolveCollectionSQL, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &StoreError{Kind: KindUnknownCollection, Collection: name, Message: "unknown collection"}
	}
	if err != nil {
		return "", classifyStoreError(name, "failed to resolve collection", err)
	}

	p.mu.Lock()
	p.ids[name] = id
	p.mu.Unlock()
	return id, nil
}

// similaritySearchQuery builds the top-k query. $1 = collection id,
// $2 = query vector literal, $3 = jsonb filter when hasFilter.
func similaritySearchQuery(hasFilter bool, k int) string {
	var b strings.Builder
	b.WriteString(`
SELECT e.id, e.document_text, e.metadata, 1 - (e.embedding <=> $2::vector) AS similarity
FROM embedding e
WHERE e.collection_id = $1`)
	if hasFilter {
		b.WriteString(` AND e.metadata @> $3::jsonb`)
	}
	b.WriteString(`
ORDER BY e.embedding <=> $2::vector
LIMIT `)
	b.WriteString(strconv.Itoa(k))
	return b.String()
}

// metadataLookupQuery builds the filter-only query. Chunk sequences are
// stored as decimal strings, so length-then-lexicographic ordering gives
// numeric order without a cast that could fail on stray values.
func metadataLookupQuery(limit int) string {
	return fmt.Sprintf(`
SELECT e.id, e.document_text, e.metadata
FROM embedding e
WHERE e.collection_id = $1 AND e.metadata @> $2::jsonb
ORDER BY e.metadata->>'section', length(e.metadata->>'chunk_seq'), e.metadata->>'chunk_seq', e.id
LIMIT %d`, limit)
}

// vectorLiteral renders a query vector in pgvector's input format.
func vectorLiteral(vector []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vector {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// decodeMetadata converts a jsonb column value to string metadata.
// Non-string values are rendered with fmt.Sprint so numeric chunk
// sequences written by older ingesters still round-trip.
func decodeMetadata(raw []byte) map[string]string {
	if len(raw) == 0 {
		return map[string]string{}
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		default:
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}

// classifyStoreError wraps a driver error as a StoreError, marking
// connectivity-class failures transient. Context cancellation passes
// through untouched so deadlines propagate.
func classifyStoreError(collection, msg string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	kind := KindUnavailable
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// Class 08 = connection exception, 53 = insufficient resources,
		// 57 = operator intervention, 58 = system error. Anything else
		// is a deterministic query failure.
		switch pqErr.Code.Class() {
		case "08", "53", "57", "58":
			kind = KindUnavailable
		default:
			kind = KindQuery
		}
	}
	return &StoreError{Kind: kind, Collection: collection, Message: msg, Err: err}
}

// Ensure PGVectorProvider implements Provider.
var _ Provider = (*PGVectorProvider)(nil)

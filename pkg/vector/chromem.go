package vector

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"
)

// ChromemConfig configures the embedded chromem provider.
type ChromemConfig struct {
	// PersistPath is a directory for file persistence. Empty keeps the
	// store in memory only.
	PersistPath string `yaml:"persist_path,omitempty"`

	// Compress enables gzip compression for persisted data.
	Compress bool `yaml:"compress,omitempty"`
}

// ChromemProvider implements Provider using chromem-go for embedded
// vector storage. It requires no external services and is the store
// used by development setups and the retrieval tests.
//
// Vectors are pre-computed by the embedding client; the collection
// embedding function exists only to satisfy chromem's API and fails if
// ever invoked.
//
// chromem has no filter-only query, so MetadataLookup runs against an
// in-process shadow of content and metadata maintained by Upsert. With
// a persistent store, documents written by earlier processes are
// reachable through SimilaritySearch but not through MetadataLookup.
type ChromemProvider struct {
	db          *chromem.DB
	persistPath string

	mu          sync.RWMutex
	collections map[string]*chromem.Collection
	docs        map[string]map[string]chromemDoc

	embeddingFunc chromem.EmbeddingFunc
}

type chromemDoc struct {
	content  string
	metadata map[string]string
}

// NewChromemProvider creates a chromem-backed provider. With a persist
// path the store is loaded from disk and mutations are written through.
func NewChromemProvider(cfg ChromemConfig) (*ChromemProvider, error) {
	var db *chromem.DB
	var err error

	if cfg.PersistPath != "" {
		if err := os.MkdirAll(cfg.PersistPath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create persist directory: %w", err)
		}
		db, err = chromem.NewPersistentDB(cfg.PersistPath, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector database: %w", err)
		}
		slog.Info("Opened persistent vector database", "path", cfg.PersistPath)
	} else {
		db = chromem.NewDB()
		slog.Debug("Created in-memory vector database (no persistence)")
	}

	// Identity embedding function. Vectors are always pre-computed.
	identityEmbed := func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("embedding function called but vectors should be pre-computed")
	}

	return &ChromemProvider{
		db:            db,
		persistPath:   cfg.PersistPath,
		collections:   make(map[string]*chromem.Collection),
		docs:          make(map[string]map[string]chromemDoc),
		embeddingFunc: identityEmbed,
	}, nil
}

// Name returns the provider name.
func (p *ChromemProvider) Name() string {
	return "chromem"
}

// CreateCollection creates an empty collection if it does not exist.
func (p *ChromemProvider) CreateCollection(ctx context.Context, collection string) error {
	_, err := p.ensureCollection(collection)
	return err
}

// Upsert adds or replaces a document with its pre-computed vector. The
// collection is created on first write.
func (p *ChromemProvider) Upsert(ctx context.Context, collection string, doc Document, vector []float32) error {
	col, err := p.ensureCollection(collection)
	if err != nil {
		return err
	}

	metadata := doc.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	cdoc := chromem.Document{
		ID:        doc.ID,
		Content:   doc.Content,
		Metadata:  metadata,
		Embedding: vector,
	}
	if err := col.AddDocuments(ctx, []chromem.Document{cdoc}, runtime.NumCPU()); err != nil {
		return &StoreError{Kind: KindQuery, Collection: collection, Message: "failed to upsert document", Err: err}
	}

	p.mu.Lock()
	if p.docs[collection] == nil {
		p.docs[collection] = make(map[string]chromemDoc)
	}
	p.docs[collection][doc.ID] = chromemDoc{content: doc.Content, metadata: metadata}
	p.mu.Unlock()

	return nil
}

// ListCollections returns all collections with document counts, ordered
// by count descending then name.
func (p *ChromemProvider) ListCollections(ctx context.Context) ([]CollectionStat, error) {
	stats := make([]CollectionStat, 0)
	for name, col := range p.db.ListCollections() {
		stats = append(stats, CollectionStat{
			Name:          name,
			DocumentCount: int64(col.Count()),
		})
	}
	sortCollectionStats(stats)
	return stats, nil
}

// SimilaritySearch returns the top-k documents by cosine similarity.
func (p *ChromemProvider) SimilaritySearch(ctx context.Context, collection string, vector []float32, k int, filter map[string]string) ([]Document, error) {
	if k < 1 {
		return nil, &StoreError{Kind: KindQuery, Collection: collection, Message: fmt.Sprintf("k must be at least 1, got %d", k)}
	}

	col, err := p.lookupCollection(collection)
	if err != nil {
		return nil, err
	}

	// chromem rejects result counts above the collection size.
	if count := col.Count(); k > count {
		k = count
	}
	if k == 0 {
		return []Document{}, nil
	}

	var where map[string]string
	if len(filter) > 0 {
		where = filter
	}

	results, err := col.QueryEmbedding(ctx, vector, k, where, nil)
	if err != nil {
		return nil, &StoreError{Kind: KindQuery, Collection: collection, Message: "similarity search failed", Err: err}
	}

	docs := make([]Document, 0, len(results))
	for _, r := range results {
		metadata := r.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}
		docs = append(docs, Document{
			ID:         r.ID,
			Content:    r.Content,
			Metadata:   metadata,
			Similarity: float64(r.Similarity),
			Source:     DeriveSource(metadata),
		})
	}
	return docs, nil
}

// MetadataLookup returns documents matching the filter, ordered by
// section then chunk sequence, from the in-process index.
func (p *ChromemProvider) MetadataLookup(ctx context.Context, collection string, filter map[string]string, limit int) ([]Document, error) {
	if limit < 1 {
		return nil, &StoreError{Kind: KindQuery, Collection: collection, Message: fmt.Sprintf("limit must be at least 1, got %d", limit)}
	}

	if _, err := p.lookupCollection(collection); err != nil {
		return nil, err
	}

	p.mu.RLock()
	docs := make([]Document, 0, limit)
	for id, d := range p.docs[collection] {
		if !matchesFilter(d.metadata, filter) {
			continue
		}
		docs = append(docs, Document{
			ID:       id,
			Content:  d.content,
			Metadata: d.metadata,
			Source:   DeriveSource(d.metadata),
		})
	}
	p.mu.RUnlock()

	sortByLocator(docs)
	if len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

// Close releases resources. Persistent stores are written through on
// every mutation, so there is nothing to flush.
func (p *ChromemProvider) Close() error {
	return nil
}

// lookupCollection resolves an existing collection for read paths.
// Unknown names fail with KindUnknownCollection.
func (p *ChromemProvider) lookupCollection(name string) (*chromem.Collection, error) {
	p.mu.RLock()
	col, ok := p.collections[name]
	p.mu.RUnlock()
	if ok {
		return col, nil
	}

	col = p.db.GetCollection(name, p.embeddingFunc)
	if col == nil {
		return nil, &StoreError{Kind: KindUnknownCollection, Collection: name, Message: "unknown collection"}
	}

	p.mu.Lock()
	p.collections[name] = col
	p.mu.Unlock()
	return col, nil
}

// ensureCollection gets or creates a collection for write paths.
func (p *ChromemProvider) ensureCollection(name string) (*chromem.Collection, error) {
	p.mu.RLock()
	if col, ok := p.collections[name]; ok {
		p.mu.RUnlock()
		return col, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring the write lock.
	if col, ok := p.collections[name]; ok {
		return col, nil
	}

	col, err := p.db.GetOrCreateCollection(name, nil, p.embeddingFunc)
	if err != nil {
		return nil, &StoreError{Kind: KindQuery, Collection: name, Message: "failed to create collection", Err: err}
	}

	p.collections[name] = col
	return col, nil
}

// Ensure ChromemProvider implements Provider.
var _ Provider = (*ChromemProvider)(nil)

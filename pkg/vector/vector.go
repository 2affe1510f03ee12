// Package vector provides the query interface over a populated vector
// store. The store is written by an external ingestion pipeline; this
// package only reads it.
//
// Three providers share one contract: pgvector (reference wire format),
// Qdrant, and chromem (embedded, used for development and tests).
// Similarity scores are cosine, higher is more similar, and results are
// returned in descending score order.
package vector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// Document is a retrieved chunk with its citation metadata.
type Document struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata"`
	Similarity float64           `json:"similarity"`

	// Source is the citation locator derived from metadata,
	// e.g. "uav_design.pdf§article_24".
	Source string `json:"source"`
}

// CollectionStat describes one collection and its document count.
type CollectionStat struct {
	Name          string `json:"name"`
	DocumentCount int64  `json:"document_count"`
}

// Provider is the narrow read-side store interface.
type Provider interface {
	// ListCollections returns all collections with document counts,
	// ordered by count descending, then name.
	ListCollections(ctx context.Context) ([]CollectionStat, error)

	// SimilaritySearch returns the top-k documents by cosine similarity.
	// filter is a conjunction of metadata equality constraints. An empty
	// collection yields an empty slice; an unknown collection fails with
	// a StoreError of kind KindUnknownCollection. k must be at least 1.
	SimilaritySearch(ctx context.Context, collection string, vector []float32, k int, filter map[string]string) ([]Document, error)

	// MetadataLookup returns documents matching the filter without any
	// vector ranking, ordered by section then chunk sequence.
	MetadataLookup(ctx context.Context, collection string, filter map[string]string, limit int) ([]Document, error)

	// Name identifies the provider implementation.
	Name() string

	// Close releases the underlying connections.
	Close() error
}

// StoreErrorKind classifies store failures for retry decisions.
type StoreErrorKind string

const (
	// KindUnknownCollection means the named collection does not exist.
	// Not retryable.
	KindUnknownCollection StoreErrorKind = "unknown_collection"

	// KindUnavailable covers connectivity and resource failures that a
	// retry with backoff may recover from.
	KindUnavailable StoreErrorKind = "unavailable"

	// KindQuery covers deterministic query failures (bad arguments,
	// schema mismatch). Not retryable.
	KindQuery StoreErrorKind = "query"
)

// StoreError is returned by all providers for store-level failures.
type StoreError struct {
	Kind       StoreErrorKind
	Collection string
	Message    string
	Err        error
}

func (e *StoreError) Error() string {
	msg := e.Message
	if e.Collection != "" {
		msg = fmt.Sprintf("%s (collection %q)", msg, e.Collection)
	}
	if e.Err != nil {
		return fmt.Sprintf("store: %s: %v", msg, e.Err)
	}
	return "store: " + msg
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Transient reports whether a retry with backoff may succeed.
func (e *StoreError) Transient() bool {
	return e.Kind == KindUnavailable
}

// IsUnknownCollection reports whether err is a StoreError for a
// collection that does not exist.
func IsUnknownCollection(err error) bool {
	var storeErr *StoreError
	return errors.As(err, &storeErr) && storeErr.Kind == KindUnknownCollection
}

// IsTransient reports whether err is a StoreError worth retrying.
func IsTransient(err error) bool {
	var storeErr *StoreError
	return errors.As(err, &storeErr) && storeErr.Transient()
}

// DeriveSource builds the citation locator for a document from its
// canonical metadata keys: "source§section" when a section is present,
// "source#chunk_seq" otherwise.
func DeriveSource(metadata map[string]string) string {
	src := metadata["source"]
	if src == "" {
		src = "unknown"
	}
	if section := metadata["section"]; section != "" {
		return src + "§" + section
	}
	if seq := metadata["chunk_seq"]; seq != "" {
		return src + "#" + seq
	}
	return src
}

// matchesFilter reports whether metadata satisfies every equality
// constraint in filter.
func matchesFilter(metadata, filter map[string]string) bool {
	for key, want := range filter {
		if metadata[key] != want {
			return false
		}
	}
	return true
}

// sortCollectionStats orders stats by document count descending, then
// name, matching the pgvector listing order.
func sortCollectionStats(stats []CollectionStat) {
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].DocumentCount != stats[j].DocumentCount {
			return stats[i].DocumentCount > stats[j].DocumentCount
		}
		return stats[i].Name < stats[j].Name
	})
}

// sortByLocator orders documents by section, then chunk sequence
// (numerically when both parse), then ID. Providers without SQL-side
// ordering use it to match the pgvector lookup order.
func sortByLocator(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		si, sj := docs[i].Metadata["section"], docs[j].Metadata["section"]
		if si != sj {
			return si < sj
		}
		ci, cj := docs[i].Metadata["chunk_seq"], docs[j].Metadata["chunk_seq"]
		if ci != cj {
			ni, errI := strconv.Atoi(ci)
			nj, errJ := strconv.Atoi(cj)
			if errI == nil && errJ == nil {
				return ni < nj
			}
			return ci < cj
		}
		return docs[i].ID < docs[j].ID
	})
}

package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aileronlabs/aileron/pkg/embedders"
	"github.com/aileronlabs/aileron/pkg/vector"
)

// maxRetrieveK caps how many documents one retrieval may return.
const maxRetrieveK = 20

// storeAttempts bounds transient store retries.
const storeAttempts = 3

// storeRetryBase is the first backoff delay; it doubles per attempt.
var storeRetryBase = 500 * time.Millisecond

// unavailableObservation is surfaced when transient store retries are
// exhausted.
const unavailableObservation = "檢索服務暫時無法使用 (retrieval unavailable)"

// withStoreRetry runs fn, retrying transient store failures with
// doubling backoff. Deterministic failures and context cancellation
// return immediately.
func withStoreRetry(ctx context.Context, fn func() error) error {
	delay := storeRetryBase
	var err error
	for attempt := 1; attempt <= storeAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(delay):
				delay *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err = fn(); err == nil || !vector.IsTransient(err) {
			return err
		}
		slog.Debug("transient store failure", "attempt", attempt, "error", err)
	}
	return err
}

// storeFailure converts a store error into its tool observation:
// exhausted transient retries become the retrieval-unavailable notice,
// anything else the tool's own error format.
func storeFailure(tool string, err error, format func(error) string) *ToolError {
	if vector.IsTransient(err) {
		return &ToolError{Tool: tool, Message: unavailableObservation, Err: err}
	}
	return &ToolError{Tool: tool, Message: format(err), Err: err}
}

type retrieveArgs struct {
	Query      string `json:"query" jsonschema:"description=Engineering query or technical search terms"`
	Collection string `json:"collection,omitempty" jsonschema:"description=Design area collection to search; use design_area_router to pick one"`
	K          int    `json:"k,omitempty" jsonschema:"description=Number of documents to retrieve"`
}

type retrieveTool struct {
	store      vector.Provider
	embedder   embedders.Embedder
	defaultCol string
	topK       int
	contentMax int
}

func newRetrieveTool(store vector.Provider, embedder embedders.Embedder, defaultCollection string, topK, contentMax int) Tool {
	t := &retrieveTool{
		store:      store,
		embedder:   embedder,
		defaultCol: defaultCollection,
		topK:       topK,
		contentMax: contentMax,
	}
	return newFuncTool(ToolRetrieveArchive,
		"Search a design area for relevant aircraft design documents, performance data and code. Use this "+
			"to find historical design documents, wind tunnel data, performance reports and source code from "+
			"past aircraft projects. Determine the design area with design_area_router first.",
		t.run)
}

func (t *retrieveTool) run(ctx context.Context, args retrieveArgs) (string, error) {
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return "", &ToolError{Tool: ToolRetrieveArchive, Message: "query must not be empty"}
	}
	collection := args.Collection
	if collection == "" {
		collection = t.defaultCol
	}
	k := args.K
	if k <= 0 {
		k = t.topK
	}
	if k > maxRetrieveK {
		k = maxRetrieveK
	}

	slog.Debug("retrieving documents", "collection", collection, "k", k)

	queryVector, err := t.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return "", &ToolError{Tool: ToolRetrieveArchive,
			Message: fmt.Sprintf("從『%s』領域檢索文件時發生錯誤: %v", collection, err), Err: err}
	}

	var docs []vector.Document
	err = withStoreRetry(ctx, func() error {
		var searchErr error
		docs, searchErr = t.store.SimilaritySearch(ctx, collection, queryVector, k, nil)
		return searchErr
	})
	if err != nil {
		return "", storeFailure(ToolRetrieveArchive, err, func(cause error) string {
			return fmt.Sprintf("從『%s』領域檢索文件時發生錯誤: %v", collection, cause)
		})
	}
	if len(docs) == 0 {
		return fmt.Sprintf("在『%s』領域中找不到相關的設計文件或程式碼。建議重新檢查查詢關鍵字或嘗試其他設計領域。", collection), nil
	}

	parts := make([]string, 0, len(docs))
	for i, doc := range docs {
		parts = append(parts, formatRetrievedDocument(i+1, collection, doc, t.contentMax))
	}
	return strings.Join(parts, "\n---\n"), nil
}

// formatRetrievedDocument renders one retrieved chunk in the citation
// block format the agent prompt teaches the model to quote from.
func formatRetrievedDocument(index int, collection string, doc vector.Document, contentMax int) string {
	source := doc.Metadata["source"]
	if source == "" {
		source = "unknown"
	}
	page := doc.Metadata["page"]
	if page == "" {
		page = "?"
	}
	location := "頁碼: " + page
	if section := doc.Metadata["section"]; section != "" {
		location += ", 章節: " + section
	}
	if line := doc.Metadata["line"]; line != "" {
		location += ", Line " + line
	}
	return fmt.Sprintf("=== 文件 %d (來自『%s』領域) ===\n來源: %s, %s\n內容:\n%s\n",
		index, collection, source, location, truncateContent(doc.Content, contentMax))
}

// truncateContent shortens content to max runes with an ellipsis
// marker. Runes, not bytes: the archive is mostly Chinese text.
func truncateContent(content string, max int) string {
	if max <= 0 || utf8.RuneCountInString(content) <= max {
		return content
	}
	return string([]rune(content)[:max]) + "..."
}

package tools

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aileronlabs/aileron/pkg/vector"
)

// metadataResultLimit caps how many chunks one metadata search returns.
const metadataResultLimit = 20

// Accepted article reference spellings. Bare numbers are deliberately
// absent: "F-16" must not be read as a reference to article 16.
var articlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`第\s*(\d+)\s*條`),
	regexp.MustCompile(`(?i)article\s*(\d+)`),
	regexp.MustCompile(`(?i)art\.\s*(\d+)`),
}

var pagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`第\s*(\d+)\s*頁`),
	regexp.MustCompile(`(?i)page\s*(\d+)`),
	regexp.MustCompile(`(?i)p\.\s*(\d+)`),
}

var bareNumberPattern = regexp.MustCompile(`(\d+)`)

// articleFromQuery extracts an explicit article reference (第24條,
// article 24, art. 24) from free text.
func articleFromQuery(query string) (string, bool) {
	for _, pattern := range articlePatterns {
		if m := pattern.FindStringSubmatch(query); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// normalizeArticle converts any accepted article spelling, including a
// bare number, to the canonical section key article_N. Values with no
// number pass through unchanged.
func normalizeArticle(value string) string {
	if num, ok := articleFromQuery(value); ok {
		return "article_" + num
	}
	if m := bareNumberPattern.FindStringSubmatch(value); m != nil {
		return "article_" + m[1]
	}
	return value
}

// normalizePage reduces a page reference (第5頁, page 12, p. 3, bare
// number) to its number.
func normalizePage(value string) string {
	for _, pattern := range pagePatterns {
		if m := pattern.FindStringSubmatch(value); m != nil {
			return m[1]
		}
	}
	if m := bareNumberPattern.FindStringSubmatch(value); m != nil {
		return m[1]
	}
	return value
}

// normalizeFilter maps a model-supplied field/value pair onto the
// canonical metadata keys: article spellings become section keys and
// page spellings bare numbers. Other fields match as given.
func normalizeFilter(field, value string) (string, string) {
	switch strings.ToLower(field) {
	case "article", "section", "條文":
		return "section", normalizeArticle(value)
	case "page", "頁碼":
		return "page", normalizePage(value)
	default:
		return field, value
	}
}

type metadataSearchArgs struct {
	Collection string `json:"collection,omitempty" jsonschema:"description=Collection to search in; defaults to the configured collection"`
	Field      string `json:"field" jsonschema:"description=Metadata field to match: article (or section) page or source"`
	Value      string `json:"value" jsonschema:"description=Value the field must equal; article and page spellings are normalized"`
}

type metadataSearchTool struct {
	store      vector.Provider
	defaultCol string
}

func newMetadataSearchTool(store vector.Provider, defaultCollection string) Tool {
	t := &metadataSearchTool{store: store, defaultCol: defaultCollection}
	return newFuncTool(ToolMetadataSearch,
		"Find documents by exact metadata instead of semantic similarity. Use this when the query names a "+
			"specific article or section number, page number, or source file.",
		t.run)
}

func (t *metadataSearchTool) run(ctx context.Context, args metadataSearchArgs) (string, error) {
	collection := args.Collection
	if collection == "" {
		collection = t.defaultCol
	}
	field := strings.TrimSpace(args.Field)
	value := strings.TrimSpace(args.Value)
	if field == "" || value == "" {
		return "錯誤：必須至少提供一個搜尋條件 (article, page, 或 source)。", nil
	}

	filterKey, filterValue := normalizeFilter(field, value)
	slog.Debug("metadata search", "collection", collection, "field", filterKey, "value", filterValue)

	var docs []vector.Document
	err := withStoreRetry(ctx, func() error {
		var lookupErr error
		docs, lookupErr = t.store.MetadataLookup(ctx, collection, map[string]string{filterKey: filterValue}, metadataResultLimit)
		return lookupErr
	})
	if err != nil {
		return "", storeFailure(ToolMetadataSearch, err, func(cause error) string {
			return fmt.Sprintf("Metadata 搜尋時發生錯誤: %v", cause)
		})
	}
	if len(docs) == 0 {
		return fmt.Sprintf("在 '%s' 中找不到符合條件的文件 (%s=%s)。", collection, filterKey, filterValue), nil
	}

	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		parts = append(parts, formatMetadataDocument(collection, doc))
	}
	return strings.Join(parts, "\n---\n"), nil
}

func formatMetadataDocument(collection string, doc vector.Document) string {
	var info []string
	if section := doc.Metadata["section"]; section != "" {
		info = append(info, "條文: "+section)
	}
	if page := doc.Metadata["page"]; page != "" {
		info = append(info, "頁碼: "+page)
	}
	metadataLine := "N/A"
	if len(info) > 0 {
		metadataLine = strings.Join(info, ", ")
	}
	source := doc.Metadata["source"]
	if source == "" {
		source = "unknown"
	}
	return fmt.Sprintf("=== 文件 (來自 %s) ===\n來源: %s\nMetadata: %s\n內容:\n%s\n",
		collection, source, metadataLine, doc.Content)
}

package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aileronlabs/aileron/pkg/vector"
)

// articleChunkLimit caps how many chunks of one article are reassembled.
const articleChunkLimit = 50

type articleLookupArgs struct {
	Reference  string `json:"reference" jsonschema:"description=Query containing an article number such as 第24條的內容"`
	Collection string `json:"collection,omitempty" jsonschema:"description=Collection to search in; defaults to the configured collection"`
}

type articleLookupTool struct {
	store      vector.Provider
	defaultCol string
}

func newArticleLookupTool(store vector.Provider, defaultCollection string) Tool {
	t := &articleLookupTool{store: store, defaultCol: defaultCollection}
	return newFuncTool(ToolArticleLookup,
		"Look up the complete text of a numbered article or section. Use this when the query names an "+
			"explicit article (第24條, article 24, art. 24); all chunks of the article are returned in order.",
		t.run)
}

func (t *articleLookupTool) run(ctx context.Context, args articleLookupArgs) (string, error) {
	num, ok := articleFromQuery(args.Reference)
	if !ok {
		return "無法從查詢中識別出條文編號。請使用 retrieve_datcom_archive 工具進行一般檢索。", nil
	}
	collection := args.Collection
	if collection == "" {
		collection = t.defaultCol
	}
	sectionKey := "article_" + num
	displayKey := fmt.Sprintf("第 %s 條", num)

	slog.Debug("article lookup", "collection", collection, "section", sectionKey)

	var docs []vector.Document
	err := withStoreRetry(ctx, func() error {
		var lookupErr error
		docs, lookupErr = t.store.MetadataLookup(ctx, collection, map[string]string{"section": sectionKey}, articleChunkLimit)
		return lookupErr
	})
	if err != nil {
		return "", storeFailure(ToolArticleLookup, err, func(cause error) string {
			return fmt.Sprintf("查詢 %s 時發生錯誤: %v", displayKey, cause)
		})
	}
	if len(docs) == 0 {
		return fmt.Sprintf("在 '%s' 中找不到 %s。", collection, displayKey), nil
	}

	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		source := doc.Metadata["source"]
		if source == "" {
			source = "unknown"
		}
		page := doc.Metadata["page"]
		if page == "" {
			page = "?"
		}
		parts = append(parts, fmt.Sprintf("=== %s (來自 %s) ===\n來源: %s, 頁碼: %s\n內容:\n%s\n",
			displayKey, collection, source, page, doc.Content))
	}
	return strings.Join(parts, "\n---\n"), nil
}

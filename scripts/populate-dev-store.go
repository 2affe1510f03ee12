// Populates a local chromem store with a handful of design-archive
// documents so the engine can be smoke-tested without Postgres. An
// embedding endpoint must be reachable:
//
//	export EMBED_API_BASE=... EMBED_API_KEY=... EMBED_MODEL=...
//	go run scripts/populate-dev-store.go
//	VECTOR_PROVIDER=chromem CHROMEM_PATH=.aileron/devstore \
//	  aileron query --collection 空氣動力學 --retrieve-only "FLTCON 的分析點數上限"
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/aileronlabs/aileron/pkg/config"
	"github.com/aileronlabs/aileron/pkg/embedders"
	"github.com/aileronlabs/aileron/pkg/utils"
	"github.com/aileronlabs/aileron/pkg/vector"
)

type seedDoc struct {
	collection string
	content    string
	metadata   map[string]string
}

var seedDocs = []seedDoc{
	{
		collection: "laws",
		content:    "第 1 條 本規則依民用航空法訂定，適用於最大起飛重量二十五公斤以下遙控無人機之設計、製造與操作。",
		metadata:   map[string]string{"source": "遙控無人機管理規則.pdf", "section": "article_1"},
	},
	{
		collection: "laws",
		content:    "第 24 條 遙控無人機之結構設計，應能承受運轉限制範圍內之最大負載係數，並保留一點五倍之安全裕度。",
		metadata:   map[string]string{"source": "遙控無人機管理規則.pdf", "section": "article_24"},
	},
	{
		collection: "laws",
		content:    "第 25 條 操作限制：遙控無人機不得於距地表四百呎以上之空域飛航，並應與機場保持規定之隔離距離。",
		metadata:   map[string]string{"source": "遙控無人機管理規則.pdf", "section": "article_25"},
	},
	{
		collection: "空氣動力學",
		content:    "FLTCON namelist 定義飛行條件矩陣: NMACH 個馬赫數、NALT 個高度與 NALPHA 個攻角的排程，總分析點數 NMACH*NALT*NALPHA 不得超過 400。",
		metadata:   map[string]string{"source": "datcom_manual.pdf", "page": "12"},
	},
	{
		collection: "空氣動力學",
		content:    "WGPLNF namelist 描述主翼平面形狀: CHRDR 翼根弦長、CHRDTP 翼尖弦長、SSPN 半翼展、SAVSI 內段前緣後掠角，單位依 DIM 卡設定。",
		metadata:   map[string]string{"source": "datcom_manual.pdf", "page": "37"},
	},
	{
		collection: "空氣動力學",
		content:    "SYNTHS namelist 給定各部件的縱向配置: XCG 重心位置、XW 主翼頂點、XH 水平尾翼頂點，搭配 ALIW 與 ALIH 安裝角。",
		metadata:   map[string]string{"source": "datcom_manual.pdf", "page": "41"},
	},
}

func main() {
	ctx := context.Background()

	embedCfg := &config.EmbeddingConfig{
		APIBase: os.Getenv("EMBED_API_BASE"),
		APIKey:  os.Getenv("EMBED_API_KEY"),
		Model:   os.Getenv("EMBED_MODEL"),
	}
	embedCfg.SetDefaults()
	if embedCfg.APIBase == "" || embedCfg.APIKey == "" || embedCfg.Model == "" {
		fmt.Fprintln(os.Stderr, "EMBED_API_BASE, EMBED_API_KEY and EMBED_MODEL must be set")
		os.Exit(1)
	}

	httpCfg := &config.HTTPConfig{}
	httpCfg.SetDefaults()

	embedder, err := embedders.NewOpenAIEmbedder(embedCfg, httpCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create embedder: %v\n", err)
		os.Exit(1)
	}
	defer embedder.Close()

	path := os.Getenv("CHROMEM_PATH")
	if path == "" {
		dataDir, err := utils.EnsureDataDir("")
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to prepare data directory: %v\n", err)
			os.Exit(1)
		}
		path = filepath.Join(dataDir, "devstore")
	}
	store, err := vector.NewChromemProvider(vector.ChromemConfig{PersistPath: path})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	texts := make([]string, len(seedDocs))
	for i, doc := range seedDocs {
		texts[i] = doc.content
	}

	fmt.Printf("Embedding %d documents with %s...\n", len(texts), embedder.ModelName())
	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "embedding failed: %v\n", err)
		os.Exit(1)
	}

	for i, doc := range seedDocs {
		key := doc.collection + ":" + doc.metadata["source"] + ":" + strconv.Itoa(i)
		upsert := vector.Document{
			ID:       uuid.NewMD5(uuid.Nil, []byte(key)).String(),
			Content:  doc.content,
			Metadata: doc.metadata,
		}
		if err := store.Upsert(ctx, doc.collection, upsert, vectors[i]); err != nil {
			fmt.Fprintf(os.Stderr, "failed to upsert into %s: %v\n", doc.collection, err)
			os.Exit(1)
		}
		fmt.Printf("  ✓ Indexed: %s (%s)\n", vector.DeriveSource(doc.metadata), doc.collection)
	}

	stats, err := store.ListCollections(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list collections: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nSeeded store at %s:\n", path)
	for _, stat := range stats {
		fmt.Printf("  - %s: %d documents\n", stat.Name, stat.DocumentCount)
	}
}

package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aileronlabs/aileron/pkg/llms"
	"github.com/aileronlabs/aileron/pkg/vector"
)

// routerPrompt instructs the model to answer with exactly one
// design-area collection name.
const routerPrompt = `你是一個戰機設計領域的專家路由系統。根據工程師的問題和可用的設計領域資料庫列表，你的任務是選擇最相關的一個領域來回答問題。

工程師問題: "%s"

可用的設計領域:
%s

設計領域說明：
- 空氣動力學: 機翼設計、升力係數、阻力分析、風洞數據、氣動外型
- 航電系統: 飛控系統、雷達、導航、感測器、航電架構、軟體程式碼
- 材料科學: 複合材料、合金、結構強度、耐熱材料、材料測試數據
- 武器掛載: 飛彈掛架、武器整合、電子作戰系統、掛載配置
- 推進系統: 引擎性能、推力向量、燃油系統、進氣道設計

請只回傳最適合的設計領域名稱，不要包含任何其他文字或解釋。`

// emptyDatabaseObservation is returned when no design-area collections
// exist yet.
const emptyDatabaseObservation = "錯誤: 資料庫中沒有找到任何設計領域。請先建立『空氣動力學』、『航電系統』、『材料科學』、『武器掛載』或『推進系統』等領域的資料庫。"

// designAreaKeywords backs the routing fallback when the chat service
// is unavailable: the first area whose keyword appears in the query
// wins. English keywords are stored lowercase and matched against the
// lowercased query.
var designAreaKeywords = []struct {
	area     string
	keywords []string
}{
	{"空氣動力學", []string{"機翼", "升力", "阻力", "風洞", "氣動", "翼型", "wing", "lift", "drag", "aerodynamic", "airfoil"}},
	{"航電系統", []string{"飛控", "雷達", "導航", "感測", "航電", "程式", "軟體", "avionic", "radar", "navigation", "software"}},
	{"材料科學", []string{"材料", "複合", "合金", "結構", "耐熱", "material", "alloy", "composite"}},
	{"武器掛載", []string{"飛彈", "武器", "掛架", "掛載", "電戰", "weapon", "missile", "pylon"}},
	{"推進系統", []string{"引擎", "推力", "燃油", "進氣", "發動機", "engine", "thrust", "fuel", "propulsion", "intake"}},
}

type routerArgs struct {
	Query string `json:"query" jsonschema:"description=The engineer's original query"`
}

type designAreaRouter struct {
	llm   llms.LLM
	store vector.Provider
}

func newDesignAreaRouter(llm llms.LLM, store vector.Provider) Tool {
	router := &designAreaRouter{llm: llm, store: store}
	return newFuncTool(ToolDesignAreaRouter,
		"Select the most relevant design area for an engineer's query. Use this FIRST to decide which "+
			"design area database to search: it picks one of the aircraft design domains "+
			"(aerodynamics, avionics, materials, weapons, propulsion) and returns its collection name.",
		router.run)
}

func (t *designAreaRouter) run(ctx context.Context, args routerArgs) (string, error) {
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return "", &ToolError{Tool: ToolDesignAreaRouter, Message: "query must not be empty"}
	}

	var stats []vector.CollectionStat
	err := withStoreRetry(ctx, func() error {
		var listErr error
		stats, listErr = t.store.ListCollections(ctx)
		return listErr
	})
	if err != nil {
		return "", storeFailure(ToolDesignAreaRouter, err, func(cause error) string {
			return fmt.Sprintf("設計領域路由時發生錯誤: %v", cause)
		})
	}
	if len(stats) == 0 {
		return emptyDatabaseObservation, nil
	}

	names := make([]string, 0, len(stats))
	lines := make([]string, 0, len(stats))
	for _, stat := range stats {
		names = append(names, stat.Name)
		lines = append(lines, "- "+stat.Name)
	}

	prompt := fmt.Sprintf(routerPrompt, query, strings.Join(lines, "\n"))
	reply, err := t.llm.Complete(ctx, llms.CompletionRequest{
		Messages: []llms.Message{llms.User(prompt)},
	})
	if err != nil {
		slog.Warn("design area routing via chat failed, using keyword fallback", "error", err)
		return keywordRoute(query, names), nil
	}

	selected := strings.TrimSpace(reply.Text)
	for _, name := range names {
		if selected == name {
			return selected, nil
		}
	}
	slog.Debug("router picked an unknown design area", "selected", selected, "fallback", names[0])
	return names[0], nil
}

// keywordRoute picks the first design area whose keyword appears in the
// query and whose collection actually exists, defaulting to the first
// available collection.
func keywordRoute(query string, available []string) string {
	availableSet := make(map[string]bool, len(available))
	for _, name := range available {
		availableSet[name] = true
	}
	lowered := strings.ToLower(query)
	for _, area := range designAreaKeywords {
		if !availableSet[area.area] {
			continue
		}
		for _, keyword := range area.keywords {
			if strings.Contains(lowered, keyword) {
				return area.area
			}
		}
	}
	return available[0]
}

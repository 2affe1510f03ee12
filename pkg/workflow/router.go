package workflow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/aileronlabs/aileron/pkg/llms"
)

// routerSystemPrompt steers the model toward a single-token route name.
// The examples pin the boundary cases: generation keywords or a cluster
// of numeric parameters mean datcom_generation, bare aircraft names and
// definition questions stay general_query.
const routerSystemPrompt = `You are an expert at routing a user's request to the correct workflow.
Based on the user's question, you must decide whether it is a "datcom_generation" request or a "general_query".

**Analysis Steps:**
1. Look for keywords related to **generation**, such as "generate", "create", "make", "生成", "產生", "建立".
2. Look for a significant number of specific aerodynamic parameters (e.g., S=..., A=..., Mach=..., XCG=...).
3. If generation keywords OR multiple specific parameters are present, classify as "datcom_generation".
4. Otherwise, classify as "general_query".

**Examples:**
- User query: "為 XX 生成 .dat or DATCOM。參數: 機翼 S=530 ft², A=2.8..." -> **datcom_generation** (Contains "生成" and many parameters)
- User query: "Create a DATCOM file for a custom UAV with wing area 50 and aspect ratio 3." -> **datcom_generation** (Contains "Create" and parameters)
- User query: "MiG-17的DATCOM" -> **general_query** (Lacks generation keywords and specific parameters. This is a retrieval/search request.)
- User query: "What is the purpose of the FLTCON namelist?" -> **general_query** (This is a definition question.)
- User query: "explain the body geometry of the F-4" -> **general_query** (This is a search/explanation request.)

You must respond with ONLY the name of the route, either "datcom_generation" or "general_query".
`

// classifyIntent asks the model to route the question and normalizes the
// reply by substring: anything mentioning "datcom" routes to generation,
// anything mentioning "general" to the general query path, and anything
// else falls back to general_query. A model failure is non-fatal and
// also falls back, unless the context itself has ended.
func classifyIntent(ctx context.Context, llm llms.LLM, question string) (string, error) {
	result, err := llm.Complete(ctx, llms.CompletionRequest{
		System:   routerSystemPrompt,
		Messages: []llms.Message{llms.User(question)},
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		slog.Warn("intent routing failed, defaulting to general_query", "error", err)
		return IntentGeneralQuery, nil
	}

	route := strings.ToLower(strings.TrimSpace(result.Text))
	switch {
	case strings.Contains(route, "datcom"):
		return IntentDatcomGeneration, nil
	case strings.Contains(route, "general"):
		return IntentGeneralQuery, nil
	default:
		slog.Warn("unclear routing result, defaulting to general_query", "reply", result.Text)
		return IntentGeneralQuery, nil
	}
}

package agent

import (
	"fmt"
	"strings"

	"github.com/aileronlabs/aileron/pkg/llms"
)

const systemPromptBase = `You are a helpful assistant expert in aerodynamic analysis and aircraft design document search.
You have access to a variety of tools to help answer user questions.
Based on the user's query, select the best tool or sequence of tools to provide a comprehensive answer.`

const systemPromptRules = `Rules:
- Every factual claim in your final answer must be cited as (source: file, locator).
- Use article_lookup when the query contains an explicit article reference.
- Use design_area_router before retrieve_datcom_archive when the design area is not yet known.
- Use python_calculator for any arithmetic instead of computing yourself.`

// buildSystemPrompt enumerates the registered tools between the base
// instructions and the tool-use rules. Definitions arrive sorted by
// name, so the prompt is stable across runs.
func buildSystemPrompt(defs []llms.ToolDefinition) string {
	var b strings.Builder
	b.WriteString(systemPromptBase)
	b.WriteString("\n\nAvailable tools:\n")
	for _, def := range defs {
		fmt.Fprintf(&b, "- %s: %s\n", def.Name, def.Description)
	}
	b.WriteString("\n")
	b.WriteString(systemPromptRules)
	return b.String()
}

// Package workflow composes the intent router, the fixed DATCOM
// generation pipeline and the reasoning agent into an engine that
// carries a query from classification to a user-facing answer.
package workflow

import (
	"fmt"

	"github.com/aileronlabs/aileron/pkg/llms"
	"github.com/aileronlabs/aileron/pkg/vector"
)

// Intents the router can assign to a query.
const (
	IntentDatcomGeneration = "datcom_generation"
	IntentGeneralQuery     = "general_query"
)

// State is the record a run reads and extends. Messages grows by append
// only; the remaining fields merge by assignment. A State is owned by a
// single run and is never shared across goroutines.
type State struct {
	// Messages is the conversation so far. The engine appends the user
	// turn for the current question and every turn the run produces.
	Messages []llms.Message

	// Question is the raw user query for this run.
	Question string

	// Intent is set by the router: IntentDatcomGeneration or
	// IntentGeneralQuery.
	Intent string

	// Collection names the design area in effect, when the caller has
	// one. It is carried through the run unchanged; retrieval tools
	// resolve their own collection from arguments and configuration.
	Collection string

	// RetrievedDocs holds documents fetched by Engine.Retrieve for
	// retrieve-only queries. The reasoning loop reports its evidence
	// through tool observations instead.
	RetrievedDocs []vector.Document

	// Generation is the final user-facing answer.
	Generation string
}

// CollectionHint prefixes the question with the design-area directive
// interactive surfaces use to pin a collection, saving the agent a
// routing step.
func CollectionHint(collection, question string) string {
	return fmt.Sprintf("使用『%s』設計領域來回答這個問題: %s", collection, question)
}

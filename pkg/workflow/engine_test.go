package workflow

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aileronlabs/aileron/pkg/llms"
	"github.com/aileronlabs/aileron/pkg/vector"
)

func manualDocs() map[string][]vector.Document {
	return map[string][]vector.Document{
		"laws": {
			{
				ID:       "doc-1",
				Content:  "FLTCON namelist 定義飛行條件矩陣: Mach 數、高度與攻角排程。",
				Metadata: map[string]string{"source": "datcom_manual.pdf", "page": "12"},
			},
		},
	}
}

func TestEngineRunGeneralQuery(t *testing.T) {
	store := seededStore(t, manualDocs())
	answer := "FLTCON 定義飛行條件矩陣 (source: datcom_manual.pdf, p.12)"
	llm := &scriptedLLM{steps: []llmStep{
		say("general_query"),
		callTool("call-1", "retrieve_datcom_archive", map[string]interface{}{"query": "FLTCON namelist"}),
		say(answer),
	}}
	engine := newTestEngine(t, llm, store)

	next, err := engine.Run(context.Background(), &State{Question: "What is the purpose of the FLTCON namelist?"})
	require.NoError(t, err)

	assert.Equal(t, IntentGeneralQuery, next.Intent)
	assert.Equal(t, answer, next.Generation)

	// The run seeds the user turn, records the tool round trip, and the
	// retrieval observation precedes the final answer.
	require.Len(t, next.Messages, 4)
	assert.Equal(t, llms.RoleUser, next.Messages[0].Role)
	assert.Equal(t, llms.RoleAssistant, next.Messages[1].Role)
	require.Len(t, next.Messages[1].ToolCalls, 1)
	assert.Equal(t, llms.RoleTool, next.Messages[2].Role)
	assert.Equal(t, "call-1", next.Messages[2].ToolCallID)
	assert.Contains(t, next.Messages[2].Content, "FLTCON")
	assert.Equal(t, llms.RoleAssistant, next.Messages[3].Role)
	assert.Equal(t, answer, next.Messages[3].Content)
}

func TestEngineRunDatcomGeneration(t *testing.T) {
	store := seededStore(t, manualDocs())
	llm := &scriptedLLM{steps: []llmStep{
		say("datcom_generation"),
		say(phantomJSON),
	}}
	engine := newTestEngine(t, llm, store)

	next, err := engine.Run(context.Background(), &State{Question: "為 F-4 生成 DATCOM。參數: S=530..."})
	require.NoError(t, err)

	assert.Equal(t, IntentDatcomGeneration, next.Intent)
	assert.NotEmpty(t, next.Generation)
	assert.Contains(t, next.Generation, "CASEID ----- CUSTOM AIRCRAFT -----")
	assert.Contains(t, next.Generation, " $WGPLNF")

	last := next.Messages[len(next.Messages)-1]
	assert.Equal(t, llms.RoleAssistant, last.Role)
	assert.Equal(t, next.Generation, last.Content)
}

func TestEngineRunExtendsHistoryByAppend(t *testing.T) {
	store := seededStore(t, manualDocs())
	history := []llms.Message{
		llms.User("DATCOM 是什麼?"),
		llms.Assistant("DATCOM 是氣動力估算程式。"),
	}
	llm := &scriptedLLM{steps: []llmStep{
		say("general_query"),
		say("FLTCON 定義飛行條件 (source: datcom_manual.pdf, p.12)"),
	}}
	engine := newTestEngine(t, llm, store)

	state := &State{Question: "那 FLTCON 呢?", Messages: history}
	next, err := engine.Run(context.Background(), state)
	require.NoError(t, err)

	// Prefix extension: the prior turns are untouched and in place.
	require.GreaterOrEqual(t, len(next.Messages), 4)
	assert.Equal(t, history[0], next.Messages[0])
	assert.Equal(t, history[1], next.Messages[1])
	assert.Equal(t, llms.RoleUser, next.Messages[2].Role)
	assert.Equal(t, "那 FLTCON 呢?", next.Messages[2].Content)

	// The caller's slice is not mutated.
	assert.Len(t, state.Messages, 2)
}

func TestEngineRunDeterministic(t *testing.T) {
	run := func() string {
		store := seededStore(t, manualDocs())
		llm := &scriptedLLM{steps: []llmStep{
			say("datcom_generation"),
			say(phantomJSON),
		}}
		engine := newTestEngine(t, llm, store)
		next, err := engine.Run(context.Background(), &State{Question: "為 F-4 生成 DATCOM"})
		require.NoError(t, err)
		return next.Generation
	}

	assert.Equal(t, run(), run())
}

func TestEngineRunCancelledDiscardsOutput(t *testing.T) {
	store := seededStore(t, manualDocs())
	llm := &scriptedLLM{steps: []llmStep{say("general_query")}}
	engine := newTestEngine(t, llm, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	next, err := engine.Run(ctx, &State{Question: "question"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, next)
}

func TestEngineRunDeadlineBecomesBudgetNotice(t *testing.T) {
	store := seededStore(t, manualDocs())
	llm := &scriptedLLM{steps: []llmStep{
		say("general_query"),
		failWith(fmt.Errorf("llm call: %w", context.DeadlineExceeded)),
	}}
	engine := newTestEngine(t, llm, store)

	next, err := engine.Run(context.Background(), &State{Question: "question"})
	require.NoError(t, err)

	assert.Equal(t, budgetNotice, next.Generation)
	last := next.Messages[len(next.Messages)-1]
	assert.Equal(t, llms.RoleAssistant, last.Role)
	assert.Equal(t, budgetNotice, last.Content)
}

func TestEngineRunApologizesOnBranchFailure(t *testing.T) {
	store := seededStore(t, manualDocs())
	llm := &scriptedLLM{steps: []llmStep{
		say("general_query"),
		failWith(&llms.ChatError{StatusCode: 500, Message: "upstream exploded"}),
	}}
	engine := newTestEngine(t, llm, store)

	next, err := engine.Run(context.Background(), &State{Question: "question"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(next.Generation, "抱歉，處理問題時發生錯誤: "), "generation %q", next.Generation)
	assert.Contains(t, next.Generation, "upstream exploded")
}

func TestEngineRunRejectsEmptyQuestion(t *testing.T) {
	store := seededStore(t, manualDocs())
	engine := newTestEngine(t, &scriptedLLM{}, store)

	_, err := engine.Run(context.Background(), &State{Question: "   "})
	require.Error(t, err)

	_, err = engine.Run(context.Background(), nil)
	require.Error(t, err)
}

func TestEngineRetrieve(t *testing.T) {
	store := seededStore(t, manualDocs())
	engine := newTestEngine(t, &scriptedLLM{}, store)

	// Empty collection and k fall back to the configured defaults.
	docs, err := engine.Retrieve(context.Background(), "FLTCON 是什麼", "", 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].Content, "FLTCON")
	assert.Equal(t, "datcom_manual.pdf", docs[0].Metadata["source"])

	_, err = engine.Retrieve(context.Background(), "FLTCON 是什麼", "nonexistent", 3)
	require.Error(t, err)

	_, err = engine.Retrieve(context.Background(), "  ", "", 0)
	require.Error(t, err)
}

func TestEngineCollections(t *testing.T) {
	store := seededStore(t, manualDocs())
	engine := newTestEngine(t, &scriptedLLM{}, store)

	stats, err := engine.Collections(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "laws", stats[0].Name)
	assert.Equal(t, int64(1), stats[0].DocumentCount)
}

package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aileronlabs/aileron/pkg/llms"
)

func TestClassifyIntentDatcomGeneration(t *testing.T) {
	llm := &scriptedLLM{steps: []llmStep{say("datcom_generation")}}

	intent, err := classifyIntent(context.Background(), llm, "為 F-4 生成 DATCOM。參數: S=530, A=2.8")
	require.NoError(t, err)
	assert.Equal(t, IntentDatcomGeneration, intent)

	require.Len(t, llm.requests, 1)
	req := llm.requests[0]
	assert.Contains(t, req.System, `"datcom_generation" request or a "general_query"`)
	assert.Contains(t, req.System, "MiG-17的DATCOM")
	require.Len(t, req.Messages, 1)
	assert.Equal(t, llms.RoleUser, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "S=530")
	assert.Empty(t, req.Tools, "routing must not offer tools")
}

func TestClassifyIntentGeneralQuery(t *testing.T) {
	llm := &scriptedLLM{steps: []llmStep{say("general_query")}}

	intent, err := classifyIntent(context.Background(), llm, "What is the purpose of the FLTCON namelist?")
	require.NoError(t, err)
	assert.Equal(t, IntentGeneralQuery, intent)
}

func TestClassifyIntentMatchesSubstring(t *testing.T) {
	cases := []struct {
		reply string
		want  string
	}{
		{`The route is "datcom_generation".`, IntentDatcomGeneration},
		{"  DATCOM_GENERATION  ", IntentDatcomGeneration},
		{"I believe this is a General_Query.", IntentGeneralQuery},
	}
	for _, tc := range cases {
		llm := &scriptedLLM{steps: []llmStep{say(tc.reply)}}
		intent, err := classifyIntent(context.Background(), llm, "question")
		require.NoError(t, err)
		assert.Equal(t, tc.want, intent, "reply %q", tc.reply)
	}
}

func TestClassifyIntentUnclearDefaultsToGeneral(t *testing.T) {
	llm := &scriptedLLM{steps: []llmStep{say("I cannot decide.")}}

	intent, err := classifyIntent(context.Background(), llm, "hmm")
	require.NoError(t, err)
	assert.Equal(t, IntentGeneralQuery, intent)
}

func TestClassifyIntentModelFailureDefaultsToGeneral(t *testing.T) {
	llm := &scriptedLLM{steps: []llmStep{failWith(errors.New("upstream unavailable"))}}

	intent, err := classifyIntent(context.Background(), llm, "question")
	require.NoError(t, err)
	assert.Equal(t, IntentGeneralQuery, intent)
}

func TestClassifyIntentPropagatesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	llm := &scriptedLLM{steps: []llmStep{say("datcom_generation")}}
	_, err := classifyIntent(ctx, llm, "question")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

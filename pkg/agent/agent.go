// Package agent implements the bounded reason-act-observe loop behind
// general queries. Each iteration presents the conversation and the tool
// schemas to the model, which replies with either tool calls or a final
// answer. Tool calls are executed sequentially through the shared registry
// and their observations appended as tool messages. The loop stops on a
// final answer, on the iteration cap, or when the caller's context ends;
// empty or too-short answers are replaced by a formatted digest of the
// collected tool results.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/aileronlabs/aileron/pkg/llms"
	"github.com/aileronlabs/aileron/pkg/tools"
	"github.com/aileronlabs/aileron/pkg/utils"
)

const (
	// DefaultMaxIterations caps the reason-act-observe loop.
	DefaultMaxIterations = 10

	// DefaultHistoryLimit is the message count above which the context
	// sent to the model is trimmed. The returned message list is never
	// trimmed.
	DefaultHistoryLimit = 40

	// minAnswerRunes is the shortest final answer accepted verbatim.
	// Anything shorter is treated as a non-answer and replaced by the
	// tool-result digest.
	minAnswerRunes = 10
)

// noToolResponsesMessage is returned when the model produced no usable
// answer and no tool was executed during the run.
const noToolResponsesMessage = "執行了查詢,但沒有獲得有效的工具回應結果。"

// Config controls the reasoning loop.
type Config struct {
	// MaxIterations caps the loop. Zero means DefaultMaxIterations.
	MaxIterations int

	// HistoryLimit is the soft message cap before context trimming.
	// Zero means DefaultHistoryLimit.
	HistoryLimit int
}

// Agent runs the reasoning loop over a frozen tool registry. It holds no
// per-run state and is safe for concurrent use.
type Agent struct {
	llm           llms.LLM
	registry      *tools.Registry
	maxIterations int
	historyLimit  int
	systemPrompt  string

	counterOnce sync.Once
	counter     *utils.TokenCounter
}

// New builds an agent over the given model and registry. The system
// prompt is derived from the registry once, so the registry must be
// fully populated before New is called.
func New(llm llms.LLM, registry *tools.Registry, cfg Config) *Agent {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	return &Agent{
		llm:           llm,
		registry:      registry,
		maxIterations: cfg.MaxIterations,
		historyLimit:  cfg.HistoryLimit,
		systemPrompt:  buildSystemPrompt(registry.Definitions()),
	}
}

// Result is the outcome of one reasoning run.
type Result struct {
	// Generation is the user-facing answer. Non-empty on every
	// successful run.
	Generation string

	// Messages extends the input history with the turns produced by
	// the run; prior entries are retained in order.
	Messages []llms.Message

	// Iterations is the number of model calls made.
	Iterations int
}

// toolResponse records one executed tool call for the digest.
type toolResponse struct {
	name    string
	content string
}

// Run drives the loop until the model produces a final answer or the
// iteration cap is hit. history is not mutated; the returned message
// list is a prefix-extension of it. The returned error is non-nil only
// when the model call fails or the context ends; deterministic tool
// failures surface as observations, not errors.
func (a *Agent) Run(ctx context.Context, question string, history []llms.Message) (*Result, error) {
	msgs := make([]llms.Message, 0, len(history)+8)
	msgs = append(msgs, history...)
	if len(msgs) == 0 {
		msgs = append(msgs, llms.User(question))
	}

	defs := a.registry.Definitions()

	var responses []toolResponse
	var notes []string

	for iteration := 1; iteration <= a.maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		view := msgs
		if len(msgs) > a.historyLimit {
			view = trimContext(msgs)
			slog.Debug("trimming agent context", "messages", len(msgs), "kept", len(view))
		}

		if slog.Default().Enabled(ctx, slog.LevelDebug) {
			slog.Debug("reasoning iteration",
				"iteration", iteration,
				"messages", len(view),
				"prompt_tokens", a.promptTokens(view))
		}
		reply, err := a.llm.Complete(ctx, llms.CompletionRequest{
			System:   a.systemPrompt,
			Messages: view,
			Tools:    defs,
		})
		if err != nil {
			return nil, fmt.Errorf("reasoning iteration %d: %w", iteration, err)
		}

		if !reply.HasToolCalls() {
			msgs = append(msgs, llms.Assistant(reply.Text))
			generation := a.finalize(reply.Text, responses, notes)
			return &Result{Generation: generation, Messages: msgs, Iterations: iteration}, nil
		}

		msgs = append(msgs, llms.Message{
			Role:      llms.RoleAssistant,
			Content:   reply.Text,
			ToolCalls: reply.ToolCalls,
		})
		if text := strings.TrimSpace(reply.Text); text != "" {
			notes = append(notes, text)
		}

		for _, call := range reply.ToolCalls {
			observation, err := a.registry.Execute(ctx, call.Name, call.Args)
			if err != nil {
				return nil, err
			}
			msgs = append(msgs, llms.ToolObservation(call.ID, call.Name, observation))
			responses = append(responses, toolResponse{name: call.Name, content: observation})
		}
	}

	slog.Warn("reasoning loop hit iteration cap", "iterations", a.maxIterations, "tool_calls", len(responses))
	return &Result{
		Generation: a.capSummary(responses, notes),
		Messages:   msgs,
		Iterations: a.maxIterations,
	}, nil
}

// finalize turns the model's terminal reply into the generation. Replies
// shorter than minAnswerRunes are replaced by the tool-result digest, so
// a model that only narrates its tool use still yields a real answer.
func (a *Agent) finalize(text string, responses []toolResponse, notes []string) string {
	stripped := strings.TrimSpace(text)
	if len([]rune(stripped)) >= minAnswerRunes {
		a.flagUngrounded(stripped, responses)
		return text
	}

	slog.Debug("final answer empty or too short, building digest", "answer_runes", len([]rune(stripped)))
	if len(responses) == 0 {
		return noToolResponsesMessage
	}
	if stripped != "" {
		notes = append(notes, stripped)
	}
	return buildDigest(responses, notes)
}

// capSummary is the generation when the loop did not converge within
// the iteration cap.
func (a *Agent) capSummary(responses []toolResponse, notes []string) string {
	header := fmt.Sprintf("⚠️ 推理迴圈在 %d 輪內未能收斂出最終答案。\n", a.maxIterations)
	if len(responses) == 0 {
		return header + noToolResponsesMessage
	}
	return header + "\n" + buildDigest(responses, notes)
}

// promptTokens estimates the token footprint of the next model call,
// system prompt included. The encoder is built on first use so runs
// above debug level never pay for it; -1 means accounting is off.
func (a *Agent) promptTokens(view []llms.Message) int {
	a.counterOnce.Do(func() {
		counter, err := utils.NewTokenCounter(a.llm.ModelName())
		if err != nil {
			slog.Warn("token accounting disabled", "model", a.llm.ModelName(), "error", err)
			return
		}
		a.counter = counter
	})
	if a.counter == nil {
		return -1
	}

	msgs := make([]utils.Message, 0, len(view)+1)
	msgs = append(msgs, utils.Message{Role: llms.RoleSystem, Content: a.systemPrompt})
	for _, m := range view {
		msgs = append(msgs, utils.Message{Role: m.Role, Content: m.Content})
	}
	return a.counter.CountMessages(msgs)
}

// flagUngrounded logs every numeric claim in the final answer that has
// no antecedent in a tool observation from this run.
func (a *Agent) flagUngrounded(answer string, responses []toolResponse) {
	observations := make([]string, len(responses))
	for i, tr := range responses {
		observations[i] = tr.content
	}
	for _, sentence := range ungroundedClaims(answer, observations) {
		slog.Debug("final answer sentence has no tool observation antecedent", "sentence", sentence)
	}
}

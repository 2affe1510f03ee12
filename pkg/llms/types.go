// Package llms implements the chat completion client for OpenAI-compatible
// endpoints, with tool calling. The router, the DATCOM extractor and the
// reasoning loop all go through the LLM interface; temperature defaults to
// 0 so routing and extraction stay deterministic.
package llms

import (
	"context"
	"fmt"
)

// Message roles on the OpenAI-compatible wire.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	// ToolCalls is set on assistant messages that request tool execution.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID and Name are set on tool observation messages.
	ToolCallID string `json:"tool_call_id,omitempty"`
	Name       string `json:"name,omitempty"`
}

// ToolCall is a model-requested tool invocation. Args holds the decoded
// JSON arguments; numeric values arrive as json.Number.
type ToolCall struct {
	ID   string                 `json:"id"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

// ToolDefinition describes a callable tool to the model (OpenAI function
// schema).
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// CompletionRequest is one blocking completion call.
type CompletionRequest struct {
	// System becomes the leading system message when non-empty.
	System string

	Messages []Message

	// Tools enables function calling when non-empty.
	Tools []ToolDefinition

	// Temperature overrides the provider default (0).
	Temperature *float64

	// MaxTokens overrides the provider default when > 0.
	MaxTokens int
}

// ChatResult is either a textual reply or a list of tool-call requests;
// both can be present when the model interleaves text with calls.
type ChatResult struct {
	Text       string
	ToolCalls  []ToolCall
	TokensUsed int
}

// HasToolCalls reports whether the model requested tool execution.
func (r *ChatResult) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// LLM is the chat completion client.
type LLM interface {
	Complete(ctx context.Context, req CompletionRequest) (*ChatResult, error)
	ModelName() string
	Close() error
}

// ChatError reports a remote chat endpoint failure after retries.
type ChatError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *ChatError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("chat: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("chat: %s", e.Message)
}

func (e *ChatError) Unwrap() error {
	return e.Err
}

// System returns a system message.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User returns a user message.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Assistant returns an assistant message.
func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ToolObservation returns a tool observation message answering the given
// call.
func ToolObservation(callID, toolName, content string) Message {
	return Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: callID,
		Name:       toolName,
	}
}

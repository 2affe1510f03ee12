package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aileronlabs/aileron/pkg/config"
	"github.com/aileronlabs/aileron/pkg/httpclient"
	"github.com/aileronlabs/aileron/pkg/observability"
)

// OpenAIProvider talks to any OpenAI-compatible /chat/completions endpoint.
type OpenAIProvider struct {
	apiBase     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *httpclient.Client
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
	Stream      bool            `json:"stream"`
	Tools       []openAITool    `json:"tools,omitempty"`
	ToolChoice  string          `json:"tool_choice,omitempty"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	Name       string           `json:"name,omitempty"`
}

type openAITool struct {
	Type     string             `json:"type"`
	Function openAIToolFunction `json:"function"`
}

type openAIToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type openAIToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openAIFunctionCall `json:"function"`
}

type openAIFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Usage   openAIUsage    `json:"usage"`
	Error   *apiError      `json:"error,omitempty"`
}

type openAIChoice struct {
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// NewOpenAIProvider builds the chat client from configuration.
func NewOpenAIProvider(cfg *config.ChatConfig, httpCfg *config.HTTPConfig) (*OpenAIProvider, error) {
	opts := []httpclient.Option{
		httpclient.WithHTTPClient(&http.Client{Timeout: cfg.Timeout()}),
		httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders),
	}

	if httpCfg != nil {
		opts = append(opts,
			httpclient.WithMaxRetries(httpCfg.MaxRetries),
			httpclient.WithMaxInflight(int64(httpCfg.MaxInflight)),
		)
		if httpCfg.VerifySSL != nil && !*httpCfg.VerifySSL || httpCfg.CACertificate != "" {
			tlsOpt, err := httpclient.WithTLSConfig(&httpclient.TLSConfig{
				InsecureSkipVerify: httpCfg.VerifySSL != nil && !*httpCfg.VerifySSL,
				CACertificate:      httpCfg.CACertificate,
			})
			if err != nil {
				return nil, err
			}
			opts = append(opts, tlsOpt)
		}
	}

	temperature := 0.0
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}

	return &OpenAIProvider{
		apiBase:     strings.TrimRight(cfg.APIBase, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  httpclient.New(opts...),
	}, nil
}

func (p *OpenAIProvider) ModelName() string {
	return p.model
}

func (p *OpenAIProvider) Close() error {
	return nil
}

// Complete performs one blocking chat completion.
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (*ChatResult, error) {
	startTime := time.Now()

	tracer := observability.GetTracer("aileron.llm")
	ctx, span := tracer.Start(ctx, observability.SpanLLMRequest,
		trace.WithAttributes(
			attribute.String(observability.AttrLLMModel, p.model),
			attribute.Int("llm.tools", len(req.Tools)),
		),
	)
	defer span.End()

	response, err := p.makeRequest(ctx, p.buildRequest(req))
	duration := time.Since(startTime)

	metrics := observability.GetGlobalMetrics()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if metrics != nil {
			metrics.RecordLLMCall(ctx, p.model, duration, 0, 0, err)
		}
		return nil, err
	}

	if response.Error != nil {
		apiErr := &ChatError{Message: response.Error.Message}
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, response.Error.Message)
		if metrics != nil {
			metrics.RecordLLMCall(ctx, p.model, duration, 0, 0, apiErr)
		}
		return nil, apiErr
	}

	if len(response.Choices) == 0 {
		noChoiceErr := &ChatError{Message: "no response choices returned"}
		span.RecordError(noChoiceErr)
		span.SetStatus(codes.Error, "no choices")
		if metrics != nil {
			metrics.RecordLLMCall(ctx, p.model, duration, 0, 0, noChoiceErr)
		}
		return nil, noChoiceErr
	}

	choice := response.Choices[0]

	result := &ChatResult{
		Text:       choice.Message.Content,
		TokensUsed: response.Usage.TotalTokens,
	}

	if len(choice.Message.ToolCalls) > 0 {
		result.ToolCalls, err = parseToolCalls(choice.Message.ToolCalls)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	span.SetAttributes(
		attribute.Int(observability.AttrLLMTokensInput, response.Usage.PromptTokens),
		attribute.Int(observability.AttrLLMTokensOutput, response.Usage.CompletionTokens),
		attribute.Int("llm.tool_calls", len(result.ToolCalls)),
	)
	span.SetStatus(codes.Ok, "success")

	if metrics != nil {
		metrics.RecordLLMCall(ctx, p.model, duration, response.Usage.PromptTokens, response.Usage.CompletionTokens, nil)
	}

	return result, nil
}

func (p *OpenAIProvider) buildRequest(req CompletionRequest) openAIRequest {
	messages := make([]openAIMessage, 0, len(req.Messages)+1)

	if req.System != "" {
		messages = append(messages, openAIMessage{Role: RoleSystem, Content: req.System})
	}

	for _, msg := range req.Messages {
		m := openAIMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
			Name:       msg.Name,
		}
		if len(msg.ToolCalls) > 0 {
			m.ToolCalls = make([]openAIToolCall, len(msg.ToolCalls))
			for j, tc := range msg.ToolCalls {
				argsJSON, _ := json.Marshal(tc.Args)
				m.ToolCalls[j] = openAIToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: openAIFunctionCall{
						Name:      tc.Name,
						Arguments: string(argsJSON),
					},
				}
			}
		}
		messages = append(messages, m)
	}

	temperature := p.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	request := openAIRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: temperature,
	}

	maxTokens := p.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	if maxTokens > 0 {
		request.MaxTokens = &maxTokens
	}

	if len(req.Tools) > 0 {
		request.Tools = make([]openAITool, len(req.Tools))
		for i, tool := range req.Tools {
			request.Tools[i] = openAITool{
				Type:     "function",
				Function: openAIToolFunction(tool),
			}
		}
		request.ToolChoice = "auto"
	}

	return request
}

func parseToolCalls(calls []openAIToolCall) ([]ToolCall, error) {
	result := make([]ToolCall, len(calls))

	for i, tc := range calls {
		var args map[string]interface{}
		if tc.Function.Arguments != "" {
			// UseNumber keeps 1 and 1.0 distinct so downstream checks can
			// flag integer-typed values the model should have sent as reals.
			dec := json.NewDecoder(strings.NewReader(tc.Function.Arguments))
			dec.UseNumber()
			if err := dec.Decode(&args); err != nil {
				return nil, &ChatError{
					Message: fmt.Sprintf("failed to parse arguments for tool %q", tc.Function.Name),
					Err:     err,
				}
			}
		}

		result[i] = ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		}
	}

	return result, nil
}

func parseErrorBody(body []byte) *apiError {
	if len(body) == 0 {
		return nil
	}
	var errorResp struct {
		Error apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
		return &errorResp.Error
	}
	return nil
}

func (p *OpenAIProvider) makeRequest(ctx context.Context, request openAIRequest) (*openAIResponse, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, &ChatError{Message: "failed to marshal request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.apiBase+"/chat/completions", bytes.NewReader(requestBody))
	if err != nil {
		return nil, &ChatError{Message: "failed to create HTTP request", Err: err}
	}

	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(requestBody)), nil
	}

	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if resp != nil {
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			if apiErr := parseErrorBody(body); apiErr != nil {
				return nil, &ChatError{
					StatusCode: resp.StatusCode,
					Message:    fmt.Sprintf("%s (type: %s, code: %s)", apiErr.Message, apiErr.Type, apiErr.Code),
					Err:        err,
				}
			}
			return nil, &ChatError{
				StatusCode: resp.StatusCode,
				Message:    strings.TrimSpace(string(body)),
				Err:        err,
			}
		}
	}

	if err != nil {
		return nil, &ChatError{Message: "request failed after retries", Err: err}
	}

	if resp == nil {
		return nil, &ChatError{Message: "no response received"}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ChatError{Message: "failed to read response", Err: err}
	}

	var response openAIResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, &ChatError{Message: "failed to unmarshal response", Err: err}
	}

	return &response, nil
}

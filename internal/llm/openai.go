package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"pokescout/internal/domain"
)

// OpenAIProvider calls an OpenAI-compatible Chat Completions API with
// function-calling enabled. OpenRouter and Ollama expose the same wire
// format, so they reuse this implementation with a different base URL.
type OpenAIProvider struct {
	apiKey      string
	model       string
	client      *http.Client
	baseURL     string
	marshalFunc func(v interface{}) ([]byte, error) // for testing
}

// NewOpenAIProvider returns an OpenAI-backed ReasoningProvider.
func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	return &OpenAIProvider{
		apiKey:      apiKey,
		model:       model,
		client:      &http.Client{},
		baseURL:     "https://api.openai.com/v1/chat/completions",
		marshalFunc: json.Marshal,
	}
}

// NewOpenRouterProvider returns a ReasoningProvider backed by OpenRouter's
// OpenAI-compatible endpoint.
func NewOpenRouterProvider(apiKey, model string) *OpenAIProvider {
	p := NewOpenAIProvider(apiKey, model)
	p.baseURL = "https://openrouter.ai/api/v1/chat/completions"
	return p
}

// NewOllamaProvider returns a ReasoningProvider backed by a local Ollama
// instance's OpenAI-compatible endpoint. No API key is required.
func NewOllamaProvider(model string) *OpenAIProvider {
	p := NewOpenAIProvider("", model)
	p.baseURL = "http://localhost:11434/v1/chat/completions"
	return p
}

// SetBaseURL overrides the endpoint (e.g. for a self-hosted gateway or tests).
func (p *OpenAIProvider) SetBaseURL(url string) {
	if url != "" {
		p.baseURL = url
	}
}

type chatRequest struct {
	Model      string        `json:"model"`
	Messages   []chatMessage `json:"messages"`
	Tools      []chatTool    `json:"tools,omitempty"`
	ToolChoice string        `json:"tool_choice,omitempty"`
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Name       string         `json:"name,omitempty"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type wireToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete implements domain.ReasoningProvider. It serialises the conversation
// and tool definitions, posts them, and decodes either a final text or a set
// of tool-call requests.
func (p *OpenAIProvider) Complete(ctx context.Context, messages []domain.Message, tools []domain.ToolDefinition) (*domain.Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body := chatRequest{
		Model:    p.model,
		Messages: toWireMessages(messages),
	}
	if len(tools) > 0 {
		body.Tools = toWireTools(tools)
		body.ToolChoice = "auto"
	}

	raw, err := p.marshalFunc(body)
	if err != nil {
		return nil, fmt.Errorf("openai marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("openai request: %w", err)
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai api: %s", resp.Status)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("openai decode: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("openai: no choices in response")
	}

	msg := out.Choices[0].Message
	completion := &domain.Completion{Text: msg.Content}
	for _, tc := range msg.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			// Malformed argument JSON is not fatal: the call is dispatched
			// with empty args and the tool reports the problem inline.
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		}
		completion.ToolCalls = append(completion.ToolCalls, domain.ToolCallRequest{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		})
	}
	return completion, nil
}

// toWireMessages converts domain messages to the chat-completions format.
func toWireMessages(messages []domain.Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		wm := chatMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		if m.Role == domain.RoleTool {
			wm.Name = m.ToolName
		}
		for _, tc := range m.ToolCalls {
			argJSON, err := json.Marshal(tc.Args)
			if err != nil {
				argJSON = []byte("{}")
			}
			var wtc wireToolCall
			wtc.ID = tc.ID
			wtc.Type = "function"
			wtc.Function.Name = tc.Name
			wtc.Function.Arguments = string(argJSON)
			wm.ToolCalls = append(wm.ToolCalls, wtc)
		}
		out = append(out, wm)
	}
	return out
}

// toWireTools converts tool definitions to the function-calling format.
func toWireTools(tools []domain.ToolDefinition) []chatTool {
	out := make([]chatTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, chatTool{
			Type: "function",
			Function: chatFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  json.RawMessage(t.InputSchema),
			},
		})
	}
	return out
}

var _ domain.ReasoningProvider = (*OpenAIProvider)(nil)

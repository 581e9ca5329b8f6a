package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	claudeDefaultBaseURL   = "https://api.anthropic.com"
	claudeDefaultMaxTokens = 1024
	claudeAPIVersion       = "2023-06-01"
)

// ClaudeAPIClient calls the Anthropic Messages API.
type ClaudeAPIClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewClaudeAPIClient creates a Claude client. An empty baseURL uses the
// public endpoint.
func NewClaudeAPIClient(apiKey, model, baseURL string) *ClaudeAPIClient {
	if baseURL == "" {
		baseURL = claudeDefaultBaseURL
	}
	return &ClaudeAPIClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: defaultHTTPTimeout},
	}
}

func (c *ClaudeAPIClient) Name() string { return "claude" }

func (c *ClaudeAPIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()
	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": claudeAPIVersion,
	}
	raw, err := postJSON(ctx, c.client, c.Name(), c.baseURL+"/v1/messages", headers, c.newRequest(req))
	if err != nil {
		return nil, err
	}
	var resp claudeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	out := resp.completion()
	out.Duration = time.Since(start)
	return out, nil
}

type claudeRequest struct {
	Model       string            `json:"model"`
	System      string            `json:"system,omitempty"`
	Messages    []claudeMessage   `json:"messages"`
	MaxTokens   int               `json:"max_tokens"`
	Temperature *float64          `json:"temperature,omitempty"`
	Tools       []claudeTool      `json:"tools,omitempty"`
	ToolChoice  *claudeToolChoice `json:"tool_choice,omitempty"`
}

// claudeMessage content is a plain string for text-only turns and a
// block list when images are attached.
type claudeMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type claudeBlock struct {
	Type   string        `json:"type"`
	Text   string        `json:"text,omitempty"`
	Source *claudeSource `json:"source,omitempty"`
}

// claudeSource carries image bytes; encoding/json base64-encodes Data.
type claudeSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      []byte `json:"data"`
}

type claudeTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type claudeToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

func (c *ClaudeAPIClient) newRequest(req CompletionRequest) claudeRequest {
	out := claudeRequest{
		Model:       c.model,
		System:      req.System,
		Messages:    make([]claudeMessage, 0, len(req.Messages)),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if out.MaxTokens <= 0 {
		out.MaxTokens = claudeDefaultMaxTokens
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, toClaudeMessage(m))
	}
	for _, t := range req.Tools {
		out.Tools = append(out.Tools, claudeTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: parseJSONSchema(t.InputSchema),
		})
	}
	// A single tool is a structured-output request: make the model call it.
	if len(out.Tools) == 1 {
		out.ToolChoice = &claudeToolChoice{Type: "tool", Name: out.Tools[0].Name}
	}
	return out
}

func toClaudeMessage(m Message) claudeMessage {
	if len(m.Images) == 0 {
		return claudeMessage{Role: m.Role, Content: m.Content}
	}
	blocks := make([]claudeBlock, 0, len(m.Images)+1)
	for _, img := range m.Images {
		blocks = append(blocks, claudeBlock{
			Type:   "image",
			Source: &claudeSource{Type: "base64", MediaType: img.MimeType, Data: img.Data},
		})
	}
	if m.Content != "" {
		blocks = append(blocks, claudeBlock{Type: "text", Text: m.Content})
	}
	return claudeMessage{Role: m.Role, Content: blocks}
}

type claudeResponse struct {
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type  string          `json:"type"`
		Text  string          `json:"text"`
		ID    string          `json:"id"`
		Name  string          `json:"name"`
		Input json.RawMessage `json:"input"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (r *claudeResponse) completion() *CompletionResponse {
	out := &CompletionResponse{
		Model:      r.Model,
		StopReason: r.StopReason,
		Usage:      Usage{InputTokens: r.Usage.InputTokens, OutputTokens: r.Usage.OutputTokens},
	}
	var text strings.Builder
	for _, b := range r.Content {
		switch b.Type {
		case "text":
			text.WriteString(b.Text)
		case "tool_use":
			out.ToolCalls = append(out.ToolCalls, ToolCall{ID: b.ID, Name: b.Name, Input: string(b.Input)})
		}
	}
	out.Content = text.String()
	return out
}

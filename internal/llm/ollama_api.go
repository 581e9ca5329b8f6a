package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const ollamaDefaultBaseURL = "http://localhost:11434"

// OllamaAPIClient calls a local Ollama server's generate endpoint.
type OllamaAPIClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaAPIClient creates an Ollama client. An empty baseURL means
// the default local server.
func NewOllamaAPIClient(baseURL, model string) *OllamaAPIClient {
	if baseURL == "" {
		baseURL = ollamaDefaultBaseURL
	}
	return &OllamaAPIClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: defaultHTTPTimeout},
	}
}

func (o *OllamaAPIClient) Name() string { return "ollama" }

// ollamaGenerate is a non-streaming /api/generate request. Images go out
// base64-encoded, as encoding/json does for []byte.
type ollamaGenerate struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Images  [][]byte       `json:"images,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaReply struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func (o *OllamaAPIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	body := ollamaGenerate{Model: o.model, System: req.System}
	var prompt []string
	for _, m := range req.Messages {
		line := m.Content
		if m.Role != RoleUser {
			line = m.Role + ": " + line
		}
		prompt = append(prompt, line)
		for _, img := range m.Images {
			body.Images = append(body.Images, img.Data)
		}
	}
	body.Prompt = strings.Join(prompt, "\n\n")
	if req.Temperature != nil || req.MaxTokens > 0 {
		body.Options = map[string]any{}
		if req.Temperature != nil {
			body.Options["temperature"] = *req.Temperature
		}
		if req.MaxTokens > 0 {
			body.Options["num_predict"] = req.MaxTokens
		}
	}

	raw, err := postJSON(ctx, o.client, o.Name(), o.baseURL+"/api/generate", nil, body)
	if err != nil {
		return nil, err
	}
	var reply ollamaReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &CompletionResponse{
		Content:  reply.Response,
		Model:    o.model,
		Duration: time.Since(start),
		Usage:    Usage{InputTokens: reply.PromptEvalCount, OutputTokens: reply.EvalCount},
	}, nil
}

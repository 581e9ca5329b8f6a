package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const geminiDefaultBaseURL = "https://generativelanguage.googleapis.com"

// GeminiAPIClient calls the generateContent REST endpoint.
type GeminiAPIClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewGeminiAPIClient creates a Gemini client. An empty baseURL uses the
// public endpoint.
func NewGeminiAPIClient(apiKey, model, baseURL string) *GeminiAPIClient {
	if baseURL == "" {
		baseURL = geminiDefaultBaseURL
	}
	return &GeminiAPIClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: defaultHTTPTimeout},
	}
}

func (g *GeminiAPIClient) Name() string { return "gemini" }

func (g *GeminiAPIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		g.baseURL, url.PathEscape(g.model), url.QueryEscape(g.apiKey))

	raw, err := postJSON(ctx, g.client, g.Name(), endpoint, nil, newGeminiRequest(req))
	if err != nil {
		return nil, err
	}
	var resp geminiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	out := resp.completion()
	out.Model = g.model
	out.Duration = time.Since(start)
	return out, nil
}

type geminiRequest struct {
	SystemInstruction *geminiContent        `json:"systemInstruction,omitempty"`
	Contents          []geminiContent       `json:"contents"`
	Tools             []geminiTool          `json:"tools,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text         string              `json:"text,omitempty"`
	InlineData   *geminiBlob         `json:"inline_data,omitempty"`
	FunctionCall *geminiFunctionCall `json:"functionCall,omitempty"`
}

// geminiBlob carries image bytes; encoding/json base64-encodes Data.
type geminiBlob struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

type geminiFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFunction `json:"functionDeclarations"`
}

type geminiFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
}

// newGeminiRequest maps req onto one user turn. Earlier turns are folded
// into its text, images follow it.
func newGeminiRequest(req CompletionRequest) geminiRequest {
	var text strings.Builder
	var images []geminiPart
	for _, m := range req.Messages {
		if m.Role != RoleUser {
			text.WriteString(m.Role + ": ")
		}
		text.WriteString(m.Content)
		text.WriteString("\n\n")
		for _, img := range m.Images {
			images = append(images, geminiPart{InlineData: &geminiBlob{MimeType: img.MimeType, Data: img.Data}})
		}
	}

	out := geminiRequest{
		Contents: []geminiContent{{
			Role:  RoleUser,
			Parts: append([]geminiPart{{Text: strings.TrimSpace(text.String())}}, images...),
		}},
		GenerationConfig: geminiGenerationConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
		},
	}
	if req.System != "" {
		out.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	if len(req.Tools) > 0 {
		var tool geminiTool
		for _, t := range req.Tools {
			tool.FunctionDeclarations = append(tool.FunctionDeclarations, geminiFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  parseJSONSchema(t.InputSchema),
			})
		}
		out.Tools = []geminiTool{tool}
	}
	return out
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// completion reads the first candidate; the API returns more only when
// asked to.
func (r *geminiResponse) completion() *CompletionResponse {
	out := &CompletionResponse{
		Usage: Usage{
			InputTokens:  r.UsageMetadata.PromptTokenCount,
			OutputTokens: r.UsageMetadata.CandidatesTokenCount,
		},
	}
	if len(r.Candidates) == 0 {
		return out
	}
	c := r.Candidates[0]
	out.StopReason = c.FinishReason
	var text strings.Builder
	for _, p := range c.Content.Parts {
		text.WriteString(p.Text)
		if p.FunctionCall != nil {
			args, _ := json.Marshal(p.FunctionCall.Args)
			out.ToolCalls = append(out.ToolCalls, ToolCall{Name: p.FunctionCall.Name, Input: string(args)})
		}
	}
	out.Content = text.String()
	return out
}

package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureServer answers every request with reply and records the decoded
// JSON body and the request.
func captureServer(t *testing.T, status int, reply string) (*httptest.Server, *map[string]any, **http.Request) {
	t.Helper()
	var body map[string]any
	var last *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		last = r
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, &body, &last
}

var pixel = []byte{0x89, 'P', 'N', 'G'}

func imageRequest() CompletionRequest {
	return CompletionRequest{
		System:   "extract",
		Messages: []Message{{Role: RoleUser, Content: "qual a validade?", Images: []Image{{MimeType: "image/png", Data: pixel}}}},
	}
}

func TestClaudeAPIClient_Complete(t *testing.T) {
	srv, body, req := captureServer(t, 200, `{
		"model": "claude-test",
		"stop_reason": "tool_use",
		"content": [
			{"type": "text", "text": "ok "},
			{"type": "tool_use", "id": "tu_1", "name": "registrar", "input": {"validade": "2026-01-10"}}
		],
		"usage": {"input_tokens": 10, "output_tokens": 5}
	}`)

	c := NewClaudeAPIClient("secret", "claude-test", srv.URL)
	resp, err := c.Complete(context.Background(), imageRequest())
	require.NoError(t, err)

	assert.Equal(t, "/v1/messages", (*req).URL.Path)
	assert.Equal(t, "secret", (*req).Header.Get("x-api-key"))
	assert.Equal(t, "ok ", resp.Content)
	assert.Equal(t, "tool_use", resp.StopReason)
	require.Len(t, resp.ToolCalls, 1)
	assert.JSONEq(t, `{"validade":"2026-01-10"}`, resp.ToolCalls[0].Input)
	assert.Equal(t, 10, resp.Usage.InputTokens)

	b := *body
	assert.Equal(t, "extract", b["system"])
	assert.EqualValues(t, claudeDefaultMaxTokens, b["max_tokens"])
	msgs := b["messages"].([]any)
	blocks := msgs[0].(map[string]any)["content"].([]any)
	require.Len(t, blocks, 2)
	img := blocks[0].(map[string]any)
	assert.Equal(t, "image", img["type"])
	src := img["source"].(map[string]any)
	assert.Equal(t, base64.StdEncoding.EncodeToString(pixel), src["data"])
	assert.Equal(t, "image/png", src["media_type"])
	assert.Equal(t, "text", blocks[1].(map[string]any)["type"])
	assert.NotContains(t, b, "tool_choice")
}

func TestClaudeAPIClient_SingleToolIsForced(t *testing.T) {
	srv, body, _ := captureServer(t, 200, `{"content":[]}`)
	c := NewClaudeAPIClient("k", "m", srv.URL)

	req := imageRequest()
	req.Tools = []ToolDefinition{{Name: "registrar", Description: "d", InputSchema: `{"type":"object"}`}}
	_, err := c.Complete(context.Background(), req)
	require.NoError(t, err)

	b := *body
	assert.Equal(t, map[string]any{"type": "tool", "name": "registrar"}, b["tool_choice"])
	tools := b["tools"].([]any)
	require.Len(t, tools, 1)
	assert.Equal(t, map[string]any{"type": "object"}, tools[0].(map[string]any)["input_schema"])
}

func TestClaudeAPIClient_TextOnlyUsesPlainContent(t *testing.T) {
	srv, body, _ := captureServer(t, 200, `{"content":[{"type":"text","text":"x"}]}`)
	c := NewClaudeAPIClient("k", "m", srv.URL)

	_, err := c.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	})
	require.NoError(t, err)
	msgs := (*body)["messages"].([]any)
	assert.Equal(t, "hello", msgs[0].(map[string]any)["content"])
}

func TestClaudeAPIClient_ErrorStatus(t *testing.T) {
	srv, _, _ := captureServer(t, 529, `{"error":{"type":"overloaded_error"}}`)
	c := NewClaudeAPIClient("k", "m", srv.URL)

	_, err := c.Complete(context.Background(), CompletionRequest{})
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 529, pe.Code)
	assert.Equal(t, "claude", pe.Provider)
	assert.True(t, isRetryable(err))
}

func TestGeminiAPIClient_Complete(t *testing.T) {
	srv, body, req := captureServer(t, 200, `{
		"candidates": [{
			"content": {"parts": [
				{"text": "{\"validade\":\"2026-01-10\"}"},
				{"functionCall": {"name": "registrar", "args": {"produto": "Leite"}}}
			]},
			"finishReason": "STOP"
		}],
		"usageMetadata": {"promptTokenCount": 3, "candidatesTokenCount": 4}
	}`)

	g := NewGeminiAPIClient("gkey", "gemini-test", srv.URL)
	resp, err := g.Complete(context.Background(), imageRequest())
	require.NoError(t, err)

	assert.Equal(t, "/v1beta/models/gemini-test:generateContent", (*req).URL.Path)
	assert.Equal(t, "gkey", (*req).URL.Query().Get("key"))
	assert.Equal(t, `{"validade":"2026-01-10"}`, resp.Content)
	assert.Equal(t, "STOP", resp.StopReason)
	require.Len(t, resp.ToolCalls, 1)
	assert.JSONEq(t, `{"produto":"Leite"}`, resp.ToolCalls[0].Input)
	assert.Equal(t, 4, resp.Usage.OutputTokens)

	b := *body
	sys := b["systemInstruction"].(map[string]any)["parts"].([]any)
	assert.Equal(t, "extract", sys[0].(map[string]any)["text"])
	contents := b["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, "qual a validade?", parts[0].(map[string]any)["text"])
	inline := parts[1].(map[string]any)["inline_data"].(map[string]any)
	assert.Equal(t, "image/png", inline["mime_type"])
	assert.Equal(t, base64.StdEncoding.EncodeToString(pixel), inline["data"])
	assert.NotContains(t, b, "tools")
}

func TestOllamaAPIClient_Complete(t *testing.T) {
	srv, body, req := captureServer(t, 200, `{"model":"llava","response":"10/01/2026","done":true,"eval_count":7}`)

	o := NewOllamaAPIClient(srv.URL+"/", "llava")
	resp, err := o.Complete(context.Background(), imageRequest())
	require.NoError(t, err)

	assert.Equal(t, "/api/generate", (*req).URL.Path)
	assert.Equal(t, "10/01/2026", resp.Content)
	assert.Equal(t, 7, resp.Usage.OutputTokens)

	b := *body
	assert.Equal(t, "llava", b["model"])
	assert.Equal(t, false, b["stream"])
	assert.Equal(t, "extract", b["system"])
	assert.Equal(t, []any{base64.StdEncoding.EncodeToString(pixel)}, b["images"])
}

func TestOllamaAPIClient_DefaultBaseURL(t *testing.T) {
	o := NewOllamaAPIClient("", "llama3")
	assert.Equal(t, "http://localhost:11434", o.baseURL)
	assert.Equal(t, "ollama", o.Name())
}

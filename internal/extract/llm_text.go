package extract

import (
	"context"
	"fmt"

	"github.com/soyeahso/validade/internal/domain"
	"github.com/soyeahso/validade/internal/llm"
)

const textSystemPrompt = `Você extrai dados de lembretes de validade de mensagens em português.
Responda apenas com um objeto JSON com as chaves:
  "produto": nome do produto (texto) ou null
  "validade": data de validade como aparece na mensagem (ex.: 10/01/2026, 10 de janeiro) ou null
  "diasAntes": quantos dias antes da validade avisar (inteiro) ou null
Não invente valores. Se a mensagem não tiver ano, não acrescente um.`

const recordToolName = "registrar_lembrete"

const recordToolSchema = `{
  "type": "object",
  "properties": {
    "produto": {"type": ["string", "null"]},
    "validade": {"type": ["string", "null"]},
    "diasAntes": {"type": ["integer", "null"]}
  }
}`

// LLMText extracts reminder fields with a language model.
type LLMText struct {
	client    llm.Client
	maxTokens int
}

// NewLLMText returns a TextSource backed by client.
func NewLLMText(client llm.Client, maxTokens int) *LLMText {
	return &LLMText{client: client, maxTokens: maxTokens}
}

// ExtractFields asks the model for a JSON object and reads it leniently.
// A reply without any recognizable field yields nil and no error.
func (t *LLMText) ExtractFields(ctx context.Context, text string) (*domain.Fields, error) {
	resp, err := t.client.Complete(ctx, llm.CompletionRequest{
		System:    textSystemPrompt,
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: text}},
		MaxTokens: t.maxTokens,
		Tools: []llm.ToolDefinition{{
			Name:        recordToolName,
			Description: "Registra os campos do lembrete encontrados na mensagem.",
			InputSchema: recordToolSchema,
		}},
		Temperature: llm.Temperature(0),
	})
	if err != nil {
		return nil, fmt.Errorf("llm text extraction via %s: %w", t.client.Name(), err)
	}
	return fieldsFromResponse(resp), nil
}

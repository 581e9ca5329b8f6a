package extract

import (
	"context"
	"fmt"
	"net/http"

	"github.com/soyeahso/validade/internal/dates"
	"github.com/soyeahso/validade/internal/llm"
)

const visionSystemPrompt = `Você lê rótulos de produtos.
Encontre a data de validade impressa na embalagem (VAL, VALIDADE, VENC, EXP).
Responda apenas com a data no formato DD/MM/AAAA. Se houver data de fabricação, ignore-a.
Se não houver data de validade legível, responda NENHUMA.`

// LLMVision reads the expiration date from a photo with a multimodal model.
type LLMVision struct {
	client    llm.Client
	dates     *dates.Normalizer
	maxTokens int
}

// NewLLMVision returns an ImageSource backed by client.
func NewLLMVision(client llm.Client, norm *dates.Normalizer, maxTokens int) *LLMVision {
	return &LLMVision{client: client, dates: norm, maxTokens: maxTokens}
}

// ExtractDate returns the latest date mentioned in the model's reply, or
// "" when it found none.
func (v *LLMVision) ExtractDate(ctx context.Context, image []byte) (string, error) {
	resp, err := v.client.Complete(ctx, llm.CompletionRequest{
		System: visionSystemPrompt,
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: "Qual é a data de validade deste produto?",
			Images:  []llm.Image{{MimeType: http.DetectContentType(image), Data: image}},
		}},
		MaxTokens:   v.maxTokens,
		Temperature: llm.Temperature(0),
	})
	if err != nil {
		return "", fmt.Errorf("llm vision via %s: %w", v.client.Name(), err)
	}

	if f := fieldsFromResponse(resp); f != nil && f.ExpiresOn != "" {
		if d := v.dates.Normalize(f.ExpiresOn); d != "" {
			return d, nil
		}
	}
	return latestDate(v.dates, resp.Content), nil
}

// latestDate picks the latest date printed in text. Labels often carry
// both a manufacture and an expiry date; the expiry is the later one.
func latestDate(norm *dates.Normalizer, text string) string {
	d, ok := dates.Latest(norm.Candidates(text))
	if !ok {
		return ""
	}
	return d.String()
}

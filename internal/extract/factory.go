package extract

import (
	"context"
	"fmt"

	"github.com/soyeahso/validade/internal/config"
	"github.com/soyeahso/validade/internal/dates"
	"github.com/soyeahso/validade/internal/llm"
	"github.com/soyeahso/validade/internal/logging"
)

// Sources builds the text and image sources named by cfg.Extraction. A
// source that needs a language model is left nil, with a warning, when
// no provider is configured.
func Sources(ctx context.Context, cfg config.Config, reg *llm.Registry, norm *dates.Normalizer, log *logging.Logger) (TextSource, ImageSource, error) {
	log = log.Sub("extract")

	var text TextSource
	switch cfg.Extraction.Text {
	case "llm":
		if client := modelClient(cfg.LLM, cfg.Extraction.TextModel, reg, log); client != nil {
			text = NewLLMText(client, cfg.LLM.MaxTokens)
		} else {
			log.Warn().Msg("no LLM provider configured; text extraction disabled")
		}
	case "none", "":
	default:
		return nil, nil, fmt.Errorf("unknown text extraction %q", cfg.Extraction.Text)
	}

	var image ImageSource
	switch cfg.Extraction.Image {
	case "vision":
		if client := modelClient(cfg.LLM, cfg.Extraction.VisionModel, reg, log); client != nil {
			image = NewLLMVision(client, norm, cfg.LLM.MaxTokens)
		} else {
			log.Warn().Msg("no LLM provider configured; image extraction disabled")
		}
	case "ocr":
		ocr, err := NewCloudVisionOCR(ctx, cfg.Extraction.OCR, norm)
		if err != nil {
			return nil, nil, err
		}
		image = ocr
	case "none", "":
	default:
		return nil, nil, fmt.Errorf("unknown image extraction %q", cfg.Extraction.Image)
	}

	return text, image, nil
}

// modelClient returns a failover client starting at model, or at the
// primary provider when model is empty.
func modelClient(cfg config.LLMConfig, model string, reg *llm.Registry, log *logging.Logger) llm.Client {
	if reg == nil || reg.Empty() {
		return nil
	}
	if model == "" {
		model = cfg.Primary
	}
	if model == "" {
		model = reg.List()[0]
	}
	return llm.NewFailoverClient(reg, model, cfg.Fallbacks, log)
}

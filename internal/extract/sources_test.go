package extract

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/soyeahso/validade/internal/config"
	"github.com/soyeahso/validade/internal/domain"
	"github.com/soyeahso/validade/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestLLMText_ExtractFields(t *testing.T) {
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Content: `{"produto":"Leite","validade":"10/01"}`}, nil
		},
	}
	src := NewLLMText(mock, 256)

	got, err := src.ExtractFields(context.Background(), "leite vence 10/01")
	require.NoError(t, err)
	assert.Equal(t, &domain.Fields{Product: "Leite", ExpiresOn: "10/01"}, got)

	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, textSystemPrompt, reqs[0].System)
	assert.Equal(t, "leite vence 10/01", reqs[0].Messages[0].Content)
	assert.Equal(t, 256, reqs[0].MaxTokens)
	require.Len(t, reqs[0].Tools, 1)
	assert.Equal(t, recordToolName, reqs[0].Tools[0].Name)
	require.NotNil(t, reqs[0].Temperature)
	assert.Equal(t, 0.0, *reqs[0].Temperature)
}

func TestLLMText_Error(t *testing.T) {
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return nil, &llm.ProviderError{Provider: "mock", Code: 500, Message: "boom"}
		},
	}
	_, err := NewLLMText(mock, 0).ExtractFields(context.Background(), "x")
	var pe *llm.ProviderError
	assert.ErrorAs(t, err, &pe)
}

func TestLLMVision_ExtractDate(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"plain date", "10/01/2027", "2027-01-10"},
		{"manufacture and expiry", "FAB 01/03/2026 VAL 01/03/2027", "2027-03-01"},
		{"json reply", `{"validade":"05/06/2027"}`, "2027-06-05"},
		{"nothing", "NENHUMA", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &llm.MockClient{
				ProviderName: "mock",
				CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
					return &llm.CompletionResponse{Content: tt.reply}, nil
				},
			}
			got, err := NewLLMVision(mock, testNormalizer(), 64).ExtractDate(context.Background(), png)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			req := mock.Requests()[0]
			require.Len(t, req.Messages[0].Images, 1)
			assert.Equal(t, "image/png", req.Messages[0].Images[0].MimeType)
			assert.Equal(t, png, req.Messages[0].Images[0].Data)
		})
	}
}

func TestLLMVision_Error(t *testing.T) {
	mock := &llm.MockClient{
		CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return nil, errors.New("offline")
		},
	}
	_, err := NewLLMVision(mock, testNormalizer(), 0).ExtractDate(context.Background(), []byte{1})
	assert.Error(t, err)
}

// visionServer fakes the images:annotate endpoint.
func visionServer(t *testing.T, reply string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/images:annotate", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		if seen != nil {
			_ = json.Unmarshal(body, seen)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestOCR(t *testing.T, srv *httptest.Server) *CloudVisionOCR {
	t.Helper()
	ocr, err := NewCloudVisionOCR(context.Background(),
		config.OCRConfig{Endpoint: srv.URL + "/"},
		testNormalizer(),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	return ocr
}

func TestCloudVisionOCR_ExtractDate(t *testing.T) {
	var seen map[string]any
	srv := visionServer(t, `{"responses":[{"fullTextAnnotation":{"text":"LOTE 123\nFAB: 01/2026\nVAL: 10/01/2027"}}]}`, &seen)

	got, err := newTestOCR(t, srv).ExtractDate(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "2027-01-10", got)

	reqs := seen["requests"].([]any)
	req := reqs[0].(map[string]any)
	assert.Equal(t, "aW1n", req["image"].(map[string]any)["content"])
	features := req["features"].([]any)
	assert.Equal(t, "TEXT_DETECTION", features[0].(map[string]any)["type"])
	hints := req["imageContext"].(map[string]any)["languageHints"].([]any)
	assert.Equal(t, "pt", hints[0])
}

func TestCloudVisionOCR_TextAnnotationsFallback(t *testing.T) {
	srv := visionServer(t, `{"responses":[{"textAnnotations":[{"description":"VENC 03/2027"}]}]}`, nil)
	got, err := newTestOCR(t, srv).ExtractDate(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "2027-03-31", got)
}

func TestCloudVisionOCR_NoText(t *testing.T) {
	srv := visionServer(t, `{"responses":[{}]}`, nil)
	got, err := newTestOCR(t, srv).ExtractDate(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestCloudVisionOCR_ResponseError(t *testing.T) {
	srv := visionServer(t, `{"responses":[{"error":{"code":3,"message":"Bad image data."}}]}`, nil)
	_, err := newTestOCR(t, srv).ExtractDate(context.Background(), []byte("img"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Bad image data")
}

func TestSources(t *testing.T) {
	norm := testNormalizer()

	t.Run("no providers", func(t *testing.T) {
		cfg := config.Defaults()
		text, image, err := Sources(context.Background(), cfg, llm.NewRegistry(silentLog()), norm, silentLog())
		require.NoError(t, err)
		assert.Nil(t, text)
		assert.Nil(t, image)
	})

	t.Run("llm text and vision", func(t *testing.T) {
		reg := llm.NewRegistry(silentLog())
		reg.Register("mock", &llm.MockClient{ProviderName: "mock"})
		cfg := config.Defaults()
		text, image, err := Sources(context.Background(), cfg, reg, norm, silentLog())
		require.NoError(t, err)
		assert.IsType(t, &LLMText{}, text)
		assert.IsType(t, &LLMVision{}, image)
	})

	t.Run("disabled", func(t *testing.T) {
		cfg := config.Defaults()
		cfg.Extraction.Text = "none"
		cfg.Extraction.Image = "none"
		text, image, err := Sources(context.Background(), cfg, nil, norm, silentLog())
		require.NoError(t, err)
		assert.Nil(t, text)
		assert.Nil(t, image)
	})

	t.Run("ocr", func(t *testing.T) {
		cfg := config.Defaults()
		cfg.Extraction.Text = "none"
		cfg.Extraction.Image = "ocr"
		cfg.Extraction.OCR.APIKey = "test-key"
		_, image, err := Sources(context.Background(), cfg, nil, norm, silentLog())
		require.NoError(t, err)
		assert.IsType(t, &CloudVisionOCR{}, image)
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := config.Defaults()
		cfg.Extraction.Image = "telepathy"
		_, _, err := Sources(context.Background(), cfg, nil, norm, silentLog())
		assert.Error(t, err)
	})
}

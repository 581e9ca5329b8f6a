package extract

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/soyeahso/validade/internal/config"
	"github.com/soyeahso/validade/internal/dates"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/vision/v1"
)

// CloudVisionOCR reads label text with Google Cloud Vision and picks the
// expiration date out of it.
type CloudVisionOCR struct {
	svc   *vision.Service
	dates *dates.Normalizer
	hints []string
}

// NewCloudVisionOCR connects to Cloud Vision. Credentials come from, in
// order: an API key, a service account file, application defaults.
func NewCloudVisionOCR(ctx context.Context, cfg config.OCRConfig, norm *dates.Normalizer, extra ...option.ClientOption) (*CloudVisionOCR, error) {
	var opts []option.ClientOption
	switch {
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	case cfg.CredentialsFile != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("reading vision credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, vision.CloudVisionScope)
		if err != nil {
			return nil, fmt.Errorf("parsing vision credentials: %w", err)
		}
		opts = append(opts, option.WithHTTPClient(oauth2.NewClient(ctx, creds.TokenSource)))
	case len(extra) == 0:
		client, err := google.DefaultClient(ctx, vision.CloudVisionScope)
		if err != nil {
			return nil, fmt.Errorf("vision default credentials: %w", err)
		}
		opts = append(opts, option.WithHTTPClient(client))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	opts = append(opts, extra...)

	svc, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating vision service: %w", err)
	}

	hint := cfg.LanguageHint
	if hint == "" {
		hint = "pt"
	}
	return &CloudVisionOCR{svc: svc, dates: norm, hints: []string{hint}}, nil
}

// ExtractDate runs TEXT_DETECTION on image and returns the latest date in
// the detected text, or "".
func (o *CloudVisionOCR) ExtractDate(ctx context.Context, image []byte) (string, error) {
	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image:        &vision.Image{Content: base64.StdEncoding.EncodeToString(image)},
			Features:     []*vision.Feature{{Type: "TEXT_DETECTION"}},
			ImageContext: &vision.ImageContext{LanguageHints: o.hints},
		}},
	}
	resp, err := o.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("vision annotate: %w", err)
	}
	if len(resp.Responses) == 0 {
		return "", nil
	}
	r := resp.Responses[0]
	if r.Error != nil {
		return "", fmt.Errorf("vision annotate: %d %s", r.Error.Code, r.Error.Message)
	}

	var text string
	switch {
	case r.FullTextAnnotation != nil:
		text = r.FullTextAnnotation.Text
	case len(r.TextAnnotations) > 0:
		text = r.TextAnnotations[0].Description
	}
	return latestDate(o.dates, text), nil
}

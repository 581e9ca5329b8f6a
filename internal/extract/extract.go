// Package extract turns free text and product photos into reminder facts.
// Sources may fail or return garbage; the Adapter absorbs both and only
// ever hands validated fields to the conversation.
package extract

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/soyeahso/validade/internal/dates"
	"github.com/soyeahso/validade/internal/domain"
	"github.com/soyeahso/validade/internal/logging"
	"github.com/soyeahso/validade/internal/metrics"
	"github.com/soyeahso/validade/internal/textnorm"
)

// TextSource extracts any subset of the reminder fields from a message.
// Returned values are raw: dates may be in any supported format.
type TextSource interface {
	ExtractFields(ctx context.Context, text string) (*domain.Fields, error)
}

// ImageSource reads an expiration date from a product photo.
type ImageSource interface {
	ExtractDate(ctx context.Context, image []byte) (string, error)
}

// Adapter wraps the configured sources. Every failure becomes an empty
// result, and every value passes the same validation before it leaves.
type Adapter struct {
	text    TextSource
	image   ImageSource
	dates   *dates.Normalizer
	log     *logging.Logger
	metrics *metrics.Metrics
	timeout time.Duration
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithMetrics records extraction outcomes and latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Adapter) { a.metrics = m }
}

// WithTimeout bounds each source call.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.timeout = d }
}

// NewAdapter builds an Adapter. Either source may be nil, in which case
// the matching call always yields nothing.
func NewAdapter(text TextSource, image ImageSource, norm *dates.Normalizer, log *logging.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		text:  text,
		image: image,
		dates: norm,
		log:   log.Sub("extract"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout > 0 {
		return context.WithTimeout(ctx, a.timeout)
	}
	return context.WithCancel(ctx)
}

// Text extracts validated fields from a message body, or nil.
func (a *Adapter) Text(ctx context.Context, raw string) *domain.Fields {
	if a.text == nil || strings.TrimSpace(raw) == "" {
		return nil
	}

	ctx, cancel := a.callContext(ctx)
	defer cancel()

	start := time.Now()
	got, err := a.text.ExtractFields(ctx, raw)
	if err != nil {
		a.metrics.ObserveExtraction("text", "error", time.Since(start))
		a.log.Warn().Err(err).Msg("text extraction failed")
		return nil
	}

	clean := a.validate(got)
	if clean == nil {
		a.metrics.ObserveExtraction("text", "empty", time.Since(start))
		return nil
	}
	a.metrics.ObserveExtraction("text", "ok", time.Since(start))
	return clean
}

// Image extracts a canonical expiration date from image bytes, or "".
func (a *Adapter) Image(ctx context.Context, image []byte) string {
	if a.image == nil || len(image) == 0 {
		return ""
	}

	ctx, cancel := a.callContext(ctx)
	defer cancel()

	start := time.Now()
	raw, err := a.image.ExtractDate(ctx, image)
	if err != nil {
		a.metrics.ObserveExtraction("image", "error", time.Since(start))
		a.log.Warn().Err(err).Int("bytes", len(image)).Msg("image extraction failed")
		return ""
	}

	date := a.dates.Normalize(raw)
	if date == "" {
		a.metrics.ObserveExtraction("image", "empty", time.Since(start))
		a.log.Debug().Str("raw", raw).Msg("no date read from image")
		return ""
	}
	a.metrics.ObserveExtraction("image", "ok", time.Since(start))
	return date
}

// validate keeps only the fields that survive the product heuristics,
// date normalization and the lead-time range.
func (a *Adapter) validate(f *domain.Fields) *domain.Fields {
	if f == nil {
		return nil
	}
	out := &domain.Fields{
		Product: CleanProduct(f.Product),
	}
	if f.ExpiresOn != "" {
		out.ExpiresOn = a.dates.Normalize(f.ExpiresOn)
	}
	if f.LeadDays != nil && ValidLeadDays(*f.LeadDays) {
		out.LeadDays = domain.Days(*f.LeadDays)
	}
	if out.Empty() {
		return nil
	}
	return out
}

// ValidLeadDays reports whether n is an acceptable lead-time.
func ValidLeadDays(n int) bool {
	return n >= 0 && n <= domain.MaxLeadDays
}

// maxProductRunes caps product names; longer text is a sentence, not a name.
const maxProductRunes = 80

// CleanProduct trims and collapses whitespace in s and returns it when it
// looks like a product name, else "". A name has at least two runes and a
// vowel, which also rules out purely numeric text.
func CleanProduct(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	n := utf8.RuneCountInString(s)
	if n < 2 || n > maxProductRunes {
		return ""
	}
	folded := textnorm.Fold(strings.ToLower(s))
	if !strings.ContainsAny(folded, "aeiouy") {
		return ""
	}
	return s
}

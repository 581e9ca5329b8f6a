package llm

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/soyeahso/validade/internal/logging"
)

// Statuses worth another provider: auth, throttling and server trouble.
var retryStatus = map[int]bool{401: true, 403: true, 429: true, 500: true, 502: true, 503: true, 529: true}

// Error text that marks a transient failure when no status is known.
var retryHints = []string{"overloaded", "rate limit", "capacity", "timeout"}

// FailoverClient is a Client that walks a chain of model references
// through a Registry until one answers.
type FailoverClient struct {
	reg   *Registry
	chain []string
	log   *logging.Logger
}

// NewFailoverClient tries primary, then each fallback in order. Only
// retryable errors move the chain along.
func NewFailoverClient(reg *Registry, primary string, fallbacks []string, log *logging.Logger) *FailoverClient {
	return &FailoverClient{
		reg:   reg,
		chain: slices.Concat([]string{primary}, fallbacks),
		log:   log.Sub("failover"),
	}
}

func (f *FailoverClient) Name() string { return f.chain[0] }

func (f *FailoverClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	var errs []error
	for _, model := range f.chain {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		client, err := f.reg.Resolve(model)
		if err != nil {
			f.log.Debug().Str("model", model).Err(err).Msg("model unresolved")
			errs = append(errs, err)
			continue
		}

		req.Model = model
		resp, err := client.Complete(ctx, req)
		switch {
		case err == nil:
			return resp, nil
		case !isRetryable(err):
			return nil, err
		}
		f.log.Warn().Str("model", model).Str("provider", client.Name()).Err(err).Msg("provider failed, moving on")
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) && retryStatus[pe.Code] {
		return true
	}
	msg := strings.ToLower(err.Error())
	return slices.ContainsFunc(retryHints, func(h string) bool { return strings.Contains(msg, h) })
}

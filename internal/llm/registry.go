package llm

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/soyeahso/validade/internal/config"
	"github.com/soyeahso/validade/internal/logging"
)

// ProviderError is a provider answering with a non-2xx status, or
// failing in a way failover should see.
type ProviderError struct {
	Provider string
	Message  string
	Code     int // HTTP status, 0 when not an HTTP failure
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Registry maps model references to provider clients. A reference is a
// provider name, an alias of one, or anything else when a fallback is
// set.
type Registry struct {
	log *logging.Logger

	mu       sync.RWMutex
	clients  map[string]Client
	aliases  map[string]string
	fallback string
}

func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		log:     log.Sub("llm.registry"),
		clients: make(map[string]Client),
		aliases: make(map[string]string),
	}
}

func (r *Registry) Register(name string, client Client) {
	r.mu.Lock()
	r.clients[name] = client
	r.mu.Unlock()
	r.log.Info().Str("provider", name).Str("type", client.Name()).Msg("registered LLM provider")
}

// Alias makes model resolve to provider.
func (r *Registry) Alias(model, provider string) {
	r.mu.Lock()
	r.aliases[model] = provider
	r.mu.Unlock()
}

// SetFallback names the provider for references nothing else matches.
func (r *Registry) SetFallback(provider string) {
	r.mu.Lock()
	r.fallback = provider
	r.mu.Unlock()
}

func (r *Registry) Resolve(model string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range []string{model, r.aliases[model], r.fallback} {
		if c, ok := r.clients[name]; ok && name != "" {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no LLM provider for model %q", model)
}

// List returns the provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.clients))
}

func (r *Registry) Empty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients) == 0
}

// builtinAliases are the model family names each provider type answers
// to without configuration.
var builtinAliases = map[string][]string{
	"claude": {"sonnet", "opus", "haiku", "claude-sonnet", "claude-opus", "claude-haiku"},
	"gemini": {"gemini-pro", "gemini-flash"},
	"ollama": {"llama", "llama3", "llava", "mistral"},
}

// providerType is the configured type, or the provider's name when the
// type is left out ("claude:" needs no "type: claude").
func providerType(name string, p config.LLMProviderConfig) string {
	return cmp.Or(p.Type, name)
}

// NewClient builds the HTTP client for one configured provider.
func NewClient(name string, p config.LLMProviderConfig) (Client, error) {
	typ := providerType(name, p)
	_, known := builtinAliases[typ]
	needKey := typ == "claude" || typ == "gemini"
	switch {
	case !known:
		return nil, fmt.Errorf("provider %s: unknown type %q", name, typ)
	case needKey && (p.APIKey == "" || p.Model == ""):
		return nil, fmt.Errorf("provider %s: %s needs apiKey and model", name, typ)
	case p.Model == "":
		return nil, fmt.Errorf("provider %s: %s needs a model", name, typ)
	}

	switch typ {
	case "claude":
		return NewClaudeAPIClient(p.APIKey, p.Model, p.Endpoint), nil
	case "gemini":
		return NewGeminiAPIClient(p.APIKey, p.Model, p.Endpoint), nil
	default:
		return NewOllamaAPIClient(p.Endpoint, p.Model), nil
	}
}

// NewRegistryFromConfig registers every usable provider in cfg, with
// its built-in and configured aliases. Incomplete providers are logged
// and skipped.
func NewRegistryFromConfig(cfg config.LLMConfig, log *logging.Logger) *Registry {
	reg := NewRegistry(log)
	for name, p := range cfg.Providers {
		client, err := NewClient(name, p)
		if err != nil {
			reg.log.Warn().Err(err).Msg("skipping LLM provider")
			continue
		}
		reg.Register(name, client)
		for _, alias := range slices.Concat(builtinAliases[providerType(name, p)], p.Aliases) {
			reg.Alias(alias, name)
		}
	}
	if cfg.Primary != "" {
		reg.SetFallback(cfg.Primary)
	}
	return reg
}

// Package llm provides a unified client interface over chat completion
// providers, selected by name from a registry.
package llm

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Provider names accepted by the registry.
const (
	ProviderMiniMax   = "minimax"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

const (
	defaultTemperature = 0.3
	defaultMaxTokens   = 4096
)

var (
	// ErrNotConfigured is returned when a provider is selected but its
	// API key is missing.
	ErrNotConfigured = errors.New("provider not configured")

	// ErrUnknownProvider is returned for provider names outside the registry.
	ErrUnknownProvider = errors.New("unknown provider")
)

// Options controls a single completion request. Zero values take the
// defaults (temperature 0.3, 4096 max tokens).
type Options struct {
	Temperature float64
	MaxTokens   int
}

func (o Options) withDefaults() Options {
	if o.Temperature == 0 {
		o.Temperature = defaultTemperature
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = defaultMaxTokens
	}
	return o
}

// Response is the normalized completion result from any provider.
type Response struct {
	Content      string
	Model        string
	Provider     string
	FinishReason string
}

// Provider is a chat completion backend.
type Provider interface {
	// Name identifies the provider ("minimax", "openai", "anthropic").
	Name() string
	// Available reports whether the provider has credentials configured.
	Available() bool
	// Complete sends one system+user prompt pair and returns the
	// normalized response.
	Complete(ctx context.Context, systemPrompt, userPrompt string, opts Options) (*Response, error)
}

// ProviderConfig holds the connection settings for one provider.
// Model and BaseURL fall back to provider defaults when empty.
type ProviderConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Registry selects providers by name.
type Registry struct {
	providers   map[string]Provider
	defaultName string
}

// NewRegistry builds a registry over the given providers. defaultName
// is used when Provider is called with an empty name.
func NewRegistry(defaultName string, providers ...Provider) *Registry {
	r := &Registry{
		providers:   make(map[string]Provider, len(providers)),
		defaultName: defaultName,
	}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Provider returns the named provider, or the default when name is
// empty. Unknown names and providers without credentials are errors.
func (r *Registry) Provider(name string) (Provider, error) {
	if name == "" {
		name = r.defaultName
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	if !p.Available() {
		return nil, fmt.Errorf("provider %s: %w", name, ErrNotConfigured)
	}
	return p, nil
}

// Available lists the registered providers that have credentials.
func (r *Registry) Available() []string {
	names := []string{}
	for _, name := range slices.Sorted(maps.Keys(r.providers)) {
		if r.providers[name].Available() {
			names = append(names, name)
		}
	}
	return names
}

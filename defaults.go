package llmstream

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed config/providers.yaml
var providerDefaultsYAML []byte

// EndpointDefaults holds the wire-level constants for one built-in provider.
type EndpointDefaults struct {
	BaseURL string `yaml:"base_url"`

	// VersionHeader is the protocol version header value, when the provider
	// requires one (Anthropic's anthropic-version)
	VersionHeader string `yaml:"version_header"`

	// DefaultMaxTokens is applied when the request does not set max_tokens
	// and the provider rejects requests without it (Anthropic)
	DefaultMaxTokens int `yaml:"default_max_tokens"`
}

type defaultsFile struct {
	Providers map[string]EndpointDefaults `yaml:"providers"`
}

// DefaultsRegistry manages the embedded provider endpoint defaults.
type DefaultsRegistry struct {
	defaults map[ProviderID]EndpointDefaults
	mu       sync.RWMutex
}

var (
	globalDefaults     *DefaultsRegistry
	globalDefaultsOnce sync.Once
)

// GetDefaultsRegistry returns the global endpoint defaults registry (singleton).
func GetDefaultsRegistry() *DefaultsRegistry {
	globalDefaultsOnce.Do(func() {
		globalDefaults = &DefaultsRegistry{
			defaults: make(map[ProviderID]EndpointDefaults),
		}
		if err := globalDefaults.loadEmbedded(); err != nil {
			// Don't panic on a bad embed - requests carrying an explicit
			// BaseURL still work; the rest fail with InvalidBaseUrl.
			fmt.Printf("Warning: failed to load provider defaults: %v\n", err)
		}
	})
	return globalDefaults
}

func (r *DefaultsRegistry) loadEmbedded() error {
	var f defaultsFile
	if err := yaml.Unmarshal(providerDefaultsYAML, &f); err != nil {
		return fmt.Errorf("failed to unmarshal provider defaults: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for name, d := range f.Providers {
		r.defaults[ProviderID(name)] = d
	}
	return nil
}

// Get returns the endpoint defaults for a provider. The zero value is
// returned for identifiers without embedded defaults (custom endpoints).
func (r *DefaultsRegistry) Get(p ProviderID) EndpointDefaults {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaults[p]
}

// Set overrides the defaults for a provider. Intended for tests and for
// callers pointing a built-in provider at a proxy.
func (r *DefaultsRegistry) Set(p ProviderID, d EndpointDefaults) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults[p] = d
}

// ResolveBaseURL returns the request's explicit base URL, or the provider's
// embedded default when unset.
func (r *StreamRequest) ResolveBaseURL() string {
	if r.BaseURL != "" {
		return r.BaseURL
	}
	return GetDefaultsRegistry().Get(r.Provider).BaseURL
}

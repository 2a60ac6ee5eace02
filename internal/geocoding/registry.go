package geocoding

import (
	"slices"
	"sync"
	"time"
)

// Built-in provider names.
const (
	ProviderNominatim = "nominatim"
	ProviderGeoapify  = "geoapify"
	ProviderGeocodify = "geocodify"
	ProviderGoogle    = "google"
	ProviderMapbox    = "mapbox"
)

// ProviderConfig holds the static configuration of one provider. It is loaded once at
// startup and never mutated afterwards. Zero values fall back to the adapter defaults.
type ProviderConfig struct {
	Adapter               string            // Registered adapter kind, for custom-named providers
	BaseURL               string            // Forward search endpoint
	ReverseBaseURL        string            // Reverse endpoint, falls back to the adapter default, then BaseURL
	APIKey                string            // API key, optional for some providers
	APIKeyParam           string            // Query parameter carrying the API key
	APIKeyEnv             string            // Environment variable the key comes from, for error messages
	MinDebounceDelay      *time.Duration    // Minimum delay between outbound requests, nil keeps the default
	ExcludeFields         []string          // Added to the adapter's default exclusions, never replaces them
	FreeformSearchKey     string            // Query parameter carrying the free-text query
	RequestOptions        map[string]string // Static parameters added to search requests
	ReverseRequestOptions map[string]string // Static parameters added to reverse requests
}

// Factory creates an adapter for a provider name from its configuration.
type Factory func(name string, cfg ProviderConfig) (Adapter, error)

// Registry maps provider names to adapter factories. It is built explicitly and passed
// by reference; there is no package-level registry.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// NewDefaultRegistry returns a registry with every built-in provider registered:
// nominatim, geoapify, geocodify, google and mapbox.
func NewDefaultRegistry() *Registry {
	reg := NewRegistry()
	builtins := map[string]Factory{
		ProviderNominatim: func(name string, cfg ProviderConfig) (Adapter, error) {
			return NewNominatimAdapter(name, cfg), nil
		},
		ProviderGeoapify: func(name string, cfg ProviderConfig) (Adapter, error) {
			return NewGeoapifyAdapter(name, cfg), nil
		},
		ProviderGeocodify: func(name string, cfg ProviderConfig) (Adapter, error) {
			return NewGeocodifyAdapter(name, cfg), nil
		},
		ProviderGoogle: func(name string, cfg ProviderConfig) (Adapter, error) {
			return NewGoogleAdapter(name, cfg), nil
		},
		ProviderMapbox: func(name string, cfg ProviderConfig) (Adapter, error) {
			return NewMapboxAdapter(name, cfg), nil
		},
	}
	for name, factory := range builtins {
		// cannot fail: names are non-empty and factories non-nil
		_ = reg.Register(name, factory)
	}

	return reg
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return &InvalidProviderError{Name: name, Reason: "provider name is empty"}
	}
	if factory == nil {
		return &InvalidProviderError{Name: name, Reason: "factory is nil"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory

	return nil
}

// Has reports whether a factory is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]

	return ok
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)

	return names
}

// Make creates the adapter for name. When cfg.Adapter is set, the factory registered
// under that kind is used instead, so a custom-named provider can reuse a built-in adapter.
//
// Returns *UnknownProviderError when name is not registered, and *InvalidProviderError
// when cfg.Adapter refers to an unregistered kind or the factory produces no adapter.
func (r *Registry) Make(name string, cfg ProviderConfig) (Adapter, error) {
	kind := name
	if cfg.Adapter != "" {
		kind = cfg.Adapter
	}

	r.mu.RLock()
	factory, ok := r.factories[kind]
	r.mu.RUnlock()

	if !ok {
		if cfg.Adapter != "" {
			return nil, &InvalidProviderError{Name: name, Reason: "adapter '" + cfg.Adapter + "' is not registered"}
		}
		return nil, &UnknownProviderError{Name: name, Available: r.Names()}
	}

	adapter, err := factory(name, cfg)
	if err != nil {
		return nil, &InvalidProviderError{Name: name, Reason: err.Error()}
	}
	if adapter == nil {
		return nil, &InvalidProviderError{Name: name, Reason: "factory returned no adapter"}
	}

	return adapter, nil
}

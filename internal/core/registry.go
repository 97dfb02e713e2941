package core

import (
	"context"
	"sort"
	"sync"
)

// CoreResolver is implemented by every server core provider client.
type CoreResolver interface {
	// Provider returns the provider tag this client serves.
	Provider() Provider

	// ResolveCore maps a desired core to a concrete download.
	ResolveCore(ctx context.Context, spec CoreSpec) (*Target, error)

	// URLs returns the URL builder for this provider.
	URLs() URLBuilder
}

// PluginResolver is implemented by every plugin index client.
type PluginResolver interface {
	// Source returns the source tag this client serves.
	Source() Source

	// ResolvePlugin maps a desired plugin to a concrete download compatible with platform.
	ResolvePlugin(ctx context.Context, spec PluginSpec, platform Platform) (*Target, error)

	// URLs returns the URL builder for this index.
	URLs() URLBuilder
}

// CoreFactory creates a core provider client for a given base URL.
type CoreFactory func(baseURL string, client *Client) CoreResolver

// SourceFactory creates a plugin index client for a given base URL.
type SourceFactory func(baseURL string, client *Client) PluginResolver

type entry[F any] struct {
	factory    F
	defaultURL string
}

var (
	cores   = make(map[Provider]entry[CoreFactory])
	sources = make(map[Source]entry[SourceFactory])
	mu      sync.RWMutex
)

// RegisterCore adds a core provider factory. Several providers may share one
// implementation (paper, folia, waterfall and velocity do).
func RegisterCore(provider Provider, defaultURL string, factory CoreFactory) {
	mu.Lock()
	defer mu.Unlock()
	cores[provider] = entry[CoreFactory]{factory: factory, defaultURL: defaultURL}
}

// RegisterSource adds a plugin index factory.
func RegisterSource(source Source, defaultURL string, factory SourceFactory) {
	mu.Lock()
	defer mu.Unlock()
	sources[source] = entry[SourceFactory]{factory: factory, defaultURL: defaultURL}
}

// NewCore creates a client for the given provider.
// If baseURL is empty, the default URL is used. If client is nil, DefaultClient() is used.
func NewCore(provider Provider, baseURL string, client *Client) (CoreResolver, error) {
	mu.RLock()
	e, ok := cores[provider]
	mu.RUnlock()

	if !ok {
		return nil, &UnknownError{Kind: "provider", Name: string(provider), Err: ErrUnknownProvider}
	}
	if baseURL == "" {
		baseURL = e.defaultURL
	}
	if client == nil {
		client = DefaultClient()
	}
	return e.factory(baseURL, client), nil
}

// NewSource creates a client for the given plugin source.
func NewSource(source Source, baseURL string, client *Client) (PluginResolver, error) {
	mu.RLock()
	e, ok := sources[source]
	mu.RUnlock()

	if !ok {
		return nil, &UnknownError{Kind: "source", Name: string(source), Err: ErrUnknownSource}
	}
	if baseURL == "" {
		baseURL = e.defaultURL
	}
	if client == nil {
		client = DefaultClient()
	}
	return e.factory(baseURL, client), nil
}

// SupportedProviders returns all registered core providers, sorted.
func SupportedProviders() []Provider {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]Provider, 0, len(cores))
	for p := range cores {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SupportedSources returns all registered plugin sources, sorted.
func SupportedSources() []Source {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]Source, 0, len(sources))
	for s := range sources {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DefaultCoreURL returns the default API URL for a provider.
func DefaultCoreURL(provider Provider) string {
	mu.RLock()
	defer mu.RUnlock()
	return cores[provider].defaultURL
}

// DefaultSourceURL returns the default API URL for a plugin source.
func DefaultSourceURL(source Source) string {
	mu.RLock()
	defer mu.RUnlock()
	return sources[source].defaultURL
}

package fetch

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/git-pkgs/provision/client"
	"github.com/git-pkgs/provision/internal/core"
)

// Resolver determines download targets for the core and plugins by
// dispatching on the provider or source tag.
type Resolver struct {
	client  *client.Client
	mu      sync.Mutex
	cores   map[core.Provider]core.CoreResolver
	sources map[core.Source]core.PluginResolver
}

// NewResolver creates a resolver. Providers that were not registered
// explicitly are created on first use from the global provider registry
// with their default URL. If c is nil, client.DefaultClient() is used.
func NewResolver(c *client.Client) *Resolver {
	if c == nil {
		c = client.DefaultClient()
	}
	return &Resolver{
		client:  c,
		cores:   make(map[core.Provider]core.CoreResolver),
		sources: make(map[core.Source]core.PluginResolver),
	}
}

// RegisterCore adds a core provider client, replacing any previous one for the same provider.
func (r *Resolver) RegisterCore(c core.CoreResolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cores[c.Provider()] = c
}

// RegisterSource adds a plugin index client.
func (r *Resolver) RegisterSource(s core.PluginResolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[s.Source()] = s
}

// ResolveCore returns the download target of the desired core.
// Every failure is a *core.ResolutionError.
func (r *Resolver) ResolveCore(ctx context.Context, spec core.CoreSpec) (*core.Target, error) {
	item := "core " + string(spec.Provider)

	c, err := r.coreFor(spec.Provider)
	if err != nil {
		return nil, &core.ResolutionError{Item: item, Err: err}
	}
	target, err := c.ResolveCore(ctx, spec)
	if err != nil {
		return nil, &core.ResolutionError{Item: item, Err: err}
	}
	return target, nil
}

// ResolvePlugin returns the download target of a desired plugin for platform.
// Every failure is a *core.ResolutionError.
func (r *Resolver) ResolvePlugin(ctx context.Context, spec core.PluginSpec, platform core.Platform) (*core.Target, error) {
	item := "plugin " + spec.Name

	if spec.Source == core.URL {
		target, err := resolveWithoutRegistry(spec)
		if err != nil {
			return nil, &core.ResolutionError{Item: item, Err: err}
		}
		return target, nil
	}

	s, err := r.sourceFor(spec.Source)
	if err != nil {
		return nil, &core.ResolutionError{Item: item, Err: err}
	}
	target, err := s.ResolvePlugin(ctx, spec, platform)
	if err != nil {
		return nil, &core.ResolutionError{Item: item, Err: err}
	}
	return target, nil
}

func (r *Resolver) coreFor(p core.Provider) (core.CoreResolver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.cores[p]; ok {
		return c, nil
	}
	c, err := core.NewCore(p, "", r.client)
	if err != nil {
		return nil, err
	}
	r.cores[p] = c
	return c, nil
}

func (r *Resolver) sourceFor(s core.Source) (core.PluginResolver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.sources[s]; ok {
		return p, nil
	}
	p, err := core.NewSource(s, "", r.client)
	if err != nil {
		return nil, err
	}
	r.sources[s] = p
	return p, nil
}

// resolveWithoutRegistry handles plugins pinned to a direct link. The hash
// doubles as the build identifier, so changing it in the configuration
// triggers a refetch; unhashed links fall back to the link itself.
func resolveWithoutRegistry(spec core.PluginSpec) (*core.Target, error) {
	if spec.URL == "" {
		return nil, fmt.Errorf("%w: url source without url", ErrNoDownloadURL)
	}

	build := spec.URL
	if !spec.Hash.IsZero() {
		build = spec.Hash.String()
	}
	return &core.Target{
		Link:     spec.URL,
		Hash:     spec.Hash,
		Build:    build,
		Version:  spec.Version,
		Filename: filenameFromURL(spec.URL),
	}, nil
}

func filenameFromURL(url string) string {
	if idx := strings.IndexAny(url, "?#"); idx >= 0 {
		url = url[:idx]
	}
	if idx := strings.LastIndex(url, "/"); idx >= 0 {
		return url[idx+1:]
	}
	return url
}

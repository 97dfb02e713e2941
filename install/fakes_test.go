package install

import (
	"context"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/git-pkgs/provision/fetch"
	"github.com/git-pkgs/provision/internal/core"
	"github.com/git-pkgs/provision/lock"
)

type fakeResolver struct {
	mu        sync.Mutex
	core      *core.Target
	coreErr   error
	plugins   map[string]*core.Target
	errs      map[string]error
	platforms map[string]core.Platform
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		core:      &core.Target{Link: "https://api.papermc.io/paper-196.jar", Build: "196", Version: "1.21.4"},
		plugins:   make(map[string]*core.Target),
		errs:      make(map[string]error),
		platforms: make(map[string]core.Platform),
	}
}

func (f *fakeResolver) plugin(name, build string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plugins[name] = &core.Target{
		Link:    "https://cdn.modrinth.com/" + name + "-" + build + ".jar",
		Build:   build,
		Version: build,
	}
}

func (f *fakeResolver) ResolveCore(_ context.Context, spec core.CoreSpec) (*core.Target, error) {
	if f.coreErr != nil {
		return nil, &core.ResolutionError{Item: "core " + string(spec.Provider), Err: f.coreErr}
	}
	t := *f.core
	return &t, nil
}

func (f *fakeResolver) ResolvePlugin(_ context.Context, spec core.PluginSpec, platform core.Platform) (*core.Target, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.platforms[spec.Name] = platform
	if err, ok := f.errs[spec.Name]; ok {
		return nil, &core.ResolutionError{Item: "plugin " + spec.Name, Err: err}
	}
	t, ok := f.plugins[spec.Name]
	if !ok {
		return nil, &core.ResolutionError{Item: "plugin " + spec.Name, Err: core.ErrNotFound}
	}
	out := *t
	return &out, nil
}

// fakeTransport serves bytes from memory and writes through a real transport.
type fakeTransport struct {
	disk     *fetch.Transport
	mu       sync.Mutex
	fetches  map[string]int
	writes   map[string]int
	failing  map[string]error
	maxDelay time.Duration
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		disk:    fetch.NewTransport(nil),
		fetches: make(map[string]int),
		writes:  make(map[string]int),
		failing: make(map[string]error),
	}
}

func (f *fakeTransport) FetchVerified(ctx context.Context, link string, _ core.Hash) ([]byte, error) {
	if f.maxDelay > 0 {
		select {
		case <-time.After(rand.N(f.maxDelay)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches[link]++
	if err, ok := f.failing[link]; ok {
		return nil, err
	}
	return []byte(link), nil
}

func (f *fakeTransport) WriteArtifact(data []byte, path string) error {
	f.mu.Lock()
	f.writes[path]++
	f.mu.Unlock()
	return f.disk.WriteArtifact(data, path)
}

func (f *fakeTransport) RemoveArtifact(path string) error {
	return f.disk.RemoveArtifact(path)
}

func (f *fakeTransport) totalFetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.fetches {
		n += c
	}
	return n
}

func (f *fakeTransport) totalWrites() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.writes {
		n += c
	}
	return n
}

type harness struct {
	dir       string
	resolver  *fakeResolver
	transport *fakeTransport
	store     *lock.Store
	events    *Recorder
	installer *Installer
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	dir := t.TempDir()
	store, err := lock.Open(filepath.Join(dir, "provision.lock"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	h := &harness{
		dir:       dir,
		resolver:  newFakeResolver(),
		transport: newFakeTransport(),
		store:     store,
		events:    &Recorder{},
	}
	layout := Layout{CoreDir: dir, PluginsDir: filepath.Join(dir, "plugins")}
	opts = append([]Option{WithSink(h.events), WithLayout(layout)}, opts...)
	h.installer = New(h.resolver, h.transport, h.store, opts...)
	return h
}

func paperCore() core.CoreSpec {
	return core.CoreSpec{Provider: core.Paper, Version: core.LatestVersion}
}

func modrinthPlugin(name string) core.PluginSpec {
	return core.PluginSpec{Name: name, Source: core.Modrinth, ID: name, Version: core.LatestVersion}
}

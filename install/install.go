// Package install runs a provisioning pass: it resolves the desired core and
// plugins, decides which need fetching, and fetches, verifies, writes and
// records them.
//
// The core is processed first and any failure there aborts the pass. Plugins
// are planned sequentially and fetched concurrently; a failing plugin never
// affects the others. All lock mutation goes through the LockStore gate.
package install

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/git-pkgs/provision/internal/core"
	"github.com/git-pkgs/provision/lock"
	"github.com/git-pkgs/provision/reconcile"
)

// DefaultConcurrency bounds parallel plugin fetches.
const DefaultConcurrency = 8

// Desired is the full desired state of an installation.
type Desired struct {
	Core    core.CoreSpec
	Plugins []core.PluginSpec
	// Prune removes recorded plugins that are no longer desired.
	Prune bool
}

// Installer runs provisioning passes.
type Installer struct {
	resolver    Resolver
	transport   Transport
	store       LockStore
	sink        Sink
	layout      Layout
	concurrency int
	logger      zerolog.Logger
}

// Option configures an Installer.
type Option func(*Installer)

// WithSink sets the status sink. The default discards events.
func WithSink(s Sink) Option {
	return func(i *Installer) {
		if s != nil {
			i.sink = s
		}
	}
}

// WithLayout sets where artifacts are written.
func WithLayout(l Layout) Option {
	return func(i *Installer) {
		i.layout = l
	}
}

// WithConcurrency bounds parallel plugin fetches. Zero or less means unbounded.
func WithConcurrency(n int) Option {
	return func(i *Installer) {
		i.concurrency = n
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(i *Installer) {
		i.logger = l
	}
}

// New creates an Installer over the given ports.
func New(resolver Resolver, transport Transport, store LockStore, opts ...Option) *Installer {
	i := &Installer{
		resolver:    resolver,
		transport:   transport,
		store:       store,
		sink:        discard{},
		layout:      DefaultLayout(),
		concurrency: DefaultConcurrency,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Run installs the core and then the plugins. Plugins are resolved for the
// core's loader and the game version recorded for the core after it ran.
//
// The returned error is the core failure if the core failed, otherwise the
// joined plugin failures. The report is always returned.
func (i *Installer) Run(ctx context.Context, desired Desired) (*Report, error) {
	report := &Report{}

	coreResult, err := i.InstallCore(ctx, desired.Core)
	report.Core = &coreResult
	if err != nil {
		return report, err
	}

	platform := core.Platform{
		Loader:      desired.Core.Provider.Loader(),
		GameVersion: coreResult.Version,
	}
	i.logger.Debug().
		Str("loader", platform.Loader).
		Str("game_version", platform.GameVersion).
		Int("plugins", len(desired.Plugins)).
		Msg("installing plugins")

	report.Plugins = i.InstallPlugins(ctx, desired.Plugins, platform)

	if desired.Prune {
		keep := make([]string, 0, len(desired.Plugins))
		for _, p := range desired.Plugins {
			keep = append(keep, p.Name)
		}
		report.Pruned = i.Prune(ctx, keep)
	}

	return report, report.Err()
}

// InstallCore reconciles the server core. Any error is fatal to the pass;
// the previously installed core stays in place when fetching fails.
func (i *Installer) InstallCore(ctx context.Context, spec core.CoreSpec) (ItemResult, error) {
	it := i.track(string(spec.Provider), KindCore)
	it.emit(StatusResolving, describeCore(spec))

	target, err := i.resolver.ResolveCore(ctx, spec)
	if err != nil {
		return it.fail(err), err
	}
	it.result.Build = target.Build
	it.result.Version = target.Version
	if it.result.Version == "" {
		it.result.Version = spec.Version
	}

	recorded := i.store.Read().Core
	current := installedCore(recorded, spec.Provider, target.Version)

	decision := reconcile.Decide(reconcile.Flags{Freeze: spec.Freeze, ForceUpdate: spec.ForceUpdate}, target.Build, current)
	it.result.Reason = decision.Reason
	if !decision.Fetch() {
		if recorded.Version != "" && current != nil {
			it.result.Version = recorded.Version
			it.result.Build = recorded.Build
		}
		it.result.Path = recorded.Path
		return it.skip(), nil
	}

	data, err := i.fetch(ctx, it, target)
	if err != nil {
		return it.fail(err), err
	}

	path := i.layout.CorePath(spec.Provider)
	it.result.Path = path
	it.advance(Replacing, StatusSaving, path)
	if err := i.transport.WriteArtifact(data, path); err != nil {
		return it.fail(err), err
	}

	meta := lock.CoreMeta{
		Provider: string(spec.Provider),
		Version:  it.result.Version,
		Build:    target.Build,
		Path:     path,
	}
	it.emit(StatusCommitting, target.Build)
	if err := i.store.Commit(func(tx *lock.Tx) error {
		tx.UpdateCore(meta)
		return nil
	}); err != nil {
		return it.fail(err), err
	}

	// A provider switch leaves the old binary under a different name.
	if recorded.Path != "" && recorded.Path != path {
		it.emit(StatusRemoving, recorded.Path)
		if err := i.transport.RemoveArtifact(recorded.Path); err != nil {
			i.logger.Warn().Err(err).Str("path", recorded.Path).Msg("could not remove previous core")
		}
	}

	return it.commit(), nil
}

type work struct {
	index  int
	spec   core.PluginSpec
	target *core.Target
	it     *tracked
}

// InstallPlugins reconciles plugins for platform and returns one result per
// spec, in input order.
//
// Planning is sequential against a single lock snapshot. Items that need a
// fetch then run concurrently; each one goes fetch, verify, remove previous,
// write, commit in that order.
func (i *Installer) InstallPlugins(ctx context.Context, specs []core.PluginSpec, platform core.Platform) []ItemResult {
	results := make([]ItemResult, len(specs))
	snapshot := i.store.Read()
	seen := make(map[string]bool, len(specs))

	var queue []work
	for idx, spec := range specs {
		it := i.track(spec.Name, KindPlugin)
		it.emit(StatusResolving, describePlugin(spec))

		if seen[spec.Name] {
			results[idx] = it.fail(fmt.Errorf("plugin %s is listed more than once", spec.Name))
			continue
		}
		seen[spec.Name] = true

		target, err := i.resolver.ResolvePlugin(ctx, spec, platform)
		if err != nil {
			results[idx] = it.fail(err)
			continue
		}
		it.result.Build = target.Build
		it.result.Version = target.Version

		current := installedPlugin(snapshot, spec.Name)
		if current != nil {
			it.result.Path = snapshot.Plugins[spec.Name].Path
		}

		decision := reconcile.Decide(reconcile.Flags{Freeze: spec.Freeze, ForceUpdate: spec.ForceUpdate}, target.Build, current)
		it.result.Reason = decision.Reason
		if !decision.Fetch() {
			if current != nil {
				it.result.Build = current.Build
			}
			results[idx] = it.skip()
			continue
		}
		queue = append(queue, work{index: idx, spec: spec, target: target, it: it})
	}

	i.logger.Debug().Int("planned", len(specs)).Int("queued", len(queue)).Msg("plugin plan ready")

	var g errgroup.Group
	if i.concurrency > 0 {
		g.SetLimit(i.concurrency)
	}
	for _, w := range queue {
		g.Go(func() error {
			results[w.index] = i.installPlugin(ctx, w)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (i *Installer) installPlugin(ctx context.Context, w work) ItemResult {
	it := w.it

	data, err := i.fetch(ctx, it, w.target)
	if err != nil {
		return it.fail(err)
	}

	path := i.layout.PluginPath(w.spec.Name)
	it.result.Path = path
	it.enter(Replacing)

	// Drop the stale entry before its file so the record never names a
	// missing artifact.
	err = i.store.Exclusive(func(tx *lock.Tx) error {
		prev, ok := tx.Read().Plugin(w.spec.Name)
		if !ok {
			return nil
		}
		it.emit(StatusRemoving, prev.Path)
		tx.RemovePlugin(w.spec.Name)
		if err := tx.Persist(); err != nil {
			return err
		}
		return i.transport.RemoveArtifact(prev.Path)
	})
	if err != nil {
		return it.fail(err)
	}

	it.emit(StatusSaving, path)
	if err := i.transport.WriteArtifact(data, path); err != nil {
		return it.fail(err)
	}

	it.emit(StatusCommitting, w.target.Build)
	meta := lock.PluginMeta{Name: w.spec.Name, Build: w.target.Build, Path: path}
	if err := i.store.Commit(func(tx *lock.Tx) error {
		tx.UpsertPlugin(meta)
		return nil
	}); err != nil {
		return it.fail(err)
	}
	return it.commit()
}

// Prune removes every recorded plugin whose name is not in keep. The lock
// entry is dropped and persisted before the file is deleted.
func (i *Installer) Prune(ctx context.Context, keep []string) []ItemResult {
	wanted := make(map[string]bool, len(keep))
	for _, name := range keep {
		wanted[name] = true
	}

	var stale []string
	for _, name := range i.store.Read().PluginNames() {
		if !wanted[name] {
			stale = append(stale, name)
		}
	}
	sort.Strings(stale)

	results := make([]ItemResult, 0, len(stale))
	for _, name := range stale {
		if err := ctx.Err(); err != nil {
			it := i.track(name, KindPlugin)
			it.result.Reason = reconcile.Remove
			results = append(results, it.fail(err))
			continue
		}
		results = append(results, i.prune(name))
	}
	return results
}

func (i *Installer) prune(name string) ItemResult {
	it := i.track(name, KindPlugin)
	it.result.Reason = reconcile.Remove

	err := i.store.Exclusive(func(tx *lock.Tx) error {
		prev, ok := tx.Read().Plugin(name)
		if !ok {
			return nil
		}
		it.result.Build = prev.Build
		it.result.Path = prev.Path
		it.emit(StatusRemoving, prev.Path)
		tx.RemovePlugin(name)
		if err := tx.Persist(); err != nil {
			return err
		}
		return i.transport.RemoveArtifact(prev.Path)
	})
	if err != nil {
		return it.fail(err)
	}

	it.result.State = Committed
	it.emit(StatusDone, string(reconcile.Remove))
	return it.result
}

// fetch moves it through Fetching and Verifying.
func (i *Installer) fetch(ctx context.Context, it *tracked, target *core.Target) ([]byte, error) {
	it.advance(Fetching, StatusFetching, target.Link)
	data, err := i.transport.FetchVerified(ctx, target.Link, target.Hash)
	if err != nil {
		return nil, err
	}
	it.advance(Verifying, StatusVerifying, target.Hash.String())
	i.logger.Debug().
		Str("item", it.result.Name).
		Str("link", target.Link).
		Int("bytes", len(data)).
		Msg("artifact verified")
	return data, nil
}

// installedCore returns the recorded core as seen by the reconciler, or nil
// when the record belongs to another provider. A record of another game
// version carries no build, so it never matches the resolved one.
func installedCore(recorded lock.CoreMeta, provider core.Provider, version string) *reconcile.Installed {
	if recorded.IsZero() || recorded.Provider != string(provider) {
		return nil
	}
	if version != "" && recorded.Version != "" && recorded.Version != version {
		return &reconcile.Installed{}
	}
	return &reconcile.Installed{Build: recorded.Build}
}

func installedPlugin(state lock.State, name string) *reconcile.Installed {
	meta, ok := state.Plugin(name)
	if !ok {
		return nil
	}
	return &reconcile.Installed{Build: meta.Build}
}

func describeCore(spec core.CoreSpec) string {
	v := spec.Version
	if core.IsLatest(v) {
		v = core.LatestVersion
	}
	return string(spec.Provider) + " " + v
}

func describePlugin(spec core.PluginSpec) string {
	if spec.Source == core.URL {
		return spec.URL
	}
	v := spec.Version
	if core.IsLatest(v) {
		v = core.LatestVersion
	}
	return fmt.Sprintf("%s %s %s", spec.Source, spec.ID, v)
}

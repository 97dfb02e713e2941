// Package provision installs a game server core and its plugins from
// remote providers and keeps a lock record of what is installed, so that
// repeated runs only download what changed.
//
// Basic usage:
//
//	import (
//		"context"
//		"github.com/git-pkgs/provision"
//		"github.com/git-pkgs/provision/config"
//		_ "github.com/git-pkgs/provision/all"
//	)
//
//	cfg, err := config.Load("provision.toml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	report, err := provision.Run(context.Background(), cfg, zerolog.Nop())
//	report.Render(os.Stdout)
//
// Providers register themselves on import. Import the all subpackage, or
// only the providers you need, before calling Run.
package provision

import (
	"context"
	"net/url"
	"strings"

	"github.com/git-pkgs/purl"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/git-pkgs/provision/client"
	"github.com/git-pkgs/provision/config"
	"github.com/git-pkgs/provision/fetch"
	"github.com/git-pkgs/provision/install"
	"github.com/git-pkgs/provision/internal/core"
	"github.com/git-pkgs/provision/lock"
)

// Re-export types from internal/core
type (
	// Provider names a server core distribution.
	Provider = core.Provider

	// Source names a plugin index.
	Source = core.Source

	// CoreSpec is the desired server core.
	CoreSpec = core.CoreSpec

	// PluginSpec is one desired plugin.
	PluginSpec = core.PluginSpec

	// Platform is what plugins are resolved against.
	Platform = core.Platform

	// Target is a resolved download.
	Target = core.Target

	// Hash is an expected artifact digest.
	Hash = core.Hash

	// CoreResolver is implemented by every core provider client.
	CoreResolver = core.CoreResolver

	// PluginResolver is implemented by every plugin index client.
	PluginResolver = core.PluginResolver
)

// Re-export types from client
type (
	// Client is an HTTP client with retry logic for provider APIs.
	Client = client.Client

	// URLBuilder constructs URLs for a provider.
	URLBuilder = client.URLBuilder

	// RateLimiter controls request pacing.
	RateLimiter = client.RateLimiter
)

// Re-export installer types
type (
	Desired    = install.Desired
	Report     = install.Report
	ItemResult = install.ItemResult
	Event      = install.Event
	Sink       = install.Sink
)

// Re-export errors
var (
	ErrNotFound          = core.ErrNotFound
	ErrUnknownProvider   = core.ErrUnknownProvider
	ErrUnknownSource     = core.ErrUnknownSource
	ErrNoMatchingVersion = core.ErrNoMatchingVersion
	ErrIntegrity         = core.ErrIntegrity
	ErrLockCorrupt       = core.ErrLockCorrupt
)

// Error types
type (
	HTTPError           = client.HTTPError
	RateLimitError      = client.RateLimitError
	NotFoundError       = core.NotFoundError
	ResolutionError     = core.ResolutionError
	TransportError      = core.TransportError
	IntegrityError      = core.IntegrityError
	IOError             = core.IOError
	LockCorruptionError = core.LockCorruptionError
)

// PURL represents a parsed Package URL.
type PURL = purl.PURL

// ParsePURL parses a Package URL string such as the ones URLBuilder.PURL returns.
func ParsePURL(purlStr string) (*PURL, error) {
	return purl.Parse(purlStr)
}

// NewCore creates a client for a core provider.
// If baseURL is empty, the default URL is used.
// If c is nil, DefaultClient() is used.
func NewCore(provider Provider, baseURL string, c *Client) (CoreResolver, error) {
	return core.NewCore(provider, baseURL, c)
}

// NewSource creates a client for a plugin index.
func NewSource(source Source, baseURL string, c *Client) (PluginResolver, error) {
	return core.NewSource(source, baseURL, c)
}

// DefaultClient returns a client with sensible defaults:
// - 30s timeout
// - 5 retries with exponential backoff
// - Retry on 429 and 5xx responses
func DefaultClient() *Client {
	return client.DefaultClient()
}

// NewClient builds the metadata client described by f.
func NewClient(f config.Fetch) *Client {
	opts := []client.Option{
		client.WithTimeout(f.Timeout),
		client.WithMaxRetries(f.Retries),
	}
	if f.RequestsPerSecond > 0 {
		burst := int(f.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		opts = append(opts, client.WithRateLimiter(rate.NewLimiter(rate.Limit(f.RequestsPerSecond), burst)))
	}
	c := client.NewClient(opts...)
	if f.UserAgent != "" {
		c = c.WithUserAgent(f.UserAgent)
	}
	return c
}

// NewFetcher builds the artifact fetcher described by f. Failures are
// grouped per host by a circuit breaker.
func NewFetcher(f config.Fetch) *fetch.CircuitBreakerFetcher {
	opts := []fetch.Option{fetch.WithMaxRetries(f.DownloadRetries)}
	if f.UserAgent != "" {
		opts = append(opts, fetch.WithUserAgent(f.UserAgent))
	}
	if len(f.Tokens) > 0 {
		opts = append(opts, fetch.WithAuthFunc(tokenAuth(f.Tokens)))
	}
	return fetch.NewCircuitBreakerFetcher(fetch.NewFetcher(opts...))
}

func tokenAuth(tokens map[string]string) func(string) (string, string) {
	return func(rawURL string) (string, string) {
		u, err := url.Parse(rawURL)
		if err != nil {
			return "", ""
		}
		if token, ok := tokens[strings.ToLower(u.Hostname())]; ok {
			return "Authorization", token
		}
		return "", ""
	}
}

// NewInstaller wires the configured clients, the given lock store and any
// extra options into an installer. Configured mirrors replace the default
// API URL of their provider or source.
func NewInstaller(cfg config.Config, store install.LockStore, opts ...install.Option) (*install.Installer, error) {
	return newInstaller(cfg, store, NewFetcher(cfg.Fetch), opts...)
}

func newInstaller(cfg config.Config, store install.LockStore, fetcher fetch.FetcherInterface, opts ...install.Option) (*install.Installer, error) {
	c := NewClient(cfg.Fetch)
	resolver := fetch.NewResolver(c)
	for name, baseURL := range cfg.Mirrors {
		if p, err := core.ParseProvider(name); err == nil {
			r, err := core.NewCore(p, baseURL, c)
			if err != nil {
				return nil, err
			}
			resolver.RegisterCore(r)
			continue
		}
		r, err := core.NewSource(core.Source(name), baseURL, c)
		if err != nil {
			return nil, err
		}
		resolver.RegisterSource(r)
	}
	transport := fetch.NewTransport(fetcher)

	all := append([]install.Option{
		install.WithLayout(cfg.Layout()),
		install.WithConcurrency(cfg.Fetch.Concurrency),
	}, opts...)
	return install.New(resolver, transport, store, all...), nil
}

// Run performs one provisioning pass for cfg. It holds the lock record for
// the duration of the pass and reports progress through logger.
func Run(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Report, error) {
	store, err := lock.Open(cfg.Paths.Lock)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	fetcher := NewFetcher(cfg.Fetch)
	inst, err := newInstaller(cfg, store, fetcher,
		install.WithSink(install.NewLogSink(logger)),
		install.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	report, err := inst.Run(ctx, cfg.Desired())
	for host, state := range fetcher.BreakerState() {
		if state != "closed" {
			logger.Warn().Str("host", host).Str("breaker", state).Msg("download host marked unavailable")
		}
	}
	return report, err
}

// Plan reports what Run would do for cfg without downloading anything.
func Plan(ctx context.Context, cfg config.Config) (*install.Plan, error) {
	store, err := lock.Open(cfg.Paths.Lock)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	inst, err := NewInstaller(cfg, store)
	if err != nil {
		return nil, err
	}
	return inst.Plan(ctx, cfg.Desired())
}

// SupportedProviders returns all registered core providers.
// Note: providers must be imported to be registered.
func SupportedProviders() []Provider {
	return core.SupportedProviders()
}

// SupportedSources returns all registered plugin sources.
func SupportedSources() []Source {
	return core.SupportedSources()
}

// BuildURLs returns a map of all non-empty URLs for a project.
// Keys are "project", "download", and "purl".
func BuildURLs(urls URLBuilder, name, version string) map[string]string {
	return client.BuildURLs(urls, name, version)
}

// Links returns the project page, download page and PURL of every planned
// item, keyed by item name. Resolved versions are used where plan has them.
// PURLs that do not parse are left out.
func Links(cfg config.Config, plan *install.Plan) map[string]map[string]string {
	out := make(map[string]map[string]string)
	if plan == nil {
		return out
	}

	provider := cfg.Core.Provider
	if r, err := core.NewCore(provider, cfg.Mirrors[string(provider)], nil); err == nil {
		out[plan.Core.Name] = itemLinks(r.URLs(), string(provider), plannedVersion(plan.Core))
	}

	planned := make(map[string]install.PlanItem, len(plan.Plugins))
	for _, item := range plan.Plugins {
		planned[item.Name] = item
	}
	for _, spec := range cfg.Plugins {
		item, ok := planned[spec.Name]
		if !ok {
			continue
		}
		if spec.Source == core.URL {
			out[spec.Name] = map[string]string{"download": spec.URL}
			continue
		}
		s, err := core.NewSource(spec.Source, cfg.Mirrors[string(spec.Source)], nil)
		if err != nil {
			continue
		}
		out[spec.Name] = itemLinks(s.URLs(), spec.ID, plannedVersion(item))
	}
	return out
}

func itemLinks(urls URLBuilder, name, version string) map[string]string {
	links := BuildURLs(urls, name, version)
	if p, ok := links["purl"]; ok {
		if _, err := ParsePURL(p); err != nil {
			delete(links, "purl")
		}
	}
	return links
}

func plannedVersion(item install.PlanItem) string {
	if item.Target != nil {
		return item.Target.Version
	}
	return ""
}

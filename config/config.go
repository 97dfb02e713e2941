// Package config loads the desired state of an installation from TOML.
//
//	prune = true
//
//	[core]
//	provider = "paper"
//	version = "1.21.4"
//
//	[plugins.luckperms]
//	purl = "pkg:modrinth/luckperms"
//
//	[plugins.geyser]
//	source = "url"
//	url = "https://download.geysermc.org/v2/projects/geyser/versions/latest/builds/latest/downloads/spigot"
//	hash = "sha256:..."
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/git-pkgs/provision/install"
	"github.com/git-pkgs/provision/internal/core"
	"github.com/git-pkgs/provision/lock"
)

// DefaultPath is the configuration file looked up when none is given.
const DefaultPath = "provision.toml"

// Config is the loaded and normalized configuration.
type Config struct {
	Core    core.CoreSpec
	Plugins []core.PluginSpec // sorted by name
	Paths   Paths
	Fetch   Fetch
	Prune   bool
	// Mirrors overrides the API base URL of a provider or plugin source.
	Mirrors map[string]string
}

// Paths says where artifacts and the lock record live.
type Paths struct {
	CoreDir    string
	PluginsDir string
	Lock       string
}

// Fetch tunes network behaviour.
type Fetch struct {
	UserAgent string
	Timeout   time.Duration
	// Retries applies to metadata requests.
	Retries int
	// DownloadRetries applies to artifact downloads.
	DownloadRetries int
	// Concurrency bounds parallel plugin downloads; 0 means unbounded.
	Concurrency int
	// RequestsPerSecond limits metadata requests; 0 means unlimited.
	RequestsPerSecond float64
	// Tokens maps a download host to the Authorization header sent to it.
	Tokens map[string]string
}

// Default returns the configuration used for keys the file leaves out.
func Default() Config {
	return Config{
		Core: core.CoreSpec{Provider: core.Vanilla, Version: core.LatestVersion},
		Paths: Paths{
			CoreDir:    ".",
			PluginsDir: "plugins",
			Lock:       lock.DefaultPath,
		},
		Fetch: Fetch{
			UserAgent:   "provision/1.0",
			Timeout:     30 * time.Second,
			Retries:     5,
			Concurrency: install.DefaultConcurrency,
		},
	}
}

type fileConfig struct {
	Prune   bool                  `toml:"prune"`
	Core    fileCore              `toml:"core"`
	Plugins map[string]filePlugin `toml:"plugins"`
	Paths   filePaths             `toml:"paths"`
	Fetch   fileFetch             `toml:"fetch"`
	Mirrors map[string]string     `toml:"mirrors"`
}

type fileCore struct {
	Provider    string `toml:"provider"`
	Version     string `toml:"version"`
	Freeze      bool   `toml:"freeze"`
	ForceUpdate bool   `toml:"force_update"`
}

type filePlugin struct {
	PURL        string `toml:"purl"`
	Source      string `toml:"source"`
	ID          string `toml:"id"`
	Version     string `toml:"version"`
	URL         string `toml:"url"`
	Hash        string `toml:"hash"`
	Freeze      bool   `toml:"freeze"`
	ForceUpdate bool   `toml:"force_update"`
}

type filePaths struct {
	CoreDir    string `toml:"core_dir"`
	PluginsDir string `toml:"plugins_dir"`
	Lock       string `toml:"lock"`
}

type fileFetch struct {
	UserAgent         string            `toml:"user_agent"`
	Timeout           string            `toml:"timeout"`
	Retries           int               `toml:"retries"`
	DownloadRetries   int               `toml:"download_retries"`
	Concurrency       int               `toml:"concurrency"`
	RequestsPerSecond float64           `toml:"requests_per_second"`
	Tokens            map[string]string `toml:"tokens"`
}

// Load reads and validates the configuration at path.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return build(raw, meta)
}

// Parse reads and validates configuration from a TOML document.
func Parse(data string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return build(raw, meta)
}

func build(raw fileConfig, meta toml.MetaData) (Config, error) {
	cfg := Default()

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	cfg.Prune = raw.Prune

	if meta.IsDefined("core", "provider") {
		p, err := core.ParseProvider(raw.Core.Provider)
		if err != nil {
			return Config{}, fmt.Errorf("core.provider: %w", err)
		}
		cfg.Core.Provider = p
	}
	if v := strings.TrimSpace(raw.Core.Version); v != "" {
		cfg.Core.Version = v
	}
	cfg.Core.Freeze = raw.Core.Freeze
	cfg.Core.ForceUpdate = raw.Core.ForceUpdate

	if v := strings.TrimSpace(raw.Paths.CoreDir); v != "" {
		cfg.Paths.CoreDir = v
	}
	if v := strings.TrimSpace(raw.Paths.PluginsDir); v != "" {
		cfg.Paths.PluginsDir = v
	}
	if v := strings.TrimSpace(raw.Paths.Lock); v != "" {
		cfg.Paths.Lock = v
	}

	if v := strings.TrimSpace(raw.Fetch.UserAgent); v != "" {
		cfg.Fetch.UserAgent = v
	}
	if meta.IsDefined("fetch", "timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Fetch.Timeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse fetch.timeout: %w", err)
		}
		cfg.Fetch.Timeout = d
	}
	if meta.IsDefined("fetch", "retries") {
		cfg.Fetch.Retries = raw.Fetch.Retries
	}
	if meta.IsDefined("fetch", "download_retries") {
		cfg.Fetch.DownloadRetries = raw.Fetch.DownloadRetries
	}
	if meta.IsDefined("fetch", "concurrency") {
		cfg.Fetch.Concurrency = raw.Fetch.Concurrency
	}
	if meta.IsDefined("fetch", "requests_per_second") {
		cfg.Fetch.RequestsPerSecond = raw.Fetch.RequestsPerSecond
	}
	if len(raw.Fetch.Tokens) > 0 {
		cfg.Fetch.Tokens = make(map[string]string, len(raw.Fetch.Tokens))
		for host, token := range raw.Fetch.Tokens {
			cfg.Fetch.Tokens[strings.ToLower(strings.TrimSpace(host))] = strings.TrimSpace(token)
		}
	}

	if len(raw.Mirrors) > 0 {
		cfg.Mirrors = make(map[string]string, len(raw.Mirrors))
		for name, base := range raw.Mirrors {
			cfg.Mirrors[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(base)
		}
	}

	names := make([]string, 0, len(raw.Plugins))
	for name := range raw.Plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		spec, err := pluginSpec(name, raw.Plugins[name])
		if err != nil {
			return Config{}, err
		}
		cfg.Plugins = append(cfg.Plugins, spec)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func pluginSpec(name string, raw filePlugin) (core.PluginSpec, error) {
	spec := core.PluginSpec{
		Name:        name,
		Source:      core.Source(strings.ToLower(strings.TrimSpace(raw.Source))),
		ID:          strings.TrimSpace(raw.ID),
		Version:     strings.TrimSpace(raw.Version),
		URL:         strings.TrimSpace(raw.URL),
		Freeze:      raw.Freeze,
		ForceUpdate: raw.ForceUpdate,
	}

	if raw.PURL != "" {
		applied, err := core.ApplyPURL(spec, raw.PURL)
		if err != nil {
			return spec, fmt.Errorf("plugins.%s.purl: %w", name, err)
		}
		spec = applied
	}

	if raw.Hash != "" {
		h, err := core.ParseHash(raw.Hash)
		if err != nil {
			return spec, fmt.Errorf("plugins.%s.hash: %w", name, err)
		}
		spec.Hash = h
	}

	if spec.Source == "" {
		if spec.URL != "" {
			spec.Source = core.URL
		} else {
			spec.Source = core.Modrinth
		}
	}
	if spec.ID == "" && spec.Source != core.URL {
		spec.ID = name
	}
	if spec.Version == "" {
		spec.Version = core.LatestVersion
	}
	return spec, nil
}

// Validate checks invariants the installer relies on.
func (c Config) Validate() error {
	var errs []error

	if _, err := core.ParseProvider(string(c.Core.Provider)); err != nil {
		errs = append(errs, fmt.Errorf("core.provider: %w", err))
	}
	if c.Fetch.Concurrency < 0 {
		errs = append(errs, errors.New("fetch.concurrency must not be negative"))
	}
	if c.Fetch.Retries < 0 || c.Fetch.DownloadRetries < 0 {
		errs = append(errs, errors.New("fetch retries must not be negative"))
	}
	if c.Fetch.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("fetch.requests_per_second must not be negative"))
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, errors.New("fetch.timeout must be positive"))
	}

	for name, base := range c.Mirrors {
		if !isProviderOrSource(name) {
			errs = append(errs, fmt.Errorf("mirrors.%s: not a provider or plugin source", name))
		}
		if base == "" {
			errs = append(errs, fmt.Errorf("mirrors.%s: empty url", name))
		}
	}

	// Plugin names become file names, so two names must never map to the
	// same artifact path, including on case-insensitive filesystems.
	paths := make(map[string]string, len(c.Plugins))
	for _, p := range c.Plugins {
		if err := validatePlugin(p); err != nil {
			errs = append(errs, err)
			continue
		}
		key := strings.ToLower(p.Name)
		if other, ok := paths[key]; ok {
			errs = append(errs, fmt.Errorf("plugins %q and %q map to the same file", other, p.Name))
			continue
		}
		paths[key] = p.Name
	}

	return errors.Join(errs...)
}

func isProviderOrSource(name string) bool {
	if p, err := core.ParseProvider(name); err == nil && p != "" && name != "" {
		return true
	}
	switch core.Source(name) {
	case core.Modrinth, core.Hangar:
		return true
	}
	return false
}

func validatePlugin(p core.PluginSpec) error {
	if p.Name == "" || strings.ContainsAny(p.Name, `/\`) || p.Name == "." || p.Name == ".." {
		return fmt.Errorf("plugin name %q is not a valid file name", p.Name)
	}
	switch p.Source {
	case core.Modrinth, core.Hangar:
		if p.ID == "" {
			return fmt.Errorf("plugins.%s: missing id", p.Name)
		}
	case core.URL:
		if p.URL == "" {
			return fmt.Errorf("plugins.%s: source url needs a url", p.Name)
		}
	default:
		return fmt.Errorf("plugins.%s: %w", p.Name, &core.UnknownError{Kind: "source", Name: string(p.Source), Err: core.ErrUnknownSource})
	}
	return nil
}

// Desired converts the configuration into an installer request.
func (c Config) Desired() install.Desired {
	return install.Desired{
		Core:    c.Core,
		Plugins: append([]core.PluginSpec(nil), c.Plugins...),
		Prune:   c.Prune,
	}
}

// Layout returns the artifact layout for the configured paths.
func (c Config) Layout() install.Layout {
	return install.Layout{CoreDir: c.Paths.CoreDir, PluginsDir: c.Paths.PluginsDir}
}

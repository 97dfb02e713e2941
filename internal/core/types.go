// Package core provides shared types and the provider registry.
package core

import "strings"

// Provider names the distribution a server core is fetched from.
type Provider string

const (
	Vanilla   Provider = "vanilla"
	Paper     Provider = "paper"
	Folia     Provider = "folia"
	Purpur    Provider = "purpur"
	Fabric    Provider = "fabric"
	Forge     Provider = "forge"
	NeoForge  Provider = "neoforge"
	Waterfall Provider = "waterfall"
	Velocity  Provider = "velocity"
)

var knownProviders = []Provider{Vanilla, Paper, Folia, Purpur, Fabric, Forge, NeoForge, Waterfall, Velocity}

// ParseProvider returns the provider for name, case-insensitively.
func ParseProvider(name string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(name)))
	if p == "" {
		return Vanilla, nil
	}
	for _, known := range knownProviders {
		if p == known {
			return p, nil
		}
	}
	return "", &UnknownError{Kind: "provider", Name: name, Err: ErrUnknownProvider}
}

// Loader is the plugin platform a provider runs, as understood by plugin
// indexes ("paper", "velocity", ...). Vanilla cores run no plugins.
func (p Provider) Loader() string {
	switch p {
	case Paper, Purpur:
		return "paper"
	case Folia:
		return "folia"
	case Waterfall:
		return "waterfall"
	case Velocity:
		return "velocity"
	case Fabric, Forge, NeoForge:
		return string(p)
	default:
		return ""
	}
}

// Source names the index a plugin is fetched from.
type Source string

const (
	Modrinth Source = "modrinth"
	Hangar   Source = "hangar"
	URL      Source = "url"
)

// LatestVersion is the selector matching the newest stable release.
const LatestVersion = "latest"

// CoreSpec is the desired state of the server core.
type CoreSpec struct {
	Provider    Provider
	Version     string // selector: "latest", an exact version or a semver constraint
	Freeze      bool
	ForceUpdate bool
}

// PluginSpec is the desired state of one plugin.
type PluginSpec struct {
	Name        string // unique key in the lock record
	Source      Source
	ID          string // project id or slug within Source
	Version     string
	URL         string // Source == URL only
	Hash        Hash   // Source == URL only
	Freeze      bool
	ForceUpdate bool
}

// Platform describes the installed core a plugin must be compatible with.
type Platform struct {
	Loader      string
	GameVersion string
}

// Target is a resolved download. It is never persisted as-is.
type Target struct {
	Link     string
	Hash     Hash
	Build    string // change-detection key
	Version  string // concrete version the selector resolved to
	Filename string
}

package core

import (
	"fmt"

	packageurl "github.com/package-url/packageurl-go"
)

// PURL wraps packageurl.PackageURL with plugin-specific helpers.
type PURL struct {
	packageurl.PackageURL
}

// FullName returns the project id in the form the plugin index expects.
// Hangar projects may be written with their owner as namespace; the API
// addresses them by slug alone.
func (p PURL) FullName() string {
	if p.Namespace == "" {
		return p.Name
	}

	switch Source(p.Type) {
	case Hangar:
		return p.Name
	default:
		return p.Namespace + "/" + p.Name
	}
}

// ParsePURL parses a Package URL string into its components.
// Supports both project PURLs (pkg:modrinth/luckperms) and version PURLs (pkg:modrinth/luckperms@v5.4.102).
func ParsePURL(purl string) (*PURL, error) {
	p, err := packageurl.FromString(purl)
	if err != nil {
		return nil, err
	}
	return &PURL{p}, nil
}

// ApplyPURL fills Source, ID and Version of spec from a plugin PURL.
// A version in the PURL overrides spec.Version; a missing one leaves it untouched.
func ApplyPURL(spec PluginSpec, purl string) (PluginSpec, error) {
	p, err := ParsePURL(purl)
	if err != nil {
		return spec, fmt.Errorf("plugin %s: %w", spec.Name, err)
	}

	switch Source(p.Type) {
	case Modrinth, Hangar:
	default:
		return spec, &UnknownError{Kind: "source", Name: p.Type, Err: ErrUnknownSource}
	}

	spec.Source = Source(p.Type)
	spec.ID = p.FullName()
	if p.Version != "" {
		spec.Version = p.Version
	}
	return spec, nil
}

// Package vanilla provides a core provider client for Mojang's server jars.
package vanilla

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/git-pkgs/provision/internal/core"
)

const (
	DefaultURL = "https://piston-meta.mojang.com"
	provider   = core.Vanilla
)

func init() {
	core.RegisterCore(provider, DefaultURL, func(baseURL string, client *core.Client) core.CoreResolver {
		return New(baseURL, client)
	})
}

type Registry struct {
	baseURL string
	client  *core.Client
	urls    *URLs
}

func New(baseURL string, client *core.Client) *Registry {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	r := &Registry{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
	r.urls = &URLs{baseURL: r.baseURL}
	return r
}

func (r *Registry) Provider() core.Provider {
	return provider
}

func (r *Registry) URLs() core.URLBuilder {
	return r.urls
}

type manifest struct {
	Latest struct {
		Release  string `json:"release"`
		Snapshot string `json:"snapshot"`
	} `json:"latest"`
	Versions []manifestVersion `json:"versions"`
}

type manifestVersion struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

type versionInfo struct {
	Downloads struct {
		Server *struct {
			SHA1 string `json:"sha1"`
			Size int64  `json:"size"`
			URL  string `json:"url"`
		} `json:"server"`
	} `json:"downloads"`
}

func (r *Registry) ResolveCore(ctx context.Context, spec core.CoreSpec) (*core.Target, error) {
	var m manifest
	if err := r.client.GetJSON(ctx, r.urls.API("/mc/game/version_manifest_v2.json"), &m); err != nil {
		return nil, fmt.Errorf("fetching version manifest: %w", err)
	}

	id, err := pick(m, spec.Version)
	if err != nil {
		return nil, err
	}

	var entry *manifestVersion
	for i := range m.Versions {
		if m.Versions[i].ID == id {
			entry = &m.Versions[i]
			break
		}
	}
	if entry == nil {
		return nil, &core.NotFoundError{Provider: string(provider), Name: "server", Version: id}
	}

	var info versionInfo
	if err := r.client.GetJSON(ctx, entry.URL, &info); err != nil {
		var httpErr *core.HTTPError
		if errors.As(err, &httpErr) && httpErr.IsNotFound() {
			return nil, &core.NotFoundError{Provider: string(provider), Name: "server", Version: id}
		}
		return nil, err
	}
	server := info.Downloads.Server
	if server == nil || server.URL == "" {
		return nil, fmt.Errorf("%s %s: no server download published", provider, id)
	}

	return &core.Target{
		Link:     server.URL,
		Hash:     core.Hash{Algorithm: "sha1", Value: server.SHA1},
		Build:    server.SHA1,
		Version:  id,
		Filename: "server.jar",
	}, nil
}

// pick resolves the selector against the manifest. "latest" follows the
// manifest's own release pointer; constraints only consider releases.
func pick(m manifest, selector string) (string, error) {
	if core.IsLatest(selector) && m.Latest.Release != "" {
		return m.Latest.Release, nil
	}
	for _, v := range m.Versions {
		if v.ID == selector {
			return v.ID, nil
		}
	}
	releases := make([]string, 0, len(m.Versions))
	for _, v := range m.Versions {
		if v.Type == "release" {
			releases = append(releases, v.ID)
		}
	}
	return core.SelectVersion(selector, releases)
}

type URLs struct {
	baseURL string
}

func (u *URLs) API(path string) string {
	return u.baseURL + path
}

func (u *URLs) Project(name string) string {
	return "https://www.minecraft.net/en-us/download/server"
}

// Download returns the release page of version, which links the server jar.
// The jar itself is content addressed and only known from version metadata.
func (u *URLs) Download(name, version string) string {
	if version == "" {
		return u.Project(name)
	}
	return "https://minecraft.wiki/w/Java_Edition_" + version
}

func (u *URLs) PURL(name, version string) string {
	if version == "" {
		return "pkg:generic/minecraft-server"
	}
	return fmt.Sprintf("pkg:generic/minecraft-server@%s", version)
}

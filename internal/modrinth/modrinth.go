// Package modrinth provides a plugin index client for Modrinth.
package modrinth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/git-pkgs/provision/internal/core"
)

const (
	DefaultURL = "https://api.modrinth.com"
	source     = core.Modrinth
)

func init() {
	core.RegisterSource(source, DefaultURL, func(baseURL string, client *core.Client) core.PluginResolver {
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

func (r *Registry) Source() core.Source {
	return source
}

func (r *Registry) URLs() core.URLBuilder {
	return r.urls
}

type versionResponse struct {
	ID            string `json:"id"`
	VersionNumber string `json:"version_number"`
	VersionType   string `json:"version_type"`
	Files         []file `json:"files"`
}

type file struct {
	URL      string            `json:"url"`
	Filename string            `json:"filename"`
	Primary  bool              `json:"primary"`
	Hashes   map[string]string `json:"hashes"`
}

func (r *Registry) ResolvePlugin(ctx context.Context, spec core.PluginSpec, platform core.Platform) (*core.Target, error) {
	var versions []versionResponse
	if err := r.client.GetJSON(ctx, r.urls.versions(spec.ID, platform), &versions); err != nil {
		var httpErr *core.HTTPError
		if errors.As(err, &httpErr) && httpErr.IsNotFound() {
			return nil, &core.NotFoundError{Provider: string(source), Name: spec.ID}
		}
		return nil, err
	}
	if len(versions) == 0 {
		return nil, &core.NotFoundError{Provider: string(source), Name: spec.ID, Version: platform.GameVersion}
	}

	v, err := pick(versions, spec.Version)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", source, spec.ID, err)
	}

	f := primaryFile(v.Files)
	if f == nil {
		return nil, fmt.Errorf("%s %s %s: version has no files", source, spec.ID, v.VersionNumber)
	}

	hash := core.Hash{}
	if h := f.Hashes["sha512"]; h != "" {
		hash = core.Hash{Algorithm: "sha512", Value: h}
	} else if h := f.Hashes["sha1"]; h != "" {
		hash = core.Hash{Algorithm: "sha1", Value: h}
	}

	return &core.Target{
		Link:     f.URL,
		Hash:     hash,
		Build:    v.ID,
		Version:  v.VersionNumber,
		Filename: f.Filename,
	}, nil
}

// pick returns the version matching selector. The API lists versions newest
// first, so "latest" is the first release; exact matches accept either the
// version number or the version id.
func pick(versions []versionResponse, selector string) (*versionResponse, error) {
	if core.IsLatest(selector) {
		for i := range versions {
			if versions[i].VersionType == "release" {
				return &versions[i], nil
			}
		}
		return &versions[0], nil
	}

	numbers := make([]string, 0, len(versions))
	for i := range versions {
		if versions[i].VersionNumber == selector || versions[i].ID == selector {
			return &versions[i], nil
		}
		numbers = append(numbers, versions[i].VersionNumber)
	}

	number, err := core.SelectVersion(selector, numbers)
	if err != nil {
		return nil, err
	}
	for i := range versions {
		if versions[i].VersionNumber == number {
			return &versions[i], nil
		}
	}
	return nil, core.ErrNoMatchingVersion
}

func primaryFile(files []file) *file {
	for i := range files {
		if files[i].Primary {
			return &files[i]
		}
	}
	if len(files) > 0 {
		return &files[0]
	}
	return nil
}

type URLs struct {
	baseURL string
}

func (u *URLs) API(path string) string {
	return u.baseURL + "/v2" + path
}

func (u *URLs) versions(id string, platform core.Platform) string {
	q := url.Values{}
	if platform.Loader != "" {
		q.Set("loaders", jsonList(platform.Loader))
	}
	if platform.GameVersion != "" {
		q.Set("game_versions", jsonList(platform.GameVersion))
	}
	path := u.API(fmt.Sprintf("/project/%s/version", url.PathEscape(id)))
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func (u *URLs) Project(name string) string {
	return fmt.Sprintf("https://modrinth.com/plugin/%s", name)
}

// Download returns the version page; jar links are CDN paths keyed by ids
// only known from version metadata.
func (u *URLs) Download(name, version string) string {
	if version == "" {
		return u.Project(name) + "/versions"
	}
	return fmt.Sprintf("%s/version/%s", u.Project(name), url.PathEscape(version))
}

func (u *URLs) PURL(name, version string) string {
	if version == "" {
		return fmt.Sprintf("pkg:modrinth/%s", name)
	}
	return fmt.Sprintf("pkg:modrinth/%s@%s", name, version)
}

func jsonList(values ...string) string {
	b, _ := json.Marshal(values)
	return string(b)
}

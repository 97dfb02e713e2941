// Package hangar provides a plugin index client for PaperMC's Hangar.
package hangar

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/git-pkgs/provision/internal/core"
)

const (
	DefaultURL = "https://hangar.papermc.io"
	source     = core.Hangar
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

type versionsResponse struct {
	Result []version `json:"result"`
}

type version struct {
	Name    string `json:"name"`
	Channel struct {
		Name string `json:"name"`
	} `json:"channel"`
	Downloads map[string]download `json:"downloads"`
}

type download struct {
	FileInfo *struct {
		Name       string `json:"name"`
		SHA256Hash string `json:"sha256Hash"`
	} `json:"fileInfo"`
	ExternalURL string `json:"externalUrl"`
	DownloadURL string `json:"downloadUrl"`
}

// platformName maps a core loader to Hangar's platform enum.
func platformName(loader string) (string, error) {
	switch loader {
	case "paper", "folia":
		return "PAPER", nil
	case "waterfall":
		return "WATERFALL", nil
	case "velocity":
		return "VELOCITY", nil
	default:
		return "", fmt.Errorf("hangar has no plugins for loader %q", loader)
	}
}

func (r *Registry) ResolvePlugin(ctx context.Context, spec core.PluginSpec, platform core.Platform) (*core.Target, error) {
	plat, err := platformName(platform.Loader)
	if err != nil {
		return nil, err
	}

	var resp versionsResponse
	if err := r.client.GetJSON(ctx, r.urls.versions(spec.ID, plat, platform.GameVersion), &resp); err != nil {
		var httpErr *core.HTTPError
		if errors.As(err, &httpErr) && httpErr.IsNotFound() {
			return nil, &core.NotFoundError{Provider: string(source), Name: spec.ID}
		}
		return nil, err
	}
	if len(resp.Result) == 0 {
		return nil, &core.NotFoundError{Provider: string(source), Name: spec.ID, Version: platform.GameVersion}
	}

	v, err := pick(resp.Result, spec.Version)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", source, spec.ID, err)
	}

	d, ok := v.Downloads[plat]
	if !ok {
		return nil, fmt.Errorf("%s %s %s: no %s download", source, spec.ID, v.Name, plat)
	}
	if d.DownloadURL == "" {
		if d.ExternalURL != "" {
			return nil, fmt.Errorf("%s %s %s: only hosted externally at %s", source, spec.ID, v.Name, d.ExternalURL)
		}
		return nil, fmt.Errorf("%s %s %s: no download url", source, spec.ID, v.Name)
	}

	target := &core.Target{
		Link:    d.DownloadURL,
		Build:   v.Name,
		Version: v.Name,
	}
	if d.FileInfo != nil {
		target.Filename = d.FileInfo.Name
		if d.FileInfo.SHA256Hash != "" {
			target.Hash = core.Hash{Algorithm: "sha256", Value: d.FileInfo.SHA256Hash}
		}
	}
	return target, nil
}

// pick returns the version for selector. Hangar lists newest first.
func pick(versions []version, selector string) (*version, error) {
	if core.IsLatest(selector) {
		for i := range versions {
			if strings.EqualFold(versions[i].Channel.Name, "release") {
				return &versions[i], nil
			}
		}
		return &versions[0], nil
	}

	names := make([]string, 0, len(versions))
	for i := range versions {
		if versions[i].Name == selector {
			return &versions[i], nil
		}
		names = append(names, versions[i].Name)
	}
	name, err := core.SelectVersion(selector, names)
	if err != nil {
		return nil, err
	}
	for i := range versions {
		if versions[i].Name == name {
			return &versions[i], nil
		}
	}
	return nil, core.ErrNoMatchingVersion
}

type URLs struct {
	baseURL string
}

func (u *URLs) API(path string) string {
	return u.baseURL + "/api/v1" + path
}

func (u *URLs) versions(slug, platform, gameVersion string) string {
	q := url.Values{}
	q.Set("platform", platform)
	q.Set("limit", "25")
	if gameVersion != "" {
		q.Set("platformVersion", gameVersion)
	}
	return u.API(fmt.Sprintf("/projects/%s/versions", url.PathEscape(slug))) + "?" + q.Encode()
}

func (u *URLs) Project(name string) string {
	return fmt.Sprintf("%s/%s", u.baseURL, name)
}

func (u *URLs) Download(name, version string) string {
	if version == "" {
		return u.Project(name) + "/versions"
	}
	return fmt.Sprintf("%s/versions/%s", u.Project(name), url.PathEscape(version))
}

func (u *URLs) PURL(name, version string) string {
	if version == "" {
		return fmt.Sprintf("pkg:hangar/%s", name)
	}
	return fmt.Sprintf("pkg:hangar/%s@%s", name, version)
}

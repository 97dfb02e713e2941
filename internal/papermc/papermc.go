// Package papermc provides a core provider client for the PaperMC downloads API.
// Paper, Folia, Waterfall and Velocity are all served by it.
package papermc

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/git-pkgs/provision/internal/core"
)

const DefaultURL = "https://api.papermc.io"

func init() {
	for _, p := range []core.Provider{core.Paper, core.Folia, core.Waterfall, core.Velocity} {
		core.RegisterCore(p, DefaultURL, func(baseURL string, client *core.Client) core.CoreResolver {
			return New(p, baseURL, client)
		})
	}
}

type Registry struct {
	project core.Provider
	baseURL string
	client  *core.Client
	urls    *URLs
}

func New(project core.Provider, baseURL string, client *core.Client) *Registry {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	r := &Registry{
		project: project,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
	r.urls = &URLs{baseURL: r.baseURL, project: string(project)}
	return r
}

func (r *Registry) Provider() core.Provider {
	return r.project
}

func (r *Registry) URLs() core.URLBuilder {
	return r.urls
}

type projectResponse struct {
	ProjectID string   `json:"project_id"`
	Versions  []string `json:"versions"`
}

type buildsResponse struct {
	Builds []build `json:"builds"`
}

type build struct {
	Build     int    `json:"build"`
	Channel   string `json:"channel"`
	Downloads map[string]struct {
		Name   string `json:"name"`
		SHA256 string `json:"sha256"`
	} `json:"downloads"`
}

func (r *Registry) ResolveCore(ctx context.Context, spec core.CoreSpec) (*core.Target, error) {
	version, err := r.selectVersion(ctx, spec.Version)
	if err != nil {
		return nil, err
	}

	var builds buildsResponse
	if err := r.client.GetJSON(ctx, r.urls.API(fmt.Sprintf("/versions/%s/builds", version)), &builds); err != nil {
		var httpErr *core.HTTPError
		if errors.As(err, &httpErr) && httpErr.IsNotFound() {
			return nil, &core.NotFoundError{Provider: string(r.project), Name: string(r.project), Version: version}
		}
		return nil, err
	}

	b := latestBuild(builds.Builds)
	if b == nil {
		return nil, &core.NotFoundError{Provider: string(r.project), Name: "build", Version: version}
	}
	app, ok := b.Downloads["application"]
	if !ok || app.Name == "" {
		return nil, fmt.Errorf("%s %s build %d: no application download", r.project, version, b.Build)
	}

	number := strconv.Itoa(b.Build)
	return &core.Target{
		Link:     r.urls.buildDownload(version, number, app.Name),
		Hash:     core.Hash{Algorithm: "sha256", Value: app.SHA256},
		Build:    core.QualifiedBuild(version, number),
		Version:  version,
		Filename: app.Name,
	}, nil
}

func (r *Registry) selectVersion(ctx context.Context, selector string) (string, error) {
	var p projectResponse
	if err := r.client.GetJSON(ctx, r.urls.API(""), &p); err != nil {
		var httpErr *core.HTTPError
		if errors.As(err, &httpErr) && httpErr.IsNotFound() {
			return "", &core.NotFoundError{Provider: string(r.project), Name: string(r.project)}
		}
		return "", fmt.Errorf("fetching %s versions: %w", r.project, err)
	}

	version, err := core.SelectVersion(selector, p.Versions)
	if err != nil && core.IsLatest(selector) && len(p.Versions) > 0 {
		// Proxies publish only snapshot versions; the API lists them oldest first.
		return p.Versions[len(p.Versions)-1], nil
	}
	return version, err
}

// latestBuild prefers the newest build on the default channel and falls back
// to the newest build of any channel.
func latestBuild(builds []build) *build {
	var best, newest *build
	for i := range builds {
		b := &builds[i]
		if newest == nil || b.Build > newest.Build {
			newest = b
		}
		if b.Channel != "default" {
			continue
		}
		if best == nil || b.Build > best.Build {
			best = b
		}
	}
	if best != nil {
		return best
	}
	return newest
}

type URLs struct {
	baseURL string
	project string
}

func (u *URLs) API(path string) string {
	return fmt.Sprintf("%s/v2/projects/%s%s", u.baseURL, u.project, path)
}

func (u *URLs) Project(name string) string {
	return fmt.Sprintf("https://papermc.io/downloads/%s", u.project)
}

// Download returns the build listing of version. Each build names its own file.
func (u *URLs) Download(name, version string) string {
	if version == "" {
		return u.Project(name)
	}
	return u.API(fmt.Sprintf("/versions/%s/builds", version))
}

func (u *URLs) buildDownload(version, build, file string) string {
	return u.API(fmt.Sprintf("/versions/%s/builds/%s/downloads/%s", version, build, file))
}

func (u *URLs) PURL(name, version string) string {
	if version == "" {
		return fmt.Sprintf("pkg:generic/papermc/%s", u.project)
	}
	return fmt.Sprintf("pkg:generic/papermc/%s@%s", u.project, version)
}

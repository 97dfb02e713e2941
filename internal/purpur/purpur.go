// Package purpur provides a core provider client for the Purpur downloads API.
package purpur

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/git-pkgs/provision/internal/core"
)

const (
	DefaultURL = "https://api.purpurmc.org"
	provider   = core.Purpur
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

type projectResponse struct {
	Versions []string `json:"versions"`
}

type versionResponse struct {
	Builds struct {
		Latest string   `json:"latest"`
		All    []string `json:"all"`
	} `json:"builds"`
}

type buildResponse struct {
	Build  string `json:"build"`
	MD5    string `json:"md5"`
	Result string `json:"result"`
}

func (r *Registry) ResolveCore(ctx context.Context, spec core.CoreSpec) (*core.Target, error) {
	var p projectResponse
	if err := r.client.GetJSON(ctx, r.urls.API(""), &p); err != nil {
		return nil, fmt.Errorf("fetching purpur versions: %w", err)
	}
	version, err := core.SelectVersion(spec.Version, p.Versions)
	if err != nil {
		return nil, err
	}

	var v versionResponse
	if err := r.client.GetJSON(ctx, r.urls.API("/"+version), &v); err != nil {
		return nil, r.notFound(err, version)
	}
	if v.Builds.Latest == "" {
		return nil, &core.NotFoundError{Provider: string(provider), Name: "build", Version: version}
	}

	var b buildResponse
	if err := r.client.GetJSON(ctx, r.urls.API(fmt.Sprintf("/%s/%s", version, v.Builds.Latest)), &b); err != nil {
		return nil, r.notFound(err, version)
	}
	if b.Result != "" && b.Result != "SUCCESS" {
		return nil, fmt.Errorf("purpur %s build %s: build result %s", version, b.Build, b.Result)
	}

	return &core.Target{
		Link:     r.urls.Download("", version) + "/" + v.Builds.Latest + "/download",
		Hash:     core.Hash{Algorithm: "md5", Value: b.MD5},
		Build:    core.QualifiedBuild(version, v.Builds.Latest),
		Version:  version,
		Filename: fmt.Sprintf("purpur-%s-%s.jar", version, v.Builds.Latest),
	}, nil
}

func (r *Registry) notFound(err error, version string) error {
	var httpErr *core.HTTPError
	if errors.As(err, &httpErr) && httpErr.IsNotFound() {
		return &core.NotFoundError{Provider: string(provider), Name: "purpur", Version: version}
	}
	return err
}

type URLs struct {
	baseURL string
}

func (u *URLs) API(path string) string {
	return u.baseURL + "/v2/purpur" + path
}

func (u *URLs) Project(name string) string {
	return "https://purpurmc.org/downloads"
}

func (u *URLs) Download(name, version string) string {
	return u.API("/" + version)
}

func (u *URLs) PURL(name, version string) string {
	if version == "" {
		return "pkg:generic/purpur"
	}
	return fmt.Sprintf("pkg:generic/purpur@%s", version)
}

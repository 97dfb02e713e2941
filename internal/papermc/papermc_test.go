package papermc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/git-pkgs/provision/internal/core"
)

func TestResolveCorePaper(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v2/projects/paper":
			_, _ = w.Write([]byte(`{"project_id":"paper","versions":["1.20.4","1.20.6","1.21","1.21.1"]}`))
		case "/v2/projects/paper/versions/1.21.1/builds":
			_, _ = w.Write([]byte(`{"builds":[
				{"build":118,"channel":"default","downloads":{"application":{"name":"paper-1.21.1-118.jar","sha256":"aaaa"}}},
				{"build":119,"channel":"default","downloads":{"application":{"name":"paper-1.21.1-119.jar","sha256":"bbbb"}}},
				{"build":120,"channel":"experimental","downloads":{"application":{"name":"paper-1.21.1-120.jar","sha256":"cccc"}}}
			]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	reg := New(core.Paper, server.URL, core.DefaultClient())
	target, err := reg.ResolveCore(context.Background(), core.CoreSpec{Provider: core.Paper, Version: "latest"})
	if err != nil {
		t.Fatalf("ResolveCore failed: %v", err)
	}

	if target.Version != "1.21.1" {
		t.Errorf("Version = %q, want %q", target.Version, "1.21.1")
	}
	if target.Build != "1.21.1-119" {
		t.Errorf("Build = %q, want %q (newest default channel build)", target.Build, "1.21.1-119")
	}
	if target.Hash != (core.Hash{Algorithm: "sha256", Value: "bbbb"}) {
		t.Errorf("Hash = %+v", target.Hash)
	}
	want := server.URL + "/v2/projects/paper/versions/1.21.1/builds/119/downloads/paper-1.21.1-119.jar"
	if target.Link != want {
		t.Errorf("Link = %q, want %q", target.Link, want)
	}
}

func TestResolveCoreVelocitySnapshots(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/projects/velocity":
			_, _ = w.Write([]byte(`{"project_id":"velocity","versions":["3.2.0-SNAPSHOT","3.3.0-SNAPSHOT"]}`))
		case "/v2/projects/velocity/versions/3.3.0-SNAPSHOT/builds":
			_, _ = w.Write([]byte(`{"builds":[{"build":436,"channel":"default","downloads":{"application":{"name":"velocity-3.3.0-SNAPSHOT-436.jar","sha256":"dddd"}}}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	reg := New(core.Velocity, server.URL, core.DefaultClient())
	target, err := reg.ResolveCore(context.Background(), core.CoreSpec{Version: ""})
	if err != nil {
		t.Fatalf("ResolveCore failed: %v", err)
	}
	if target.Version != "3.3.0-SNAPSHOT" || target.Build != "3.3.0-SNAPSHOT-436" {
		t.Errorf("target = %+v", target)
	}
}

func TestResolveCoreUnknownVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v2/projects/folia" {
			_, _ = w.Write([]byte(`{"project_id":"folia","versions":["1.20.6","1.21.1"]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	reg := New(core.Folia, server.URL, core.DefaultClient())
	_, err := reg.ResolveCore(context.Background(), core.CoreSpec{Version: "1.19.4"})
	if !errors.Is(err, core.ErrNoMatchingVersion) {
		t.Errorf("ResolveCore error = %v, want ErrNoMatchingVersion", err)
	}

	_, err = reg.ResolveCore(context.Background(), core.CoreSpec{Version: "1.20.6"})
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("ResolveCore error = %v, want ErrNotFound", err)
	}
}

func TestBuildIsQualifiedByVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/projects/paper":
			_, _ = w.Write([]byte(`{"project_id":"paper","versions":["1.21.1","1.21.4"]}`))
		case "/v2/projects/paper/versions/1.21.1/builds":
			_, _ = w.Write([]byte(`{"builds":[{"build":119,"channel":"default","downloads":{"application":{"name":"paper-1.21.1-119.jar","sha256":"aaaa"}}}]}`))
		case "/v2/projects/paper/versions/1.21.4/builds":
			_, _ = w.Write([]byte(`{"builds":[{"build":119,"channel":"default","downloads":{"application":{"name":"paper-1.21.4-119.jar","sha256":"bbbb"}}}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	reg := New(core.Paper, server.URL, core.DefaultClient())
	older, err := reg.ResolveCore(context.Background(), core.CoreSpec{Version: "1.21.1"})
	if err != nil {
		t.Fatalf("ResolveCore(1.21.1) failed: %v", err)
	}
	newer, err := reg.ResolveCore(context.Background(), core.CoreSpec{Version: "1.21.4"})
	if err != nil {
		t.Fatalf("ResolveCore(1.21.4) failed: %v", err)
	}

	if older.Build == newer.Build {
		t.Errorf("Build = %q for both versions, want distinct identifiers", older.Build)
	}
	if newer.Build != "1.21.4-119" {
		t.Errorf("Build = %q, want %q", newer.Build, "1.21.4-119")
	}
	if want := server.URL + "/v2/projects/paper/versions/1.21.4/builds/119/downloads/paper-1.21.4-119.jar"; newer.Link != want {
		t.Errorf("Link = %q, want %q", newer.Link, want)
	}
}

func TestLatestBuildFallsBackToAnyChannel(t *testing.T) {
	builds := []build{{Build: 3, Channel: "experimental"}, {Build: 5, Channel: "experimental"}}
	if b := latestBuild(builds); b == nil || b.Build != 5 {
		t.Errorf("latestBuild = %+v, want build 5", b)
	}
	if b := latestBuild(nil); b != nil {
		t.Errorf("latestBuild(nil) = %+v, want nil", b)
	}
}

func TestRegisteredProviders(t *testing.T) {
	for _, p := range []core.Provider{core.Paper, core.Folia, core.Waterfall, core.Velocity} {
		reg, err := core.NewCore(p, "", nil)
		if err != nil {
			t.Errorf("NewCore(%s) failed: %v", p, err)
			continue
		}
		if reg.Provider() != p {
			t.Errorf("Provider() = %q, want %q", reg.Provider(), p)
		}
	}
}

func TestURLs(t *testing.T) {
	urls := New(core.Folia, "", nil).URLs()

	if got := urls.Download("folia", "1.21.4"); got != DefaultURL+"/v2/projects/folia/versions/1.21.4/builds" {
		t.Errorf("Download = %q", got)
	}
	if got := urls.Download("folia", ""); got != "https://papermc.io/downloads/folia" {
		t.Errorf("Download without version = %q", got)
	}
	if got := urls.PURL("folia", "1.21.4"); got != "pkg:generic/papermc/folia@1.21.4" {
		t.Errorf("PURL = %q", got)
	}
}

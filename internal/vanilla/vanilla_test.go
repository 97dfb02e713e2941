package vanilla

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/git-pkgs/provision/internal/core"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/mc/game/version_manifest_v2.json":
			resp := map[string]interface{}{
				"latest": map[string]string{"release": "1.21.1", "snapshot": "24w33a"},
				"versions": []map[string]string{
					{"id": "24w33a", "type": "snapshot", "url": server.URL + "/v1/packages/24w33a.json"},
					{"id": "1.21.1", "type": "release", "url": server.URL + "/v1/packages/1.21.1.json"},
					{"id": "1.20.6", "type": "release", "url": server.URL + "/v1/packages/1.20.6.json"},
					{"id": "1.20.4", "type": "release", "url": server.URL + "/v1/packages/missing.json"},
				},
			}
			_ = json.NewEncoder(w).Encode(resp)
		case "/v1/packages/1.21.1.json":
			_, _ = w.Write([]byte(`{"downloads":{"server":{"sha1":"59353fb40c36d304f2035d51e7d6e6baa98dc05c","size":51627615,"url":"https://piston-data.mojang.com/v1/objects/59353fb4/server.jar"}}}`))
		case "/v1/packages/1.20.6.json":
			_, _ = w.Write([]byte(`{"downloads":{"server":{"sha1":"145ff0858209bcfc164859ba735d4199aafa1eea","size":51420480,"url":"https://piston-data.mojang.com/v1/objects/145ff085/server.jar"}}}`))
		case "/v1/packages/24w33a.json":
			_, _ = w.Write([]byte(`{"downloads":{"client":{"sha1":"abc","url":"x"}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	return server
}

func TestResolveCoreLatest(t *testing.T) {
	server := newServer(t)
	defer server.Close()

	reg := New(server.URL, core.DefaultClient())
	target, err := reg.ResolveCore(context.Background(), core.CoreSpec{Provider: core.Vanilla, Version: "latest"})
	if err != nil {
		t.Fatalf("ResolveCore failed: %v", err)
	}

	if target.Version != "1.21.1" {
		t.Errorf("Version = %q, want %q", target.Version, "1.21.1")
	}
	if target.Build != "59353fb40c36d304f2035d51e7d6e6baa98dc05c" {
		t.Errorf("Build = %q", target.Build)
	}
	if target.Hash.Algorithm != "sha1" || target.Hash.Value != target.Build {
		t.Errorf("Hash = %+v", target.Hash)
	}
	if target.Link != "https://piston-data.mojang.com/v1/objects/59353fb4/server.jar" {
		t.Errorf("Link = %q", target.Link)
	}
}

func TestResolveCoreConstraint(t *testing.T) {
	server := newServer(t)
	defer server.Close()

	reg := New(server.URL, core.DefaultClient())
	target, err := reg.ResolveCore(context.Background(), core.CoreSpec{Version: "~1.20"})
	if err != nil {
		t.Fatalf("ResolveCore failed: %v", err)
	}
	if target.Version != "1.20.6" {
		t.Errorf("Version = %q, want %q", target.Version, "1.20.6")
	}
}

func TestResolveCoreNoServerJar(t *testing.T) {
	server := newServer(t)
	defer server.Close()

	reg := New(server.URL, core.DefaultClient())
	_, err := reg.ResolveCore(context.Background(), core.CoreSpec{Version: "24w33a"})
	if err == nil {
		t.Fatal("expected error for version without server download")
	}
}

func TestResolveCoreNotFound(t *testing.T) {
	server := newServer(t)
	defer server.Close()

	reg := New(server.URL, core.DefaultClient())
	_, err := reg.ResolveCore(context.Background(), core.CoreSpec{Version: "1.20.4"})
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("ResolveCore error = %v, want ErrNotFound", err)
	}

	_, err = reg.ResolveCore(context.Background(), core.CoreSpec{Version: "1.8.9"})
	if !errors.Is(err, core.ErrNoMatchingVersion) {
		t.Errorf("ResolveCore error = %v, want ErrNoMatchingVersion", err)
	}
}

func TestURLs(t *testing.T) {
	reg := New("", nil)
	urls := reg.URLs()

	if got := urls.PURL("server", "1.21.1"); got != "pkg:generic/minecraft-server@1.21.1" {
		t.Errorf("PURL = %q", got)
	}
	if got := urls.Download("server", "1.21.1"); got != "https://minecraft.wiki/w/Java_Edition_1.21.1" {
		t.Errorf("Download = %q", got)
	}
	if got := urls.API("/mc/game/version_manifest_v2.json"); got != DefaultURL+"/mc/game/version_manifest_v2.json" {
		t.Errorf("API = %q", got)
	}
}

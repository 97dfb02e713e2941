package provision_test

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/git-pkgs/provision"
	_ "github.com/git-pkgs/provision/all"
	"github.com/git-pkgs/provision/config"
	"github.com/git-pkgs/provision/lock"
)

func TestSupportedProviders(t *testing.T) {
	providers := provision.SupportedProviders()

	expected := []provision.Provider{"folia", "paper", "purpur", "vanilla", "velocity", "waterfall"}
	if len(providers) != len(expected) {
		t.Fatalf("expected %d providers, got %d: %v", len(expected), len(providers), providers)
	}
	for i, p := range expected {
		if providers[i] != p {
			t.Errorf("expected provider %q at position %d, got %q", p, i, providers[i])
		}
	}

	sources := provision.SupportedSources()
	if len(sources) != 2 || sources[0] != "hangar" || sources[1] != "modrinth" {
		t.Errorf("SupportedSources() = %v, want [hangar modrinth]", sources)
	}
}

func TestNewCore(t *testing.T) {
	tests := []struct {
		provider provision.Provider
		wantErr  bool
	}{
		{"vanilla", false},
		{"paper", false},
		{"folia", false},
		{"purpur", false},
		{"waterfall", false},
		{"velocity", false},
		{"fabric", true},
		{"unknown", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			r, err := provision.NewCore(tt.provider, "", nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewCore(%q) error = %v, wantErr %v", tt.provider, err, tt.wantErr)
			}
			if err == nil && r.Provider() != tt.provider {
				t.Errorf("Provider() = %q, want %q", r.Provider(), tt.provider)
			}
		})
	}
}

func TestBuildURLs(t *testing.T) {
	r, err := provision.NewCore("paper", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	urls := provision.BuildURLs(r.URLs(), "paper", "1.21.4")
	if urls["purl"] != "pkg:generic/papermc/paper@1.21.4" {
		t.Errorf("purl = %q", urls["purl"])
	}
	if _, err := provision.ParsePURL(urls["purl"]); err != nil {
		t.Errorf("ParsePURL(%q) failed: %v", urls["purl"], err)
	}
}

type upstream struct {
	server    *httptest.Server
	downloads atomic.Int32
	core      []byte
	plugin    []byte
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{core: []byte("paper server bytes"), plugin: []byte("luckperms plugin bytes")}

	coreSum := sha256.Sum256(u.core)
	pluginSum := sha512.Sum512(u.plugin)

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/projects/paper", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"project_id": "paper", "versions": []string{"1.21.3", "1.21.4"}})
	})
	mux.HandleFunc("/v2/projects/paper/versions/1.21.4/builds", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"builds": []map[string]any{{
			"build":   196,
			"channel": "default",
			"downloads": map[string]any{
				"application": map[string]string{"name": "paper-1.21.4-196.jar", "sha256": hex.EncodeToString(coreSum[:])},
			},
		}}})
	})
	mux.HandleFunc("/v2/projects/paper/versions/1.21.4/builds/196/downloads/paper-1.21.4-196.jar", func(w http.ResponseWriter, r *http.Request) {
		u.downloads.Add(1)
		_, _ = w.Write(u.core)
	})
	mux.HandleFunc("/v2/project/luckperms/version", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("loaders"); got != `["paper"]` {
			t.Errorf("loaders = %q, want %q", got, `["paper"]`)
		}
		if got := r.URL.Query().Get("game_versions"); got != `["1.21.4"]` {
			t.Errorf("game_versions = %q, want %q", got, `["1.21.4"]`)
		}
		writeJSON(w, []map[string]any{{
			"id":             "Vebnzrzj",
			"version_number": "v5.4.145",
			"version_type":   "release",
			"files": []map[string]any{{
				"url":      u.server.URL + "/cdn/LuckPerms-Bukkit-5.4.145.jar",
				"filename": "LuckPerms-Bukkit-5.4.145.jar",
				"primary":  true,
				"hashes":   map[string]string{"sha512": hex.EncodeToString(pluginSum[:])},
			}},
		}})
	})
	mux.HandleFunc("/cdn/LuckPerms-Bukkit-5.4.145.jar", func(w http.ResponseWriter, r *http.Request) {
		u.downloads.Add(1)
		_, _ = w.Write(u.plugin)
	})

	u.server = httptest.NewServer(mux)
	t.Cleanup(u.server.Close)
	return u
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func upstreamConfig(t *testing.T, up *upstream) config.Config {
	t.Helper()
	dir := filepath.ToSlash(t.TempDir())

	cfg, err := config.Parse(fmt.Sprintf(`
[core]
provider = "paper"
version = "1.21.4"

[paths]
core_dir = %q
plugins_dir = %q
lock = %q

[fetch]
retries = 0

[mirrors]
paper = %q
modrinth = %q

[plugins.luckperms]
purl = "pkg:modrinth/luckperms"
`, dir, dir+"/plugins", dir+"/provision.lock", up.server.URL, up.server.URL))
	if err != nil {
		t.Fatalf("config.Parse failed: %v", err)
	}
	return cfg
}

func TestPlan(t *testing.T) {
	up := newUpstream(t)
	cfg := upstreamConfig(t, up)

	plan, err := provision.Plan(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if !plan.Core.Fetch() || plan.Core.Target.Build != "1.21.4-196" {
		t.Errorf("core plan = %+v", plan.Core)
	}
	if len(plan.Plugins) != 1 || !plan.Plugins[0].Fetch() {
		t.Errorf("plugin plan = %+v", plan.Plugins)
	}
	if n := up.downloads.Load(); n != 0 {
		t.Errorf("Plan downloaded %d artifacts", n)
	}
}

func TestLinks(t *testing.T) {
	up := newUpstream(t)
	cfg := upstreamConfig(t, up)

	plan, err := provision.Plan(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	links := provision.Links(cfg, plan)

	paper := links["paper"]
	if paper["project"] != "https://papermc.io/downloads/paper" {
		t.Errorf("paper project = %q", paper["project"])
	}
	if want := up.server.URL + "/v2/projects/paper/versions/1.21.4/builds"; paper["download"] != want {
		t.Errorf("paper download = %q, want %q", paper["download"], want)
	}
	if paper["purl"] != "pkg:generic/papermc/paper@1.21.4" {
		t.Errorf("paper purl = %q", paper["purl"])
	}

	luckperms := links["luckperms"]
	if luckperms["project"] != "https://modrinth.com/plugin/luckperms" {
		t.Errorf("luckperms project = %q", luckperms["project"])
	}
	if !strings.HasPrefix(luckperms["download"], "https://modrinth.com/plugin/luckperms/version/") {
		t.Errorf("luckperms download = %q", luckperms["download"])
	}
}

func TestRunIntegration(t *testing.T) {
	up := newUpstream(t)
	cfg := upstreamConfig(t, up)
	dir := cfg.Paths.CoreDir

	report, err := provision.Run(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if fetched, skipped, failed := report.Counts(); fetched != 2 || skipped != 0 || failed != 0 {
		t.Errorf("counts = %d/%d/%d, want 2/0/0", fetched, skipped, failed)
	}

	data, err := os.ReadFile(filepath.Join(dir, "paper.jar"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(up.core) {
		t.Errorf("core content = %q", data)
	}
	if _, err := os.Stat(filepath.Join(dir, "plugins", "luckperms.jar")); err != nil {
		t.Errorf("plugin not written: %v", err)
	}

	state, err := lock.Load(cfg.Paths.Lock)
	if err != nil {
		t.Fatal(err)
	}
	if state.Core.Build != "1.21.4-196" || state.Core.Version != "1.21.4" {
		t.Errorf("core lock = %+v", state.Core)
	}
	if state.Plugins["luckperms"].Build != "Vebnzrzj" {
		t.Errorf("plugin lock = %+v", state.Plugins["luckperms"])
	}

	report, err = provision.Run(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if _, skipped, _ := report.Counts(); skipped != 2 {
		t.Errorf("second run skipped %d items, want 2", skipped)
	}
	if n := up.downloads.Load(); n != 2 {
		t.Errorf("downloads = %d, want 2", n)
	}
}

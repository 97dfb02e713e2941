package fetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/git-pkgs/provision/internal/core"
)

const helloSHA256 = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

type staticFetcher struct {
	body []byte
	err  error
}

func (s *staticFetcher) Fetch(_ context.Context, _ string) (*Artifact, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &Artifact{Body: io.NopCloser(bytes.NewReader(s.body)), Size: int64(len(s.body))}, nil
}

func (s *staticFetcher) Head(_ context.Context, _ string) (int64, string, error) {
	return int64(len(s.body)), "application/java-archive", s.err
}

func TestFetchVerified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello"))
	}))
	defer server.Close()

	tr := NewTransport(NewFetcher())
	data, err := tr.FetchVerified(context.Background(), server.URL+"/foo.jar", core.Hash{Algorithm: "sha256", Value: helloSHA256})
	if err != nil {
		t.Fatalf("FetchVerified failed: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("data = %q, want %q", data, "hello")
	}
}

func TestFetchVerifiedMismatch(t *testing.T) {
	tr := NewTransport(&staticFetcher{body: []byte("tampered")})

	_, err := tr.FetchVerified(context.Background(), "https://cdn.modrinth.com/foo.jar", core.Hash{Algorithm: "sha256", Value: helloSHA256})
	var intErr *core.IntegrityError
	if !errors.As(err, &intErr) {
		t.Fatalf("expected IntegrityError, got %T: %v", err, err)
	}
	if intErr.Expected != helloSHA256 {
		t.Errorf("Expected = %q, want %q", intErr.Expected, helloSHA256)
	}
	if intErr.Actual == helloSHA256 {
		t.Error("Actual should differ from Expected")
	}
	if !errors.Is(err, core.ErrIntegrity) {
		t.Error("expected ErrIntegrity in chain")
	}
}

func TestFetchVerifiedLegacyHashes(t *testing.T) {
	tr := NewTransport(&staticFetcher{body: []byte("hello")})

	tests := []core.Hash{
		{Algorithm: "sha1", Value: "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d"},
		{Algorithm: "md5", Value: "5d41402abc4b2a76b9719d911017c592"},
		{},
	}
	for _, h := range tests {
		t.Run(h.String(), func(t *testing.T) {
			if _, err := tr.FetchVerified(context.Background(), "https://example.com/a.jar", h); err != nil {
				t.Errorf("FetchVerified(%s) failed: %v", h, err)
			}
		})
	}
}

func TestFetchVerifiedUnsupportedAlgorithm(t *testing.T) {
	tr := NewTransport(&staticFetcher{body: []byte("hello")})

	_, err := tr.FetchVerified(context.Background(), "https://example.com/a.jar", core.Hash{Algorithm: "crc32", Value: "3610a686"})
	if !errors.Is(err, core.ErrIntegrity) {
		t.Errorf("expected ErrIntegrity, got %v", err)
	}
}

func TestFetchVerifiedTransportError(t *testing.T) {
	tr := NewTransport(&staticFetcher{err: ErrNotFound})

	_, err := tr.FetchVerified(context.Background(), "https://example.com/a.jar", core.Hash{})
	var tErr *core.TransportError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected TransportError, got %T: %v", err, err)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound in chain, got %v", err)
	}
}

func TestWriteArtifact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plugins", "foo.jar")
	tr := NewTransport(&staticFetcher{})

	if err := tr.WriteArtifact([]byte("v1"), path); err != nil {
		t.Fatalf("WriteArtifact failed: %v", err)
	}
	if err := tr.WriteArtifact([]byte("v2"), path); err != nil {
		t.Fatalf("WriteArtifact overwrite failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "v2" {
		t.Errorf("content = %q, want %q", got, "v2")
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestRemoveArtifact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "foo.jar")
	tr := NewTransport(&staticFetcher{})

	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := tr.RemoveArtifact(path); err != nil {
		t.Fatalf("RemoveArtifact failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file still exists after remove")
	}
	if err := tr.RemoveArtifact(path); err != nil {
		t.Errorf("removing missing file should succeed, got %v", err)
	}
}

package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/git-pkgs/provision/internal/core"
)

// ErrNoDownloadURL is returned when a plugin pinned to a direct link has no link.
var ErrNoDownloadURL = errors.New("no download URL available")

// Transport fetches artifact bytes with hash verification and persists them.
type Transport struct {
	fetcher FetcherInterface
}

// NewTransport creates a transport over f.
func NewTransport(f FetcherInterface) *Transport {
	return &Transport{fetcher: f}
}

// FetchVerified downloads link and checks the bytes against hash.
// Network failures are *core.TransportError, mismatches *core.IntegrityError.
// An empty hash skips verification.
func (t *Transport) FetchVerified(ctx context.Context, link string, hash core.Hash) ([]byte, error) {
	var verifier core.Verifier
	if !hash.IsZero() {
		v, err := hash.Verifier()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrIntegrity, err)
		}
		verifier = v
	}

	artifact, err := t.fetcher.Fetch(ctx, link)
	if err != nil {
		return nil, &core.TransportError{Link: link, Err: err}
	}
	defer func() { _ = artifact.Body.Close() }()

	var buf bytes.Buffer
	if artifact.Size > 0 {
		buf.Grow(int(artifact.Size))
	}
	var w io.Writer = &buf
	if verifier != nil {
		w = io.MultiWriter(&buf, verifier)
	}
	if _, err := io.Copy(w, artifact.Body); err != nil {
		return nil, &core.TransportError{Link: link, Err: err}
	}

	if verifier != nil && !verifier.Verified() {
		return nil, &core.IntegrityError{
			Link:      link,
			Algorithm: hash.Algorithm,
			Expected:  hash.Value,
			Actual:    verifier.Actual(),
		}
	}
	return buf.Bytes(), nil
}

// WriteArtifact replaces the file at path with data atomically.
func (t *Transport) WriteArtifact(data []byte, path string) error {
	return core.WriteFileAtomic(path, data, 0o644)
}

// RemoveArtifact deletes path. A missing file is not an error.
func (t *Transport) RemoveArtifact(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &core.IOError{Op: "remove", Path: path, Err: err}
	}
	return nil
}

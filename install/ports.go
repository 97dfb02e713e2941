package install

import (
	"context"

	"github.com/git-pkgs/provision/internal/core"
	"github.com/git-pkgs/provision/lock"
)

// Resolver maps desired items to concrete downloads.
// *fetch.Resolver implements it.
type Resolver interface {
	ResolveCore(ctx context.Context, spec core.CoreSpec) (*core.Target, error)
	ResolvePlugin(ctx context.Context, spec core.PluginSpec, platform core.Platform) (*core.Target, error)
}

// Transport moves artifact bytes. *fetch.Transport implements it.
type Transport interface {
	FetchVerified(ctx context.Context, link string, hash core.Hash) ([]byte, error)
	WriteArtifact(data []byte, path string) error
	RemoveArtifact(path string) error
}

// LockStore is the single serialization point for the lock record.
// *lock.Store implements it.
type LockStore interface {
	Read() lock.State
	Commit(fn func(tx *lock.Tx) error) error
	Exclusive(fn func(tx *lock.Tx) error) error
}

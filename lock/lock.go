// Package lock persists the record of what is currently installed.
//
// A Store is the single writer of the record. Every read-modify-write goes
// through its gate, and every committed mutation rewrites the whole file.
package lock

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/gofrs/flock"

	"github.com/git-pkgs/provision/internal/core"
)

// DefaultPath is where the record lives when the configuration names none.
const DefaultPath = "provision.lock"

// ErrHeld is returned by Open when another process holds the record.
var ErrHeld = errors.New("lock record is held by another process")

// CoreMeta is the installed server core.
type CoreMeta struct {
	Provider string `toml:"provider"`
	Version  string `toml:"version"`
	Build    string `toml:"build,omitempty"`
	Path     string `toml:"path"`
}

// IsZero reports whether no core is recorded.
func (c CoreMeta) IsZero() bool {
	return c == CoreMeta{}
}

// PluginMeta is one installed plugin.
type PluginMeta struct {
	Name  string `toml:"name"`
	Build string `toml:"build"`
	Path  string `toml:"path"`
}

// State is the full lock record.
type State struct {
	Core    CoreMeta              `toml:"core"`
	Plugins map[string]PluginMeta `toml:"plugins"`
}

// NewState returns an empty record.
func NewState() State {
	return State{Plugins: make(map[string]PluginMeta)}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := State{Core: s.Core, Plugins: make(map[string]PluginMeta, len(s.Plugins))}
	for k, v := range s.Plugins {
		out.Plugins[k] = v
	}
	return out
}

// Plugin returns the entry for name.
func (s State) Plugin(name string) (PluginMeta, bool) {
	p, ok := s.Plugins[name]
	return p, ok
}

// PluginNames returns the recorded plugin names, sorted.
func (s State) PluginNames() []string {
	names := make([]string, 0, len(s.Plugins))
	for name := range s.Plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Store owns the persisted record at a path.
type Store struct {
	path  string
	mu    sync.Mutex
	state State
	flock *flock.Flock
}

// Open loads the record at path and takes the advisory process lock on
// path+".lock". A missing file yields an empty record. A malformed one is
// a *core.LockCorruptionError and is left untouched on disk.
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &core.IOError{Op: "create directory", Path: filepath.Dir(path), Err: err}
	}

	fl := flock.New(path + ".lock")
	locked, err := fl.TryLock()
	if err != nil {
		return nil, &core.IOError{Op: "lock", Path: fl.Path(), Err: err}
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", path, ErrHeld)
	}

	state, err := load(path)
	if err != nil {
		_ = fl.Unlock()
		return nil, err
	}
	return &Store{path: path, state: state, flock: fl}, nil
}

// Load reads the record at path without taking the process lock.
// It is meant for read-only inspection.
func Load(path string) (State, error) {
	if path == "" {
		path = DefaultPath
	}
	return load(path)
}

func load(path string) (State, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewState(), nil
	}
	if err != nil {
		return State{}, &core.IOError{Op: "read", Path: path, Err: err}
	}

	state := NewState()
	if _, err := toml.Decode(string(data), &state); err != nil {
		return State{}, &core.LockCorruptionError{Path: path, Err: err}
	}
	if state.Plugins == nil {
		state.Plugins = make(map[string]PluginMeta)
	}
	for name, p := range state.Plugins {
		if p.Name == "" {
			p.Name = name
			state.Plugins[name] = p
		}
	}
	return state, nil
}

// Path returns the location of the record.
func (s *Store) Path() string {
	return s.path
}

// Close releases the process lock.
func (s *Store) Close() error {
	if s.flock == nil {
		return nil
	}
	return s.flock.Unlock()
}

// Read returns a snapshot of the current record.
func (s *Store) Read() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// UpdateCore replaces the core entry in memory.
func (s *Store) UpdateCore(meta CoreMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Core = meta
}

// UpsertPlugin inserts or replaces the entry for meta.Name in memory.
func (s *Store) UpsertPlugin(meta PluginMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Plugins[meta.Name] = meta
}

// RemovePlugin drops the entry for name in memory.
func (s *Store) RemovePlugin(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state.Plugins, name)
}

// Persist rewrites the record on disk from the in-memory state.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist()
}

// Commit runs fn with the gate held and persists the result if fn succeeds.
// If fn fails, the in-memory state is rolled back.
func (s *Store) Commit(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.state.Clone()
	if err := fn(&Tx{s: s}); err != nil {
		s.state = before
		return err
	}
	if err := s.persist(); err != nil {
		s.state = before
		return err
	}
	return nil
}

// Exclusive runs fn with the gate held. Mutations made through tx are not
// persisted unless fn calls tx.Persist. When fn fails, the record is reset
// to what was last persisted inside fn, or to its state before fn ran.
func (s *Store) Exclusive(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{s: s, saved: s.state.Clone()}
	if err := fn(tx); err != nil {
		s.state = tx.saved
		return err
	}
	return nil
}

func (s *Store) persist() error {
	data, err := Encode(s.state)
	if err != nil {
		return &core.IOError{Op: "encode", Path: s.path, Err: err}
	}
	return core.WriteFileAtomic(s.path, data, 0o644)
}

// Encode renders state in the on-disk format.
func Encode(state State) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(state); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Tx gives access to the record while the gate is held. It must not be
// used after the callback that received it returns.
type Tx struct {
	s     *Store
	saved State
}

// Read returns a snapshot of the record.
func (tx *Tx) Read() State {
	return tx.s.state.Clone()
}

// UpdateCore replaces the core entry.
func (tx *Tx) UpdateCore(meta CoreMeta) {
	tx.s.state.Core = meta
}

// UpsertPlugin inserts or replaces the entry for meta.Name.
func (tx *Tx) UpsertPlugin(meta PluginMeta) {
	tx.s.state.Plugins[meta.Name] = meta
}

// RemovePlugin drops the entry for name.
func (tx *Tx) RemovePlugin(name string) {
	delete(tx.s.state.Plugins, name)
}

// Persist rewrites the record on disk.
func (tx *Tx) Persist() error {
	if err := tx.s.persist(); err != nil {
		return err
	}
	tx.saved = tx.s.state.Clone()
	return nil
}

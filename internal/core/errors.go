package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a project, version or build does not exist upstream.
	ErrNotFound = errors.New("not found")

	ErrUnknownProvider   = errors.New("unknown provider")
	ErrUnknownSource     = errors.New("unknown source")
	ErrNoMatchingVersion = errors.New("no matching version")
	ErrIntegrity         = errors.New("integrity check failed")
	ErrLockCorrupt       = errors.New("lock record is corrupt")
)

// NotFoundError wraps ErrNotFound with additional context.
type NotFoundError struct {
	Provider string
	Name     string
	Version  string
}

func (e *NotFoundError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("%s: %s version %s not found", e.Provider, e.Name, e.Version)
	}
	return fmt.Sprintf("%s: %s not found", e.Provider, e.Name)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// UnknownError reports a provider or source name with no registered resolver.
type UnknownError struct {
	Kind string
	Name string
	Err  error
}

func (e *UnknownError) Error() string {
	return fmt.Sprintf("unknown %s: %q", e.Kind, e.Name)
}

func (e *UnknownError) Unwrap() error {
	return e.Err
}

// ResolutionError means the download target of an item could not be determined.
type ResolutionError struct {
	Item string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolving %s: %v", e.Item, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// TransportError means the artifact bytes could not be fetched.
type TransportError struct {
	Link string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.Link, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IntegrityError means fetched bytes do not match the expected hash.
// Nothing is written or committed for an item that fails this way.
type IntegrityError struct {
	Link      string
	Algorithm string
	Expected  string
	Actual    string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s: %s mismatch: expected %s, got %s", e.Link, e.Algorithm, e.Expected, e.Actual)
}

func (e *IntegrityError) Unwrap() error {
	return ErrIntegrity
}

// IOError is a disk failure while writing artifacts or the lock record.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// LockCorruptionError means the persisted lock record could not be decoded.
// It is fatal: the record is never reset automatically.
type LockCorruptionError struct {
	Path string
	Err  error
}

func (e *LockCorruptionError) Error() string {
	return fmt.Sprintf("lock record %s is unreadable, fix or remove it manually: %v", e.Path, e.Err)
}

func (e *LockCorruptionError) Unwrap() []error {
	return []error{ErrLockCorrupt, e.Err}
}

// Package store persists small string values under fixed keys.
//
// Tokens and the in-flight PKCE session live here. Every backend is safe for
// concurrent use and serves reads from the backing medium, so a value
// written by one component is visible to every other component immediately.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Store is a string key-value store.
type Store interface {
	// Get returns the value for key. ok is false if the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// SetMany stores several values in one write. Readers observe either
	// none or all of them.
	SetMany(ctx context.Context, values map[string]string) error
	// Delete removes keys. Absent keys are ignored.
	Delete(ctx context.Context, keys ...string) error
	// Close releases resources held by the store.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Default file names for each persistent backend.
const (
	DefaultFileName   = "session.json"
	DefaultSQLiteName = "cassette.db"
)

// Open creates a store for the named backend. If path is empty the store is
// placed in dir with the backend's default file name.
func Open(backend, path, dir string) (Store, error) {
	switch backend {
	case "", BackendFile:
		if path == "" {
			path = filepath.Join(dir, DefaultFileName)
		}
		return NewFile(path), nil
	case BackendSQLite:
		if path == "" {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return nil, fmt.Errorf("failed to create config directory: %w", err)
			}
			path = filepath.Join(dir, DefaultSQLiteName)
		}
		return NewSQLite(path)
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", backend)
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

// Package settings reads the user's cloud clipboard settings from a
// key/value store. It is the desktop counterpart of the preferences file the
// mobile app writes, so key names match the ones that app uses.
package settings

import (
	"context"
	"fmt"
	"sort"
	"sync"

	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
)

// Getter is the read side of a settings store. The refresh pipeline only
// needs this.
type Getter interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
}

// Store is a key/value settings backend.
type Store interface {
	Getter

	// Set saves value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Returns CodeSettingsNotFound if it does not exist.
	Delete(ctx context.Context, key string) error

	// Keys returns all stored key names in sorted order.
	Keys(ctx context.Context) ([]string, error)

	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend string            // "sqlite", "keyring" or "config"
	Path    string            // database file for sqlite
	Service string            // keyring service name
	Values  map[string]string // static values for the config backend
}

// Factory opens a Store for a backend.
type Factory func(cfg Config) (Store, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

func init() {
	RegisterBackend("keyring", func(cfg Config) (Store, error) {
		return NewKeyringStore(cfg.Service), nil
	})
	RegisterBackend("config", func(cfg Config) (Store, error) {
		return NewStaticStore(cfg.Values), nil
	})
}

// RegisterBackend registers a factory for a named backend. Backend packages
// call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Backends returns the registered backend names.
func Backends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open creates the Store for cfg.Backend, defaulting to "sqlite".
func Open(cfg Config) (Store, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = "sqlite"
	}

	factoriesMu.RLock()
	f, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, cliperr.Errorf(cliperr.CodeSettingsBackendUnsupported,
			"unsupported settings backend: %q (registered: %v)", backend, Backends())
	}

	s, err := f(cfg)
	if err != nil {
		return nil, cliperr.Wrap(err, cliperr.CodeSettingsStoreFailure, fmt.Sprintf("opening %s settings", backend))
	}
	return s, nil
}

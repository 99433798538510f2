// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

// Package strategy defines how a single refresh attempt retrieves clipboard
// content. Implementations live in sub-packages and are selected by name.
package strategy

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Z-zoe8013/ZTOOLBOX/internal/fetch"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/settings"
	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
)

// Strategy performs one attempt of a refresh: fetch, decode and, where the
// remote holds ciphertext, decrypt.
type Strategy interface {
	// Name identifies the strategy in logs, metrics and configuration.
	Name() string

	// RetryDelay is the fixed pause between failed attempts.
	RetryDelay() time.Duration

	// Attempt returns the plaintext or a coded error describing why this
	// attempt failed. It must not retry internally.
	Attempt(ctx context.Context, creds settings.Credentials) (string, error)
}

// Fetcher is the network dependency shared by all strategies.
type Fetcher interface {
	Fetch(ctx context.Context, req fetch.Request) fetch.Response
}

// Options carries the per-strategy settings read from configuration.
type Options struct {
	// Endpoint is the base URL (textdb) or API URL (netcut).
	Endpoint   string
	RetryDelay time.Duration
	// Headers are added to every request.
	Headers map[string]string
}

// Factory builds a Strategy around a Fetcher.
type Factory func(opts Options, f Fetcher) (Strategy, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// Register makes a strategy available under name. Strategy packages call this
// from init().
func Register(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Names returns the registered strategy names.
func Names() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the named strategy.
func New(name string, opts Options, f Fetcher) (Strategy, error) {
	factoriesMu.RLock()
	factory, ok := factories[name]
	factoriesMu.RUnlock()
	if !ok {
		return nil, cliperr.Errorf(cliperr.CodeConfigValidateInvalidValue,
			"unknown strategy %q (registered: %v)", name, Names())
	}
	if f == nil {
		return nil, cliperr.New(cliperr.CodeConfigValidateInvalidValue, "strategy requires a fetcher",
			cliperr.FieldStrategy(name))
	}
	return factory(opts, f)
}

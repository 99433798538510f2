// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package settings

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"

	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
	"github.com/zalando/go-keyring"
)

// DefaultKeyringService is the keyring service name settings are stored under.
const DefaultKeyringService = "cloudclip"

// keysIndexSuffix is appended to the service name to form the key under which
// the JSON index of stored key names is kept. go-keyring cannot enumerate keys.
const keysIndexSuffix = "::keys-index"

// KeyringStore implements Store using the OS keyring via zalando/go-keyring.
// On macOS it uses Keychain, on Linux secret-service (D-Bus), and on Windows
// the Credential Manager.
type KeyringStore struct {
	service string
}

// NewKeyringStore returns a KeyringStore for service, or the default service
// when empty.
func NewKeyringStore(service string) *KeyringStore {
	if service == "" {
		service = DefaultKeyringService
	}
	return &KeyringStore{service: service}
}

func (s *KeyringStore) Get(_ context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, cliperr.New(cliperr.CodeSettingsInvalidInput, "settings get: key must not be empty")
	}

	val, err := keyring.Get(s.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", false, nil
		}
		return "", false, cliperr.Wrapf(err, cliperr.CodeSettingsStoreFailure, "reading %s/%s from keyring", s.service, key)
	}
	return val, true, nil
}

func (s *KeyringStore) Set(_ context.Context, key, value string) error {
	if key == "" {
		return cliperr.New(cliperr.CodeSettingsInvalidInput, "settings set: key must not be empty")
	}

	if err := keyring.Set(s.service, key, value); err != nil {
		return cliperr.Wrapf(err, cliperr.CodeSettingsStoreFailure, "storing %s/%s in keyring", s.service, key)
	}

	return s.addToIndex(key)
}

func (s *KeyringStore) Delete(_ context.Context, key string) error {
	if key == "" {
		return cliperr.New(cliperr.CodeSettingsInvalidInput, "settings delete: key must not be empty")
	}

	if err := keyring.Delete(s.service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return cliperr.Errorf(cliperr.CodeSettingsNotFound, "setting %s/%s not found", s.service, key)
		}
		return cliperr.Wrapf(err, cliperr.CodeSettingsStoreFailure, "deleting %s/%s from keyring", s.service, key)
	}

	return s.removeFromIndex(key)
}

func (s *KeyringStore) Keys(_ context.Context) ([]string, error) {
	keys, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *KeyringStore) Close() error { return nil }

func (s *KeyringStore) loadIndex() ([]string, error) {
	raw, err := keyring.Get(s.service, s.service+keysIndexSuffix)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, cliperr.Wrapf(err, cliperr.CodeSettingsStoreFailure, "loading key index for %s", s.service)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, cliperr.Wrapf(err, cliperr.CodeSettingsStoreFailure, "decoding key index for %s", s.service)
	}
	return keys, nil
}

func (s *KeyringStore) saveIndex(keys []string) error {
	indexKey := s.service + keysIndexSuffix

	if len(keys) == 0 {
		if delErr := keyring.Delete(s.service, indexKey); delErr != nil {
			slog.Debug("failed to clean up empty key index", "service", s.service, "error", delErr)
		}
		return nil
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return cliperr.Wrapf(err, cliperr.CodeSettingsStoreFailure, "encoding key index for %s", s.service)
	}
	if err := keyring.Set(s.service, indexKey, string(data)); err != nil {
		return cliperr.Wrapf(err, cliperr.CodeSettingsStoreFailure, "saving key index for %s", s.service)
	}
	return nil
}

// addToIndex adds key to the index (idempotent).
func (s *KeyringStore) addToIndex(key string) error {
	keys, err := s.loadIndex()
	if err != nil {
		return err
	}
	for _, k := range keys {
		if k == key {
			return nil
		}
	}
	return s.saveIndex(append(keys, key))
}

func (s *KeyringStore) removeFromIndex(key string) error {
	keys, err := s.loadIndex()
	if err != nil {
		return err
	}

	filtered := keys[:0]
	for _, k := range keys {
		if k != key {
			filtered = append(filtered, k)
		}
	}
	return s.saveIndex(filtered)
}

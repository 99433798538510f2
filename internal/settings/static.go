// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package settings

import (
	"context"
	"sort"

	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
)

// StaticStore serves settings from the config file. It is read-only.
type StaticStore struct {
	values map[string]string
}

// NewStaticStore copies values into a read-only store.
func NewStaticStore(values map[string]string) *StaticStore {
	cp := make(map[string]string, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return &StaticStore{values: cp}
}

func (s *StaticStore) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *StaticStore) Set(_ context.Context, key, _ string) error {
	return cliperr.New(cliperr.CodeSettingsInvalidInput, "config settings backend is read-only",
		cliperr.FieldSettingKey(key))
}

func (s *StaticStore) Delete(_ context.Context, key string) error {
	return cliperr.New(cliperr.CodeSettingsInvalidInput, "config settings backend is read-only",
		cliperr.FieldSettingKey(key))
}

func (s *StaticStore) Keys(_ context.Context) ([]string, error) {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *StaticStore) Close() error { return nil }

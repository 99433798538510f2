// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

// Package sqlite registers the "sqlite" settings backend.
package sqlite

import (
	"github.com/Z-zoe8013/ZTOOLBOX/internal/settings"
	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
)

func init() {
	settings.RegisterBackend("sqlite", newStore)
}

func newStore(cfg settings.Config) (settings.Store, error) {
	if cfg.Path == "" {
		return nil, cliperr.New(cliperr.CodeSettingsInvalidInput, "sqlite settings backend requires a path")
	}
	return New(cfg.Path)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
)

//go:embed cloudclip.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/cloudclip/cloudclip.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", cliperr.Errorf(cliperr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "cloudclip", "cloudclip.yaml"), nil
}

// settingsPathLine is the commented settings.path entry in the default config.
var settingsPathLine = []byte("  # path: ~/.config/cloudclip/settings.db")

// BootstrapConfig writes the default commented config if none exists yet,
// pinning settings.path to a settings.db beside it so the credential store
// stays next to the file that names it. Returns the path written, or an empty string if the file already existed
// or could not be written. Failures are logged at debug level and skipped.
func BootstrapConfig() string {
	cfgPath, err := DefaultConfigPath()
	if err != nil {
		slog.Debug("skipping config bootstrap", "error", err)
		return ""
	}
	return bootstrapAt(cfgPath)
}

func bootstrapAt(cfgPath string) string {
	if _, err := os.Stat(cfgPath); err == nil {
		return ""
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		slog.Debug("skipping config bootstrap: cannot create directory", "path", dir, "error", err)
		return ""
	}

	if err := os.WriteFile(cfgPath, renderDefault(cfgPath), 0o600); err != nil {
		slog.Debug("skipping config bootstrap: cannot write config", "path", cfgPath, "error", err)
		return ""
	}

	slog.Info("created default config", "path", cfgPath)
	return cfgPath
}

// renderDefault returns the default config with settings.path resolved
// against the directory the config is written to.
func renderDefault(cfgPath string) []byte {
	dbPath := filepath.Join(filepath.Dir(cfgPath), "settings.db")
	line := fmt.Appendf(nil, "  path: %q", filepath.ToSlash(dbPath))
	return bytes.Replace(DefaultConfigYAML, settingsPathLine, line, 1)
}

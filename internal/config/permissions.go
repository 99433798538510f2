// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package config

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
)

// PermissionIssue is a secret-bearing file that other users can access.
type PermissionIssue struct {
	Path string
	Mode fs.FileMode
}

func (i PermissionIssue) String() string {
	return fmt.Sprintf("%s has mode %04o, want 0600", i.Path, i.Mode.Perm())
}

// SecretFiles lists the files that may hold the store ID or passphrase:
// the config file in use and, for the sqlite backend, the settings
// database.
func (c *Config) SecretFiles(configFile string) []string {
	var paths []string
	if configFile != "" {
		paths = append(paths, configFile)
	}
	if c.Settings.Backend == "sqlite" && c.Settings.Path != "" {
		paths = append(paths, c.Settings.Path)
	}
	return paths
}

// CheckPermissions returns an issue for every existing path whose mode
// grants group or other access. Empty and missing paths are skipped.
func CheckPermissions(paths ...string) []PermissionIssue {
	var issues []PermissionIssue
	for _, path := range paths {
		if path == "" {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if insecureMode(info.Mode()) {
			issues = append(issues, PermissionIssue{Path: path, Mode: info.Mode()})
		}
	}
	return issues
}

// WarnInsecurePermissions logs one warning per issue found by
// CheckPermissions. It never fails startup.
func WarnInsecurePermissions(logger *slog.Logger, paths ...string) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, issue := range CheckPermissions(paths...) {
		logger.Warn("file is readable by other users and may expose the passphrase",
			"path", issue.Path,
			"mode", issue.Mode.Perm(),
			"recommended", "0600",
		)
	}
}

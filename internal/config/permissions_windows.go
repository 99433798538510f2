// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

//go:build windows

package config

import "io/fs"

// Windows protects files with ACLs; mode bits say nothing useful.
func insecureMode(fs.FileMode) bool { return false }

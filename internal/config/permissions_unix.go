// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

//go:build !windows

package config

import "io/fs"

const groupOtherAccess fs.FileMode = 0o077

func insecureMode(mode fs.FileMode) bool {
	return mode.Perm()&groupOtherAccess != 0
}

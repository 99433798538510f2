// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

//go:build !windows

package main

import "golang.org/x/sys/unix"

func availableBytes(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

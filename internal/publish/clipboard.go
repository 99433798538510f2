// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package publish

import (
	"sync"

	"github.com/atotto/clipboard"

	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
)

// Clipboard is the shared plain-text sink. Concurrent writers race and the
// last write wins.
type Clipboard interface {
	SetPlainText(text string) error
}

// SystemClipboard writes to the desktop clipboard.
type SystemClipboard struct{}

// Available reports whether a clipboard utility exists on this system.
func (SystemClipboard) Available() bool {
	return !clipboard.Unsupported
}

func (SystemClipboard) SetPlainText(text string) error {
	if clipboard.Unsupported {
		return cliperr.New(cliperr.CodePublishClipboardFailure, "no clipboard utility available on this system")
	}
	if err := clipboard.WriteAll(text); err != nil {
		return cliperr.Wrap(err, cliperr.CodePublishClipboardFailure, "writing system clipboard")
	}
	return nil
}

// MemoryClipboard keeps the last written text in memory. It backs headless
// servers and tests.
type MemoryClipboard struct {
	mu     sync.Mutex
	text   string
	writes int
	// Err, when set, is returned by every write.
	Err error
}

func (m *MemoryClipboard) SetPlainText(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.text = text
	m.writes++
	return nil
}

// Text returns the last successfully written text.
func (m *MemoryClipboard) Text() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}

// Writes returns the number of successful writes.
func (m *MemoryClipboard) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

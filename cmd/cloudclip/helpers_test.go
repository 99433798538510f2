// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/Z-zoe8013/ZTOOLBOX/internal/crypto"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/decode"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/publish"
	"github.com/stretchr/testify/require"
)

const (
	testStoreID    = "store-1"
	testPassphrase = "correct horse battery staple"
)

// isolateHome points HOME at a temp dir so config discovery and bootstrap
// never touch the real user profile.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	return home
}

// writeTestConfig writes a config file whose sqlite settings live in a temp
// dir. settingsLines are added under "settings:"; extra is appended at the
// top level and must not repeat the log, textdb, notify or settings keys.
func writeTestConfig(t *testing.T, settingsLines, extra string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cloudclip.yaml")

	content := fmt.Sprintf(`log:
  level: error
textdb:
  retry_delay: 10ms
notify:
  console: true
settings:
  path: %q
%s%s`, filepath.Join(dir, "settings.db"), settingsLines, extra)

	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// configBackend returns settings lines that serve credentials from config.
func configBackend(storeID, passphrase string) string {
	return fmt.Sprintf("  backend: config\n  store_id: %q\n  passphrase: %q\n", storeID, passphrase)
}

// executeCmd runs the root command with args and returns combined stdout.
func executeCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	isolateHome(t)

	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })

	root := NewRootCmd()
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(new(bytes.Buffer))
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

// useMemoryClipboard swaps the clipboard factory for the duration of t.
func useMemoryClipboard(t *testing.T) *publish.MemoryClipboard {
	t.Helper()
	cb := &publish.MemoryClipboard{}
	old := clipboardFactory
	clipboardFactory = func(*slog.Logger) publish.Clipboard { return cb }
	t.Cleanup(func() { clipboardFactory = old })
	return cb
}

// sealForTextDB produces the body textdb would return for text.
func sealForTextDB(t *testing.T, text, passphrase string) string {
	t.Helper()
	payload, err := crypto.Encrypt(text, passphrase)
	require.NoError(t, err)
	return decode.EncodeURLSafe([]byte(payload))
}

// fakeTextDB serves body for /<storeID> and counts requests.
func fakeTextDB(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/"+testStoreID {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefresh_Success(t *testing.T) {
	const text = "meeting notes for thursday afternoon"
	srv, hits := fakeTextDB(t, http.StatusOK, sealForTextDB(t, text, testPassphrase))
	t.Setenv("CLOUDCLIP_TEXTDB_BASE_URL", srv.URL)
	cb := useMemoryClipboard(t)

	cfgPath := writeTestConfig(t, configBackend(testStoreID, testPassphrase), "")
	out, err := executeCmd(t, "", "refresh", "--print", "--config", cfgPath)
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, text, cb.Text())
	assert.Contains(t, out, "Cloud clipboard refreshed: meeting notes for th...")
	assert.True(t, strings.HasSuffix(out, text+"\n"), "--print writes the full text last")
}

func TestRefresh_BackgroundActionWaitsForRun(t *testing.T) {
	srv, hits := fakeTextDB(t, http.StatusOK, sealForTextDB(t, "short", testPassphrase))
	t.Setenv("CLOUDCLIP_TEXTDB_BASE_URL", srv.URL)
	cb := useMemoryClipboard(t)

	cfgPath := writeTestConfig(t, configBackend(testStoreID, testPassphrase), "")
	out, err := executeCmd(t, "", "refresh", "--action", "background_refresh", "--config", cfgPath)
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, "short", cb.Text())
	assert.Contains(t, out, "Cloud clipboard refreshed: short")
}

func TestRefresh_ExhaustsRetries(t *testing.T) {
	srv, hits := fakeTextDB(t, http.StatusInternalServerError, "boom")
	t.Setenv("CLOUDCLIP_TEXTDB_BASE_URL", srv.URL)
	cb := useMemoryClipboard(t)

	cfgPath := writeTestConfig(t, configBackend(testStoreID, testPassphrase), "")
	out, err := executeCmd(t, "", "refresh", "--config", cfgPath)
	require.Error(t, err)

	assert.Equal(t, cliperr.CodeFetchRetriesExhausted, cliperr.CodeOf(err))
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, 0, cb.Writes())
	assert.Contains(t, out, "Refresh failed after 3 attempts")
}

func TestRefresh_MissingCredentialsMakesNoRequest(t *testing.T) {
	srv, hits := fakeTextDB(t, http.StatusOK, "unused")
	t.Setenv("CLOUDCLIP_TEXTDB_BASE_URL", srv.URL)
	useMemoryClipboard(t)

	cfgPath := writeTestConfig(t, "", "")
	out, err := executeCmd(t, "", "refresh", "--config", cfgPath)
	require.Error(t, err)

	assert.Equal(t, cliperr.CodeFetchCredentialsMissing, cliperr.CodeOf(err))
	assert.Equal(t, int32(0), hits.Load())
	assert.Contains(t, out, "Refresh failed:")
}

func TestRefresh_InvalidAction(t *testing.T) {
	cfgPath := writeTestConfig(t, "", "")
	_, err := executeCmd(t, "", "refresh", "--action", "sync", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--action")
}

func TestRefresh_Remote(t *testing.T) {
	var gotAction string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/refresh", r.URL.Path)
		gotAction = r.URL.Query().Get("action")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"action": "refresh",
			"status": "completed",
			"run":    map[string]any{"strategy": "textdb", "success": true, "attempts": 2, "clipboard_written": true},
		})
	}))
	defer srv.Close()

	cfgPath := writeTestConfig(t, "", "")
	out, err := executeCmd(t, "", "refresh", "--remote", strings.TrimPrefix(srv.URL, "http://"), "--config", cfgPath)
	require.NoError(t, err)

	assert.Equal(t, "refresh", gotAction)
	assert.Contains(t, out, "Refresh completed")
	assert.Contains(t, out, "attempts=2")
	assert.Contains(t, out, "clipboard_written=true")
}

func TestRefresh_RemoteProblemDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"title":  "Bad Gateway",
			"status": http.StatusBadGateway,
			"detail": "Refresh failed after 3 attempts: the server is busy",
		})
	}))
	defer srv.Close()

	cfgPath := writeTestConfig(t, "", "")
	_, err := executeCmd(t, "", "refresh", "--remote", strings.TrimPrefix(srv.URL, "http://"), "--config", cfgPath)
	require.Error(t, err)
	assert.Equal(t, cliperr.CodeCLIRequestFailure, cliperr.CodeOf(err))
	assert.Contains(t, err.Error(), "Refresh failed after 3 attempts")
	assert.Equal(t, http.StatusBadGateway, cliperr.FieldsOf(err)["status_code"])
}

func TestRefresh_RemoteNotRunning(t *testing.T) {
	cfgPath := writeTestConfig(t, "", "")
	_, err := executeCmd(t, "", "refresh", "--remote", "127.0.0.1:1", "--config", cfgPath)
	require.Error(t, err)
	assert.Equal(t, cliperr.CodeCLIServerNotRunning, cliperr.CodeOf(err))
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// New / Errorf
// ---------------------------------------------------------------------------

func TestNewIncludesCodeAndFields(t *testing.T) {
	err := cliperr.New(
		cliperr.CodeFetchHTTPFailure,
		"unexpected status",
		cliperr.FieldRunID("run-123"),
		cliperr.FieldStatusCode(503),
	)

	require.Error(t, err)
	assert.Equal(t, cliperr.CodeFetchHTTPFailure, cliperr.CodeOf(err))
	assert.True(t, cliperr.HasCode(err, cliperr.CodeFetchHTTPFailure))

	fields := cliperr.FieldsOf(err)
	assert.Equal(t, "run-123", fields["run_id"])
	assert.Equal(t, 503, fields["status_code"])
}

func TestErrorfFormatsMessage(t *testing.T) {
	err := cliperr.Errorf(cliperr.CodeDecodePayloadInvalid, "payload has %d parts", 3)
	require.Error(t, err)
	assert.Equal(t, cliperr.CodeDecodePayloadInvalid, cliperr.CodeOf(err))
	assert.Contains(t, err.Error(), "payload has 3 parts")
}

func TestErrorfWrapsInnerError(t *testing.T) {
	inner := stderrors.New("connection reset")
	err := cliperr.Errorf(cliperr.CodeFetchNetworkFailure, "fetching: %w", inner)
	require.Error(t, err)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, cliperr.CodeFetchNetworkFailure, cliperr.CodeOf(err))
}

// ---------------------------------------------------------------------------
// Wrap / Wrapf / With
// ---------------------------------------------------------------------------

func TestWrapPreservesWrappedErrorAndCode(t *testing.T) {
	root := stderrors.New("no rows")
	err := cliperr.Wrap(root, cliperr.CodeSettingsNotFound, "loading setting",
		cliperr.FieldSettingKey("flutter.encryption_key"),
	)

	require.Error(t, err)
	assert.ErrorIs(t, err, root)
	assert.True(t, cliperr.IsNotFound(err))
	assert.Equal(t, "flutter.encryption_key", cliperr.FieldsOf(err)["setting_key"])
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, cliperr.Wrap(nil, cliperr.CodeServerInternalFailure, "ignored"))
	assert.NoError(t, cliperr.Wrapf(nil, cliperr.CodeServerInternalFailure, "ignored %s", "arg"))
	assert.NoError(t, cliperr.With(nil, cliperr.FieldStrategy("textdb")))
}

func TestWithAddsContextWithoutChangingCode(t *testing.T) {
	base := cliperr.New(cliperr.CodeDecryptFailure, "bad padding")
	withCtx := cliperr.With(base, cliperr.FieldStrategy("textdb"))

	assert.Equal(t, cliperr.CodeDecryptFailure, cliperr.CodeOf(withCtx))
	assert.Equal(t, "textdb", cliperr.FieldsOf(withCtx)["strategy"])
}

func TestWithOnPlainErrorDefaultsToInternalCode(t *testing.T) {
	enriched := cliperr.With(stderrors.New("something broke"), cliperr.FieldAttempt(2))
	assert.Equal(t, cliperr.CodeServerInternalFailure, cliperr.CodeOf(enriched))
	assert.Equal(t, 2, cliperr.FieldsOf(enriched)["attempt"])
}

func TestCodeOfReturnsInnermostCodedError(t *testing.T) {
	inner := cliperr.New(cliperr.CodeRemoteServerOverloaded, "busy")
	outer := cliperr.Wrap(inner, cliperr.CodeServerInternalFailure, "handler")
	assert.Equal(t, cliperr.CodeRemoteServerOverloaded, cliperr.CodeOf(outer))
}

func TestErrorIsWithWrappedChain(t *testing.T) {
	sentinel := stderrors.New("root cause")
	mid := fmt.Errorf("mid: %w", sentinel)
	outer := cliperr.Wrap(mid, cliperr.CodeServerInternalFailure, "handler")

	assert.ErrorIs(t, outer, sentinel)
}

// ---------------------------------------------------------------------------
// Classification helpers
// ---------------------------------------------------------------------------

func TestClassificationAndStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		code   cliperr.Code
		status int
		check  func(error) bool
	}{
		{name: "setting not found", code: cliperr.CodeSettingsNotFound, status: 404, check: cliperr.IsNotFound},
		{name: "invalid format", code: cliperr.CodeDecodePayloadInvalid, status: 400, check: cliperr.IsInvalidInput},
		{name: "invalid value", code: cliperr.CodeConfigValidateInvalidValue, status: 400, check: cliperr.IsInvalidInput},
		{name: "timeout", code: cliperr.CodeFetchTimeout, status: 504, check: cliperr.IsTimeout},
		{name: "network failure", code: cliperr.CodeFetchNetworkFailure, status: 502, check: cliperr.IsUpstreamFailure},
		{name: "http failure", code: cliperr.CodeFetchHTTPFailure, status: 502, check: cliperr.IsUpstreamFailure},
		{name: "remote overloaded", code: cliperr.CodeRemoteServerOverloaded, status: 502, check: cliperr.IsRemote},
		{name: "remote expired", code: cliperr.CodeRemoteCredentialExpired, status: 502, check: cliperr.IsRemote},
		{name: "exhausted", code: cliperr.CodeFetchRetriesExhausted, status: 502, check: func(err error) bool {
			return cliperr.HasCode(err, cliperr.CodeFetchRetriesExhausted)
		}},
		{name: "missing credentials", code: cliperr.CodeFetchCredentialsMissing, status: 412, check: func(err error) bool {
			return !cliperr.IsUpstreamFailure(err)
		}},
		{name: "internal", code: cliperr.CodeServerInternalFailure, status: 500, check: func(err error) bool { return !cliperr.IsNotFound(err) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cliperr.New(tt.code, "boom")
			assert.Equal(t, tt.status, cliperr.HTTPStatus(err))
			assert.True(t, tt.check(err))
		})
	}
}

func TestClassificationOnNilAndPlainError(t *testing.T) {
	for _, err := range []error{nil, stderrors.New("plain")} {
		assert.False(t, cliperr.IsNotFound(err))
		assert.False(t, cliperr.IsInvalidInput(err))
		assert.False(t, cliperr.IsTimeout(err))
		assert.False(t, cliperr.IsRemote(err))
		assert.False(t, cliperr.IsUpstreamFailure(err))
		assert.Equal(t, http.StatusInternalServerError, cliperr.HTTPStatus(err))
	}
}

func TestJoinCombinesErrors(t *testing.T) {
	a := stderrors.New("first")
	b := stderrors.New("second")
	joined := cliperr.Join(a, b)

	require.Error(t, joined)
	assert.ErrorIs(t, joined, a)
	assert.ErrorIs(t, joined, b)
	assert.Equal(t, cliperr.CodeServerInternalFailure, cliperr.CodeOf(joined))
}

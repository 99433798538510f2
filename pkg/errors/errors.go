// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeFetchCredentialsMissing Code = "fetch.credentials.missing"
	CodeFetchNetworkFailure     Code = "fetch.network.failure"
	CodeFetchHTTPFailure        Code = "fetch.http.failure"
	CodeFetchTimeout            Code = "fetch.request.timeout"
	CodeFetchRetriesExhausted   Code = "fetch.retries.exhausted"

	CodeDecodePayloadInvalid Code = "decode.payload.invalid_format"
	CodeDecryptFailure       Code = "decrypt.payload.failure"

	CodeRemoteServerOverloaded  Code = "remote.server.overloaded"
	CodeRemoteCredentialExpired Code = "remote.credential.expired"
	CodeRemoteUnknownFailure    Code = "remote.unknown.failure"

	CodePublishClipboardFailure Code = "publish.clipboard.failure"
	CodePublishNotifyFailure    Code = "publish.notify.failure"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeSettingsInvalidInput       Code = "settings.input.invalid_input"
	CodeSettingsNotFound           Code = "settings.entry.not_found"
	CodeSettingsStoreFailure       Code = "settings.store.failure"
	CodeSettingsBackendUnsupported Code = "settings.backend.unsupported"
	CodeSettingsResolveFailure     Code = "settings.resolve.failure"

	CodeServerRequestInvalid  Code = "server.request.invalid"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerConfigInvalid   Code = "server.config.invalid"
	CodeServerStartFailure    Code = "server.start.failure"

	CodeCLIServerNotRunning Code = "cli.server.not_running"
	CodeCLIRequestFailure   Code = "cli.request.failure"
	CodeCLISetupFailure     Code = "cli.setup.failure"
	CodeCLIInputInvalid     Code = "cli.input.invalid"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// FieldValue creates a structured error field.
func FieldValue(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// Field is kept as the primary helper for terse callsites.
func Field(key string, value any) Attr {
	return FieldValue(key, value)
}

func FieldRunID(value string) Attr {
	return Field("run_id", value)
}

func FieldStrategy(value string) Attr {
	return Field("strategy", value)
}

func FieldAttempt(value int) Attr {
	return Field("attempt", value)
}

func FieldStatusCode(value int) Attr {
	return Field("status_code", value)
}

func FieldSettingKey(value string) Attr {
	return Field("setting_key", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsTimeout(err error) bool {
	return reason(CodeOf(err)) == "timeout"
}

// IsRemote reports whether err was classified from the remote note API.
func IsRemote(err error) bool {
	return strings.HasPrefix(string(CodeOf(err)), "remote.")
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.HasPrefix(string(code), "fetch.") && reason(code) == "failure"
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsTimeout(err):
		return http.StatusGatewayTimeout
	case IsUpstreamFailure(err), IsRemote(err), HasCode(err, CodeFetchRetriesExhausted):
		return http.StatusBadGateway
	case HasCode(err, CodeFetchCredentialsMissing):
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeServerInternalFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}

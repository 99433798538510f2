// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package decode

import (
	"strings"

	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
	"github.com/tidwall/gjson"
)

// Error text fragments returned by the note API. Matching is by substring
// because the API exposes no machine-readable error codes.
const (
	remoteOverloadedText = "服务器负载过高"
	remoteExpiredText    = "凭证失效"
)

// noteStatusOK is the status value of a successful note lookup.
const noteStatusOK = 1

// NoteContent extracts data.note_content from a note API response.
//
// A status other than 1 is classified from the error text into
// CodeRemoteServerOverloaded, CodeRemoteCredentialExpired or
// CodeRemoteUnknownFailure. Bodies that are not the expected JSON shape
// yield CodeDecodePayloadInvalid.
func NoteContent(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", cliperr.New(cliperr.CodeDecodePayloadInvalid, "note response is not valid JSON")
	}

	status := gjson.GetBytes(body, "status")
	if !status.Exists() {
		return "", cliperr.New(cliperr.CodeDecodePayloadInvalid, "note response has no status field")
	}

	if status.Int() != noteStatusOK {
		return "", ClassifyRemoteError(gjson.GetBytes(body, "error").String())
	}

	content := gjson.GetBytes(body, "data.note_content")
	if !content.Exists() || content.Type != gjson.String {
		return "", cliperr.New(cliperr.CodeDecodePayloadInvalid, "note response has no data.note_content string")
	}
	return content.String(), nil
}

// ClassifyRemoteError maps the note API error text to a coded error.
func ClassifyRemoteError(msg string) error {
	switch {
	case strings.Contains(msg, remoteOverloadedText):
		return cliperr.New(cliperr.CodeRemoteServerOverloaded, "note server overloaded",
			cliperr.Field("remote_error", msg))
	case strings.Contains(msg, remoteExpiredText):
		return cliperr.New(cliperr.CodeRemoteCredentialExpired, "note credential expired",
			cliperr.Field("remote_error", msg))
	default:
		return cliperr.Errorf(cliperr.CodeRemoteUnknownFailure, "note api error: %s", msg)
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

// Package decode turns raw response bodies into content strings.
package decode

import (
	"encoding/base64"
	"strings"
	"unicode/utf8"

	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
)

var (
	urlSafeReplacer = strings.NewReplacer("-", "+", "_", "/")
	lineJoiner      = strings.NewReplacer("\r", "", "\n", "")
)

// DecodeURLSafe restores the standard alphabet and padding of a URL-safe
// Base64 string and decodes it.
func DecodeURLSafe(s string) ([]byte, error) {
	std := urlSafeReplacer.Replace(s)
	if rem := len(std) % 4; rem != 0 {
		std += strings.Repeat("=", 4-rem)
	}

	out, err := base64.StdEncoding.DecodeString(std)
	if err != nil {
		return nil, cliperr.Errorf(cliperr.CodeDecodePayloadInvalid, "decoding url-safe base64: %w", err)
	}
	return out, nil
}

// EncodeURLSafe encodes b with the URL-safe alphabet and no padding, the form
// the text store expects for uploaded payloads.
func EncodeURLSafe(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// URLSafeBase64 decodes a text-store body. Line breaks are removed first, so
// wrapped bodies decode like single-line ones. Bodies that are not URL-safe
// Base64 of UTF-8 text are returned without their line breaks, as they are
// assumed to already be plaintext.
func URLSafeBase64(raw string) string {
	raw = strings.TrimSpace(lineJoiner.Replace(raw))

	decoded, err := DecodeURLSafe(raw)
	if err != nil || !utf8.Valid(decoded) {
		return raw
	}
	return string(decoded)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

// Package textdb reads encrypted clipboard content from a plain key/value
// text store. The stored value is "ivB64:ciphertextB64", optionally wrapped
// in URL-safe Base64.
package textdb

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/Z-zoe8013/ZTOOLBOX/internal/crypto"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/decode"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/fetch"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/settings"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/strategy"
	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
)

const (
	// Name is the configuration name of this strategy.
	Name = "textdb"

	DefaultBaseURL    = "https://textdb.online"
	DefaultRetryDelay = time.Second
)

func init() {
	strategy.Register(Name, func(opts strategy.Options, f strategy.Fetcher) (strategy.Strategy, error) {
		return New(opts, f)
	})
}

// Strategy fetches GET {base}/{storeID} and decrypts the result.
type Strategy struct {
	baseURL string
	delay   time.Duration
	headers map[string]string
	fetcher strategy.Fetcher
}

// New creates the strategy. An empty endpoint uses DefaultBaseURL.
func New(opts strategy.Options, f strategy.Fetcher) (*Strategy, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.Endpoint), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, cliperr.Errorf(cliperr.CodeConfigValidateInvalidValue, "textdb base url %q is not absolute", base)
	}

	delay := opts.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	return &Strategy{baseURL: base, delay: delay, headers: opts.Headers, fetcher: f}, nil
}

func (s *Strategy) Name() string { return Name }

func (s *Strategy) RetryDelay() time.Duration { return s.delay }

// URL returns the lookup address for storeID.
func (s *Strategy) URL(storeID string) string {
	return s.baseURL + "/" + url.PathEscape(storeID)
}

func (s *Strategy) Attempt(ctx context.Context, creds settings.Credentials) (string, error) {
	req := fetch.Get(s.URL(creds.StoreID))
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp := s.fetcher.Fetch(ctx, req)
	if !resp.OK() {
		return "", resp.Error()
	}

	encoded := decode.URLSafeBase64(string(resp.Body))
	if encoded == "" {
		return "", cliperr.New(cliperr.CodeDecodePayloadInvalid, "store returned an empty value")
	}

	return crypto.Decrypt(encoded, creds.Passphrase)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

// Package netcut reads plaintext clipboard content from a netcut shared note.
// The note API expects a browser-like form POST.
package netcut

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Z-zoe8013/ZTOOLBOX/internal/decode"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/fetch"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/settings"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/strategy"
	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
)

const (
	// Name is the configuration name of this strategy.
	Name = "netcut"

	DefaultAPIURL     = "https://netcut.cn/api/note2/info/"
	DefaultRetryDelay = 2 * time.Second
)

// DefaultHeaders mimic a desktop browser. Configured headers override these
// per key.
var DefaultHeaders = map[string]string{
	"Accept":           "application/json, text/javascript, */*; q=0.01",
	"Accept-Encoding":  "gzip",
	"Accept-Language":  "zh-CN,zh;q=0.9,en;q=0.8",
	"Origin":           "https://netcut.cn",
	"Referer":          "https://netcut.cn/",
	"User-Agent":       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"X-Requested-With": "XMLHttpRequest",
}

func init() {
	strategy.Register(Name, func(opts strategy.Options, f strategy.Fetcher) (strategy.Strategy, error) {
		return New(opts, f)
	})
}

// Strategy posts note_name/note_pwd and extracts data.note_content.
type Strategy struct {
	apiURL  string
	delay   time.Duration
	header  http.Header
	fetcher strategy.Fetcher
}

// New creates the strategy. An empty endpoint uses DefaultAPIURL.
func New(opts strategy.Options, f strategy.Fetcher) (*Strategy, error) {
	apiURL := strings.TrimSpace(opts.Endpoint)
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	u, err := url.Parse(apiURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, cliperr.Errorf(cliperr.CodeConfigValidateInvalidValue, "netcut api url %q is not absolute", apiURL)
	}

	delay := opts.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	header := http.Header{}
	for k, v := range DefaultHeaders {
		header.Set(k, v)
	}
	for k, v := range opts.Headers {
		header.Set(k, v)
	}

	return &Strategy{apiURL: apiURL, delay: delay, header: header, fetcher: f}, nil
}

func (s *Strategy) Name() string { return Name }

func (s *Strategy) RetryDelay() time.Duration { return s.delay }

func (s *Strategy) Attempt(ctx context.Context, creds settings.Credentials) (string, error) {
	form := url.Values{}
	form.Set("note_name", creds.StoreID)
	form.Set("note_pwd", creds.Passphrase)

	resp := s.fetcher.Fetch(ctx, fetch.PostForm(s.apiURL, form, s.header))
	if !resp.OK() {
		return "", resp.Error()
	}

	return decode.NoteContent(resp.Body)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

// Package fetch performs the single outbound request of a refresh attempt and
// classifies its result instead of returning transport errors.
package fetch

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
)

const (
	// DefaultConnectTimeout bounds dialing the remote endpoint.
	DefaultConnectTimeout = 10 * time.Second
	// DefaultReadTimeout bounds waiting for and reading the response.
	DefaultReadTimeout = 10 * time.Second

	maxBodyBytes = 16 << 20
)

// Class is the coarse classification of a fetch result.
type Class string

const (
	ClassOK           Class = "ok"
	ClassHTTPError    Class = "http_error"
	ClassNetworkError Class = "network_error"
	ClassTimeout      Class = "timeout"
)

// Request is a fully-formed outbound request.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Get builds a GET request for rawURL.
func Get(rawURL string) Request {
	return Request{Method: http.MethodGet, URL: rawURL, Header: http.Header{}}
}

// PostForm builds a form-encoded POST request. Entries in header are copied
// onto the request; Content-Type is always set to the form type.
func PostForm(rawURL string, form url.Values, header http.Header) Request {
	h := header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	return Request{
		Method: http.MethodPost,
		URL:    rawURL,
		Header: h,
		Body:   []byte(form.Encode()),
	}
}

// Response is the classified outcome of one request.
type Response struct {
	Class      Class
	StatusCode int
	Body       []byte
	// Err holds the underlying transport error for non-HTTP failures.
	Err error
}

// OK reports whether the request completed with a 2xx status.
func (r Response) OK() bool {
	return r.Class == ClassOK
}

// Error converts a failed response into a coded error; nil for OK responses.
func (r Response) Error() error {
	switch r.Class {
	case ClassOK:
		return nil
	case ClassHTTPError:
		return cliperr.New(cliperr.CodeFetchHTTPFailure, "unexpected http status",
			cliperr.FieldStatusCode(r.StatusCode))
	case ClassTimeout:
		return cliperr.Wrap(r.Err, cliperr.CodeFetchTimeout, "request timed out")
	default:
		if r.Err == nil {
			return cliperr.New(cliperr.CodeFetchNetworkFailure, "network error")
		}
		return cliperr.Wrap(r.Err, cliperr.CodeFetchNetworkFailure, "network error")
	}
}

// Config controls the Fetcher's timeouts.
type Config struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	// Transport overrides the default transport, mainly for tests.
	Transport http.RoundTripper
}

// Fetcher issues requests with bounded connect and read time.
type Fetcher struct {
	client         *http.Client
	connectTimeout time.Duration
	readTimeout    time.Duration
	logger         *slog.Logger
}

// New creates a Fetcher. Zero timeouts fall back to the defaults.
func New(cfg Config, logger *slog.Logger) *Fetcher {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   cfg.ConnectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   cfg.ConnectTimeout,
			ResponseHeaderTimeout: cfg.ReadTimeout,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConns:          4,
		}
	}

	return &Fetcher{
		client:         &http.Client{Transport: transport},
		connectTimeout: cfg.ConnectTimeout,
		readTimeout:    cfg.ReadTimeout,
		logger:         logger,
	}
}

// Fetch performs req and classifies the result. It never returns an error
// value; failures are reported through Response.Class.
func (f *Fetcher) Fetch(ctx context.Context, req Request) Response {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, f.connectTimeout+f.readTimeout)
	defer cancel()

	resp := f.do(ctx, req)

	f.logger.DebugContext(ctx, "fetch completed",
		"method", req.Method,
		"host", hostOf(req.URL),
		"class", resp.Class,
		"status", resp.StatusCode,
		"bytes", len(resp.Body),
		"duration", time.Since(start),
	)
	return resp
}

func (f *Fetcher) do(ctx context.Context, req Request) Response {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return Response{Class: ClassNetworkError, Err: err}
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	httpResp, err := f.client.Do(httpReq)
	if err != nil {
		return Response{Class: classifyErr(err), Err: err}
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(httpResp.Body, maxBodyBytes))
		return Response{Class: ClassHTTPError, StatusCode: httpResp.StatusCode}
	}

	data, err := readBody(httpResp)
	if err != nil {
		return Response{Class: classifyErr(err), StatusCode: httpResp.StatusCode, Err: err}
	}

	return Response{Class: ClassOK, StatusCode: httpResp.StatusCode, Body: data}
}

// readBody reads the response body, unwrapping gzip when the server
// advertises it. The transport only does this itself when the caller did not
// set Accept-Encoding explicitly.
func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	if strings.EqualFold(strings.TrimSpace(resp.Header.Get("Content-Encoding")), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}
	return io.ReadAll(io.LimitReader(r, maxBodyBytes))
}

func classifyErr(err error) Class {
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTimeout
	}
	return ClassNetworkError
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

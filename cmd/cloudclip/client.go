// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package main

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
)

// defaultHTTPClient is used by commands that talk to a running server.
// Synchronous refreshes can take three attempts plus two retry delays.
var defaultHTTPClient = &http.Client{
	Timeout: 90 * time.Second,
}

// serverClient provides HTTP access to a running cloudclip server.
type serverClient struct {
	baseURL string
	http    *http.Client
}

// newServerClient creates a client targeting the given host:port address.
func newServerClient(addr string) *serverClient {
	return &serverClient{
		baseURL: "http://" + addr,
		http:    defaultHTTPClient,
	}
}

// problem is the subset of an RFC 9457 error body the CLI prints.
type problem struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

// getJSON performs a GET request and decodes the JSON response into dest.
func (c *serverClient) getJSON(path string, dest any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return c.transportError(err)
	}
	return decodeResponse(resp, dest)
}

// postRefresh asks the server to run action and decodes the reply.
func (c *serverClient) postRefresh(action string, dest any) error {
	q := url.Values{}
	if action != "" {
		q.Set("action", action)
	}
	target := c.baseURL + "/api/v1/refresh"
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	resp, err := c.http.Post(target, "application/json", strings.NewReader("{}"))
	if err != nil {
		return c.transportError(err)
	}
	return decodeResponse(resp, dest)
}

func (c *serverClient) transportError(err error) error {
	if isDialError(err) {
		return cliperr.Errorf(cliperr.CodeCLIServerNotRunning, "server at %s is not running (connection refused)",
			strings.TrimPrefix(c.baseURL, "http://"))
	}
	return cliperr.Errorf(cliperr.CodeCLIRequestFailure, "request failed: %w", err)
}

func decodeResponse(resp *http.Response, dest any) error {
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var p problem
		if json.Unmarshal(body, &p) == nil && p.Detail != "" {
			return cliperr.New(cliperr.CodeCLIRequestFailure, p.Detail,
				cliperr.FieldStatusCode(resp.StatusCode))
		}
		return cliperr.Errorf(cliperr.CodeCLIRequestFailure, "server returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return cliperr.Errorf(cliperr.CodeCLIRequestFailure, "invalid response: %w", err)
	}
	return nil
}

// isDialError returns true if err is a net dial error (connection refused, etc.).
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
)

// Notifier shows a short message to the user.
type Notifier interface {
	Show(ctx context.Context, message string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, message string) error

func (f NotifierFunc) Show(ctx context.Context, message string) error { return f(ctx, message) }

// LogNotifier writes messages to the structured log.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Show(ctx context.Context, message string) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification", "message", message)
	return nil
}

// WriterNotifier prints one message per line, e.g. to stderr.
type WriterNotifier struct {
	mu sync.Mutex
	W  io.Writer
}

func (n *WriterNotifier) Show(_ context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, err := fmt.Fprintln(n.W, message); err != nil {
		return cliperr.Wrap(err, cliperr.CodePublishNotifyFailure, "writing notification")
	}
	return nil
}

// WebhookNotifier posts messages as JSON to a URL.
type WebhookNotifier struct {
	url        string
	source     string
	httpClient *http.Client
}

// NewWebhookNotifier validates rawURL and creates a notifier. source is sent
// along with every message to identify the sender.
func NewWebhookNotifier(rawURL, source string) (*WebhookNotifier, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, cliperr.Wrapf(err, cliperr.CodeConfigValidateInvalidValue, "invalid webhook url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, cliperr.Errorf(cliperr.CodeConfigValidateInvalidValue,
			"webhook scheme must be http or https, got %q", u.Scheme)
	}
	return &WebhookNotifier{
		url:    rawURL,
		source: source,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

// webhookPayload is the JSON body posted for each message.
type webhookPayload struct {
	Source  string    `json:"source"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

func (n *WebhookNotifier) Show(ctx context.Context, message string) error {
	body, err := json.Marshal(webhookPayload{
		Source:  n.source,
		Message: message,
		SentAt:  time.Now().UTC().Truncate(time.Second),
	})
	if err != nil {
		return cliperr.Wrap(err, cliperr.CodePublishNotifyFailure, "encoding webhook payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return cliperr.Wrap(err, cliperr.CodePublishNotifyFailure, "creating webhook request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "cloudclip-webhook/1.0")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return cliperr.Wrap(err, cliperr.CodePublishNotifyFailure, "sending webhook")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return cliperr.New(cliperr.CodePublishNotifyFailure,
			fmt.Sprintf("webhook returned %d: %s", resp.StatusCode, string(respBody)),
			cliperr.FieldStatusCode(resp.StatusCode))
	}
	return nil
}

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Show(ctx context.Context, message string) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Show(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return cliperr.Join(errs...)
}

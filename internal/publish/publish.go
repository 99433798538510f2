// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

// Package publish hands refreshed content to the clipboard and tells the user
// what happened. Clipboard writes are best-effort and notifications are
// fire-and-forget.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	// PreviewRunes is the longest content shown in full in a notification.
	PreviewRunes = 20
	ellipsis     = "..."

	defaultNotifyTimeout = 10 * time.Second
)

// Preview shortens text to PreviewRunes runes, adding an ellipsis when it
// was truncated.
func Preview(text string) string {
	runes := []rune(text)
	if len(runes) <= PreviewRunes {
		return text
	}
	return string(runes[:PreviewRunes]) + ellipsis
}

// Publisher writes content to a Clipboard and sends notifications.
type Publisher struct {
	clipboard     Clipboard
	notifier      Notifier
	logger        *slog.Logger
	notifyTimeout time.Duration
	wg            sync.WaitGroup
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger used for swallowed failures.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) { p.logger = l }
}

// WithNotifyTimeout bounds each notification delivery.
func WithNotifyTimeout(d time.Duration) Option {
	return func(p *Publisher) { p.notifyTimeout = d }
}

// New creates a Publisher. A nil notifier logs notifications instead.
func New(cb Clipboard, n Notifier, opts ...Option) *Publisher {
	p := &Publisher{
		clipboard:     cb,
		notifier:      n,
		logger:        slog.Default(),
		notifyTimeout: defaultNotifyTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.notifier == nil {
		p.notifier = LogNotifier{Logger: p.logger}
	}
	return p
}

// Publish writes text to the clipboard. The error is returned for reporting
// only; callers must not treat it as a failed refresh.
func (p *Publisher) Publish(ctx context.Context, text string) error {
	if p.clipboard == nil {
		return nil
	}
	if err := p.clipboard.SetPlainText(text); err != nil {
		p.logger.WarnContext(ctx, "clipboard write failed", "error", err)
		return err
	}
	return nil
}

// Notify delivers message in the background and returns immediately. Delivery
// errors and panics are logged and dropped.
func (p *Publisher) Notify(ctx context.Context, message string) {
	ctx = context.WithoutCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				p.logger.ErrorContext(ctx, "notifier panicked", "panic", fmt.Sprint(r))
			}
		}()

		ctx, cancel := context.WithTimeout(ctx, p.notifyTimeout)
		defer cancel()

		if err := p.notifier.Show(ctx, message); err != nil {
			p.logger.WarnContext(ctx, "notification failed", "error", err)
		}
	}()
}

// Wait blocks until all pending notifications have been attempted.
func (p *Publisher) Wait() {
	p.wg.Wait()
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package pipeline

import (
	"fmt"
	"time"

	"github.com/Z-zoe8013/ZTOOLBOX/internal/publish"
	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
)

// Outcome is the terminal result of one run.
type Outcome struct {
	RunID    string
	Strategy string

	// Content is the refreshed plaintext. It is never logged or serialized.
	Content string

	// Reason is empty on success.
	Reason Reason
	// LastReason is the failure reason of the final attempt. It explains
	// ReasonExhaustedRetries and ReasonCancelled.
	LastReason Reason
	// Cause is the error behind LastReason (or Reason when no attempt ran).
	Cause error

	Attempts int
	// ClipboardErr is set when the content was fetched but the clipboard
	// write failed. The run still counts as a success.
	ClipboardErr error

	StartedAt time.Time
	Duration  time.Duration
}

// Success reports whether content was retrieved.
func (o Outcome) Success() bool {
	return o.Reason == ReasonNone
}

// Preview is the notification-safe prefix of Content.
func (o Outcome) Preview() string {
	return publish.Preview(o.Content)
}

// Message is the text shown to the user for this outcome.
func (o Outcome) Message() string {
	switch {
	case o.Success() && o.ClipboardErr != nil:
		return "Cloud clipboard fetched, but writing the clipboard failed"
	case o.Success():
		return "Cloud clipboard refreshed: " + o.Preview()
	case o.Reason == ReasonExhaustedRetries:
		return fmt.Sprintf("Refresh failed after %d attempts: %s", o.Attempts, describe(o.LastReason))
	default:
		return "Refresh failed: " + describe(o.Reason)
	}
}

// Err converts a failed outcome into a coded error; nil on success.
// Exhausted runs carry CodeFetchRetriesExhausted with the last cause in the
// message rather than the chain, so the code is not shadowed.
func (o Outcome) Err() error {
	fields := []cliperr.Attr{
		cliperr.FieldRunID(o.RunID),
		cliperr.FieldStrategy(o.Strategy),
		cliperr.FieldAttempt(o.Attempts),
	}

	switch o.Reason {
	case ReasonNone:
		return nil
	case ReasonExhaustedRetries:
		msg := fmt.Sprintf("all %d attempts failed (last: %s)", o.Attempts, o.LastReason)
		if o.Cause != nil {
			msg += ": " + o.Cause.Error()
		}
		return cliperr.New(cliperr.CodeFetchRetriesExhausted, msg,
			append(fields, cliperr.Field("last_reason", string(o.LastReason)))...)
	default:
		if o.Cause != nil {
			return cliperr.With(o.Cause, fields...)
		}
		return cliperr.New(cliperr.CodeServerInternalFailure, string(o.Reason), fields...)
	}
}

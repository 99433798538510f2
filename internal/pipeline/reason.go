// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package pipeline

import (
	"context"
	"errors"

	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
)

// Reason classifies why a run or an attempt failed. The empty Reason means
// success.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonMissingCredentials Reason = "missing_credentials"
	ReasonNetworkError       Reason = "network_error"
	ReasonHTTPError          Reason = "http_error"
	ReasonFormatError        Reason = "format_error"
	ReasonDecryptError       Reason = "decrypt_error"
	ReasonServerOverloaded   Reason = "server_overloaded"
	ReasonCredentialExpired  Reason = "credential_expired"
	ReasonUnknownRemoteError Reason = "unknown_remote_error"
	ReasonExhaustedRetries   Reason = "exhausted_retries"
	ReasonCancelled          Reason = "cancelled"
	ReasonInternal           Reason = "internal_error"
)

// ReasonOf maps an error from any pipeline stage onto a Reason. Timeouts
// count as network errors.
func ReasonOf(err error) Reason {
	if err == nil {
		return ReasonNone
	}
	if errors.Is(err, context.Canceled) {
		return ReasonCancelled
	}

	switch cliperr.CodeOf(err) {
	case cliperr.CodeFetchCredentialsMissing:
		return ReasonMissingCredentials
	case cliperr.CodeFetchNetworkFailure, cliperr.CodeFetchTimeout:
		return ReasonNetworkError
	case cliperr.CodeFetchHTTPFailure:
		return ReasonHTTPError
	case cliperr.CodeDecodePayloadInvalid:
		return ReasonFormatError
	case cliperr.CodeDecryptFailure:
		return ReasonDecryptError
	case cliperr.CodeRemoteServerOverloaded:
		return ReasonServerOverloaded
	case cliperr.CodeRemoteCredentialExpired:
		return ReasonCredentialExpired
	case cliperr.CodeRemoteUnknownFailure:
		return ReasonUnknownRemoteError
	case cliperr.CodeFetchRetriesExhausted:
		return ReasonExhaustedRetries
	default:
		return ReasonInternal
	}
}

// describe is the user-facing text for a reason.
func describe(r Reason) string {
	switch r {
	case ReasonMissingCredentials:
		return "store ID or passphrase is not set, configure them first"
	case ReasonNetworkError:
		return "network connection failed, check your network"
	case ReasonHTTPError:
		return "the server returned an error"
	case ReasonFormatError:
		return "the stored data has an invalid format"
	case ReasonDecryptError:
		return "decryption failed, check the passphrase"
	case ReasonServerOverloaded:
		return "the note server is overloaded, try again later"
	case ReasonCredentialExpired:
		return "the note credential has expired"
	case ReasonUnknownRemoteError:
		return "the note server reported an error"
	case ReasonCancelled:
		return "the refresh was cancelled"
	default:
		return "an unexpected error occurred"
	}
}

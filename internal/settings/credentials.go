// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package settings

import (
	"context"

	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
)

// Key names a setting by its current key and the key older app versions used.
type Key struct {
	Primary string
	Legacy  string
}

var (
	// StoreIDKey holds the text store ID (or note name for netcut).
	StoreIDKey = Key{Primary: "flutter.textdb_use_id", Legacy: "textdb_use_id"}
	// PassphraseKey holds the decryption passphrase (or note password).
	PassphraseKey = Key{Primary: "flutter.encryption_key", Legacy: "encryption_key"}
)

// Credentials are the two settings a refresh needs. They are read once at the
// start of a run and not changed afterwards.
type Credentials struct {
	StoreID    string
	Passphrase string
}

// String never prints the passphrase.
func (c Credentials) String() string {
	return "Credentials{StoreID:" + c.StoreID + ", Passphrase:[redacted]}"
}

// Lookup returns the value of key, trying the primary key first and the
// legacy key second. Empty values count as absent. keyring:// values are
// resolved through the OS keyring.
func Lookup(ctx context.Context, g Getter, key Key) (string, bool, error) {
	for _, k := range []string{key.Primary, key.Legacy} {
		if k == "" {
			continue
		}
		v, ok, err := g.Get(ctx, k)
		if err != nil {
			return "", false, err
		}
		if !ok || v == "" {
			continue
		}

		resolved, err := ResolveValue(v)
		if err != nil {
			return "", false, cliperr.With(err, cliperr.FieldSettingKey(k))
		}
		return resolved, resolved != "", nil
	}
	return "", false, nil
}

// LoadCredentials snapshots the store ID and passphrase. A missing value
// yields CodeFetchCredentialsMissing.
func LoadCredentials(ctx context.Context, g Getter) (Credentials, error) {
	passphrase, ok, err := Lookup(ctx, g, PassphraseKey)
	if err != nil {
		return Credentials{}, err
	}
	if !ok {
		return Credentials{}, cliperr.New(cliperr.CodeFetchCredentialsMissing, "passphrase is not set",
			cliperr.FieldSettingKey(PassphraseKey.Primary))
	}

	storeID, ok, err := Lookup(ctx, g, StoreIDKey)
	if err != nil {
		return Credentials{}, err
	}
	if !ok {
		return Credentials{}, cliperr.New(cliperr.CodeFetchCredentialsMissing, "store id is not set",
			cliperr.FieldSettingKey(StoreIDKey.Primary))
	}

	return Credentials{StoreID: storeID, Passphrase: passphrase}, nil
}

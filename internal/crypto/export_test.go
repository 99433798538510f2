// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"testing"
)

// EncryptWithIV exposes encryptWithIV for deterministic white-box tests.
var EncryptWithIV = encryptWithIV

// CountCipherCalls replaces the cipher constructor for the duration of the
// test and returns a pointer to the number of times it was invoked.
func CountCipherCalls(t *testing.T) *int {
	t.Helper()
	calls := 0
	orig := newCipher
	newCipher = func(key []byte) (cipher.Block, error) {
		calls++
		return aes.NewCipher(key)
	}
	t.Cleanup(func() { newCipher = orig })
	return &calls
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

// Package crypto opens and seals cloud clipboard payloads.
//
// A payload is the string "ivB64:ciphertextB64" where both halves use standard
// Base64. The key is the SHA-256 digest of the passphrase, used directly as an
// AES-256 key in CBC mode with PKCS#7 padding.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
)

// payloadSeparator splits the IV from the ciphertext.
const payloadSeparator = ":"

var base64Pattern = regexp.MustCompile(`^[A-Za-z0-9+/]*={0,2}$`)

// newCipher is swapped in tests to observe whether the cipher was reached.
var newCipher = aes.NewCipher

// Payload is a parsed "iv:ciphertext" pair.
type Payload struct {
	IV         []byte
	Ciphertext []byte
}

// DeriveKey turns a passphrase into a 32-byte AES-256 key using SHA-256.
func DeriveKey(passphrase string) []byte {
	sum := sha256.Sum256([]byte(passphrase))
	return sum[:]
}

// ParsePayload validates and decodes an encoded "iv:ciphertext" string.
// Whitespace anywhere in the input is ignored. Syntax problems are reported
// with CodeDecodePayloadInvalid; an IV of the wrong size with CodeDecryptFailure.
func ParsePayload(encoded string) (Payload, error) {
	cleaned := stripWhitespace(encoded)

	parts := strings.Split(cleaned, payloadSeparator)
	if len(parts) != 2 {
		return Payload{}, cliperr.Errorf(cliperr.CodeDecodePayloadInvalid,
			"payload must have exactly 2 %q-separated parts, got %d", payloadSeparator, len(parts))
	}
	for i, part := range parts {
		if !IsValidBase64(part) {
			return Payload{}, cliperr.Errorf(cliperr.CodeDecodePayloadInvalid,
				"payload part %d is not valid base64", i+1)
		}
	}

	iv, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return Payload{}, cliperr.Errorf(cliperr.CodeDecodePayloadInvalid, "decoding iv: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return Payload{}, cliperr.Errorf(cliperr.CodeDecodePayloadInvalid, "decoding ciphertext: %w", err)
	}

	if len(iv) != aes.BlockSize {
		return Payload{}, cliperr.Errorf(cliperr.CodeDecryptFailure,
			"iv must be %d bytes, got %d", aes.BlockSize, len(iv))
	}

	return Payload{IV: iv, Ciphertext: ciphertext}, nil
}

// IsValidBase64 reports whether s looks like padded standard Base64: the
// characters [A-Za-z0-9+/], at most two trailing '=', and a length that is a
// non-zero multiple of four.
func IsValidBase64(s string) bool {
	if s == "" {
		return false
	}
	if !base64Pattern.MatchString(s) {
		return false
	}
	return len(s)%4 == 0
}

// Decrypt opens an encoded payload with the given passphrase and returns the
// UTF-8 plaintext. An empty payload decrypts to an empty string.
func Decrypt(encoded, passphrase string) (string, error) {
	if encoded == "" {
		return "", nil
	}

	payload, err := ParsePayload(encoded)
	if err != nil {
		return "", err
	}

	return payload.Open(passphrase)
}

// Open decrypts the payload with a key derived from passphrase.
func (p Payload) Open(passphrase string) (string, error) {
	if len(p.IV) != aes.BlockSize {
		return "", cliperr.Errorf(cliperr.CodeDecryptFailure, "iv must be %d bytes, got %d", aes.BlockSize, len(p.IV))
	}
	if len(p.Ciphertext) == 0 || len(p.Ciphertext)%aes.BlockSize != 0 {
		return "", cliperr.Errorf(cliperr.CodeDecryptFailure,
			"ciphertext length %d is not a positive multiple of %d", len(p.Ciphertext), aes.BlockSize)
	}

	block, err := newCipher(DeriveKey(passphrase))
	if err != nil {
		return "", cliperr.Errorf(cliperr.CodeDecryptFailure, "creating cipher: %w", err)
	}

	plain := make([]byte, len(p.Ciphertext))
	cipher.NewCBCDecrypter(block, p.IV).CryptBlocks(plain, p.Ciphertext)

	plain, err = unpad(plain, aes.BlockSize)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(plain) {
		return "", cliperr.New(cliperr.CodeDecryptFailure, "decrypted data is not valid UTF-8")
	}

	return string(plain), nil
}

// Encrypt seals plaintext with a random IV and returns "ivB64:ciphertextB64".
func Encrypt(plaintext, passphrase string) (string, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", cliperr.Errorf(cliperr.CodeDecryptFailure, "generating iv: %w", err)
	}
	return encryptWithIV([]byte(plaintext), passphrase, iv)
}

func encryptWithIV(plaintext []byte, passphrase string, iv []byte) (string, error) {
	block, err := newCipher(DeriveKey(passphrase))
	if err != nil {
		return "", cliperr.Errorf(cliperr.CodeDecryptFailure, "creating cipher: %w", err)
	}

	padded := pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	return base64.StdEncoding.EncodeToString(iv) + payloadSeparator + base64.StdEncoding.EncodeToString(out), nil
}

func pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(append([]byte{}, data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, cliperr.New(cliperr.CodeDecryptFailure, "invalid padded length")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, cliperr.New(cliperr.CodeDecryptFailure, "invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, cliperr.New(cliperr.CodeDecryptFailure, "invalid padding")
		}
	}
	return data[:len(data)-n], nil
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

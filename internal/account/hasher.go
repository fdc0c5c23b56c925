// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package account

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 parameters for credential derivation.
const (
	pbkdf2Iterations = 100_000
	pbkdf2SaltLen    = 16 // salt length in bytes
	pbkdf2KeyLen     = 32 // derived key length in bytes
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// CredentialHasher derives and verifies salted password hashes.
type CredentialHasher interface {
	// Hash produces a salted composite hash of the password.
	Hash(password string) (string, error)

	// Verify checks if the attempt matches the stored composite.
	// Returns (true, nil) on match, (false, nil) on mismatch, or an
	// error wrapping ErrMalformedHash when the composite is unparseable.
	Verify(stored, attempt string) (bool, error)
}

// PBKDF2Hasher implements CredentialHasher using PBKDF2-SHA256.
//
// The composite encodes the salt and derived key as two hex fields
// joined by a colon: "<saltHex>:<keyHex>".
type PBKDF2Hasher struct{}

// NewPBKDF2Hasher creates a new PBKDF2Hasher.
func NewPBKDF2Hasher() *PBKDF2Hasher {
	return &PBKDF2Hasher{}
}

// Hash produces a salted composite hash of the password using a fresh
// random salt.
func (h *PBKDF2Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, pbkdf2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	return h.HashWithSalt(password, salt), nil
}

// HashWithSalt derives the composite for a password with a caller-provided
// salt. Verification uses this to re-derive with the stored salt.
func (h *PBKDF2Hasher) HashWithSalt(password string, salt []byte) string {
	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(key)
}

// Verify checks if the attempt matches the stored composite.
// The comparison runs over the full hex-encoded derived keys in constant
// time so a mismatch position cannot be observed.
func (h *PBKDF2Hasher) Verify(stored, attempt string) (bool, error) {
	saltHex, keyHex, found := strings.Cut(stored, ":")
	if !found {
		return false, oops.Code("AUTH_MALFORMED_HASH").
			Wrapf(ErrMalformedHash, "composite hash must have two fields")
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false, oops.Code("AUTH_MALFORMED_HASH").
			Wrapf(ErrMalformedHash, "salt is not valid hex")
	}

	computed := h.HashWithSalt(attempt, salt)
	_, computedKeyHex, _ := strings.Cut(computed, ":")

	if len(computedKeyHex) != len(keyHex) {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(computedKeyHex), []byte(keyHex)) == 1, nil
}

// Compile-time interface check.
var _ CredentialHasher = (*PBKDF2Hasher)(nil)

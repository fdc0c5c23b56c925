// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package account

import "errors"

// Sentinel errors shared across repositories and services.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrMalformedHash is returned when a stored credential composite
	// cannot be parsed.
	ErrMalformedHash = errors.New("malformed credential hash")

	// ErrTokenInvalid is returned for refresh tokens that are unknown,
	// expired, revoked, or bound to a non-active account.
	ErrTokenInvalid = errors.New("invalid refresh token")

	// ErrTokenGeneration is returned when a unique token value could not
	// be produced within the retry budget.
	ErrTokenGeneration = errors.New("token generation failed")

	// ErrEmailTaken is returned when an email address is already bound
	// to another account.
	ErrEmailTaken = errors.New("email already in use")
)

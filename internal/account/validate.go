// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package account

import (
	"regexp"
	"strings"

	"github.com/samber/oops"
)

// Password policy constraints.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 20
)

// Username validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 255
)

// MaxEmailLength bounds stored email addresses.
const MaxEmailLength = 255

var (
	emailRegex   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	upperRegex   = regexp.MustCompile(`[A-Z]`)
	lowerRegex   = regexp.MustCompile(`[a-z]`)
	digitRegex   = regexp.MustCompile(`[0-9]`)
	specialRegex = regexp.MustCompile(`[!@#$%^&*]`)
)

// ValidateEmail validates an email address. The transport layer validates
// request bodies before they reach this core; this is a defensive
// re-check, not the primary gate.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code("AUTH_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return oops.Code("AUTH_INVALID_EMAIL").
			With("max", MaxEmailLength).
			Errorf("email must be at most %d characters", MaxEmailLength)
	}
	if !emailRegex.MatchString(email) {
		return oops.Code("AUTH_INVALID_EMAIL").Errorf("invalid email format")
	}
	return nil
}

// ValidatePassword validates a password against the policy: 8-20
// characters with at least one uppercase letter, one lowercase letter,
// one digit, and one special character (!@#$%^&*).
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return oops.Code("AUTH_WEAK_PASSWORD").
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return oops.Code("AUTH_WEAK_PASSWORD").
			With("max", MaxPasswordLength).
			Errorf("password must not exceed %d characters", MaxPasswordLength)
	}
	if !upperRegex.MatchString(password) {
		return oops.Code("AUTH_WEAK_PASSWORD").Errorf("password must contain at least one uppercase letter")
	}
	if !lowerRegex.MatchString(password) {
		return oops.Code("AUTH_WEAK_PASSWORD").Errorf("password must contain at least one lowercase letter")
	}
	if !digitRegex.MatchString(password) {
		return oops.Code("AUTH_WEAK_PASSWORD").Errorf("password must contain at least one number")
	}
	if !specialRegex.MatchString(password) {
		return oops.Code("AUTH_WEAK_PASSWORD").Errorf("password must contain at least one special character (!@#$%%^&*)")
	}
	return nil
}

// ValidateUsername validates a username.
func ValidateUsername(username string) error {
	if len(username) < MinUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("min", MinUsernameLength).
			Errorf("username must be at least %d characters", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	if strings.TrimSpace(username) != username {
		return oops.Code("AUTH_INVALID_USERNAME").Errorf("username cannot have leading or trailing whitespace")
	}
	return nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package account

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TokenType scopes a verification token to one purpose.
type TokenType string

// Verification token types.
const (
	TokenTypeEmail         TokenType = "email"
	TokenTypePasswordReset TokenType = "password_reset"
)

// Verification token configuration.
const (
	// DefaultEmailTokenTTL is the lifetime of an email verification token.
	DefaultEmailTokenTTL = 24 * time.Hour

	// DefaultResetTokenTTL is the lifetime of a password reset token.
	DefaultResetTokenTTL = time.Hour

	// DefaultResendCooldown is the minimum gap between verification
	// emails of the same type for one account.
	DefaultResendCooldown = 5 * time.Minute
)

// VerificationToken is a single-use, time-limited, purpose-scoped token.
// A token is usable iff it is unused, unexpired, and its type matches the
// requested operation.
type VerificationToken struct {
	Token     string
	AccountID uuid.UUID
	Type      TokenType
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// NewVerificationToken creates a token of the given type for an account.
func NewVerificationToken(accountID uuid.UUID, typ TokenType, ttl time.Duration) *VerificationToken {
	now := time.Now()
	return &VerificationToken{
		Token:     uuid.NewString(),
		AccountID: accountID,
		Type:      typ,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

// IsUsable returns true if the token is unused, unexpired, and of the
// requested type at the given time.
func (t *VerificationToken) IsUsable(typ TokenType, now time.Time) bool {
	return t.UsedAt == nil && t.ExpiresAt.After(now) && t.Type == typ
}

// VerificationRepository manages verification token persistence and the
// atomic consume operations that couple a token spend to its account
// mutation.
type VerificationRepository interface {
	// Create stores a new verification token.
	Create(ctx context.Context, token *VerificationToken) error

	// GetUsable retrieves the token iff it is unused, unexpired, and of
	// the given type. Any other state reports ErrNotFound.
	GetUsable(ctx context.Context, token string, typ TokenType) (*VerificationToken, error)

	// ConsumeForEmailVerification marks the token used and activates the
	// owning account (status active, email_verified true) in one
	// transaction. The conditional token update is the gate: a token
	// already spent by a concurrent call reports ErrNotFound and leaves
	// the account untouched.
	ConsumeForEmailVerification(ctx context.Context, token string) (uuid.UUID, error)

	// ConsumeForPasswordReset, in one transaction: updates the account's
	// credential hash, resets the failure counter and lockout exactly as
	// a successful login would, marks the token used, and appends the
	// hash to the credential history. The conditional token update gates
	// the whole batch.
	ConsumeForPasswordReset(ctx context.Context, token string, newHash string) (uuid.UUID, error)

	// LatestCreatedAt returns the creation time of the most recent token
	// of the given type for the account, or ErrNotFound if none exists.
	LatestCreatedAt(ctx context.Context, accountID uuid.UUID, typ TokenType) (time.Time, error)

	// DeleteExpired removes tokens that expired before the given time and
	// returns the count. Spent tokens are kept until they expire so
	// replays keep failing for the whole token lifetime.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package account

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an account.
type Status string

// Account statuses.
const (
	StatusActive            Status = "active"
	StatusPending           Status = "pending"
	StatusSuspended         Status = "suspended"
	StatusDeleted           Status = "deleted"
	StatusTemporarilyLocked Status = "temporarily_locked"
)

// Role is the authorization role of an account.
type Role string

// Account roles.
const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Lockout configuration.
const (
	// DefaultLockoutThreshold is the number of consecutive failed login
	// attempts that triggers a temporary lockout.
	DefaultLockoutThreshold = 3

	// DefaultLockoutDuration is how long a triggered lockout lasts.
	DefaultLockoutDuration = time.Hour
)

// Account represents a registered identity with credentials and a status.
type Account struct {
	ID                  uuid.UUID
	Email               string
	Username            string
	CredentialHash      string
	Status              Status
	Role                Role
	EmailVerified       bool
	FailedLoginAttempts int
	LockedUntil         *time.Time
	StatusBeforeLockout *Status
	LastLoginAt         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NewAccount creates a pending account for a fresh sign-up. The username
// defaults to the email address.
func NewAccount(email, credentialHash string) *Account {
	now := time.Now()
	return &Account{
		ID:             uuid.New(),
		Email:          email,
		Username:       email,
		CredentialHash: credentialHash,
		Status:         StatusPending,
		Role:           RoleUser,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IsLocked returns true if the account is under an unexpired lockout.
func (a *Account) IsLocked() bool {
	return a.Status == StatusTemporarilyLocked && IsLockedOut(a.LockedUntil)
}

// IsLoginEligible reports whether a login attempt may proceed at the given
// time. Suspended and deleted accounts are never eligible. A lockout whose
// window has passed does not block the attempt; it is lifted lazily by the
// next successful or failed attempt.
func (a *Account) IsLoginEligible(now time.Time) bool {
	switch a.Status {
	case StatusDeleted, StatusSuspended:
		return false
	case StatusTemporarilyLocked:
		return a.LockedUntil == nil || !a.LockedUntil.After(now)
	default:
		return true
	}
}

// RecordFailure increments the failure counter and, when the counter
// reaches the threshold, snapshots the current status and moves the
// account into temporarily_locked. Returns true if this failure triggered
// the lockout.
func (a *Account) RecordFailure(threshold int, lockFor time.Duration) bool {
	a.FailedLoginAttempts++
	a.UpdatedAt = time.Now()

	if a.FailedLoginAttempts < threshold {
		return false
	}

	until := time.Now().Add(lockFor)
	prior := a.Status
	a.StatusBeforeLockout = &prior
	a.Status = StatusTemporarilyLocked
	a.LockedUntil = &until
	return true
}

// RecordSuccess resets the failure counter, clears the lockout, restores
// the pre-lockout status (falling back to pending if no snapshot exists),
// and stamps the last login time.
func (a *Account) RecordSuccess(now time.Time) {
	a.FailedLoginAttempts = 0
	a.LockedUntil = nil
	if a.Status == StatusTemporarilyLocked {
		if a.StatusBeforeLockout != nil {
			a.Status = *a.StatusBeforeLockout
		} else {
			a.Status = StatusPending
		}
	}
	a.StatusBeforeLockout = nil
	a.LastLoginAt = &now
	a.UpdatedAt = now
}

// IsLockedOut returns true if the lockout time is in the future.
func IsLockedOut(lockedUntil *time.Time) bool {
	return lockedUntil != nil && lockedUntil.After(time.Now())
}

// AccountRepository manages account persistence.
type AccountRepository interface {
	// Create stores a new account. A duplicate email is reported by
	// wrapping ErrEmailTaken.
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)

	// GetByEmail retrieves an account by email (case-insensitive).
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// CountAdmins returns the number of admin accounts.
	CountAdmins(ctx context.Context) (int64, error)

	// SetRole updates the role of an account.
	SetRole(ctx context.Context, id uuid.UUID, role Role) error

	// SaveLoginFailure persists the failure counter and lockout fields
	// in a single statement.
	SaveLoginFailure(ctx context.Context, account *Account) error

	// RecordLoginSuccess resets the failure counter, clears the lockout,
	// restores the pre-lockout status, and stamps last_login_at in a
	// single statement.
	RecordLoginSuccess(ctx context.Context, id uuid.UUID, now time.Time) error

	// ChangeCredential updates the credential hash, appends the hash to
	// the credential history, and revokes every live refresh token for
	// the account, all in one transaction.
	ChangeCredential(ctx context.Context, id uuid.UUID, newHash string) error

	// EmailTaken reports whether another account already uses the email.
	EmailTaken(ctx context.Context, email string, excludeID uuid.UUID) (bool, error)

	// UsernameTaken reports whether another account already uses the
	// username.
	UsernameTaken(ctx context.Context, username string, excludeID uuid.UUID) (bool, error)

	// UpdateProfile applies an email and/or username change and, when the
	// email changes, stores the accompanying verification token in the
	// same transaction. Returns the updated account.
	UpdateProfile(ctx context.Context, id uuid.UUID, email, username *string, verification *VerificationToken) (*Account, error)

	// MarkDeleted sets the account status to deleted and revokes every
	// live refresh token in one transaction.
	MarkDeleted(ctx context.Context, id uuid.UUID) error
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package account

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccount_Defaults(t *testing.T) {
	acct := NewAccount("user@example.com", "salt:key")

	assert.NotEqual(t, "", acct.ID.String())
	assert.Equal(t, "user@example.com", acct.Email)
	assert.Equal(t, "user@example.com", acct.Username, "username defaults to email")
	assert.Equal(t, StatusPending, acct.Status)
	assert.Equal(t, RoleUser, acct.Role)
	assert.False(t, acct.EmailVerified)
	assert.Zero(t, acct.FailedLoginAttempts)
	assert.Nil(t, acct.LockedUntil)
	assert.Nil(t, acct.LastLoginAt)
}

func TestAccount_IsLoginEligible(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name   string
		status Status
		locked *time.Time
		want   bool
	}{
		{name: "active", status: StatusActive, want: true},
		{name: "pending", status: StatusPending, want: true},
		{name: "deleted", status: StatusDeleted, want: false},
		{name: "suspended", status: StatusSuspended, want: false},
		{name: "locked with future deadline", status: StatusTemporarilyLocked, locked: &future, want: false},
		{name: "locked with expired deadline", status: StatusTemporarilyLocked, locked: &past, want: true},
		{name: "locked with no deadline", status: StatusTemporarilyLocked, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acct := &Account{Status: tt.status, LockedUntil: tt.locked}
			assert.Equal(t, tt.want, acct.IsLoginEligible(now))
		})
	}
}

func TestAccount_RecordFailure_BelowThreshold(t *testing.T) {
	acct := &Account{Status: StatusActive}

	locked := acct.RecordFailure(3, time.Hour)

	assert.False(t, locked)
	assert.Equal(t, 1, acct.FailedLoginAttempts)
	assert.Equal(t, StatusActive, acct.Status)
	assert.Nil(t, acct.LockedUntil)
	assert.Nil(t, acct.StatusBeforeLockout)
}

func TestAccount_RecordFailure_TriggersLockout(t *testing.T) {
	acct := &Account{Status: StatusActive, FailedLoginAttempts: 2}

	locked := acct.RecordFailure(3, time.Hour)

	require.True(t, locked)
	assert.Equal(t, 3, acct.FailedLoginAttempts)
	assert.Equal(t, StatusTemporarilyLocked, acct.Status)
	require.NotNil(t, acct.LockedUntil)
	assert.True(t, acct.LockedUntil.After(time.Now()))
	require.NotNil(t, acct.StatusBeforeLockout, "pre-lockout status must be snapshotted")
	assert.Equal(t, StatusActive, *acct.StatusBeforeLockout)
}

func TestAccount_RecordFailure_SnapshotsPendingStatus(t *testing.T) {
	acct := &Account{Status: StatusPending, FailedLoginAttempts: 2}

	require.True(t, acct.RecordFailure(3, time.Hour))
	require.NotNil(t, acct.StatusBeforeLockout)
	assert.Equal(t, StatusPending, *acct.StatusBeforeLockout)
}

func TestAccount_RecordSuccess_RestoresSnapshot(t *testing.T) {
	prior := StatusActive
	until := time.Now().Add(-time.Minute)
	acct := &Account{
		Status:              StatusTemporarilyLocked,
		StatusBeforeLockout: &prior,
		LockedUntil:         &until,
		FailedLoginAttempts: 3,
	}

	now := time.Now()
	acct.RecordSuccess(now)

	assert.Equal(t, StatusActive, acct.Status)
	assert.Zero(t, acct.FailedLoginAttempts)
	assert.Nil(t, acct.LockedUntil)
	assert.Nil(t, acct.StatusBeforeLockout)
	require.NotNil(t, acct.LastLoginAt)
	assert.Equal(t, now, *acct.LastLoginAt)
}

func TestAccount_RecordSuccess_FallsBackToPending(t *testing.T) {
	// A locked account with no snapshot restores to pending.
	acct := &Account{Status: StatusTemporarilyLocked, FailedLoginAttempts: 3}

	acct.RecordSuccess(time.Now())

	assert.Equal(t, StatusPending, acct.Status)
}

func TestAccount_RecordSuccess_LeavesUnlockedStatusAlone(t *testing.T) {
	acct := &Account{Status: StatusActive, FailedLoginAttempts: 2}

	acct.RecordSuccess(time.Now())

	assert.Equal(t, StatusActive, acct.Status)
	assert.Zero(t, acct.FailedLoginAttempts)
}

func TestAccount_IsLocked(t *testing.T) {
	future := time.Now().Add(time.Hour)
	past := time.Now().Add(-time.Hour)

	tests := []struct {
		name   string
		status Status
		locked *time.Time
		want   bool
	}{
		{name: "locked with future deadline", status: StatusTemporarilyLocked, locked: &future, want: true},
		{name: "lockout window passed", status: StatusTemporarilyLocked, locked: &past, want: false},
		{name: "active with stale deadline", status: StatusActive, locked: &future, want: false},
		{name: "locked with nil deadline", status: StatusTemporarilyLocked, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acct := &Account{Status: tt.status, LockedUntil: tt.locked}
			assert.Equal(t, tt.want, acct.IsLocked())
		})
	}
}

func TestIsLockedOut(t *testing.T) {
	future := time.Now().Add(time.Minute)
	past := time.Now().Add(-time.Minute)

	assert.True(t, IsLockedOut(&future))
	assert.False(t, IsLockedOut(&past))
	assert.False(t, IsLockedOut(nil))
}

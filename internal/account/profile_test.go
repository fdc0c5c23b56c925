// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package account

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// signedTokenFor mints a valid access token for the account without
// touching the token store.
func signedTokenFor(t *testing.T, svc *Service, acct *Account) string {
	t.Helper()
	signed, err := svc.issuer.sign(acct.ID, time.Now().Add(time.Hour))
	require.NoError(t, err)
	return signed
}

func TestCurrentUser_Authentication(t *testing.T) {
	t.Run("empty token", func(t *testing.T) {
		svc, _ := newTestService(t, ServiceConfig{})

		res := svc.CurrentUser(context.Background(), "")

		assert.Equal(t, CodeAuthRequired, res.Code)
		assert.Equal(t, http.StatusUnauthorized, res.HTTPStatus)
	})

	t.Run("garbage token", func(t *testing.T) {
		svc, _ := newTestService(t, ServiceConfig{})

		res := svc.CurrentUser(context.Background(), "garbage")

		assert.Equal(t, CodeInvalidToken, res.Code)
		assert.Equal(t, http.StatusUnauthorized, res.HTTPStatus)
	})

	t.Run("token for a vanished account", func(t *testing.T) {
		svc, m := newTestService(t, ServiceConfig{})
		acct := NewAccount("user@example.com", "salt:key")
		m.accounts.On("GetByID", mock.Anything, acct.ID).Return(nil, ErrNotFound)

		res := svc.CurrentUser(context.Background(), signedTokenFor(t, svc, acct))

		assert.Equal(t, CodeUserNotFound, res.Code)
		assert.Equal(t, http.StatusNotFound, res.HTTPStatus)
	})

	t.Run("deleted account", func(t *testing.T) {
		svc, m := newTestService(t, ServiceConfig{})
		acct := NewAccount("user@example.com", "salt:key")
		acct.Status = StatusDeleted
		m.accounts.On("GetByID", mock.Anything, acct.ID).Return(acct, nil)

		res := svc.CurrentUser(context.Background(), signedTokenFor(t, svc, acct))

		assert.Equal(t, CodeAccountDeleted, res.Code)
		assert.Equal(t, http.StatusForbidden, res.HTTPStatus)
	})
}

func TestCurrentUser_Success(t *testing.T) {
	svc, m := newTestService(t, ServiceConfig{})
	acct := NewAccount("user@example.com", "salt:key")
	acct.Status = StatusActive
	acct.EmailVerified = true
	m.accounts.On("GetByID", mock.Anything, acct.ID).Return(acct, nil)

	res := svc.CurrentUser(context.Background(), signedTokenFor(t, svc, acct))

	require.True(t, res.Success)
	payload, ok := res.Data.(ProfilePayload)
	require.True(t, ok)
	assert.Equal(t, acct.ID, payload.ID)
	assert.Equal(t, acct.Email, payload.Email)
	assert.True(t, payload.EmailVerified)
	// The credential hash never appears in the payload type.
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Service, *serviceMocks, *Account, string) {
		svc, m := newTestService(t, ServiceConfig{})
		acct := NewAccount("user@example.com", testHash(t, "Current-Pass1!"))
		acct.Status = StatusActive
		m.accounts.On("GetByID", mock.Anything, acct.ID).Return(acct, nil)
		return svc, m, acct, signedTokenFor(t, svc, acct)
	}

	t.Run("incorrect current password", func(t *testing.T) {
		svc, _, _, token := setup(t)

		res := svc.ChangePassword(ctx, token, "Wrong-Pass9!", "New-Password1!", "New-Password1!")

		assert.Equal(t, CodeIncorrectPassword, res.Code)
		assert.Equal(t, http.StatusUnauthorized, res.HTTPStatus)
	})

	t.Run("weak new password", func(t *testing.T) {
		svc, _, _, token := setup(t)

		res := svc.ChangePassword(ctx, token, "Current-Pass1!", "weak", "weak")

		assert.Equal(t, CodeWeakPassword, res.Code)
	})

	t.Run("mismatched confirmation", func(t *testing.T) {
		svc, _, _, token := setup(t)

		res := svc.ChangePassword(ctx, token, "Current-Pass1!", "New-Password1!", "Other-Password1!")

		assert.Equal(t, CodePasswordsDoNotMatch, res.Code)
	})

	t.Run("reused password", func(t *testing.T) {
		svc, m, acct, token := setup(t)
		m.history.On("IsReused", mock.Anything, acct.ID, mock.AnythingOfType("string")).Return(false, nil)
		m.history.On("RecentHashes", mock.Anything, acct.ID, 0).
			Return([]string{acct.CredentialHash}, nil)

		// The new password equals the current one, stored under a
		// different salt in the history.
		res := svc.ChangePassword(ctx, token, "Current-Pass1!", "Current-Pass1!", "Current-Pass1!")

		assert.Equal(t, CodePasswordReusedChange, res.Code)
		assert.Equal(t, http.StatusBadRequest, res.HTTPStatus)
		m.accounts.AssertNotCalled(t, "ChangeCredential", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("success revokes other sessions", func(t *testing.T) {
		svc, m, acct, token := setup(t)
		m.history.On("IsReused", mock.Anything, acct.ID, mock.AnythingOfType("string")).Return(false, nil)
		m.history.On("RecentHashes", mock.Anything, acct.ID, 0).
			Return([]string{acct.CredentialHash}, nil)
		m.accounts.On("ChangeCredential", mock.Anything, acct.ID, mock.AnythingOfType("string")).Return(nil)

		res := svc.ChangePassword(ctx, token, "Current-Pass1!", "New-Password1!", "New-Password1!")

		require.True(t, res.Success, "unexpected failure: %s", res.Message)
		assert.Equal(t, msgPasswordChanged, res.Message)
		m.accounts.AssertExpectations(t)
	})
}

func TestUpdateAccount(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Service, *serviceMocks, *Account, string) {
		svc, m := newTestService(t, ServiceConfig{})
		acct := NewAccount("user@example.com", "salt:key")
		acct.Status = StatusActive
		acct.Username = "alice"
		m.accounts.On("GetByID", mock.Anything, acct.ID).Return(acct, nil)
		return svc, m, acct, signedTokenFor(t, svc, acct)
	}

	strPtr := func(s string) *string { return &s }

	t.Run("no fields", func(t *testing.T) {
		svc, _, _, token := setup(t)

		res := svc.UpdateAccount(ctx, token, nil, nil)

		assert.Equal(t, CodeUpdateFailed, res.Code)
		assert.Equal(t, http.StatusBadRequest, res.HTTPStatus)
	})

	t.Run("unchanged values write nothing", func(t *testing.T) {
		svc, m, acct, token := setup(t)

		res := svc.UpdateAccount(ctx, token, strPtr(acct.Email), strPtr(acct.Username))

		require.True(t, res.Success)
		m.accounts.AssertNotCalled(t, "UpdateProfile",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("username taken", func(t *testing.T) {
		svc, m, acct, token := setup(t)
		m.accounts.On("UsernameTaken", mock.Anything, "bob", acct.ID).Return(true, nil)

		res := svc.UpdateAccount(ctx, token, nil, strPtr("bob"))

		assert.Equal(t, CodeUsernameTaken, res.Code)
	})

	t.Run("email registered", func(t *testing.T) {
		svc, m, acct, token := setup(t)
		m.accounts.On("EmailTaken", mock.Anything, "new@example.com", acct.ID).Return(true, nil)

		res := svc.UpdateAccount(ctx, token, strPtr("new@example.com"), nil)

		assert.Equal(t, CodeEmailRegistered, res.Code)
	})

	t.Run("username change", func(t *testing.T) {
		svc, m, acct, token := setup(t)
		updated := *acct
		updated.Username = "bob"
		m.accounts.On("UsernameTaken", mock.Anything, "bob", acct.ID).Return(false, nil)
		m.accounts.On("UpdateProfile", mock.Anything, acct.ID, (*string)(nil), strPtr("bob"), (*VerificationToken)(nil)).
			Return(&updated, nil)

		res := svc.UpdateAccount(ctx, token, nil, strPtr("bob"))

		require.True(t, res.Success, "unexpected failure: %s", res.Message)
		assert.Equal(t, msgProfileUpdated, res.Message)
		payload, ok := res.Data.(ProfilePayload)
		require.True(t, ok)
		assert.Equal(t, "bob", payload.Username)
		m.mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})

	t.Run("email change triggers reverification", func(t *testing.T) {
		svc, m, acct, token := setup(t)
		updated := *acct
		updated.Email = "new@example.com"
		updated.EmailVerified = false
		m.accounts.On("EmailTaken", mock.Anything, "new@example.com", acct.ID).Return(false, nil)
		m.accounts.On("UpdateProfile", mock.Anything, acct.ID, strPtr("new@example.com"), (*string)(nil),
			mock.AnythingOfType("*account.VerificationToken")).Return(&updated, nil)
		m.mailer.On("Send", mock.Anything, mock.MatchedBy(func(msg Message) bool {
			return msg.To == "new@example.com"
		})).Return(nil)

		res := svc.UpdateAccount(ctx, token, strPtr("new@example.com"), nil)

		require.True(t, res.Success, "unexpected failure: %s", res.Message)
		assert.Equal(t, msgProfileUpdatedVerify, res.Message)
		m.mailer.AssertExpectations(t)
	})

	t.Run("mail failure does not fail the update", func(t *testing.T) {
		svc, m, acct, token := setup(t)
		updated := *acct
		updated.Email = "new@example.com"
		m.accounts.On("EmailTaken", mock.Anything, "new@example.com", acct.ID).Return(false, nil)
		m.accounts.On("UpdateProfile", mock.Anything, acct.ID, strPtr("new@example.com"), (*string)(nil),
			mock.AnythingOfType("*account.VerificationToken")).Return(&updated, nil)
		m.mailer.On("Send", mock.Anything, mock.AnythingOfType("account.Message")).
			Return(errors.New("connection reset"))

		res := svc.UpdateAccount(ctx, token, strPtr("new@example.com"), nil)

		require.True(t, res.Success)
	})
}

func TestDeleteAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		svc, m := newTestService(t, ServiceConfig{})
		acct := NewAccount("user@example.com", "salt:key")
		acct.Status = StatusActive
		m.accounts.On("GetByID", mock.Anything, acct.ID).Return(acct, nil)
		m.accounts.On("MarkDeleted", mock.Anything, acct.ID).Return(nil)

		res := svc.DeleteAccount(ctx, signedTokenFor(t, svc, acct))

		require.True(t, res.Success)
		assert.Equal(t, msgAccountDeletedOK, res.Message)
	})

	t.Run("store failure", func(t *testing.T) {
		svc, m := newTestService(t, ServiceConfig{})
		acct := NewAccount("user@example.com", "salt:key")
		m.accounts.On("GetByID", mock.Anything, acct.ID).Return(acct, nil)
		m.accounts.On("MarkDeleted", mock.Anything, acct.ID).Return(errors.New("connection reset"))

		res := svc.DeleteAccount(ctx, signedTokenFor(t, svc, acct))

		assert.False(t, res.Success)
		assert.Equal(t, CodeDeleteFailed, res.Code)
		assert.Equal(t, http.StatusInternalServerError, res.HTTPStatus)
	})
}

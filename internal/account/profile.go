// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package account

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/gatekeep/gatekeep/pkg/errutil"
)

// ProfilePayload is the account view returned to its owner.
type ProfilePayload struct {
	ID            uuid.UUID  `json:"id"`
	Email         string     `json:"email"`
	Username      string     `json:"username"`
	Role          Role       `json:"role"`
	Status        Status     `json:"status"`
	EmailVerified bool       `json:"email_verified"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func profilePayload(acct *Account) ProfilePayload {
	return ProfilePayload{
		ID:            acct.ID,
		Email:         acct.Email,
		Username:      acct.Username,
		Role:          acct.Role,
		Status:        acct.Status,
		EmailVerified: acct.EmailVerified,
		LastLoginAt:   acct.LastLoginAt,
		CreatedAt:     acct.CreatedAt,
	}
}

// authenticate resolves the presented token to its account. The second
// return value carries the failure result when the first is nil.
func (s *Service) authenticate(ctx context.Context, accessToken string) (*Account, Result) {
	if accessToken == "" {
		return nil, Fail(msgAuthRequired, CodeAuthRequired, http.StatusUnauthorized)
	}

	id, err := s.issuer.AccountID(accessToken)
	if err != nil {
		return nil, Fail(msgInvalidTokenGeneric, CodeInvalidToken, http.StatusUnauthorized)
	}

	acct, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, Fail(msgInvalidTokenGeneric, CodeUserNotFound, http.StatusNotFound)
		}
		return nil, s.dependencyFailure("authenticate: look up account", err)
	}
	if acct.Status == StatusDeleted {
		return nil, Fail(msgAccountDeleted, CodeAccountDeleted, http.StatusForbidden)
	}
	return acct, Result{}
}

// CurrentUser returns the profile of the token's owner.
func (s *Service) CurrentUser(ctx context.Context, accessToken string) Result {
	acct, fail := s.authenticate(ctx, accessToken)
	if acct == nil {
		return fail
	}
	return OK(msgUserRetrieved, CodeSuccess, profilePayload(acct), http.StatusOK)
}

// ChangePassword replaces the credential of the token's owner. The current
// password must verify first, the new one must not repeat any recorded
// credential, and a successful change revokes every live session so other
// devices must log in again.
func (s *Service) ChangePassword(ctx context.Context, accessToken, currentPassword, newPassword, confirmPassword string) Result {
	acct, fail := s.authenticate(ctx, accessToken)
	if acct == nil {
		return fail
	}

	valid, err := s.hasher.Verify(acct.CredentialHash, currentPassword)
	if err != nil {
		errutil.LogError(s.logger, "change-password: verify current credential", err)
		return Fail("Unknown error", CodeUnexpectedError, http.StatusInternalServerError)
	}
	if !valid {
		return Fail(msgIncorrectPassword, CodeIncorrectPassword, http.StatusUnauthorized)
	}

	if err := ValidatePassword(newPassword); err != nil {
		return Fail(err.Error(), CodeWeakPassword, http.StatusBadRequest)
	}
	if newPassword != confirmPassword {
		return Fail(msgPasswordsDoNotMatch, CodePasswordsDoNotMatch, http.StatusBadRequest)
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		errutil.LogError(s.logger, "change-password: hash credential", err)
		return Fail("Unknown error", CodeUnexpectedError, http.StatusInternalServerError)
	}

	reused, err := s.credentialReused(ctx, acct, newPassword, newHash)
	if err != nil {
		return s.dependencyFailure("change-password: check history", err)
	}
	if reused {
		return Fail(msgPasswordReused, CodePasswordReusedChange, http.StatusBadRequest)
	}

	if err := s.accounts.ChangeCredential(ctx, acct.ID, newHash); err != nil {
		errutil.LogError(s.logger, "change-password: apply credential", err)
		return Fail(msgUpdateFailed, CodeUpdateFailed, http.StatusInternalServerError)
	}

	return OK(msgPasswordChanged, CodeSuccess, nil, http.StatusOK)
}

// UpdateAccount changes the email and/or username of the token's owner.
// A changed email drops the verified flag and triggers a fresh
// verification mail; delivery failures are logged but do not fail the
// update.
func (s *Service) UpdateAccount(ctx context.Context, accessToken string, email, username *string) Result {
	acct, fail := s.authenticate(ctx, accessToken)
	if acct == nil {
		return fail
	}

	if email == nil && username == nil {
		return Fail("No fields provided to update", CodeUpdateFailed, http.StatusBadRequest)
	}

	if username != nil {
		if *username == acct.Username {
			username = nil
		} else {
			if err := ValidateUsername(*username); err != nil {
				return Fail(err.Error(), CodeUsernameTaken, http.StatusBadRequest)
			}
			taken, err := s.accounts.UsernameTaken(ctx, *username, acct.ID)
			if err != nil {
				return s.dependencyFailure("update-account: check username", err)
			}
			if taken {
				return Fail(msgUsernameTaken, CodeUsernameTaken, http.StatusBadRequest)
			}
		}
	}

	var verification *VerificationToken
	if email != nil {
		if *email == acct.Email {
			email = nil
		} else {
			if err := ValidateEmail(*email); err != nil {
				return Fail(err.Error(), CodeInvalidEmailFormat, http.StatusBadRequest)
			}
			taken, err := s.accounts.EmailTaken(ctx, *email, acct.ID)
			if err != nil {
				return s.dependencyFailure("update-account: check email", err)
			}
			if taken {
				return Fail(msgEmailRegistered, CodeEmailRegistered, http.StatusBadRequest)
			}
			verification = NewVerificationToken(acct.ID, TokenTypeEmail, s.cfg.EmailTokenTTL)
		}
	}

	if email == nil && username == nil {
		// Both fields matched the stored values; nothing to write.
		return OK(msgProfileUpdated, CodeSuccess, profilePayload(acct), http.StatusOK)
	}

	updated, err := s.accounts.UpdateProfile(ctx, acct.ID, email, username, verification)
	if err != nil {
		errutil.LogError(s.logger, "update-account: apply changes", err)
		return Fail(msgUpdateFailed, CodeUpdateFailed, http.StatusInternalServerError)
	}

	msg := msgProfileUpdated
	if verification != nil {
		msg = msgProfileUpdatedVerify
		if err := s.sendVerificationLink(ctx, *email, verification.Token); err != nil {
			errutil.LogError(s.logger, "update-account: send verification mail", err)
		}
	}

	return OK(msg, CodeSuccess, profilePayload(updated), http.StatusCreated)
}

// DeleteAccount soft-deletes the token's owner and revokes every live
// session in the same transaction.
func (s *Service) DeleteAccount(ctx context.Context, accessToken string) Result {
	acct, fail := s.authenticate(ctx, accessToken)
	if acct == nil {
		return fail
	}

	if err := s.accounts.MarkDeleted(ctx, acct.ID); err != nil {
		errutil.LogError(s.logger, "delete-account: mark deleted", err)
		return Fail("Failed to delete user", CodeDeleteFailed, http.StatusInternalServerError)
	}

	return OK(msgAccountDeletedOK, CodeSuccess, nil, http.StatusOK)
}

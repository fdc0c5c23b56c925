// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package account

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gatekeep/gatekeep/internal/observability"
	"github.com/gatekeep/gatekeep/pkg/errutil"
)

// LockoutPayload surfaces the lockout deadline so the caller can render
// "try later / reset your password".
type LockoutPayload struct {
	LockedUntil time.Time `json:"locked_until"`
}

// AttemptsPayload surfaces how many failed attempts remain before a
// lockout triggers.
type AttemptsPayload struct {
	RemainingAttempts int `json:"remaining_attempts"`
}

// Login verifies the credential, drives the account state machine, and
// issues a session on success. Exactly one store write happens per
// attempt: either the failure counter (and possibly the lockout) or the
// success reset, never both.
func (s *Service) Login(ctx context.Context, email, password string) Result {
	if err := ValidateEmail(email); err != nil {
		return Fail(err.Error(), CodeInvalidEmailFormat, http.StatusBadRequest)
	}

	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Unknown emails never touch any counter.
			observability.RecordLoginAttempt("unknown_email")
			return Fail(msgLoginFailed, CodeUserNotFound, http.StatusNotFound)
		}
		return s.dependencyFailure("login: look up account", err)
	}

	switch acct.Status {
	case StatusDeleted:
		observability.RecordLoginAttempt("deleted")
		return Fail(msgAccountDeleted, CodeAccountDeleted, http.StatusForbidden)
	case StatusSuspended:
		observability.RecordLoginAttempt("suspended")
		return Fail(msgAccountSuspended, CodeAccountSuspended, http.StatusForbidden)
	}

	if acct.IsLocked() {
		observability.RecordLoginAttempt("locked")
		return FailWithData(msgAccountLocked, CodeAccountLocked,
			LockoutPayload{LockedUntil: *acct.LockedUntil}, http.StatusForbidden)
	}

	valid, err := s.hasher.Verify(acct.CredentialHash, password)
	if err != nil {
		errutil.LogError(s.logger, "login: verify credential", err)
		return Fail("Unknown error", CodeUnexpectedError, http.StatusInternalServerError)
	}

	if !valid {
		locked := acct.RecordFailure(s.cfg.LockoutThreshold, s.cfg.LockoutDuration)
		if err := s.accounts.SaveLoginFailure(ctx, acct); err != nil {
			return s.dependencyFailure("login: save failed attempt", err)
		}
		if locked {
			observability.RecordLoginAttempt("lockout_triggered")
			return FailWithData(msgAccountLocked, CodeAccountLocked,
				LockoutPayload{LockedUntil: *acct.LockedUntil}, http.StatusUnauthorized)
		}
		observability.RecordLoginAttempt("invalid_password")
		return FailWithData("Invalid password", CodeLoginFailed,
			AttemptsPayload{RemainingAttempts: s.cfg.LockoutThreshold - acct.FailedLoginAttempts},
			http.StatusUnauthorized)
	}

	if err := s.accounts.RecordLoginSuccess(ctx, acct.ID, time.Now()); err != nil {
		return s.dependencyFailure("login: record success", err)
	}

	token, err := s.issuer.Issue(ctx, acct.ID)
	if err != nil {
		errutil.LogError(s.logger, "login: issue session", err)
		return Fail("Error generating token", CodeTokenGenerationError, http.StatusInternalServerError)
	}

	observability.RecordLoginAttempt("success")
	observability.RecordTokenIssued("login")
	return OK(msgLoginSuccess, CodeSuccess, s.sessionPayload(token), http.StatusOK)
}

// Logout revokes the presented refresh token. Revoking an already-revoked
// or unknown token reports an invalid token rather than an error.
func (s *Service) Logout(ctx context.Context, refreshToken string) Result {
	if refreshToken == "" {
		return Fail(msgInvalidRefreshToken, CodeInvalidRefreshToken, http.StatusUnauthorized)
	}

	revoked, err := s.issuer.Revoke(ctx, refreshToken)
	if err != nil {
		return s.dependencyFailure("logout: revoke token", err)
	}
	if !revoked {
		return Fail(msgInvalidRefreshToken, CodeInvalidRefreshToken, http.StatusUnauthorized)
	}

	return OK(msgLoggedOut, CodeSuccess, nil, http.StatusOK)
}

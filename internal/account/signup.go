// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package account

import (
	"context"
	"errors"
	"net/http"

	"github.com/gatekeep/gatekeep/internal/observability"
	"github.com/gatekeep/gatekeep/pkg/errutil"
)

// SignUp registers a new pending account, records the initial credential
// in the history, mails a verification link, and issues an initial
// session. The very first account on a fresh install is promoted to
// admin.
func (s *Service) SignUp(ctx context.Context, email, password, confirmPassword string) Result {
	if err := ValidateEmail(email); err != nil {
		return Fail(err.Error(), CodeInvalidEmailFormat, http.StatusBadRequest)
	}
	if err := ValidatePassword(password); err != nil {
		return Fail(err.Error(), CodeWeakPassword, http.StatusBadRequest)
	}
	if password != confirmPassword {
		return Fail(msgPasswordsDoNotMatch, CodePasswordsDoNotMatch, http.StatusBadRequest)
	}

	adminCount, err := s.accounts.CountAdmins(ctx)
	if err != nil {
		return s.dependencyFailure("sign-up: count admins", err)
	}

	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return Fail(msgEmailInUse, CodeEmailAlreadyInUse, http.StatusConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return s.dependencyFailure("sign-up: look up email", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return s.dependencyFailure("sign-up: hash credential", err)
	}

	acct := NewAccount(email, hash)
	if err := s.accounts.Create(ctx, acct); err != nil {
		// A concurrent sign-up can win the unique index between the
		// lookup above and this insert.
		if errors.Is(err, ErrEmailTaken) {
			return Fail(msgEmailInUse, CodeEmailAlreadyInUse, http.StatusConflict)
		}
		errutil.LogError(s.logger, "sign-up: create account", err)
		return Fail("Failed to create user", CodeUserCreationFailed, http.StatusInternalServerError)
	}

	if adminCount == 0 {
		if err := s.accounts.SetRole(ctx, acct.ID, RoleAdmin); err != nil {
			errutil.LogError(s.logger, "sign-up: promote first account", err)
			return Fail("Failed to promote user", CodeUserCreationFailed, http.StatusInternalServerError)
		}
	}

	if _, err := s.history.Record(ctx, acct.ID, hash); err != nil {
		errutil.LogError(s.logger, "sign-up: record credential history", err)
		return Fail("Error adding password to history", CodeDBError, http.StatusInternalServerError)
	}

	if err := s.sendVerificationMail(ctx, acct, email); err != nil {
		errutil.LogError(s.logger, "sign-up: send verification email", err)
		return Fail(msgEmailSendFailed, CodeEmailSendError, http.StatusInternalServerError)
	}

	token, err := s.issuer.Issue(ctx, acct.ID)
	if err != nil {
		errutil.LogError(s.logger, "sign-up: issue session", err)
		return Fail("Error generating token", CodeTokenGenerationError, http.StatusInternalServerError)
	}
	observability.RecordTokenIssued("signup")

	return OK(msgSignUpSuccess, CodeSuccess, s.sessionPayload(token), http.StatusCreated)
}

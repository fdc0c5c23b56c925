// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package account

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gatekeep/gatekeep/internal/observability"
	"github.com/gatekeep/gatekeep/pkg/errutil"
)

// resetEligible are the statuses allowed to initiate a password reset.
func resetEligible(status Status) bool {
	switch status {
	case StatusActive, StatusPending, StatusTemporarilyLocked:
		return true
	default:
		return false
	}
}

// ForgotPassword initiates a password reset. The outward message is
// identical whether or not the email is registered, so the endpoint
// cannot be used to enumerate accounts. Mail delivery failures are
// logged but never change the response.
func (s *Service) ForgotPassword(ctx context.Context, email string) Result {
	if err := ValidateEmail(email); err != nil {
		return Fail(err.Error(), CodeInvalidEmailFormat, http.StatusBadRequest)
	}

	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return OK(msgResetInitiated, CodePasswordResetInitiated, nil, http.StatusOK)
		}
		return s.dependencyFailure("forgot-password: look up account", err)
	}

	if !resetEligible(acct.Status) {
		return Fail(msgNotEligibleForReset, CodeNotEligibleForReset, http.StatusForbidden)
	}

	token := NewVerificationToken(acct.ID, TokenTypePasswordReset, s.cfg.ResetTokenTTL)
	if err := s.verifications.Create(ctx, token); err != nil {
		return s.dependencyFailure("forgot-password: create reset token", err)
	}
	observability.RecordVerificationEvent("password_reset", "issued")

	link := fmt.Sprintf("%s/reset-password/%s", s.cfg.ResetBaseURL, token.Token)
	err = s.mailer.Send(ctx, Message{
		To:      acct.Email,
		Subject: "Reset Your Password",
		Body:    fmt.Sprintf("Click this link to reset your password: %s\n\nThis link will expire in 1 hour.", link),
	})
	if err != nil {
		errutil.LogError(s.logger, "forgot-password: send mail", err)
	}

	return OK(msgResetInitiated, CodePasswordResetInitiated, nil, http.StatusOK)
}

// ResetPassword completes a password reset. Reuse is checked before any
// mutation; the credential update, lockout reset, token spend, and
// history append are one transaction.
func (s *Service) ResetPassword(ctx context.Context, token, password, confirmPassword string) Result {
	if err := ValidatePassword(password); err != nil {
		return Fail(err.Error(), CodeWeakPassword, http.StatusBadRequest)
	}
	if password != confirmPassword {
		return Fail(msgPasswordsDoNotMatch, CodePasswordsDoNotMatch, http.StatusBadRequest)
	}

	reset, err := s.verifications.GetUsable(ctx, token, TokenTypePasswordReset)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Fail(msgInvalidResetToken, CodeInvalidResetToken, http.StatusUnauthorized)
		}
		return s.dependencyFailure("reset-password: look up token", err)
	}

	acct, err := s.accounts.GetByID(ctx, reset.AccountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Fail(msgInvalidResetToken, CodeInvalidResetToken, http.StatusUnauthorized)
		}
		return s.dependencyFailure("reset-password: look up account", err)
	}
	if acct.Status == StatusDeleted || acct.Status == StatusSuspended {
		return Fail(msgNotEligibleForReset, CodeNotEligibleForReset, http.StatusForbidden)
	}

	newHash, err := s.hasher.Hash(password)
	if err != nil {
		errutil.LogError(s.logger, "reset-password: hash credential", err)
		return Fail("Unknown error", CodeUnexpectedError, http.StatusInternalServerError)
	}

	reused, err := s.credentialReused(ctx, acct, password, newHash)
	if err != nil {
		return s.dependencyFailure("reset-password: check history", err)
	}
	if reused {
		return Fail(msgPasswordReused, CodePasswordReused, http.StatusBadRequest)
	}

	if _, err := s.verifications.ConsumeForPasswordReset(ctx, token, newHash); err != nil {
		if errors.Is(err, ErrNotFound) {
			// A concurrent consume spent the token first.
			observability.RecordVerificationEvent("password_reset", "rejected")
			return Fail(msgInvalidResetToken, CodeInvalidResetToken, http.StatusUnauthorized)
		}
		return s.dependencyFailure("reset-password: consume token", err)
	}

	observability.RecordVerificationEvent("password_reset", "consumed")
	return OK(msgPasswordResetSuccess, CodePasswordResetSuccess, nil, http.StatusOK)
}

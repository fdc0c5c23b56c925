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

// VerifyEmail consumes an email-type verification token and activates
// the owning account. The consume and the activation are one
// transaction; a spent, expired, or wrongly-typed token performs no
// mutation at all.
func (s *Service) VerifyEmail(ctx context.Context, token string) Result {
	if token == "" {
		return Fail(msgTokenExpiredOrUsed, CodeTokenInvalid, http.StatusUnauthorized)
	}

	if _, err := s.verifications.ConsumeForEmailVerification(ctx, token); err != nil {
		if errors.Is(err, ErrNotFound) {
			observability.RecordVerificationEvent("email", "rejected")
			return Fail(msgTokenExpiredOrUsed, CodeTokenInvalid, http.StatusUnauthorized)
		}
		return s.dependencyFailure("verify-email: consume token", err)
	}

	observability.RecordVerificationEvent("email", "consumed")
	return OK(msgEmailVerified, CodeSuccess, nil, http.StatusOK)
}

// ResendVerification re-sends the confirmation mail for a pending
// account, subject to a per-account cool-down keyed on the most recent
// email-type token.
func (s *Service) ResendVerification(ctx context.Context, email string) Result {
	if err := ValidateEmail(email); err != nil {
		return Fail(err.Error(), CodeInvalidEmailFormat, http.StatusBadRequest)
	}

	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Fail(msgVerificationSent, CodeUserNotFound, http.StatusNotFound)
		}
		return s.dependencyFailure("resend-verification: look up account", err)
	}

	if acct.Status == StatusActive {
		return Fail(msgEmailAlreadyVerified, CodeEmailAlreadyVerified, http.StatusConflict)
	}
	if acct.Status != StatusPending {
		return Fail(msgUnableToResend, CodeUnableToResend, http.StatusUnauthorized)
	}

	lastSent, err := s.verifications.LatestCreatedAt(ctx, acct.ID, TokenTypeEmail)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return s.dependencyFailure("resend-verification: look up last token", err)
	}
	if err == nil && time.Since(lastSent) < s.cfg.ResendCooldown {
		return Fail(msgResendCooldown, CodeRateLimitExceeded, http.StatusUnauthorized)
	}

	if err := s.sendVerificationMail(ctx, acct, email); err != nil {
		errutil.LogError(s.logger, "resend-verification: send mail", err)
		return Fail(msgEmailSendFailed, CodeEmailSendFailed, http.StatusInternalServerError)
	}

	return OK(msgVerificationResent, CodeSuccess, nil, http.StatusOK)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package account implements the credential and session lifecycle core:
// password hashing and history, the account state machine with lockout,
// refresh token issuance and rotation, and verification token flows.
package account

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/observability"
	"github.com/gatekeep/gatekeep/pkg/errutil"
)

// ServiceConfig carries the tunable policy knobs of the account core.
// Zero values fall back to the package defaults.
type ServiceConfig struct {
	LockoutThreshold int
	LockoutDuration  time.Duration
	EmailTokenTTL    time.Duration
	ResetTokenTTL    time.Duration
	ResendCooldown   time.Duration

	// VerificationBaseURL and ResetBaseURL prefix the links embedded in
	// outbound mail.
	VerificationBaseURL string
	ResetBaseURL        string
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	if c.LockoutThreshold <= 0 {
		c.LockoutThreshold = DefaultLockoutThreshold
	}
	if c.LockoutDuration <= 0 {
		c.LockoutDuration = DefaultLockoutDuration
	}
	if c.EmailTokenTTL <= 0 {
		c.EmailTokenTTL = DefaultEmailTokenTTL
	}
	if c.ResetTokenTTL <= 0 {
		c.ResetTokenTTL = DefaultResetTokenTTL
	}
	if c.ResendCooldown <= 0 {
		c.ResendCooldown = DefaultResendCooldown
	}
	if c.VerificationBaseURL == "" {
		c.VerificationBaseURL = "http://localhost:3000"
	}
	if c.ResetBaseURL == "" {
		c.ResetBaseURL = "http://localhost:3000"
	}
	return c
}

// Service composes the credential hasher, account state machine, token
// issuer, and verification lifecycle into one function per use case.
// Every method converts dependency failures into a Result; callers never
// see raw store errors.
type Service struct {
	accounts      AccountRepository
	history       HistoryRepository
	verifications VerificationRepository
	issuer        *TokenIssuer
	hasher        CredentialHasher
	mailer        Mailer
	logger        *slog.Logger
	cfg           ServiceConfig
}

// NewService creates a Service.
func NewService(
	accounts AccountRepository,
	history HistoryRepository,
	verifications VerificationRepository,
	issuer *TokenIssuer,
	hasher CredentialHasher,
	mailer Mailer,
	logger *slog.Logger,
	cfg ServiceConfig,
) (*Service, error) {
	if accounts == nil {
		return nil, oops.Code("SERVICE_CONFIG_INVALID").Errorf("account repository is required")
	}
	if history == nil {
		return nil, oops.Code("SERVICE_CONFIG_INVALID").Errorf("history repository is required")
	}
	if verifications == nil {
		return nil, oops.Code("SERVICE_CONFIG_INVALID").Errorf("verification repository is required")
	}
	if issuer == nil {
		return nil, oops.Code("SERVICE_CONFIG_INVALID").Errorf("token issuer is required")
	}
	if hasher == nil {
		return nil, oops.Code("SERVICE_CONFIG_INVALID").Errorf("credential hasher is required")
	}
	if mailer == nil {
		return nil, oops.Code("SERVICE_CONFIG_INVALID").Errorf("mailer is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		accounts:      accounts,
		history:       history,
		verifications: verifications,
		issuer:        issuer,
		hasher:        hasher,
		mailer:        mailer,
		logger:        logger,
		cfg:           cfg.withDefaults(),
	}, nil
}

// SessionPayload is the data carried by a successful login, sign-up, or
// refresh.
type SessionPayload struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (s *Service) sessionPayload(token *RefreshToken) SessionPayload {
	return SessionPayload{
		AccessToken: token.Token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.issuer.TTL().Seconds()),
	}
}

// credentialReused reports whether the plaintext password matches any
// credential the account has used before. Every stored composite carries
// its own salt, so an exact-hash lookup alone cannot catch a repeated
// password; each historical entry is re-derived and compared.
func (s *Service) credentialReused(ctx context.Context, acct *Account, password, newHash string) (bool, error) {
	exact, err := s.history.IsReused(ctx, acct.ID, newHash)
	if err != nil {
		return false, err
	}
	if exact {
		return true, nil
	}

	hashes, err := s.history.RecentHashes(ctx, acct.ID, 0)
	if err != nil {
		return false, err
	}
	for _, h := range hashes {
		match, err := s.hasher.Verify(h, password)
		if err != nil {
			// A malformed historical entry cannot match anything.
			continue
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}

// dependencyFailure logs the underlying error and converts it into the
// opaque store-failure result.
func (s *Service) dependencyFailure(msg string, err error) Result {
	errutil.LogError(s.logger, msg, err)
	return Fail(msgDatabaseError, CodeDBError, http.StatusInternalServerError)
}

// sendVerificationMail creates an email-type verification token and mails
// the confirmation link. The token is persisted before the send; a
// delivery failure is returned for the caller to surface but never
// unwinds the token.
func (s *Service) sendVerificationMail(ctx context.Context, acct *Account, to string) error {
	token := NewVerificationToken(acct.ID, TokenTypeEmail, s.cfg.EmailTokenTTL)
	if err := s.verifications.Create(ctx, token); err != nil {
		return oops.Code("VERIFICATION_CREATE_FAILED").
			With("account_id", acct.ID.String()).
			Wrap(err)
	}

	observability.RecordVerificationEvent("email", "issued")
	return s.sendVerificationLink(ctx, to, token.Token)
}

// sendVerificationLink mails the confirmation link for an already
// persisted email-type token.
func (s *Service) sendVerificationLink(ctx context.Context, to, token string) error {
	link := fmt.Sprintf("%s/verify-email/%s", s.cfg.VerificationBaseURL, token)
	err := s.mailer.Send(ctx, Message{
		To:      to,
		Subject: "Verify your email",
		Body:    fmt.Sprintf("Please verify your email by clicking this link: %s\n\nThis link will expire in 24 hours.", link),
	})
	if err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("to", to).Wrap(err)
	}
	return nil
}

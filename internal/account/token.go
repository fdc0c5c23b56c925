// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package account

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

// Refresh token configuration.
const (
	// DefaultRefreshTokenTTL is the lifetime of an issued refresh token.
	DefaultRefreshTokenTTL = time.Hour

	// issueRetryBudget bounds how many times token generation retries
	// when the signed value collides with a stored token.
	issueRetryBudget = 5
)

// RefreshToken is a stored session token. A token is live iff it is
// neither revoked nor expired.
type RefreshToken struct {
	Token     string
	AccountID uuid.UUID
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// IsLive returns true if the token is neither revoked nor expired at the
// given time.
func (t *RefreshToken) IsLive(now time.Time) bool {
	return t.RevokedAt == nil && t.ExpiresAt.After(now)
}

// TokenRepository manages refresh token persistence.
type TokenRepository interface {
	// Create stores a new refresh token.
	Create(ctx context.Context, token *RefreshToken) error

	// Get retrieves a token row by its value.
	Get(ctx context.Context, token string) (*RefreshToken, error)

	// Exists reports whether the token value is already stored.
	Exists(ctx context.Context, token string) (bool, error)

	// Revoke sets revoked_at where it is still null. The returned bool
	// is the race arbiter: false means the token was already revoked
	// (or never existed) and the caller lost.
	Revoke(ctx context.Context, token string) (bool, error)

	// RevokeAllForAccount revokes every live token for an account and
	// returns how many were revoked.
	RevokeAllForAccount(ctx context.Context, accountID uuid.UUID) (int64, error)

	// DeleteExpired removes tokens that expired before the given time and
	// returns the count.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// sessionClaims is the signed payload of a refresh token. The random ID
// claim makes two tokens minted within the same second distinct.
type sessionClaims struct {
	jwt.RegisteredClaims
}

// TokenIssuer creates, validates, revokes, and rotates refresh tokens.
type TokenIssuer struct {
	signingKey []byte
	ttl        time.Duration
	tokens     TokenRepository
	accounts   AccountRepository
}

// NewTokenIssuer creates a TokenIssuer. A zero ttl falls back to
// DefaultRefreshTokenTTL.
func NewTokenIssuer(signingKey []byte, ttl time.Duration, tokens TokenRepository, accounts AccountRepository) (*TokenIssuer, error) {
	if len(signingKey) == 0 {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").Errorf("signing key is required")
	}
	if tokens == nil {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").Errorf("token repository is required")
	}
	if accounts == nil {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").Errorf("account repository is required")
	}
	if ttl <= 0 {
		ttl = DefaultRefreshTokenTTL
	}
	return &TokenIssuer{
		signingKey: signingKey,
		ttl:        ttl,
		tokens:     tokens,
		accounts:   accounts,
	}, nil
}

// TTL returns the configured token lifetime.
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a new refresh token for the account and persists it.
// Generation retries a bounded number of times if the signed value
// collides with a stored token; exhaustion wraps ErrTokenGeneration.
func (i *TokenIssuer) Issue(ctx context.Context, accountID uuid.UUID) (*RefreshToken, error) {
	expiresAt := time.Now().Add(i.ttl)

	for attempt := 0; attempt < issueRetryBudget; attempt++ {
		signed, err := i.sign(accountID, expiresAt)
		if err != nil {
			return nil, oops.Code("TOKEN_SIGN_FAILED").
				With("account_id", accountID.String()).
				Wrap(err)
		}

		taken, err := i.tokens.Exists(ctx, signed)
		if err != nil {
			return nil, oops.Code("TOKEN_ISSUE_FAILED").
				With("operation", "check token uniqueness").
				Wrap(err)
		}
		if taken {
			continue
		}

		token := &RefreshToken{
			Token:     signed,
			AccountID: accountID,
			ExpiresAt: expiresAt,
			CreatedAt: time.Now(),
		}
		if err := i.tokens.Create(ctx, token); err != nil {
			return nil, oops.Code("TOKEN_ISSUE_FAILED").
				With("operation", "persist token").
				Wrap(err)
		}
		return token, nil
	}

	return nil, oops.Code("TOKEN_GENERATION_FAILED").
		With("attempts", issueRetryBudget).
		Wrap(ErrTokenGeneration)
}

// Verify validates a presented token and returns the owning account.
// The signature check runs first and short-circuits without touching the
// store. A missing, expired, or revoked row invalidates the token, as
// does any owning account status other than active; the row is never
// mutated here.
func (i *TokenIssuer) Verify(ctx context.Context, token string) (*Account, error) {
	if _, err := i.parse(token); err != nil {
		return nil, err
	}

	row, err := i.tokens.Get(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("TOKEN_UNKNOWN").Wrap(ErrTokenInvalid)
		}
		return nil, oops.Code("TOKEN_VERIFY_FAILED").
			With("operation", "get token").
			Wrap(err)
	}
	if !row.IsLive(time.Now()) {
		return nil, oops.Code("TOKEN_NOT_LIVE").Wrap(ErrTokenInvalid)
	}

	acct, err := i.accounts.GetByID(ctx, row.AccountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("TOKEN_ACCOUNT_MISSING").Wrap(ErrTokenInvalid)
		}
		return nil, oops.Code("TOKEN_VERIFY_FAILED").
			With("operation", "get account").
			Wrap(err)
	}
	if acct.Status != StatusActive {
		return nil, oops.Code("TOKEN_ACCOUNT_INACTIVE").
			With("status", string(acct.Status)).
			Wrap(ErrTokenInvalid)
	}

	return acct, nil
}

// Revoke marks the token revoked. Revoking twice returns false the second
// time; it is not an error.
func (i *TokenIssuer) Revoke(ctx context.Context, token string) (bool, error) {
	revoked, err := i.tokens.Revoke(ctx, token)
	if err != nil {
		return false, oops.Code("TOKEN_REVOKE_FAILED").Wrap(err)
	}
	return revoked, nil
}

// Rotate exchanges a live refresh token for its successor. The presented
// token is validated, then revoked; only a won revocation issues the new
// token. Losing the conditional revoke (a concurrent replay already spent
// the token) invalidates the whole exchange so two live sessions can
// never descend from one revoked link.
func (i *TokenIssuer) Rotate(ctx context.Context, token string) (*RefreshToken, error) {
	acct, err := i.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	won, err := i.Revoke(ctx, token)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, oops.Code("TOKEN_ROTATION_CONFLICT").Wrap(ErrTokenInvalid)
	}

	return i.Issue(ctx, acct.ID)
}

// PurgeExpired deletes token rows whose expiry has passed. Expired rows
// are already dead to Verify; this is retention, not revocation.
func (i *TokenIssuer) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := i.tokens.DeleteExpired(ctx, time.Now())
	if err != nil {
		return 0, oops.Code("TOKEN_PURGE_FAILED").Wrap(err)
	}
	return n, nil
}

// sign produces the compact signed token embedding the account ID and
// expiry.
func (i *TokenIssuer) sign(accountID uuid.UUID, expiresAt time.Time) (string, error) {
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.signingKey)
}

// parse verifies the token signature and returns its claims. An expired
// token is distinguishable from a forged one via jwt.ErrTokenExpired in
// the wrapped chain; both invalidate the token.
func (i *TokenIssuer) parse(token string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, oops.Code("TOKEN_EXPIRED").Wrap(ErrTokenInvalid)
		}
		return nil, oops.Code("TOKEN_SIGNATURE_INVALID").Wrap(ErrTokenInvalid)
	}
	if !parsed.Valid {
		return nil, oops.Code("TOKEN_SIGNATURE_INVALID").Wrap(ErrTokenInvalid)
	}
	return claims, nil
}

// AccountID extracts the account ID from a signed token without touching
// the store. Used by flows that only need the caller's identity.
func (i *TokenIssuer) AccountID(token string) (uuid.UUID, error) {
	claims, err := i.parse(token)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, oops.Code("TOKEN_SUBJECT_INVALID").Wrap(ErrTokenInvalid)
	}
	return id, nil
}

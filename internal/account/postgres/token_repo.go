// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/account"
)

// TokenRepository implements account.TokenRepository using PostgreSQL.
type TokenRepository struct {
	pool poolIface
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(pool poolIface) *TokenRepository {
	return &TokenRepository{pool: pool}
}

// Create stores a new refresh token.
func (r *TokenRepository) Create(ctx context.Context, token *account.RefreshToken) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO refresh_tokens (token, account_id, expires_at, revoked_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		token.Token,
		token.AccountID,
		token.ExpiresAt,
		token.RevokedAt,
		token.CreatedAt,
	)
	if err != nil {
		return oops.Code("TOKEN_CREATE_FAILED").
			With("operation", "insert refresh token").
			With("account_id", token.AccountID.String()).
			Wrap(err)
	}
	return nil
}

// Get retrieves a token row by its value.
func (r *TokenRepository) Get(ctx context.Context, token string) (*account.RefreshToken, error) {
	var (
		accountID uuid.UUID
		expiresAt time.Time
		revokedAt *time.Time
		createdAt time.Time
	)

	err := r.pool.QueryRow(ctx, `
		SELECT account_id, expires_at, revoked_at, created_at
		FROM refresh_tokens
		WHERE token = $1
	`, token).Scan(&accountID, &expiresAt, &revokedAt, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("TOKEN_NOT_FOUND").Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TOKEN_GET_FAILED").
			With("operation", "get refresh token").
			Wrap(err)
	}

	return &account.RefreshToken{
		Token:     token,
		AccountID: accountID,
		ExpiresAt: expiresAt,
		RevokedAt: revokedAt,
		CreatedAt: createdAt,
	}, nil
}

// Exists reports whether the token value is already stored.
func (r *TokenRepository) Exists(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM refresh_tokens WHERE token = $1)
	`, token).Scan(&exists)
	if err != nil {
		return false, oops.Code("TOKEN_EXISTS_FAILED").
			With("operation", "check token exists").
			Wrap(err)
	}
	return exists, nil
}

// Revoke sets revoked_at where it is still null. The affected row count is
// the race arbiter: zero means the token was already revoked or never
// existed, and the caller lost.
func (r *TokenRepository) Revoke(ctx context.Context, token string) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = $2
		WHERE token = $1 AND revoked_at IS NULL
	`, token, time.Now())
	if err != nil {
		return false, oops.Code("TOKEN_REVOKE_FAILED").
			With("operation", "revoke refresh token").
			Wrap(err)
	}
	return result.RowsAffected() > 0, nil
}

// RevokeAllForAccount revokes every live token for an account and returns
// how many were revoked.
func (r *TokenRepository) RevokeAllForAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = $2
		WHERE account_id = $1 AND revoked_at IS NULL
	`, accountID, time.Now())
	if err != nil {
		return 0, oops.Code("TOKEN_REVOKE_ALL_FAILED").
			With("operation", "revoke refresh tokens for account").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// DeleteExpired removes tokens that expired before the given time and
// returns the count.
func (r *TokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM refresh_tokens WHERE expires_at < $1
	`, before)
	if err != nil {
		return 0, oops.Code("TOKEN_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired refresh tokens").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// Compile-time interface check.
var _ account.TokenRepository = (*TokenRepository)(nil)

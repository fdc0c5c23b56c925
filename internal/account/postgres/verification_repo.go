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

// VerificationRepository implements account.VerificationRepository using
// PostgreSQL. The consume operations run the conditional token update
// first; its affected row count gates the rest of the transaction.
type VerificationRepository struct {
	pool poolIface
}

// NewVerificationRepository creates a new VerificationRepository.
func NewVerificationRepository(pool poolIface) *VerificationRepository {
	return &VerificationRepository{pool: pool}
}

// Create stores a new verification token.
func (r *VerificationRepository) Create(ctx context.Context, token *account.VerificationToken) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO verification_tokens (token, account_id, type, expires_at, used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		token.Token,
		token.AccountID,
		string(token.Type),
		token.ExpiresAt,
		token.UsedAt,
		token.CreatedAt,
	)
	if err != nil {
		return oops.Code("VERIFICATION_CREATE_FAILED").
			With("operation", "insert verification token").
			With("account_id", token.AccountID.String()).
			With("type", string(token.Type)).
			Wrap(err)
	}
	return nil
}

// GetUsable retrieves the token iff it is unused, unexpired, and of the
// given type. Any other state reports ErrNotFound.
func (r *VerificationRepository) GetUsable(ctx context.Context, token string, typ account.TokenType) (*account.VerificationToken, error) {
	var (
		accountID uuid.UUID
		expiresAt time.Time
		createdAt time.Time
	)

	err := r.pool.QueryRow(ctx, `
		SELECT account_id, expires_at, created_at
		FROM verification_tokens
		WHERE token = $1 AND type = $2 AND used_at IS NULL AND expires_at > $3
	`, token, string(typ), time.Now()).Scan(&accountID, &expiresAt, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("VERIFICATION_NOT_USABLE").
			With("type", string(typ)).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("VERIFICATION_GET_FAILED").
			With("operation", "get usable verification token").
			Wrap(err)
	}

	return &account.VerificationToken{
		Token:     token,
		AccountID: accountID,
		Type:      typ,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}, nil
}

// ConsumeForEmailVerification marks the token used and activates the
// owning account in one transaction. A token already spent, expired, or
// of the wrong type loses the conditional update and reports ErrNotFound
// with no account mutation.
func (r *VerificationRepository) ConsumeForEmailVerification(ctx context.Context, token string) (uuid.UUID, error) {
	// The consume must not half-apply if the caller disconnects mid-flight.
	ctx = context.WithoutCancel(ctx)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, oops.Code("VERIFICATION_CONSUME_FAILED").
			With("operation", "begin transaction").
			Wrap(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now()
	var accountID uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE verification_tokens SET used_at = $2
		WHERE token = $1 AND type = 'email' AND used_at IS NULL AND expires_at > $2
		RETURNING account_id
	`, token, now).Scan(&accountID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, oops.Code("VERIFICATION_NOT_USABLE").
			With("type", "email").
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return uuid.Nil, oops.Code("VERIFICATION_CONSUME_FAILED").
			With("operation", "spend verification token").
			Wrap(err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE accounts SET status = 'active', email_verified = TRUE, updated_at = $2
		WHERE id = $1
	`, accountID, now)
	if err != nil {
		return uuid.Nil, oops.Code("VERIFICATION_CONSUME_FAILED").
			With("operation", "activate account").
			With("account_id", accountID.String()).
			Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, oops.Code("VERIFICATION_CONSUME_FAILED").
			With("operation", "commit transaction").
			Wrap(err)
	}
	return accountID, nil
}

// ConsumeForPasswordReset, in one transaction: updates the credential
// hash, resets the failure counter and lockout exactly as a successful
// login would, marks the token used, and appends the hash to the
// credential history. The conditional token update gates the batch.
func (r *VerificationRepository) ConsumeForPasswordReset(ctx context.Context, token string, newHash string) (uuid.UUID, error) {
	ctx = context.WithoutCancel(ctx)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, oops.Code("VERIFICATION_RESET_FAILED").
			With("operation", "begin transaction").
			Wrap(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now()
	var accountID uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE verification_tokens SET used_at = $2
		WHERE token = $1 AND type = 'password_reset' AND used_at IS NULL AND expires_at > $2
		RETURNING account_id
	`, token, now).Scan(&accountID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, oops.Code("VERIFICATION_NOT_USABLE").
			With("type", "password_reset").
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return uuid.Nil, oops.Code("VERIFICATION_RESET_FAILED").
			With("operation", "spend reset token").
			Wrap(err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE accounts SET
			credential_hash = $2,
			failed_login_attempts = 0,
			locked_until = NULL,
			status = CASE WHEN status = 'temporarily_locked'
			              THEN COALESCE(status_before_lockout, 'pending')
			              ELSE status END,
			status_before_lockout = NULL,
			updated_at = $3
		WHERE id = $1
	`, accountID, newHash, now)
	if err != nil {
		return uuid.Nil, oops.Code("VERIFICATION_RESET_FAILED").
			With("operation", "apply new credential").
			With("account_id", accountID.String()).
			Wrap(err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO credential_history (id, account_id, credential_hash, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ON CONSTRAINT credential_history_account_hash_key DO NOTHING
	`, uuid.New(), accountID, newHash, now)
	if err != nil {
		return uuid.Nil, oops.Code("VERIFICATION_RESET_FAILED").
			With("operation", "append credential history").
			With("account_id", accountID.String()).
			Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, oops.Code("VERIFICATION_RESET_FAILED").
			With("operation", "commit transaction").
			Wrap(err)
	}
	return accountID, nil
}

// LatestCreatedAt returns the creation time of the most recent token of
// the given type for the account, or ErrNotFound if none exists.
func (r *VerificationRepository) LatestCreatedAt(ctx context.Context, accountID uuid.UUID, typ account.TokenType) (time.Time, error) {
	var createdAt time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT created_at FROM verification_tokens
		WHERE account_id = $1 AND type = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, accountID, string(typ)).Scan(&createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, oops.Code("VERIFICATION_NONE_FOUND").
			With("account_id", accountID.String()).
			With("type", string(typ)).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return time.Time{}, oops.Code("VERIFICATION_LATEST_FAILED").
			With("operation", "get latest verification token").
			Wrap(err)
	}
	return createdAt, nil
}

// DeleteExpired removes tokens that expired before the given time and
// returns the count.
func (r *VerificationRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM verification_tokens WHERE expires_at < $1
	`, before)
	if err != nil {
		return 0, oops.Code("VERIFICATION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired verification tokens").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// Compile-time interface check.
var _ account.VerificationRepository = (*VerificationRepository)(nil)

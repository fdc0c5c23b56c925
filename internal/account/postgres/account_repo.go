// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/account"
)

const accountColumns = `id, email, username, credential_hash, status, role,
	       email_verified, failed_login_attempts, locked_until,
	       status_before_lockout, last_login_at, created_at, updated_at`

// AccountRepository implements account.AccountRepository using PostgreSQL.
type AccountRepository struct {
	pool poolIface
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool poolIface) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Create stores a new account. A unique violation on the email column is
// reported by wrapping account.ErrEmailTaken.
func (r *AccountRepository) Create(ctx context.Context, acct *account.Account) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (
			id, email, username, credential_hash, status, role,
			email_verified, failed_login_attempts, locked_until,
			status_before_lockout, last_login_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		acct.ID,
		acct.Email,
		acct.Username,
		acct.CredentialHash,
		string(acct.Status),
		string(acct.Role),
		acct.EmailVerified,
		acct.FailedLoginAttempts,
		acct.LockedUntil,
		statusPtrToString(acct.StatusBeforeLockout),
		acct.LastLoginAt,
		acct.CreatedAt,
		acct.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("ACCOUNT_EMAIL_TAKEN").
				With("email", acct.Email).
				Wrap(account.ErrEmailTaken)
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("email", acct.Email).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, id)

	acct, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_ID_FAILED").
			With("operation", "get account by id").
			With("id", id.String()).
			Wrap(err)
	}
	return acct, nil
}

// GetByEmail retrieves an account by email (case-insensitive).
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE LOWER(email) = LOWER($1)
	`, email)

	acct, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("email", email).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_EMAIL_FAILED").
			With("operation", "get account by email").
			With("email", email).
			Wrap(err)
	}
	return acct, nil
}

// CountAdmins returns the number of admin accounts.
func (r *AccountRepository) CountAdmins(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM accounts WHERE role = 'admin'
	`).Scan(&count)
	if err != nil {
		return 0, oops.Code("ACCOUNT_COUNT_ADMINS_FAILED").
			With("operation", "count admin accounts").
			Wrap(err)
	}
	return count, nil
}

// SetRole updates the role of an account.
func (r *AccountRepository) SetRole(ctx context.Context, id uuid.UUID, role account.Role) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE accounts SET role = $2, updated_at = $3
		WHERE id = $1
	`, id, string(role), time.Now())
	if err != nil {
		return oops.Code("ACCOUNT_SET_ROLE_FAILED").
			With("operation", "update role").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// SaveLoginFailure persists the failure counter and lockout fields in a
// single statement. The values come from the in-memory state machine;
// concurrent attempts resolve last-writer-wins.
func (r *AccountRepository) SaveLoginFailure(ctx context.Context, acct *account.Account) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE accounts SET
			failed_login_attempts = $2,
			status = $3,
			locked_until = $4,
			status_before_lockout = $5,
			updated_at = $6
		WHERE id = $1
	`,
		acct.ID,
		acct.FailedLoginAttempts,
		string(acct.Status),
		acct.LockedUntil,
		statusPtrToString(acct.StatusBeforeLockout),
		acct.UpdatedAt,
	)
	if err != nil {
		return oops.Code("ACCOUNT_SAVE_FAILURE_FAILED").
			With("operation", "save login failure").
			With("id", acct.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", acct.ID.String()).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// RecordLoginSuccess resets the failure counter, clears the lockout,
// restores the pre-lockout status, and stamps last_login_at, all in one
// statement so a concurrent failed attempt cannot interleave.
func (r *AccountRepository) RecordLoginSuccess(ctx context.Context, id uuid.UUID, now time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE accounts SET
			failed_login_attempts = 0,
			locked_until = NULL,
			status = CASE WHEN status = 'temporarily_locked'
			              THEN COALESCE(status_before_lockout, 'pending')
			              ELSE status END,
			status_before_lockout = NULL,
			last_login_at = $2,
			updated_at = $2
		WHERE id = $1
	`, id, now)
	if err != nil {
		return oops.Code("ACCOUNT_RECORD_SUCCESS_FAILED").
			With("operation", "record login success").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// ChangeCredential updates the credential hash, appends it to the
// credential history, and revokes every live refresh token for the
// account in one transaction.
func (r *AccountRepository) ChangeCredential(ctx context.Context, id uuid.UUID, newHash string) error {
	// The batch must not half-apply if the caller disconnects mid-flight.
	ctx = context.WithoutCancel(ctx)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return oops.Code("ACCOUNT_CHANGE_CREDENTIAL_FAILED").
			With("operation", "begin transaction").
			Wrap(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	result, err := tx.Exec(ctx, `
		UPDATE accounts SET credential_hash = $2, updated_at = $3
		WHERE id = $1
	`, id, newHash, time.Now())
	if err != nil {
		return oops.Code("ACCOUNT_CHANGE_CREDENTIAL_FAILED").
			With("operation", "update credential hash").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO credential_history (id, account_id, credential_hash, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ON CONSTRAINT credential_history_account_hash_key DO NOTHING
	`, uuid.New(), id, newHash, time.Now())
	if err != nil {
		return oops.Code("ACCOUNT_CHANGE_CREDENTIAL_FAILED").
			With("operation", "append credential history").
			With("id", id.String()).
			Wrap(err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = $2
		WHERE account_id = $1 AND revoked_at IS NULL
	`, id, time.Now())
	if err != nil {
		return oops.Code("ACCOUNT_CHANGE_CREDENTIAL_FAILED").
			With("operation", "revoke refresh tokens").
			With("id", id.String()).
			Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("ACCOUNT_CHANGE_CREDENTIAL_FAILED").
			With("operation", "commit transaction").
			With("id", id.String()).
			Wrap(err)
	}
	return nil
}

// EmailTaken reports whether another account already uses the email.
func (r *AccountRepository) EmailTaken(ctx context.Context, email string, excludeID uuid.UUID) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM accounts
			WHERE LOWER(email) = LOWER($1) AND id <> $2
		)
	`, email, excludeID).Scan(&taken)
	if err != nil {
		return false, oops.Code("ACCOUNT_EMAIL_CHECK_FAILED").
			With("operation", "check email taken").
			Wrap(err)
	}
	return taken, nil
}

// UsernameTaken reports whether another account already uses the username.
func (r *AccountRepository) UsernameTaken(ctx context.Context, username string, excludeID uuid.UUID) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM accounts
			WHERE LOWER(username) = LOWER($1) AND id <> $2
		)
	`, username, excludeID).Scan(&taken)
	if err != nil {
		return false, oops.Code("ACCOUNT_USERNAME_CHECK_FAILED").
			With("operation", "check username taken").
			Wrap(err)
	}
	return taken, nil
}

// UpdateProfile applies an email and/or username change. A changed email
// drops the verified flag and stores the accompanying verification token
// in the same transaction. Returns the updated account.
func (r *AccountRepository) UpdateProfile(ctx context.Context, id uuid.UUID, email, username *string, verification *account.VerificationToken) (*account.Account, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, oops.Code("ACCOUNT_UPDATE_PROFILE_FAILED").
			With("operation", "begin transaction").
			Wrap(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE accounts SET
			email = COALESCE($2, email),
			username = COALESCE($3, username),
			email_verified = CASE WHEN $2 IS NOT NULL THEN FALSE ELSE email_verified END,
			updated_at = $4
		WHERE id = $1
		RETURNING `+accountColumns+`
	`, id, email, username, time.Now())

	acct, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil, oops.Code("ACCOUNT_EMAIL_TAKEN").Wrap(account.ErrEmailTaken)
		}
		return nil, oops.Code("ACCOUNT_UPDATE_PROFILE_FAILED").
			With("operation", "update profile").
			With("id", id.String()).
			Wrap(err)
	}

	if verification != nil {
		_, err = tx.Exec(ctx, `
			INSERT INTO verification_tokens (token, account_id, type, expires_at, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, verification.Token, verification.AccountID, string(verification.Type),
			verification.ExpiresAt, verification.CreatedAt)
		if err != nil {
			return nil, oops.Code("ACCOUNT_UPDATE_PROFILE_FAILED").
				With("operation", "insert verification token").
				With("id", id.String()).
				Wrap(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, oops.Code("ACCOUNT_UPDATE_PROFILE_FAILED").
			With("operation", "commit transaction").
			With("id", id.String()).
			Wrap(err)
	}
	return acct, nil
}

// MarkDeleted sets the account status to deleted and revokes every live
// refresh token in one transaction.
func (r *AccountRepository) MarkDeleted(ctx context.Context, id uuid.UUID) error {
	ctx = context.WithoutCancel(ctx)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return oops.Code("ACCOUNT_MARK_DELETED_FAILED").
			With("operation", "begin transaction").
			Wrap(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	result, err := tx.Exec(ctx, `
		UPDATE accounts SET status = 'deleted', updated_at = $2
		WHERE id = $1
	`, id, time.Now())
	if err != nil {
		return oops.Code("ACCOUNT_MARK_DELETED_FAILED").
			With("operation", "update status").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}

	_, err = tx.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = $2
		WHERE account_id = $1 AND revoked_at IS NULL
	`, id, time.Now())
	if err != nil {
		return oops.Code("ACCOUNT_MARK_DELETED_FAILED").
			With("operation", "revoke refresh tokens").
			With("id", id.String()).
			Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("ACCOUNT_MARK_DELETED_FAILED").
			With("operation", "commit transaction").
			With("id", id.String()).
			Wrap(err)
	}
	return nil
}

// scanAccount scans a single row into an Account.
// Callers are responsible for handling pgx.ErrNoRows.
func scanAccount(row pgx.Row) (*account.Account, error) {
	var (
		id                  uuid.UUID
		email               string
		username            string
		credentialHash      string
		status              string
		role                string
		emailVerified       bool
		failedLoginAttempts int
		lockedUntil         *time.Time
		statusBeforeLockout *string
		lastLoginAt         *time.Time
		createdAt           time.Time
		updatedAt           time.Time
	)

	err := row.Scan(
		&id,
		&email,
		&username,
		&credentialHash,
		&status,
		&role,
		&emailVerified,
		&failedLoginAttempts,
		&lockedUntil,
		&statusBeforeLockout,
		&lastLoginAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").
			With("operation", "scan account").
			Wrap(err)
	}

	var priorStatus *account.Status
	if statusBeforeLockout != nil {
		s := account.Status(*statusBeforeLockout)
		priorStatus = &s
	}

	return &account.Account{
		ID:                  id,
		Email:               email,
		Username:            username,
		CredentialHash:      credentialHash,
		Status:              account.Status(status),
		Role:                account.Role(role),
		EmailVerified:       emailVerified,
		FailedLoginAttempts: failedLoginAttempts,
		LockedUntil:         lockedUntil,
		StatusBeforeLockout: priorStatus,
		LastLoginAt:         lastLoginAt,
		CreatedAt:           createdAt,
		UpdatedAt:           updatedAt,
	}, nil
}

// statusPtrToString converts an optional Status for binding.
func statusPtrToString(s *account.Status) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}

// isUniqueViolation reports whether the error is a PostgreSQL unique
// constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Compile-time interface check.
var _ account.AccountRepository = (*AccountRepository)(nil)

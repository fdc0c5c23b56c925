// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/account"
)

// HistoryRepository implements account.HistoryRepository using PostgreSQL.
type HistoryRepository struct {
	pool poolIface
}

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(pool poolIface) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

// Record appends a hash to the account's history. A duplicate
// (account_id, credential_hash) pair is swallowed by ON CONFLICT and
// reported as inserted=false.
func (r *HistoryRepository) Record(ctx context.Context, accountID uuid.UUID, hash string) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		INSERT INTO credential_history (id, account_id, credential_hash, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ON CONSTRAINT credential_history_account_hash_key DO NOTHING
	`, uuid.New(), accountID, hash, time.Now())
	if err != nil {
		return false, oops.Code("HISTORY_RECORD_FAILED").
			With("operation", "insert credential history").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return result.RowsAffected() > 0, nil
}

// IsReused reports whether the account's history already holds this exact
// composite.
func (r *HistoryRepository) IsReused(ctx context.Context, accountID uuid.UUID, hash string) (bool, error) {
	var reused bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM credential_history
			WHERE account_id = $1 AND credential_hash = $2
		)
	`, accountID, hash).Scan(&reused)
	if err != nil {
		return false, oops.Code("HISTORY_REUSE_CHECK_FAILED").
			With("operation", "check credential reuse").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return reused, nil
}

// RecentHashes returns the account's recorded composites, newest first.
// A limit <= 0 returns all of them.
func (r *HistoryRepository) RecentHashes(ctx context.Context, accountID uuid.UUID, limit int) ([]string, error) {
	query := `
		SELECT credential_hash FROM credential_history
		WHERE account_id = $1
		ORDER BY created_at DESC
	`
	args := []any{accountID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, oops.Code("HISTORY_LIST_FAILED").
			With("operation", "list credential history").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, oops.Code("HISTORY_SCAN_FAILED").
				With("operation", "scan credential history row").
				Wrap(err)
		}
		hashes = append(hashes, hash)
	}

	if err := rows.Err(); err != nil {
		return nil, oops.Code("HISTORY_ROWS_ERROR").
			With("operation", "iterate credential history rows").
			Wrap(err)
	}
	return hashes, nil
}

// Compile-time interface check.
var _ account.HistoryRepository = (*HistoryRepository)(nil)

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package account

import (
	"context"

	"github.com/google/uuid"
)

// CredentialHistory is an append-only record of a credential hash an
// account has used. Entries are never updated or deleted.
type CredentialHistory struct {
	ID             uuid.UUID
	AccountID      uuid.UUID
	CredentialHash string
}

// HistoryRepository manages credential history persistence.
type HistoryRepository interface {
	// Record appends a hash to the account's history. A uniqueness
	// violation on (account_id, credential_hash) is swallowed and
	// reported as inserted=false; it signals reuse, not failure.
	Record(ctx context.Context, accountID uuid.UUID, hash string) (inserted bool, err error)

	// IsReused reports whether the account's history already holds this
	// exact composite.
	IsReused(ctx context.Context, accountID uuid.UUID, hash string) (bool, error)

	// RecentHashes returns the account's recorded composites, newest
	// first. A limit <= 0 returns all of them. Because every composite
	// carries its own salt, reuse of a plaintext password can only be
	// detected by re-deriving against each returned entry.
	RecentHashes(ctx context.Context, accountID uuid.UUID, limit int) ([]string, error)
}

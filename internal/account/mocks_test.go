// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package account

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// mockAccountRepository is a mock for AccountRepository.
type mockAccountRepository struct {
	mock.Mock
}

func (m *mockAccountRepository) Create(ctx context.Context, account *Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *mockAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Account), args.Error(1)
}

func (m *mockAccountRepository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Account), args.Error(1)
}

func (m *mockAccountRepository) CountAdmins(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockAccountRepository) SetRole(ctx context.Context, id uuid.UUID, role Role) error {
	args := m.Called(ctx, id, role)
	return args.Error(0)
}

func (m *mockAccountRepository) SaveLoginFailure(ctx context.Context, account *Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *mockAccountRepository) RecordLoginSuccess(ctx context.Context, id uuid.UUID, now time.Time) error {
	args := m.Called(ctx, id, now)
	return args.Error(0)
}

func (m *mockAccountRepository) ChangeCredential(ctx context.Context, id uuid.UUID, newHash string) error {
	args := m.Called(ctx, id, newHash)
	return args.Error(0)
}

func (m *mockAccountRepository) EmailTaken(ctx context.Context, email string, excludeID uuid.UUID) (bool, error) {
	args := m.Called(ctx, email, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *mockAccountRepository) UsernameTaken(ctx context.Context, username string, excludeID uuid.UUID) (bool, error) {
	args := m.Called(ctx, username, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *mockAccountRepository) UpdateProfile(ctx context.Context, id uuid.UUID, email, username *string, verification *VerificationToken) (*Account, error) {
	args := m.Called(ctx, id, email, username, verification)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Account), args.Error(1)
}

func (m *mockAccountRepository) MarkDeleted(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// mockHistoryRepository is a mock for HistoryRepository.
type mockHistoryRepository struct {
	mock.Mock
}

func (m *mockHistoryRepository) Record(ctx context.Context, accountID uuid.UUID, hash string) (bool, error) {
	args := m.Called(ctx, accountID, hash)
	return args.Bool(0), args.Error(1)
}

func (m *mockHistoryRepository) IsReused(ctx context.Context, accountID uuid.UUID, hash string) (bool, error) {
	args := m.Called(ctx, accountID, hash)
	return args.Bool(0), args.Error(1)
}

func (m *mockHistoryRepository) RecentHashes(ctx context.Context, accountID uuid.UUID, limit int) ([]string, error) {
	args := m.Called(ctx, accountID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// mockTokenRepository is a mock for TokenRepository.
type mockTokenRepository struct {
	mock.Mock
}

func (m *mockTokenRepository) Create(ctx context.Context, token *RefreshToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *mockTokenRepository) Get(ctx context.Context, token string) (*RefreshToken, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*RefreshToken), args.Error(1)
}

func (m *mockTokenRepository) Exists(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

func (m *mockTokenRepository) Revoke(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

func (m *mockTokenRepository) RevokeAllForAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

// mockVerificationRepository is a mock for VerificationRepository.
type mockVerificationRepository struct {
	mock.Mock
}

func (m *mockVerificationRepository) Create(ctx context.Context, token *VerificationToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *mockVerificationRepository) GetUsable(ctx context.Context, token string, typ TokenType) (*VerificationToken, error) {
	args := m.Called(ctx, token, typ)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*VerificationToken), args.Error(1)
}

func (m *mockVerificationRepository) ConsumeForEmailVerification(ctx context.Context, token string) (uuid.UUID, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *mockVerificationRepository) ConsumeForPasswordReset(ctx context.Context, token string, newHash string) (uuid.UUID, error) {
	args := m.Called(ctx, token, newHash)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *mockVerificationRepository) LatestCreatedAt(ctx context.Context, accountID uuid.UUID, typ TokenType) (time.Time, error) {
	args := m.Called(ctx, accountID, typ)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *mockVerificationRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

// mockMailer is a mock for Mailer.
type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, msg Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// mockHasher is a mock for CredentialHasher. Most service tests use the
// real PBKDF2Hasher; this one exists for forcing hash and verify errors.
type mockHasher struct {
	mock.Mock
}

func (m *mockHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *mockHasher) Verify(stored, attempt string) (bool, error) {
	args := m.Called(stored, attempt)
	return args.Bool(0), args.Error(1)
}

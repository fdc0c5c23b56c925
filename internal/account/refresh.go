// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package account

import (
	"context"
	"errors"
	"net/http"

	"github.com/gatekeep/gatekeep/internal/observability"
	"github.com/gatekeep/gatekeep/pkg/errutil"
)

// Refresh exchanges a live refresh token for its successor. Two
// concurrent exchanges presenting the same token resolve to at most one
// success; the loser sees an invalid-token result.
func (s *Service) Refresh(ctx context.Context, refreshToken string) Result {
	if refreshToken == "" {
		return Fail(msgInvalidRefreshToken, CodeInvalidRefreshToken, http.StatusUnauthorized)
	}

	token, err := s.issuer.Rotate(ctx, refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, ErrTokenInvalid):
			observability.RecordTokenRotation("rejected")
			return Fail(msgInvalidRefreshToken, CodeInvalidRefreshToken, http.StatusUnauthorized)
		case errors.Is(err, ErrTokenGeneration):
			errutil.LogError(s.logger, "refresh: issue successor", err)
			return Fail("Error generating token", CodeTokenGenerationError, http.StatusInternalServerError)
		default:
			return s.dependencyFailure("refresh: rotate token", err)
		}
	}

	observability.RecordTokenRotation("rotated")
	observability.RecordTokenIssued("refresh")
	return OK(msgTokenRefreshed, CodeSuccess, s.sessionPayload(token), http.StatusOK)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package account

import (
	"context"
	"time"

	"github.com/gatekeep/gatekeep/pkg/errutil"
)

// PurgeExpired removes refresh and verification tokens whose expiry has
// passed. A failure on one table does not stop the other; both are
// logged and the purge is retried on the next run.
func (s *Service) PurgeExpired(ctx context.Context) {
	if n, err := s.issuer.PurgeExpired(ctx); err != nil {
		errutil.LogError(s.logger, "purge: delete expired refresh tokens", err)
	} else if n > 0 {
		s.logger.InfoContext(ctx, "purged expired refresh tokens", "count", n)
	}

	if n, err := s.verifications.DeleteExpired(ctx, time.Now()); err != nil {
		errutil.LogError(s.logger, "purge: delete expired verification tokens", err)
	} else if n > 0 {
		s.logger.InfoContext(ctx, "purged expired verification tokens", "count", n)
	}
}

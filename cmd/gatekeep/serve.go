// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatekeep/gatekeep/internal/account"
	acctpg "github.com/gatekeep/gatekeep/internal/account/postgres"
	"github.com/gatekeep/gatekeep/internal/config"
	"github.com/gatekeep/gatekeep/internal/logging"
	"github.com/gatekeep/gatekeep/internal/mail"
	"github.com/gatekeep/gatekeep/internal/observability"
	"github.com/gatekeep/gatekeep/internal/store"
)

// purgeInterval is how often expired token rows are swept.
const purgeInterval = 10 * time.Minute

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gatekeep service",
		Long: `Wire the account core against PostgreSQL, expose metrics and health
probes, and sweep expired tokens until interrupted.`,
		RunE: runServe,
	}

	cmd.Flags().String("metrics-addr", "", "metrics listen address")
	cmd.Flags().String("token-signing-key", "", "refresh token signing key")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return err
	}
	// The posflag provider maps --token-signing-key onto token.signing.key,
	// so the signing key flag is read directly.
	if key, _ := cmd.Flags().GetString("token-signing-key"); key != "" {
		cfg.Token.SigningKey = key
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.SetDefault("gatekeep", version, cfg.Log.Format)
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc, err := buildService(pool, cfg, logger)
	if err != nil {
		return err
	}

	readiness := func() bool {
		pingCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return pool.Ping(pingCtx) == nil
	}

	obs := observability.NewServer(cfg.Metrics.Addr, readiness)
	obsErrs, err := obs.Start()
	if err != nil {
		return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Stop(shutdownCtx)
	}()

	logger.Info("gatekeep started",
		"metrics_addr", obs.Addr(),
		"purge_interval", purgeInterval.String())

	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("gatekeep stopping")
			return nil
		case err := <-obsErrs:
			if err != nil {
				return oops.Code("OBSERVABILITY_FAILED").Wrap(err)
			}
			return nil
		case <-ticker.C:
			svc.PurgeExpired(ctx)
		}
	}
}

// buildService wires the repositories, token issuer, hasher, and mailer
// into the account service.
func buildService(pool *pgxpool.Pool, cfg config.Config, logger *slog.Logger) (*account.Service, error) {
	accounts := acctpg.NewAccountRepository(pool)
	history := acctpg.NewHistoryRepository(pool)
	tokens := acctpg.NewTokenRepository(pool)
	verifications := acctpg.NewVerificationRepository(pool)

	issuer, err := account.NewTokenIssuer([]byte(cfg.Token.SigningKey), cfg.Token.TTL, tokens, accounts)
	if err != nil {
		return nil, err
	}

	var mailer account.Mailer
	if cfg.Mailer.APIKey != "" {
		mailer, err = mail.NewHTTPMailer(cfg.Mailer.APIURL, cfg.Mailer.APIKey, cfg.Mailer.From, logger)
		if err != nil {
			return nil, err
		}
	} else {
		logger.Warn("no mailer api key configured, using log mailer")
		mailer = mail.NewLogMailer(logger)
	}

	return account.NewService(
		accounts,
		history,
		verifications,
		issuer,
		account.NewPBKDF2Hasher(),
		mailer,
		logger,
		account.ServiceConfig{
			LockoutThreshold:    cfg.Lockout.Threshold,
			LockoutDuration:     cfg.Lockout.Duration,
			EmailTokenTTL:       cfg.Verification.EmailTokenTTL,
			ResetTokenTTL:       cfg.Verification.ResetTokenTTL,
			ResendCooldown:      cfg.Verification.ResendCooldown,
			VerificationBaseURL: cfg.Verification.VerifyBaseURL,
			ResetBaseURL:        cfg.Verification.ResetBaseURL,
		},
	)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/gatekeep/gatekeep/internal/config"
	"github.com/gatekeep/gatekeep/internal/store"
)

// DatabaseStatus holds connectivity and schema state for the database.
type DatabaseStatus struct {
	Reachable bool   `json:"reachable"`
	Version   uint   `json:"migration_version"`
	Dirty     bool   `json:"dirty"`
	Pending   []uint `json:"pending_migrations"`
	Error     string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
}

// NewStatusCmd creates the status subcommand with all flags configured.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show database and migration status",
		Long:  `Check database connectivity and report the applied and pending schema migrations.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

// runStatus executes the status command.
func runStatus(cmd *cobra.Command, scfg *statusConfig) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return err
	}

	status := queryDatabaseStatus(cmd.Context(), cfg.Database.URL)

	var output string
	if scfg.jsonOutput {
		output, err = formatStatusJSON(status)
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
	} else {
		output = formatStatusTable(status)
	}

	cmd.Println(output)
	return nil
}

// queryDatabaseStatus pings the database and reads the migration state.
// Failures are reported in the status rather than returned, so a down
// database still produces output.
func queryDatabaseStatus(ctx context.Context, databaseURL string) DatabaseStatus {
	status := DatabaseStatus{Pending: []uint{}}

	if databaseURL == "" {
		status.Error = "database url not configured"
		return status
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := store.NewPool(pingCtx, databaseURL)
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	pool.Close()
	status.Reachable = true

	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		status.Error = fmt.Sprintf("failed to open migrator: %v", err)
		return status
	}
	defer func() { _ = migrator.Close() }()

	version, dirty, err := migrator.Version()
	if err != nil {
		status.Error = fmt.Sprintf("failed to read migration version: %v", err)
		return status
	}
	status.Version = version
	status.Dirty = dirty

	pending, err := migrator.PendingMigrations()
	if err != nil {
		status.Error = fmt.Sprintf("failed to list pending migrations: %v", err)
		return status
	}
	status.Pending = pending

	return status
}

// formatStatusTable formats the status as a human-readable table.
func formatStatusTable(status DatabaseStatus) string {
	var buf []byte
	w := tabwriter.NewWriter((*byteWriter)(&buf), 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "CHECK\tSTATUS")
	_, _ = fmt.Fprintln(w, "-----\t------")

	if status.Reachable {
		_, _ = fmt.Fprintln(w, "database\treachable")
	} else {
		reason := "unreachable"
		if status.Error != "" {
			reason = status.Error
		}
		_, _ = fmt.Fprintf(w, "database\t%s\n", reason)
		_ = w.Flush()
		return string(buf)
	}

	schema := fmt.Sprintf("version %d", status.Version)
	if status.Version == 0 {
		schema = "no migrations applied"
	}
	if status.Dirty {
		schema += " (dirty)"
	}
	_, _ = fmt.Fprintf(w, "schema\t%s\n", schema)

	if len(status.Pending) == 0 {
		_, _ = fmt.Fprintln(w, "pending\tnone")
	} else {
		_, _ = fmt.Fprintf(w, "pending\t%d migration(s)\n", len(status.Pending))
	}

	if status.Error != "" {
		_, _ = fmt.Fprintf(w, "error\t%s\n", status.Error)
	}

	_ = w.Flush()
	return string(buf)
}

// formatStatusJSON formats the status as JSON.
func formatStatusJSON(status DatabaseStatus) (string, error) {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal status: %w", err)
	}
	return string(data), nil
}

// byteWriter is a simple writer that appends to a byte slice.
type byteWriter []byte

func (w *byteWriter) Write(p []byte) (int, error) {
	*w = append(*w, p...)
	return len(p), nil
}

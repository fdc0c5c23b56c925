// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the gatekeep CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gatekeep",
		Short: "Gatekeep - account credential and session lifecycle service",
		Long: `Gatekeep manages account credentials, login lockout, refresh token
rotation, and email verification over PostgreSQL.`,
		SilenceUsage: true,
	}

	// Global flags. Dashed names map onto dotted config keys.
	cmd.PersistentFlags().String("config", "", "config file path")
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection URL")
	cmd.PersistentFlags().String("log-format", "", "log format (json or text)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}

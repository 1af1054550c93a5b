// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package main

import (
	"errors"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/taskforge/taskforge/internal/config"
	"github.com/taskforge/taskforge/internal/store"
)

// NewMigrateCmd creates the migrate subcommand and its children.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long:  `Apply, revert or inspect the embedded PostgreSQL migrations.`,
	}
	cmd.PersistentFlags().String("database-url", "", "Postgres connection URL")

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m *store.Migrator) error {
				if err := m.Up(); err != nil {
					return err
				}
				return printStatus(cmd, m)
			})
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Revert migrations (one step by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			all, _ := cmd.Flags().GetBool("all")
			steps, _ := cmd.Flags().GetInt("steps")
			if !all && steps < 1 {
				return oops.Code("INVALID_STEPS").Errorf("--steps must be at least 1")
			}
			return withMigrator(cmd, func(m *store.Migrator) error {
				var err error
				if all {
					err = m.Down()
				} else {
					err = m.Steps(-steps)
				}
				if err != nil {
					return err
				}
				return printStatus(cmd, m)
			})
		},
	}
	down.Flags().Int("steps", 1, "number of migrations to revert")
	down.Flags().Bool("all", false, "revert every migration, dropping all data")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m *store.Migrator) error {
				return printStatus(cmd, m)
			})
		},
	}

	force := &cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied and clear the dirty flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, func(m *store.Migrator) error {
				if err := m.Force(version); err != nil {
					return err
				}
				return printStatus(cmd, m)
			})
		},
	}

	cmd.AddCommand(up, down, status, force)
	return cmd
}

// migrateDatabaseURL resolves the database URL through the usual config
// layers so TASKFORGE_DATABASE__URL and the config file both work.
func migrateDatabaseURL(fs *pflag.FlagSet) (string, error) {
	path, err := resolveConfigFile()
	if err != nil {
		return "", err
	}
	cfg, err := config.Load(path, fs)
	if err != nil {
		return "", err
	}
	if cfg.Database.URL == "" {
		return "", oops.Code("CONFIG_INVALID").
			With("key", "database.url").
			Errorf("database.url is required")
	}
	return cfg.Database.URL, nil
}

func withMigrator(cmd *cobra.Command, fn func(*store.Migrator) error) (err error) {
	url, err := migrateDatabaseURL(cmd.Flags())
	if err != nil {
		return err
	}
	m, err := store.NewMigrator(url)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, m.Close()) }()
	return fn(m)
}

func printStatus(cmd *cobra.Command, m *store.Migrator) error {
	st, err := m.Status()
	if err != nil {
		return err
	}
	cmd.Println(formatStatus(st))
	return nil
}

// formatStatus renders a Status for the terminal.
func formatStatus(st store.Status) string {
	var b strings.Builder
	b.WriteString("schema version: ")
	b.WriteString(strconv.FormatUint(uint64(st.Version), 10))
	if st.Dirty {
		b.WriteString(" (dirty)")
	}
	for _, v := range st.Applied {
		b.WriteString("\n  applied  ")
		b.WriteString(migrationLabel(v))
	}
	for _, v := range st.Pending {
		b.WriteString("\n  pending  ")
		b.WriteString(migrationLabel(v))
	}
	return b.String()
}

func migrationLabel(v uint) string {
	if name, err := store.MigrationName(v); err == nil && name != "" {
		return name
	}
	return strconv.FormatUint(uint64(v), 10)
}

// parseForceVersion parses the force target. Negative versions are left
// to the migrator to reject.
func parseForceVersion(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be an integer")
	}
	return v, nil
}

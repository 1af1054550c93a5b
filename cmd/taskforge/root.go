package main

import (
	"github.com/spf13/cobra"

	"github.com/taskforge/taskforge/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the TaskForge CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taskforge",
		Short: "TaskForge - a multi-user task tracker",
		Long: `TaskForge serves a REST API for personal task lists with
password accounts and revocable session tokens.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/taskforge/config.yaml)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// resolveConfigFile returns --config when given, otherwise the XDG default
// if one exists. An empty result means no file layer.
func resolveConfigFile() (string, error) {
	if configFile != "" {
		return configFile, nil
	}
	path, found, err := xdg.ConfigFile(xdg.DefaultConfigName)
	if err != nil || !found {
		return "", err
	}
	return path, nil
}

// NewVersionCmd creates the version subcommand.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("taskforge %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

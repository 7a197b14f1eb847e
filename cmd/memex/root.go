// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/memex-dev/memex/internal/config"
)

// NewRootCmd creates the root memex command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "memex",
		Short:         "Memex — semantic meme image search",
		Long:          "Memex indexes your local meme collections and finds the right image by meaning, not filename.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Config-driven logging is applied in loadConfig; this only
			// makes --verbose effective for the bootstrap phase before
			// any config file has been read.
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr,
					&slog.HandlerOptions{Level: slog.LevelDebug})))
			}
			return nil
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	// Register subcommands
	root.AddCommand(
		newInitCmd(),
		newServeCmd(),
		newSearchCmd(),
		newIndexCmd(),
		newStatusCmd(),
		newSecretCmd(),
		newDoctorCmd(),
		newVersionCmd(),
	)

	return root
}

// loadConfig resolves the config path and loads the validated configuration.
// An explicit --config path must exist; with no flag the standard location
// is used, bootstrapping a commented default there on first run. No file at
// all is fine — defaults and MEMEX_* environment variables still apply.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		if created := config.BootstrapConfig(); created != "" {
			path = created
		} else if standard, err := config.DefaultConfigPath(); err == nil {
			if _, statErr := os.Stat(standard); statErr == nil {
				path = standard
			}
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if path != "" {
		config.WarnInsecurePermissions(path)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	configureLogging(cfg.Logging, verbose)

	return cfg, nil
}

// configureLogging installs the process-wide slog handler. --verbose wins
// over the configured level.
func configureLogging(lc config.LoggingConfig, verbose bool) {
	level := slog.LevelInfo
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if lc.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

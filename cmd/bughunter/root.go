package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/use-agent/bughunter/config"
	"github.com/use-agent/bughunter/logging"
)

// NewRootCmd creates the root command for BugHunter.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bughunter",
		Short: "Find bugs in websites with a real browser",
		Long: `BugHunter loads each page in headless Chromium, listens to the console,
network and runtime while it renders, then inspects the finished DOM.

It reports JavaScript errors, failed requests, HTTP errors, broken images,
accessibility and SEO problems and slow loads, with optional AI analysis.

Configuration comes from BUGHUNTER_* environment variables, optionally
loaded from a .env file.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path, err := cmd.Flags().GetString("env-file")
			if err != nil {
				return err
			}
			return loadEnvFile(path)
		},
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().String("env-file", ".env", "Environment file to load before reading configuration")

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadEnvFile loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// newLogger builds the process logger; --verbose forces debug level.
func newLogger(cmd *cobra.Command, cfg config.LogConfig) *slog.Logger {
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Level = "debug"
	}
	logger := logging.New(cfg, os.Stderr)
	slog.SetDefault(logger)
	return logger
}

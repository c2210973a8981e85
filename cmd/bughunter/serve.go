package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/bughunter/api"
	"github.com/use-agent/bughunter/config"
	"github.com/use-agent/bughunter/webhook"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve exposes scanning, stored scans, sharing, fix suggestions and
statistics under /api/v1. Listen address, auth keys, rate limits and the
scan store come from BUGHUNTER_* environment variables.`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}
	cmd.Flags().String("addr", "", "Listen address (overrides BUGHUNTER_HOST/BUGHUNTER_PORT)")
	cmd.Flags().StringP("profile", "p", "", "Site profile file")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// ── 2. Initialise structured logging ────────────────────────────
	logger := newLogger(cmd, cfg.Log)
	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	logger.Info("bughunter starting",
		"addr", addr,
		"mode", cfg.Server.Mode,
		"maxScans", cfg.Scanner.MaxConcurrentScans,
	)
	if cfg.Auth.Enabled && len(cfg.Auth.APIKeys) == 0 {
		logger.Warn("auth enabled without BUGHUNTER_API_KEYS; API is open")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── 3. Initialise services (launches browser) ───────────────────
	profilePath, _ := cmd.Flags().GetString("profile")
	svc, err := newServices(ctx, cfg, profilePath, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.close(); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	notifier := webhook.New(cfg.Webhook, webhook.WithLogger(logger))
	defer notifier.Wait()

	// ── 4. Setup router ─────────────────────────────────────────────
	router := api.NewRouter(ctx, cfg, api.Deps{
		Scanner:       svc.scanner,
		Analyzer:      svc.analyzer,
		Store:         svc.store,
		Notifier:      notifier,
		Profiles:      svc.profiles,
		ScreenshotDir: svc.screenshotDir(),
		StartTime:     time.Now(),
		Logger:        logger,
	})

	// ── 5. Start HTTP server ────────────────────────────────────────
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// ── 6. Graceful shutdown ────────────────────────────────────────
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	// Scans can take up to the max navigation timeout; give them a little more.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Scanner.MaxTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server forced shutdown", "error", err)
	} else {
		logger.Info("HTTP server drained gracefully")
	}

	// svc.close runs via defer: kills Chrome and closes the store.
	logger.Info("bughunter stopped")
	return nil
}

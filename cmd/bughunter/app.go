package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/use-agent/bughunter/analyzer"
	"github.com/use-agent/bughunter/browser"
	"github.com/use-agent/bughunter/config"
	"github.com/use-agent/bughunter/llm"
	"github.com/use-agent/bughunter/scanner"
	"github.com/use-agent/bughunter/screenshot"
	"github.com/use-agent/bughunter/store"
)

// services are the long-lived components shared by scan and serve.
type services struct {
	launcher *browser.RodLauncher
	scanner  *scanner.Limited
	analyzer *analyzer.Analyzer
	store    store.Store
	shots    screenshot.Store
	profiles *config.ProfileFile
}

// newServices launches the browser and opens every backing store. The
// caller must call close.
func newServices(ctx context.Context, cfg *config.Config, profilePath string, logger *slog.Logger) (*services, error) {
	profiles, err := loadProfiles(profilePath)
	if err != nil {
		return nil, err
	}

	shots, err := screenshot.New(ctx, cfg.Screenshot)
	if err != nil {
		return nil, fmt.Errorf("failed to open screenshot store: %w", err)
	}

	st, err := store.Open(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open scan store: %w", err)
	}

	launcher, err := browser.NewRodLauncher(cfg.Browser, logger)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	sc := scanner.New(launcher,
		scanner.WithConfig(cfg.Scanner),
		scanner.WithIdentity(cfg.Browser.ViewportWidth, cfg.Browser.ViewportHeight, cfg.Browser.UserAgent),
		scanner.WithScreenshotStore(shots),
		scanner.WithLogger(logger),
	)

	client := llm.NewClient(cfg.AI, llm.WithLogger(logger))

	logger.Info("services ready",
		"store", cfg.Store.Driver,
		"maxScans", cfg.Scanner.MaxConcurrentScans,
		"aiEnabled", client.Enabled(),
		"profiles", profiles != nil,
	)

	return &services{
		launcher: launcher,
		scanner:  scanner.NewLimited(sc, cfg.Scanner.MaxConcurrentScans),
		analyzer: analyzer.New(client, analyzer.WithLogger(logger)),
		store:    st,
		shots:    shots,
		profiles: profiles,
	}, nil
}

func (s *services) close() error {
	return errors.Join(s.launcher.Close(), s.store.Close())
}

// screenshotDir is the local directory to serve, if screenshots stay on disk.
func (s *services) screenshotDir() string {
	if d, ok := s.shots.(*screenshot.DirStore); ok {
		return d.Dir()
	}
	return ""
}

// loadProfiles reads the site profile file. An explicit path must exist;
// otherwise a missing file means no profiles.
func loadProfiles(path string) (*config.ProfileFile, error) {
	found := config.FindProfileFile(path)
	if found == "" {
		if path != "" {
			return nil, fmt.Errorf("profile file not found: %s", path)
		}
		return nil, nil
	}
	pf, err := config.LoadProfileFile(found)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile file %s: %w", found, err)
	}
	return pf, nil
}

// Package api exposes the scanner over HTTP.
package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/bughunter/api/handler"
	"github.com/use-agent/bughunter/api/middleware"
	"github.com/use-agent/bughunter/config"
	"github.com/use-agent/bughunter/store"
	"github.com/use-agent/bughunter/webhook"
)

// Deps are the services the routes call into.
type Deps struct {
	Scanner  handler.Scanner
	Analyzer handler.Analyzer
	Store    store.Store
	Notifier *webhook.Notifier
	Profiles *config.ProfileFile

	// ScreenshotDir is served under /screenshots when set.
	ScreenshotDir string

	StartTime time.Time
	Logger    *slog.Logger
}

// NewRouter creates a configured Gin engine with all routes and middleware.
// ctx bounds background work such as rate limiter eviction.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health, screenshots and shared reports stay outside auth.
func NewRouter(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Server.Mode != gin.TestMode {
		r.Use(gin.Logger())
	}

	if d.ScreenshotDir != "" {
		r.Static("/screenshots", d.ScreenshotDir)
	}

	v1 := r.Group("/api/v1")

	// Public.
	v1.GET("/health", handler.Health(d.Scanner, d.Analyzer, d.StartTime))
	v1.GET("/shared/:token", handler.GetShared(d.Store))

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(ctx, cfg.RateLimit))

	protected.POST("/scan", handler.Scan(handler.ScanDeps{
		Scanner:  d.Scanner,
		Analyzer: d.Analyzer,
		Store:    d.Store,
		Notifier: d.Notifier,
		Profiles: d.Profiles,
		Logger:   d.Logger,
	}))
	protected.GET("/scans", handler.ListScans(d.Store))
	protected.GET("/scans/:id", handler.GetScan(d.Store))
	protected.POST("/scans/:id/share", handler.ToggleShare(d.Store))
	protected.POST("/suggest-fix", handler.SuggestFix(d.Analyzer))
	protected.GET("/stats", handler.Stats(d.Store))

	return r
}

// Package scanner runs one website scan end to end.
//
// Lifecycle of Scan (numbered steps match the inline comments):
//
//  1. Launch          – isolated browser context with the scanner's identity
//  2. Attach          – signal collector subscribes before any navigation
//  3. Navigate        – network idle or the scan timeout, whichever first
//  4. Status          – 4xx/5xx main document becomes an http_error bug
//  5. Screenshot      – best effort; failure leaves the reference empty
//  6. Snapshot        – one DOM read for page info and structural checks
//  7. Inspect/Sample  – DOM checks and navigation timing, under a phase budget
//  8. Close           – unconditional, also on every failure path
//  9. Aggregate       – collector ++ status ++ inspector ++ sampler bugs
package scanner

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/use-agent/bughunter/browser"
	"github.com/use-agent/bughunter/collector"
	"github.com/use-agent/bughunter/config"
	"github.com/use-agent/bughunter/inspector"
	"github.com/use-agent/bughunter/models"
	"github.com/use-agent/bughunter/perf"
	"github.com/use-agent/bughunter/report"
	"github.com/use-agent/bughunter/screenshot"
)

// Default timings used when the scanner is built without a config.
const (
	DefaultIdleWindow        = 500 * time.Millisecond
	DefaultInspectionTimeout = 20 * time.Second
	DefaultScreenshotTimeout = 15 * time.Second
)

// Scanner drives scans against sessions from a browser.Launcher. It is safe
// for concurrent use; every Scan owns its session exclusively.
type Scanner struct {
	launcher  browser.Launcher
	shots     screenshot.Store
	inspector *inspector.Inspector
	sampler   *perf.Sampler

	cfg      config.ScannerConfig
	identity browser.SessionConfig
	logger   *slog.Logger
	now      func() time.Time

	active atomic.Int32
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithConfig sets timeouts, buffer sizes and the slow-load threshold.
func WithConfig(cfg config.ScannerConfig) Option {
	return func(s *Scanner) { s.cfg = cfg }
}

// WithIdentity sets the viewport and user agent of every session.
func WithIdentity(width, height int, userAgent string) Option {
	return func(s *Scanner) {
		if width > 0 && height > 0 {
			s.identity.ViewportWidth, s.identity.ViewportHeight = width, height
		}
		if userAgent != "" {
			s.identity.UserAgent = userAgent
		}
	}
}

// WithScreenshotStore sets where screenshots go. Without one, scans skip
// the screenshot step.
func WithScreenshotStore(st screenshot.Store) Option {
	return func(s *Scanner) { s.shots = st }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scanner) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source for timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a Scanner that launches sessions from l.
func New(l browser.Launcher, opts ...Option) *Scanner {
	s := &Scanner{
		launcher: l,
		identity: browser.SessionConfig{
			ViewportWidth:  browser.DefaultViewportWidth,
			ViewportHeight: browser.DefaultViewportHeight,
			UserAgent:      browser.DefaultUserAgent,
		},
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.fillDefaults()

	s.inspector = inspector.New(inspector.WithLogger(s.logger), inspector.WithClock(s.now))
	s.sampler = perf.New(s.cfg.SlowLoadThreshold, s.logger)
	s.sampler.Now = s.now
	return s
}

// Active returns the number of scans currently running.
func (s *Scanner) Active() int { return int(s.active.Load()) }

// Scan scans rawURL with opts. It returns either a complete result or a
// *models.ScanError; partial results are never returned.
func (s *Scanner) Scan(ctx context.Context, rawURL string, opts models.ScanOptions) (*models.ScanResult, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}
	opts = s.normalize(opts)

	s.active.Add(1)
	defer s.active.Add(-1)

	start := s.now()
	log := s.logger.With("url", rawURL)
	log.Info("scan started", "timeout", opts.Timeout)

	res, err := s.scan(ctx, rawURL, opts, start, log)
	if err != nil {
		se := models.WrapScanError(rawURL, err)
		log.Warn("scan failed", "code", se.Code, "error", err)
		return nil, se
	}

	log.Info("scan completed",
		"bugs", res.Summary.TotalBugs,
		"critical", res.Summary.Count(models.SeverityCritical),
		"duration_ms", res.DurationMs,
	)
	return res, nil
}

func (s *Scanner) scan(ctx context.Context, rawURL string, opts models.ScanOptions, start time.Time, log *slog.Logger) (*models.ScanResult, error) {
	// ── 1. Launch ───────────────────────────────────────────────────
	sessCfg := s.identity
	sessCfg.Stealth = opts.Stealth
	sessCfg.Headers = opts.Headers

	sess, err := s.launcher.Launch(ctx, sessCfg)
	if err != nil {
		var le *models.LaunchError
		if errors.As(err, &le) {
			return nil, err
		}
		return nil, &models.LaunchError{Err: err}
	}

	// ── 8. Close (deferred so every exit path releases the session) ─
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			log.Warn("close session", "error", cerr)
		}
	}()

	// ── 2. Attach ───────────────────────────────────────────────────
	col, err := collector.Attach(ctx, sess,
		collector.WithBuffer(s.cfg.EventBuffer),
		collector.WithLogger(log),
	)
	if err != nil {
		return nil, &models.LaunchError{Err: err}
	}
	defer col.Detach()

	// ── 3. Navigate ─────────────────────────────────────────────────
	navCtx, navCancel := context.WithTimeout(ctx, opts.Timeout)
	resp, err := sess.Navigate(navCtx, rawURL, s.cfg.IdleWindow)
	timedOut := errors.Is(navCtx.Err(), context.DeadlineExceeded)
	navCancel()
	if err != nil {
		return nil, &models.NavigationError{URL: rawURL, Timeout: timedOut, Err: err}
	}

	// ── 4. Status ───────────────────────────────────────────────────
	var statusBugs []models.Bug
	if resp != nil && resp.Status >= 400 {
		statusBugs = append(statusBugs, models.NewHTTPErrorBug(
			rawURL, resp.Status, models.StatusText(resp.Status, resp.StatusText), s.now()))
		log.Info("http error status", "status", resp.Status)
	}

	// ── 5. Screenshot ───────────────────────────────────────────────
	shot := s.captureScreenshot(ctx, sess, opts.FullPageScreenshot, start, log)

	// ── 6-7. Snapshot, inspect, sample ──────────────────────────────
	inspCtx, inspCancel := context.WithTimeout(ctx, s.cfg.InspectionTimeout)
	defer inspCancel()

	snap, err := inspector.ReadSnapshot(inspCtx, sess)
	if err != nil {
		return nil, err
	}
	inspected, err := s.inspector.Inspect(inspCtx, sess, snap, opts)
	if err != nil {
		return nil, err
	}
	var sampled []models.Bug
	if opts.CheckPerformance {
		if sampled, err = s.sampler.Sample(inspCtx, sess); err != nil {
			return nil, err
		}
	}

	// ── 8. Close ────────────────────────────────────────────────────
	signals := col.Detach()
	if cerr := sess.Close(); cerr != nil {
		log.Warn("close session", "error", cerr)
	}

	// ── 9. Aggregate ────────────────────────────────────────────────
	bugs := make([]models.Bug, 0, len(signals)+len(statusBugs)+len(inspected)+len(sampled))
	bugs = append(bugs, signals...)
	bugs = append(bugs, statusBugs...)
	bugs = append(bugs, inspected...)
	bugs = append(bugs, sampled...)

	return &models.ScanResult{
		URL:        rawURL,
		Timestamp:  start,
		PageInfo:   snap.PageInfo(),
		Bugs:       bugs,
		Screenshot: shot,
		Links:      snap.Links(inspector.LinkSampleSize),
		Summary:    report.Summarize(bugs),
		DurationMs: s.now().Sub(start).Milliseconds(),
	}, nil
}

// captureScreenshot returns the stored reference, or "" if capture or
// storage failed.
func (s *Scanner) captureScreenshot(ctx context.Context, sess browser.Session, fullPage bool, at time.Time, log *slog.Logger) string {
	if s.shots == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ScreenshotTimeout)
	defer cancel()

	png, err := sess.Screenshot(ctx, fullPage)
	if err != nil {
		log.Warn("screenshot capture failed", "error", err)
		return ""
	}
	ref, err := s.shots.Save(ctx, screenshot.Name(at), png)
	if err != nil {
		log.Warn("screenshot save failed", "error", err)
		return ""
	}
	return ref
}

// fillDefaults replaces unset timings from a partial config.
func (s *Scanner) fillDefaults() {
	c := &s.cfg
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = models.DefaultScanTimeout
	}
	if c.IdleWindow <= 0 {
		c.IdleWindow = DefaultIdleWindow
	}
	if c.InspectionTimeout <= 0 {
		c.InspectionTimeout = DefaultInspectionTimeout
	}
	if c.ScreenshotTimeout <= 0 {
		c.ScreenshotTimeout = DefaultScreenshotTimeout
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = collector.DefaultBuffer
	}
	if c.SlowLoadThreshold <= 0 {
		c.SlowLoadThreshold = perf.DefaultThreshold
	}
}

// normalize applies the configured default timeout and clamps to the
// configured maximum.
func (s *Scanner) normalize(opts models.ScanOptions) models.ScanOptions {
	if opts.Timeout <= 0 && s.cfg.DefaultTimeout > 0 {
		opts.Timeout = s.cfg.DefaultTimeout
	}
	opts = opts.Normalize()
	if s.cfg.MaxTimeout > 0 && opts.Timeout > s.cfg.MaxTimeout {
		opts.Timeout = s.cfg.MaxTimeout
	}
	return opts
}

package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/bughunter/config"
	"github.com/use-agent/bughunter/models"
	"github.com/use-agent/bughunter/report"
	"github.com/use-agent/bughunter/scanner"
	"github.com/use-agent/bughunter/store"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <url>...",
		Short: "Scan one or more pages for bugs",
		Long: `Scan loads every URL in headless Chromium and reports the bugs found.

Examples:
  # Scan a single page, JSON report on stdout
  bughunter scan https://example.com

  # Markdown report for several pages, three at a time
  bughunter scan -f markdown -o report.md -c 3 https://example.com https://example.org

  # Skip SEO checks and analyze the findings with the configured model
  bughunter scan --no-seo --analyze https://example.com

Profile file (.bughunter.yaml) example:
  defaults:
    timeout: 45000
  sites:
    shop.example.com:
      stealth: true
      headers:
        Authorization: Bearer staging-token`,
		Args: cobra.MinimumNArgs(1),
		RunE: runScanCmd,
	}

	cmd.Flags().DurationP("timeout", "t", 0, "Navigation timeout per page (default 30s)")
	cmd.Flags().Bool("viewport-only", false, "Capture only the viewport instead of the full page")
	cmd.Flags().Bool("no-accessibility", false, "Skip accessibility checks")
	cmd.Flags().Bool("no-seo", false, "Skip SEO checks")
	cmd.Flags().Bool("no-performance", false, "Skip the load time check")
	cmd.Flags().Bool("stealth", false, "Mask automation fingerprints")
	cmd.Flags().StringArrayP("header", "H", nil, `Extra request header "Name: value" (repeatable)`)

	cmd.Flags().StringP("format", "f", "json", "Report format: json or markdown")
	cmd.Flags().StringP("output", "o", "", "Write the report to this file instead of stdout")
	cmd.Flags().IntP("concurrency", "c", 2, "Number of pages scanned at once")
	cmd.Flags().Bool("analyze", false, "Add an AI analysis of each page's bugs")
	cmd.Flags().StringP("profile", "p", "", "Site profile file (default: .bughunter.yaml, then the XDG config dir)")
	cmd.Flags().Bool("no-save", false, "Do not record scans in the scan store")

	return cmd
}

func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	logger := newLogger(cmd, cfg.Log)

	input, err := flagOptions(cmd)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	if report.NewWriter(format, io.Discard) == nil {
		return fmt.Errorf("unknown report format %q (want json or markdown)", format)
	}
	for _, u := range args {
		if err := scanner.ValidateURL(u); err != nil {
			return err
		}
	}

	concurrency, _ := cmd.Flags().GetInt("concurrency")
	cfg.Scanner.MaxConcurrentScans = max(concurrency, 1)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	targets := make([]scanner.Target, len(args))
	for i, u := range args {
		targets[i] = scanner.Target{URL: u, Options: resolveOptions(svc.profiles, u, input)}
	}

	start := time.Now()
	outcomes := scanner.Batch(ctx, svc.scanner, targets, cfg.Scanner.MaxConcurrentScans)
	logger.Info("batch finished", "targets", len(targets), "elapsed", time.Since(start).Round(time.Millisecond))

	analyze, _ := cmd.Flags().GetBool("analyze")
	noSave, _ := cmd.Flags().GetBool("no-save")

	reports := make([]report.Report, len(outcomes))
	failed := 0
	for i, o := range outcomes {
		var analysis *models.Analysis
		if analyze && o.Err == nil {
			analysis = svc.analyzer.Summarize(ctx, o.Result.Bugs, o.URL)
		}
		reports[i] = toReport(o, analysis)
		if o.Err != nil {
			failed++
		}
		if noSave {
			continue
		}
		if err := svc.store.Save(ctx, toRecord(o, analysis, start)); err != nil {
			logger.Error("failed to save scan", "url", o.URL, "error", err)
		}
	}

	output, _ := cmd.Flags().GetString("output")
	if err := writeReports(cmd.OutOrStdout(), output, format, reports); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scans failed", failed, len(outcomes))
	}
	return nil
}

// flagOptions collects the option flags the user actually set.
func flagOptions(cmd *cobra.Command) (models.ScanOptionsInput, error) {
	var in models.ScanOptionsInput
	f := cmd.Flags()

	if f.Changed("timeout") {
		d, _ := f.GetDuration("timeout")
		if d <= 0 {
			return in, fmt.Errorf("--timeout must be positive, got %s", d)
		}
		in.TimeoutMs = int(d.Milliseconds())
	}

	negated := []struct {
		flag string
		dst  **bool
	}{
		{"viewport-only", &in.FullPageScreenshot},
		{"no-accessibility", &in.CheckAccessibility},
		{"no-seo", &in.CheckSEO},
		{"no-performance", &in.CheckPerformance},
	}
	for _, n := range negated {
		if f.Changed(n.flag) {
			v, _ := f.GetBool(n.flag)
			enabled := !v
			*n.dst = &enabled
		}
	}
	if f.Changed("stealth") {
		v, _ := f.GetBool("stealth")
		in.Stealth = &v
	}

	raw, _ := f.GetStringArray("header")
	headers, err := parseHeaders(raw)
	if err != nil {
		return in, err
	}
	in.Headers = headers
	return in, nil
}

// resolveOptions layers defaults, the site profile and the flags.
func resolveOptions(profiles *config.ProfileFile, url string, flags models.ScanOptionsInput) models.ScanOptions {
	base := models.DefaultScanOptions()
	if profiles != nil {
		base = profiles.OptionsFor(url, base)
	}
	return flags.ApplyTo(base)
}

// parseHeaders turns "Name: value" pairs into a map.
func parseHeaders(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q (want \"Name: value\")", h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

func toReport(o scanner.Outcome, analysis *models.Analysis) report.Report {
	r := report.Report{URL: o.URL, Result: o.Result, Analysis: analysis}
	if o.Err != nil {
		r.Error = models.WrapScanError(o.URL, o.Err).ToDetail()
	}
	return r
}

func toRecord(o scanner.Outcome, analysis *models.Analysis, at time.Time) *models.ScanRecord {
	rec := &models.ScanRecord{
		ID:        store.NewID(),
		URL:       o.URL,
		CreatedAt: at.UTC(),
		Status:    models.StatusCompleted,
		Result:    o.Result,
		Analysis:  analysis,
	}
	if o.Result != nil {
		rec.CreatedAt = o.Result.Timestamp.UTC()
	}
	if o.Err != nil {
		rec.Status = models.StatusFailed
		rec.Error = models.WrapScanError(o.URL, o.Err).ToDetail().Message
	}
	return rec
}

// writeReports renders reports to path, creating parent directories, or to
// stdout when path is empty.
func writeReports(stdout io.Writer, path, format string, reports []report.Report) (err error) {
	out := stdout
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
		f, cerr := os.Create(path) //nolint:gosec // user-provided output path is intentional
		if cerr != nil {
			return fmt.Errorf("failed to create report file: %w", cerr)
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		out = f
	}

	if _, werr := report.NewWriter(format, out).Write(reports); werr != nil {
		return fmt.Errorf("failed to write report: %w", werr)
	}
	return nil
}

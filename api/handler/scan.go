package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/bughunter/config"
	"github.com/use-agent/bughunter/models"
	"github.com/use-agent/bughunter/store"
	"github.com/use-agent/bughunter/webhook"
)

// ScanDeps wires POST /api/v1/scan.
type ScanDeps struct {
	Scanner  Scanner
	Analyzer Analyzer
	Store    store.Store
	Notifier *webhook.Notifier   // optional
	Profiles *config.ProfileFile // optional
	Logger   *slog.Logger        // optional
	Now      func() time.Time    // optional
}

// Scan returns a handler for POST /api/v1/scan.
//
// Orchestration flow:
//  1. Parse request, layer profile and request options over the defaults.
//  2. Scanner.Scan (admission control, browser session, checks).
//  3. Analyzer.Summarize when requested.
//  4. Persist the record, fire the webhook, return 200.
//
// Failed scans are persisted with status "failed" unless they never ran
// (bad input, no free slot).
func Scan(d ScanDeps) gin.HandlerFunc {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}

	return func(c *gin.Context) {
		// ── 1. Parse request ────────────────────────────────────────
		var req models.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		base := models.DefaultScanOptions()
		if d.Profiles != nil {
			base = d.Profiles.OptionsFor(req.URL, base)
		}
		opts := req.Options.ApplyTo(base)

		rec := &models.ScanRecord{
			ID:        store.NewID(),
			URL:       req.URL,
			CreatedAt: now().UTC(),
		}
		log := logger.With("scan_id", rec.ID, "url", req.URL)
		ctx := c.Request.Context()

		// ── 2. Scan ─────────────────────────────────────────────────
		result, err := d.Scanner.Scan(ctx, req.URL, opts)
		if err != nil {
			scanErr := models.WrapScanError(req.URL, err)
			log.Warn("scan failed", "code", scanErr.Code, "error", err)
			if ranScan(scanErr) {
				rec.Status = models.StatusFailed
				rec.Error = scanErr.ToDetail().Message
				if saveErr := d.Store.Save(ctx, rec); saveErr != nil {
					log.Error("failed to save scan", "error", saveErr)
				}
				d.Notifier.Notify(webhook.NewEvent(webhook.EventScanFailed, rec.ID, rec.URL, scanErr.ToDetail()))
			}
			respondError(c, scanErr)
			return
		}
		rec.Status = models.StatusCompleted
		rec.Result = result

		// ── 3. Analyze ──────────────────────────────────────────────
		if req.WantsAnalysis() && d.Analyzer != nil {
			rec.Analysis = d.Analyzer.Summarize(ctx, result.Bugs, req.URL)
		}

		// ── 4. Persist and notify ───────────────────────────────────
		// A store failure still returns the result; only the record is lost.
		if err := d.Store.Save(ctx, rec); err != nil {
			log.Error("failed to save scan", "error", err)
		}
		d.Notifier.Notify(webhook.NewEvent(webhook.EventScanCompleted, rec.ID, rec.URL, completedData(rec)))

		log.Info("scan completed", "bugs", result.Summary.TotalBugs, "duration_ms", result.DurationMs)
		c.JSON(http.StatusOK, models.ScanResponse{Success: true, Scan: rec})
	}
}

// ranScan reports whether a browser session was attempted for the error.
func ranScan(e *models.ScanError) bool {
	switch e.Code {
	case models.ErrCodeInvalidInput, models.ErrCodeBusy:
		return false
	}
	return !errors.Is(e, context.Canceled)
}

func completedData(rec *models.ScanRecord) map[string]any {
	data := map[string]any{"summary": rec.Counts()}
	if rec.Analysis != nil {
		data["qualityScore"] = rec.Analysis.QualityScore
	}
	return data
}

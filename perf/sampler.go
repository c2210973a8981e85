// Package perf reads browser navigation timing after load and flags slow pages.
package perf

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/bughunter/models"
)

// DefaultThreshold is the load time above which a page counts as slow.
const DefaultThreshold = 3 * time.Second

const recommendation = "Optimize images, minify CSS/JS, use CDN"

// timingJS returns null when the navigation entry is missing so that an
// unsupported browser reads as "no data" rather than NaN.
const timingJS = `() => {
	const nav = performance.getEntriesByType("navigation")[0];
	if (!nav) return null;
	const paint = performance.getEntriesByType("paint")[0];
	return {
		loadTime: nav.loadEventEnd - nav.fetchStart,
		domContentLoaded: nav.domContentLoadedEventEnd - nav.fetchStart,
		firstPaint: paint ? paint.startTime : null
	};
}`

// Evaluator runs a JS function expression in the page and decodes its result.
type Evaluator interface {
	Eval(ctx context.Context, js string, out any) error
}

// Timing is the subset of navigation timing the sampler reads, in
// milliseconds. Nil fields were not reported by the browser.
type Timing struct {
	LoadTime         *float64 `json:"loadTime"`
	DOMContentLoaded *float64 `json:"domContentLoaded"`
	FirstPaint       *float64 `json:"firstPaint"`
}

// Sampler flags pages whose load time exceeds Threshold.
type Sampler struct {
	Threshold time.Duration
	Logger    *slog.Logger
	Now       func() time.Time
}

// New returns a Sampler with the given threshold, or DefaultThreshold when
// threshold is not positive.
func New(threshold time.Duration, logger *slog.Logger) *Sampler {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{Threshold: threshold, Logger: logger, Now: time.Now}
}

// Sample reads timing once. Missing or unreadable timing yields no bug; the
// only error returned is ctx's, so an expired inspection budget still ends
// the scan.
func (s *Sampler) Sample(ctx context.Context, ev Evaluator) ([]models.Bug, error) {
	var t *Timing
	if err := ev.Eval(ctx, timingJS, &t); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &models.InspectionError{Check: "performance", Err: ctxErr}
		}
		s.logger().Warn("navigation timing unavailable", "error", err)
		return nil, nil
	}
	return s.Evaluate(t), nil
}

// Evaluate applies the threshold to already-read timing.
func (s *Sampler) Evaluate(t *Timing) []models.Bug {
	if t == nil || t.LoadTime == nil || *t.LoadTime <= 0 {
		return nil
	}
	threshold := s.threshold()
	loadMs := *t.LoadTime
	if loadMs <= float64(threshold.Milliseconds()) {
		return nil
	}

	b := models.NewBug(models.BugPerformanceSlowLoad,
		fmt.Sprintf("Slow page load time: %.2fs", loadMs/1000), s.now()).
		WithDetails(models.Details{
			"loadTime":       loadMs,
			"threshold":      threshold.Milliseconds(),
			"recommendation": recommendation,
		})
	return []models.Bug{b}
}

func (s *Sampler) threshold() time.Duration {
	if s.Threshold <= 0 {
		return DefaultThreshold
	}
	return s.Threshold
}

func (s *Sampler) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *Sampler) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

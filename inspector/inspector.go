// Package inspector runs the post-navigation DOM checks of a scan.
//
// Structural checks (alt text, form labels, SEO metadata, link sample) work
// on the Snapshot parsed from the rendered document. Checks that need live
// layout state (image decode results, computed colors) evaluate scripts in
// the page. Each check is independent and side-effect free.
package inspector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/use-agent/bughunter/models"
)

// Title length bounds, inclusive.
const (
	MinTitleLength = 30
	MaxTitleLength = 60

	// LinkSampleSize is how many anchors the link sample keeps.
	LinkSampleSize = 10
)

// Evaluator runs a JS function expression in the page and decodes its result.
type Evaluator interface {
	Eval(ctx context.Context, js string, out any) error
}

// brokenImagesJS treats an image as broken when it has not finished
// loading or decoded to zero natural height.
const brokenImagesJS = `() => Array.from(document.images)
	.filter(img => !img.complete || img.naturalHeight === 0)
	.map(img => ({ src: img.src, alt: img.alt || "(no alt text)" }))`

// lowContrastJS is a coarse heuristic: it counts elements whose computed
// background color string equals their computed text color. It is not a
// WCAG contrast-ratio computation.
const lowContrastJS = `() => {
	let count = 0;
	for (const el of document.querySelectorAll("*")) {
		const style = window.getComputedStyle(el);
		if (style.backgroundColor === style.color) count++;
	}
	return count;
}`

type check struct {
	name    string
	enabled func(models.ScanOptions) bool
	run     func(ctx context.Context, ev Evaluator, snap *Snapshot, at time.Time) ([]models.Bug, error)
}

func always(models.ScanOptions) bool          { return true }
func accessibility(o models.ScanOptions) bool { return o.CheckAccessibility }
func seo(o models.ScanOptions) bool           { return o.CheckSEO }

var checks = []check{
	{"broken_images", always, checkBrokenImages},
	{"missing_alt", accessibility, checkMissingAlt},
	{"missing_labels", accessibility, checkMissingLabels},
	{"low_contrast", accessibility, checkLowContrast},
	{"seo_title", seo, checkTitle},
	{"seo_description", seo, checkDescription},
	{"seo_h1", seo, checkH1},
}

// Inspector runs the enabled checks against one page.
type Inspector struct {
	logger *slog.Logger
	now    func() time.Time
}

// Option configures an Inspector.
type Option func(*Inspector)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(in *Inspector) {
		if l != nil {
			in.logger = l
		}
	}
}

// WithClock overrides the bug timestamp source.
func WithClock(now func() time.Time) Option {
	return func(in *Inspector) {
		if now != nil {
			in.now = now
		}
	}
}

// New returns an Inspector.
func New(opts ...Option) *Inspector {
	in := &Inspector{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Inspect runs every check enabled by opts, in a fixed order, and stops at
// the first check that fails.
func (in *Inspector) Inspect(ctx context.Context, ev Evaluator, snap *Snapshot, opts models.ScanOptions) ([]models.Bug, error) {
	var bugs []models.Bug
	for _, c := range checks {
		if !c.enabled(opts) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, &models.InspectionError{Check: c.name, Err: err}
		}

		found, err := c.run(ctx, ev, snap, in.now())
		if err != nil {
			return nil, &models.InspectionError{Check: c.name, Err: err}
		}
		if len(found) > 0 {
			in.logger.Debug("check found issues", "check", c.name, "bugs", len(found))
		}
		bugs = append(bugs, found...)
	}
	return bugs, nil
}

func checkBrokenImages(ctx context.Context, ev Evaluator, _ *Snapshot, at time.Time) ([]models.Bug, error) {
	var broken []models.ImageRef
	if err := ev.Eval(ctx, brokenImagesJS, &broken); err != nil {
		return nil, err
	}
	if len(broken) == 0 {
		return nil, nil
	}
	b := models.NewBug(models.BugBrokenImages, fmt.Sprintf("Found %d broken image(s)", len(broken)), at).
		WithDetails(models.Details{
			"images": broken,
			"count":  len(broken),
		})
	return []models.Bug{b}, nil
}

func checkMissingAlt(_ context.Context, _ Evaluator, snap *Snapshot, at time.Time) ([]models.Bug, error) {
	srcs := snap.imagesMissingAlt()
	if len(srcs) == 0 {
		return nil, nil
	}
	b := models.NewBug(models.BugMissingAlt, fmt.Sprintf("%d images missing alt text", len(srcs)), at).
		WithDetails(models.Details{
			"images":    srcs,
			"count":     len(srcs),
			"wcagLevel": models.Classify(models.BugMissingAlt).WCAGLevel,
		})
	return []models.Bug{b}, nil
}

func checkMissingLabels(_ context.Context, _ Evaluator, snap *Snapshot, at time.Time) ([]models.Bug, error) {
	n := snap.unlabeledInputs()
	if n == 0 {
		return nil, nil
	}
	b := models.NewBug(models.BugMissingLabels, fmt.Sprintf("%d form inputs missing labels", n), at).
		WithDetails(models.Details{
			"count":     n,
			"wcagLevel": models.Classify(models.BugMissingLabels).WCAGLevel,
		})
	return []models.Bug{b}, nil
}

func checkLowContrast(ctx context.Context, ev Evaluator, _ *Snapshot, at time.Time) ([]models.Bug, error) {
	var n int
	if err := ev.Eval(ctx, lowContrastJS, &n); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	b := models.NewBug(models.BugLowContrast, "Potential low contrast issues detected", at).
		WithDetails(models.Details{
			"count":     n,
			"wcagLevel": models.Classify(models.BugLowContrast).WCAGLevel,
		})
	return []models.Bug{b}, nil
}

func checkTitle(_ context.Context, _ Evaluator, snap *Snapshot, at time.Time) ([]models.Bug, error) {
	if strings.TrimSpace(snap.Title) == "" {
		b := models.NewBug(models.BugSEOMissingTitle, "Page is missing a title tag", at).
			WithDetails(models.Details{"impact": "Critical for search engines"})
		return []models.Bug{b}, nil
	}

	// Lengths are UTF-16 code units, as browsers and search engines report them.
	n := len(utf16.Encode([]rune(snap.Title)))
	if n >= MinTitleLength && n <= MaxTitleLength {
		return nil, nil
	}
	b := models.NewBug(models.BugSEOTitleLength,
		fmt.Sprintf("Title length (%d chars) not optimal (%d-%d chars)", n, MinTitleLength, MaxTitleLength), at).
		WithDetails(models.Details{
			"currentLength":    n,
			"recommendedRange": fmt.Sprintf("%d-%d", MinTitleLength, MaxTitleLength),
		})
	return []models.Bug{b}, nil
}

func checkDescription(_ context.Context, _ Evaluator, snap *Snapshot, at time.Time) ([]models.Bug, error) {
	if snap.metaDescription() != "" {
		return nil, nil
	}
	b := models.NewBug(models.BugSEOMissingDesc, "Page is missing a meta description", at).
		WithDetails(models.Details{"impact": "Important for search results"})
	return []models.Bug{b}, nil
}

func checkH1(_ context.Context, _ Evaluator, snap *Snapshot, at time.Time) ([]models.Bug, error) {
	if snap.doc.FindMatcher(selH1).Length() > 0 {
		return nil, nil
	}
	b := models.NewBug(models.BugSEOMissingH1, "Page is missing an H1 heading", at).
		WithDetails(models.Details{"impact": "Important for page structure"})
	return []models.Bug{b}, nil
}

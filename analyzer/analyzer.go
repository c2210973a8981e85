// Package analyzer prioritises scan bugs and suggests fixes, using a
// language model when one is configured and a deterministic
// severity-weighted analysis otherwise.
package analyzer

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/bughunter/llm"
	"github.com/use-agent/bughunter/models"
)

// Fallback texts.
const (
	fallbackAssessment  = "AI analysis unavailable, showing basic analysis"
	fallbackExplanation = "AI fix suggestion unavailable"
	fallbackPrevention  = "Implement proper testing"
	unknownTime         = "Unknown"
)

// Completer is the model client the analyzer needs.
type Completer interface {
	Enabled() bool
	Model() string
	CompleteJSON(ctx context.Context, req llm.Request, out any) (*llm.Completion, error)
}

// Analyzer produces analyses and fix suggestions. It never fails: model
// errors degrade to the fallback, with the reason in the Error field.
type Analyzer struct {
	llm    Completer
	logger *slog.Logger
	now    func() time.Time
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}

// New returns an Analyzer. c may be nil, in which case only fallbacks are
// produced.
func New(c Completer, opts ...Option) *Analyzer {
	a := &Analyzer{llm: c, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Enabled reports whether model calls are configured.
func (a *Analyzer) Enabled() bool { return a.llm != nil && a.llm.Enabled() }

// Summarize analyses the bugs found on url.
func (a *Analyzer) Summarize(ctx context.Context, bugs []models.Bug, url string) *models.Analysis {
	if len(bugs) == 0 {
		return &models.Analysis{
			OverallAssessment: "No bugs detected",
			QualityScore:      100,
			PrioritizedBugs:   []models.PrioritizedBug{},
			QuickWins:         []string{},
			EstimatedFixTime:  "None",
			Timestamp:         a.now(),
		}
	}
	if !a.Enabled() {
		return a.fallbackAnalysis(bugs, "AI analysis is not configured")
	}

	a.logger.Info("analyzing bugs", "url", url, "bugs", len(bugs))

	var out models.Analysis
	comp, err := a.llm.CompleteJSON(ctx, llm.Request{
		System:      analysisSystemPrompt,
		User:        analysisPrompt(bugs, url),
		Temperature: 0.7,
		MaxTokens:   2000,
	}, &out)
	if err != nil {
		a.logger.Warn("AI analysis failed, using fallback", "url", url, "error", err)
		return a.fallbackAnalysis(bugs, err.Error())
	}

	out.QualityScore = clampScore(out.QualityScore)
	out.PrioritizedBugs = validPriorities(out.PrioritizedBugs, len(bugs))
	if out.QuickWins == nil {
		out.QuickWins = []string{}
	}
	out.Model = comp.Model
	out.Timestamp = a.now()
	out.Error = ""

	a.logger.Info("AI analysis complete", "url", url, "quality_score", out.QualityScore)
	return &out
}

// SuggestFix explains how to fix bug.
func (a *Analyzer) SuggestFix(ctx context.Context, bug models.Bug) *models.FixSuggestion {
	ref := models.BugRef{Type: bug.Type, Severity: bug.Severity, Message: bug.Message}
	if !a.Enabled() {
		return a.fallbackFix(ref, "AI analysis is not configured")
	}

	var fix models.Fix
	comp, err := a.llm.CompleteJSON(ctx, llm.Request{
		System:      fixSystemPrompt,
		User:        fixPrompt(bug),
		Temperature: 0.5,
		MaxTokens:   1500,
	}, &fix)
	if err != nil {
		a.logger.Warn("fix suggestion failed, using fallback", "type", bug.Type, "error", err)
		return a.fallbackFix(ref, err.Error())
	}
	if fix.Steps == nil {
		fix.Steps = []string{}
	}

	return &models.FixSuggestion{
		Bug:       ref,
		Fix:       fix,
		Model:     comp.Model,
		Timestamp: a.now(),
	}
}

func (a *Analyzer) fallbackAnalysis(bugs []models.Bug, reason string) *models.Analysis {
	an := Fallback(bugs)
	an.Timestamp = a.now()
	an.Error = reason
	return an
}

func (a *Analyzer) fallbackFix(ref models.BugRef, reason string) *models.FixSuggestion {
	return &models.FixSuggestion{
		Bug: ref,
		Fix: models.Fix{
			Explanation:   fallbackExplanation,
			Steps:         []string{models.Classify(ref.Type).Recommendation},
			Prevention:    fallbackPrevention,
			EstimatedTime: unknownTime,
		},
		Timestamp: a.now(),
		Error:     reason,
	}
}

// Fallback is the deterministic analysis: severity-weighted score and one
// priority entry per bug, in scan order, from the taxonomy.
func Fallback(bugs []models.Bug) *models.Analysis {
	prioritized := make([]models.PrioritizedBug, len(bugs))
	for i, b := range bugs {
		info := models.Classify(b.Type)
		priority := string(b.Severity)
		if priority == "" {
			priority = string(info.Severity)
		}
		prioritized[i] = models.PrioritizedBug{
			BugIndex:       i + 1,
			Priority:       priority,
			UserImpact:     info.Impact,
			Recommendation: info.Recommendation,
		}
	}
	return &models.Analysis{
		OverallAssessment: fallbackAssessment,
		QualityScore:      QualityScore(bugs),
		PrioritizedBugs:   prioritized,
		QuickWins:         []string{},
		EstimatedFixTime:  unknownTime,
	}
}

// QualityScore is 100 minus the severity weight of every bug, floored at 0.
func QualityScore(bugs []models.Bug) int {
	score := 100
	for _, b := range bugs {
		score -= b.Severity.Weight()
	}
	return max(score, 0)
}

func clampScore(n int) int {
	return min(max(n, 0), 100)
}

// validPriorities drops entries pointing outside the bug list.
func validPriorities(in []models.PrioritizedBug, n int) []models.PrioritizedBug {
	out := make([]models.PrioritizedBug, 0, len(in))
	for _, p := range in {
		if p.BugIndex >= 1 && p.BugIndex <= n {
			out = append(out, p)
		}
	}
	return out
}

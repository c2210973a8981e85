package handler

import (
	"context"

	"github.com/use-agent/bughunter/models"
)

// Scanner runs admission-controlled scans.
type Scanner interface {
	Scan(ctx context.Context, url string, opts models.ScanOptions) (*models.ScanResult, error)
	Active() int
	Max() int
}

// Analyzer summarizes scans and suggests fixes.
type Analyzer interface {
	Enabled() bool
	Summarize(ctx context.Context, bugs []models.Bug, url string) *models.Analysis
	SuggestFix(ctx context.Context, bug models.Bug) *models.FixSuggestion
}

package models

import "time"

// PrioritizedBug ranks one bug of a scan. BugIndex is 1-based into
// ScanResult.Bugs.
type PrioritizedBug struct {
	BugIndex       int    `json:"bugIndex"`
	Priority       string `json:"priority"`
	UserImpact     string `json:"userImpact"`
	Recommendation string `json:"recommendation"`
}

// Analysis is the prioritised assessment of a scan's bugs.
type Analysis struct {
	OverallAssessment string           `json:"overallAssessment"`
	QualityScore      int              `json:"qualityScore"`
	PrioritizedBugs   []PrioritizedBug `json:"prioritizedBugs"`
	QuickWins         []string         `json:"quickWins"`
	EstimatedFixTime  string           `json:"estimatedFixTime"`
	Model             string           `json:"aiModel,omitempty"`
	Timestamp         time.Time        `json:"timestamp"`

	// Error is set when the fallback analysis replaced the model output.
	Error string `json:"error,omitempty"`
}

// Fix is the remediation advice for one bug.
type Fix struct {
	Explanation   string   `json:"explanation"`
	Steps         []string `json:"steps"`
	CodeExample   *string  `json:"codeExample"`
	Language      *string  `json:"language"`
	Prevention    string   `json:"prevention"`
	EstimatedTime string   `json:"estimatedTime"`
}

// FixSuggestion pairs a bug with its fix.
type FixSuggestion struct {
	Bug       BugRef    `json:"bug"`
	Fix       Fix       `json:"fix"`
	Model     string    `json:"aiModel,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}

// BugRef is the short form of a bug echoed back in a FixSuggestion.
type BugRef struct {
	Type     BugType  `json:"type"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

package models

import "time"

// Severity ranks how urgently a bug should be fixed.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityUnknown  Severity = "unknown"
)

// Category groups bugs by the part of the site they affect.
type Category string

const (
	CategoryJavaScript    Category = "JavaScript"
	CategoryNetwork       Category = "Network"
	CategoryContent       Category = "Content"
	CategoryAccessibility Category = "Accessibility"
	CategorySEO           Category = "SEO"
	CategoryPerformance   Category = "Performance"
	CategoryUnknown       Category = "unknown"
)

// BugType identifies a detector finding.
type BugType string

const (
	BugConsoleError        BugType = "console_error"
	BugConsoleWarning      BugType = "console_warning"
	BugNetworkError        BugType = "network_error"
	BugPageError           BugType = "page_error"
	BugHTTPError           BugType = "http_error"
	BugBrokenImages        BugType = "broken_images"
	BugMissingAlt          BugType = "accessibility_missing_alt"
	BugMissingLabels       BugType = "accessibility_missing_labels"
	BugLowContrast         BugType = "accessibility_low_contrast"
	BugSEOMissingTitle     BugType = "seo_missing_title"
	BugSEOTitleLength      BugType = "seo_title_length"
	BugSEOMissingDesc      BugType = "seo_missing_description"
	BugSEOMissingH1        BugType = "seo_missing_h1"
	BugPerformanceSlowLoad BugType = "performance_slow_load"
)

// Details is the structured payload attached to a bug (counts, offending
// elements, status codes...). Keys are stable and part of the JSON output.
type Details map[string]any

// Bug is a single finding. Bugs are values: once built they are never
// mutated, and their identity is their position in ScanResult.Bugs.
type Bug struct {
	Type      BugType   `json:"type"`
	Severity  Severity  `json:"severity"`
	Category  Category  `json:"category"`
	Message   string    `json:"message"`
	Location  string    `json:"location,omitempty"`
	Details   Details   `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewBug builds a bug whose severity and category come from the taxonomy.
func NewBug(t BugType, message string, at time.Time) Bug {
	info := Classify(t)
	return Bug{
		Type:      t,
		Severity:  info.Severity,
		Category:  info.Category,
		Message:   message,
		Timestamp: at,
	}
}

// WithLocation returns a copy of b with Location set.
func (b Bug) WithLocation(loc string) Bug {
	b.Location = loc
	return b
}

// WithDetails returns a copy of b with Details set.
func (b Bug) WithDetails(d Details) Bug {
	b.Details = d
	return b
}

// NewHTTPErrorBug records a 4xx/5xx main-document response.
func NewHTTPErrorBug(url string, status int, statusText string, at time.Time) Bug {
	b := NewBug(BugHTTPError, httpErrorMessage(status), at)
	b.Severity = SeverityForStatus(status)
	b.Location = url
	b.Details = Details{
		"statusCode": status,
		"statusText": statusText,
	}
	return b
}

package models

import (
	"fmt"
	"net/http"
)

// BugInfo is the static classification of a bug type.
type BugInfo struct {
	Severity       Severity
	Category       Category
	WCAGLevel      string
	Impact         string
	Recommendation string
}

const (
	defaultImpact         = "May negatively impact user experience"
	defaultRecommendation = "Review and fix the reported issue"
)

// bugInfoMapping is the closed taxonomy. http_error lists its 4xx severity;
// SeverityForStatus upgrades 5xx responses.
var bugInfoMapping = map[BugType]BugInfo{
	BugConsoleError: {
		Severity:       SeverityHigh,
		Category:       CategoryJavaScript,
		Impact:         "May cause functionality issues for users",
		Recommendation: "Check browser console and fix JavaScript errors",
	},
	BugConsoleWarning: {
		Severity: SeverityLow,
		Category: CategoryJavaScript,
	},
	BugNetworkError: {
		Severity:       SeverityMedium,
		Category:       CategoryNetwork,
		Impact:         "Users may see broken content or features",
		Recommendation: "Verify all resource URLs are correct and accessible",
	},
	BugPageError: {
		Severity: SeverityCritical,
		Category: CategoryJavaScript,
	},
	BugHTTPError: {
		Severity:       SeverityHigh,
		Category:       CategoryNetwork,
		Impact:         "Page or resources unavailable to users",
		Recommendation: "Fix server configuration or broken links",
	},
	BugBrokenImages: {
		Severity:       SeverityMedium,
		Category:       CategoryContent,
		Impact:         "Poor visual experience for users",
		Recommendation: "Check image URLs and ensure files exist",
	},
	BugMissingAlt: {
		Severity:       SeverityLow,
		Category:       CategoryAccessibility,
		WCAGLevel:      "A",
		Impact:         "Screen reader users cannot understand images",
		Recommendation: "Add descriptive alt text to all images",
	},
	BugMissingLabels: {
		Severity:       SeverityMedium,
		Category:       CategoryAccessibility,
		WCAGLevel:      "A",
		Recommendation: "Add labels to all form inputs",
	},
	BugLowContrast: {
		Severity:  SeverityLow,
		Category:  CategoryAccessibility,
		WCAGLevel: "AA",
	},
	BugSEOMissingTitle: {
		Severity:       SeverityHigh,
		Category:       CategorySEO,
		Impact:         "Poor search engine visibility",
		Recommendation: "Add a descriptive title tag (30-60 characters)",
	},
	BugSEOTitleLength: {
		Severity: SeverityLow,
		Category: CategorySEO,
	},
	BugSEOMissingDesc: {
		Severity:       SeverityMedium,
		Category:       CategorySEO,
		Recommendation: "Add a meta description (120-160 characters)",
	},
	BugSEOMissingH1: {
		Severity:       SeverityMedium,
		Category:       CategorySEO,
		Recommendation: "Add an H1 heading to the page",
	},
	BugPerformanceSlowLoad: {
		Severity:       SeverityMedium,
		Category:       CategoryPerformance,
		Impact:         "Users may abandon slow-loading pages",
		Recommendation: "Optimize images, minify CSS/JS, enable caching",
	},
}

// Classify returns the taxonomy entry for t. Unknown types get the unknown
// severity and category and the generic impact/recommendation text.
func Classify(t BugType) BugInfo {
	info, ok := bugInfoMapping[t]
	if !ok {
		info = BugInfo{Severity: SeverityUnknown, Category: CategoryUnknown}
	}
	if info.Impact == "" {
		info.Impact = defaultImpact
	}
	if info.Recommendation == "" {
		info.Recommendation = defaultRecommendation
	}
	return info
}

// KnownBugTypes lists every type in the taxonomy.
func KnownBugTypes() []BugType {
	types := make([]BugType, 0, len(bugInfoMapping))
	for t := range bugInfoMapping {
		types = append(types, t)
	}
	return types
}

// SeverityForStatus classifies an HTTP error status.
func SeverityForStatus(status int) Severity {
	if status >= 500 {
		return SeverityCritical
	}
	return SeverityHigh
}

func httpErrorMessage(status int) string {
	return fmt.Sprintf("HTTP %d error", status)
}

// StatusText falls back to the canonical reason phrase when the browser
// does not report one (HTTP/2 responses carry none).
func StatusText(status int, reported string) string {
	if reported != "" {
		return reported
	}
	return http.StatusText(status)
}

// Weight is the quality-score deduction for one bug of severity s.
func (s Severity) Weight() int {
	switch s {
	case SeverityCritical:
		return 20
	case SeverityHigh:
		return 10
	case SeverityMedium:
		return 5
	case SeverityLow:
		return 2
	default:
		return 5
	}
}

// Rank orders severities from most (0) to least urgent.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}

// Severities lists the known severities from most to least urgent.
func Severities() []Severity {
	return []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}
}

// Categories lists the known categories in display order.
func Categories() []Category {
	return []Category{
		CategoryJavaScript, CategoryNetwork, CategoryContent,
		CategoryAccessibility, CategorySEO, CategoryPerformance,
	}
}

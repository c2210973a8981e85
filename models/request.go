package models

import "time"

// ScanOptionsInput is the wire form of ScanOptions. Unset booleans take
// their default (true).
type ScanOptionsInput struct {
	// TimeoutMs is the navigation timeout in milliseconds. Default: 30000.
	TimeoutMs int `json:"timeout,omitempty" yaml:"timeout,omitempty" binding:"omitempty,min=1000,max=120000"`

	FullPageScreenshot *bool `json:"fullPageScreenshot,omitempty" yaml:"fullPageScreenshot,omitempty"`
	CheckAccessibility *bool `json:"checkAccessibility,omitempty" yaml:"checkAccessibility,omitempty"`
	CheckPerformance   *bool `json:"checkPerformance,omitempty" yaml:"checkPerformance,omitempty"`
	CheckSEO           *bool `json:"checkSEO,omitempty" yaml:"checkSEO,omitempty"`

	Stealth *bool             `json:"stealth,omitempty" yaml:"stealth,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Resolve applies the input on top of DefaultScanOptions.
func (in ScanOptionsInput) Resolve() ScanOptions {
	return in.ApplyTo(DefaultScanOptions())
}

// ApplyTo overlays the fields set in the input onto base.
func (in ScanOptionsInput) ApplyTo(base ScanOptions) ScanOptions {
	if in.TimeoutMs > 0 {
		base.Timeout = time.Duration(in.TimeoutMs) * time.Millisecond
	}
	if in.FullPageScreenshot != nil {
		base.FullPageScreenshot = *in.FullPageScreenshot
	}
	if in.CheckAccessibility != nil {
		base.CheckAccessibility = *in.CheckAccessibility
	}
	if in.CheckPerformance != nil {
		base.CheckPerformance = *in.CheckPerformance
	}
	if in.CheckSEO != nil {
		base.CheckSEO = *in.CheckSEO
	}
	if in.Stealth != nil {
		base.Stealth = *in.Stealth
	}
	if len(in.Headers) > 0 {
		merged := make(map[string]string, len(base.Headers)+len(in.Headers))
		for k, v := range base.Headers {
			merged[k] = v
		}
		for k, v := range in.Headers {
			merged[k] = v
		}
		base.Headers = merged
	}
	return base.Normalize()
}

// ScanRequest is the payload for POST /api/v1/scan.
type ScanRequest struct {
	// URL is the page to scan. Required.
	URL string `json:"url" binding:"required,url"`

	Options ScanOptionsInput `json:"options"`

	// Analyze requests an AI analysis of the bugs. Default: true.
	Analyze *bool `json:"analyze,omitempty"`
}

// WantsAnalysis reports whether the AI analysis should run.
func (r *ScanRequest) WantsAnalysis() bool {
	return r.Analyze == nil || *r.Analyze
}

// SuggestFixRequest is the payload for POST /api/v1/suggest-fix.
type SuggestFixRequest struct {
	Bug Bug `json:"bug"`
}

package models

import "time"

// DefaultScanTimeout bounds navigation when the caller sets no timeout.
const DefaultScanTimeout = 30 * time.Second

// ScanOptions configures one scan. It is passed by value and never
// modified while the scan runs.
type ScanOptions struct {
	// Timeout caps the navigation wait (network idle or this, whichever first).
	Timeout time.Duration

	// FullPageScreenshot captures the whole scrollable page instead of the viewport.
	FullPageScreenshot bool

	CheckAccessibility bool
	CheckPerformance   bool
	CheckSEO           bool

	// Stealth masks automation fingerprints (navigator.webdriver etc.).
	Stealth bool

	// Headers are extra HTTP headers sent with every request of the session.
	Headers map[string]string
}

// DefaultScanOptions enables every check with a 30s timeout.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		Timeout:            DefaultScanTimeout,
		FullPageScreenshot: true,
		CheckAccessibility: true,
		CheckPerformance:   true,
		CheckSEO:           true,
	}
}

// Normalize fills a zero Timeout with the default.
func (o ScanOptions) Normalize() ScanOptions {
	if o.Timeout <= 0 {
		o.Timeout = DefaultScanTimeout
	}
	return o
}

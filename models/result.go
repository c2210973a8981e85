package models

import "time"

// PageInfo is the page metadata read once after load.
type PageInfo struct {
	Title           string  `json:"title"`
	URL             string  `json:"url"`
	MetaDescription *string `json:"metaDescription"`
	HasH1           bool    `json:"hasH1"`
	ImageCount      int     `json:"imageCount"`
	LinkCount       int     `json:"linkCount"`
	FormCount       int     `json:"formCount"`
}

// Link is one entry of the informational link sample.
type Link struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

// ImageRef identifies an offending image element.
type ImageRef struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// Summary counts bugs by category and severity.
type Summary struct {
	TotalBugs  int            `json:"totalBugs"`
	ByCategory map[string]int `json:"byCategory"`
	BySeverity map[string]int `json:"bySeverity"`
}

// Count returns the number of bugs with severity s.
func (s Summary) Count(sev Severity) int {
	return s.BySeverity[string(sev)]
}

// ScanResult is the complete outcome of one successful scan. The scanner
// hands it to the caller and never touches it again.
type ScanResult struct {
	URL        string    `json:"url"`
	Timestamp  time.Time `json:"timestamp"`
	PageInfo   PageInfo  `json:"pageInfo"`
	Bugs       []Bug     `json:"bugs"`
	Screenshot string    `json:"screenshot,omitempty"`
	Links      []Link    `json:"links,omitempty"`
	Summary    Summary   `json:"summary"`
	DurationMs int64     `json:"durationMs"`
}

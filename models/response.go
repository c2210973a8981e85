package models

import "time"

// ScanRecord is a stored scan: the result plus its analysis and sharing state.
type ScanRecord struct {
	ID         string      `json:"id"`
	URL        string      `json:"url"`
	CreatedAt  time.Time   `json:"timestamp"`
	Status     string      `json:"status"`
	Result     *ScanResult `json:"results,omitempty"`
	Analysis   *Analysis   `json:"aiAnalysis,omitempty"`
	Error      string      `json:"error,omitempty"`
	IsPublic   bool        `json:"isPublic"`
	ShareToken string      `json:"shareToken,omitempty"`
}

// Record statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// SeverityCounts is the per-severity tally kept alongside a record.
type SeverityCounts struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Counts summarises the record's bugs by severity.
func (r *ScanRecord) Counts() SeverityCounts {
	if r.Result == nil {
		return SeverityCounts{}
	}
	s := r.Result.Summary
	return SeverityCounts{
		Total:    s.TotalBugs,
		Critical: s.Count(SeverityCritical),
		High:     s.Count(SeverityHigh),
		Medium:   s.Count(SeverityMedium),
		Low:      s.Count(SeverityLow),
	}
}

// ScanResponse is the response body for POST /api/v1/scan and GET /scans/:id.
type ScanResponse struct {
	Success bool         `json:"success"`
	Scan    *ScanRecord  `json:"scan,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// ScanListItem is one row of GET /api/v1/scans.
type ScanListItem struct {
	ID        string         `json:"id"`
	URL       string         `json:"url"`
	CreatedAt time.Time      `json:"timestamp"`
	Status    string         `json:"status"`
	Summary   SeverityCounts `json:"summary"`
	IsPublic  bool           `json:"isPublic"`
}

// ScanListResponse is the response body for GET /api/v1/scans.
type ScanListResponse struct {
	Success bool           `json:"success"`
	Scans   []ScanListItem `json:"scans"`
	Total   int            `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

// ShareResponse is the response body for POST /api/v1/scans/:id/share.
type ShareResponse struct {
	Success    bool   `json:"success"`
	IsPublic   bool   `json:"isPublic"`
	ShareToken string `json:"shareToken,omitempty"`
	ShareURL   string `json:"shareUrl,omitempty"`
}

// FixResponse is the response body for POST /api/v1/suggest-fix.
type FixResponse struct {
	Success    bool           `json:"success"`
	Suggestion *FixSuggestion `json:"suggestion,omitempty"`
	Error      *ErrorDetail   `json:"error,omitempty"`
}

// Stats aggregates all stored scans.
type Stats struct {
	TotalScans        int            `json:"totalScans"`
	TotalBugs         int            `json:"totalBugs"`
	AvgBugsPerScan    float64        `json:"avgBugsPerScan"`
	SeverityBreakdown SeverityCounts `json:"severityBreakdown"`
	LastScan          *time.Time     `json:"lastScan"`
}

// ErrorResponse is the generic failure body.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}

// HealthResponse is the response body for GET /api/v1/health.
type HealthResponse struct {
	Status      string `json:"status"`
	Uptime      string `json:"uptime"`
	ActiveScans int    `json:"activeScans"`
	MaxScans    int    `json:"maxScans"`
	AIEnabled   bool   `json:"aiEnabled"`
	Version     string `json:"version"`
}

// LLMUsage tracks token consumption for one model call.
type LLMUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

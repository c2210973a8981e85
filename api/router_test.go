package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/use-agent/bughunter/config"
	"github.com/use-agent/bughunter/models"
	"github.com/use-agent/bughunter/store"
	"github.com/use-agent/bughunter/webhook"
)

const testKey = "test-key"

type fakeScanner struct {
	mu     sync.Mutex
	result *models.ScanResult
	err    error
	opts   []models.ScanOptions
}

func (f *fakeScanner) Scan(_ context.Context, url string, opts models.ScanOptions) (*models.ScanResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}
	r := *f.result
	r.URL = url
	return &r, nil
}

func (f *fakeScanner) Active() int { return 0 }
func (f *fakeScanner) Max() int    { return 4 }

func (f *fakeScanner) calls() []models.ScanOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ScanOptions(nil), f.opts...)
}

type fakeAnalyzer struct{ enabled bool }

func (a *fakeAnalyzer) Enabled() bool { return a.enabled }

func (a *fakeAnalyzer) Summarize(_ context.Context, bugs []models.Bug, _ string) *models.Analysis {
	return &models.Analysis{QualityScore: 100 - 10*len(bugs), OverallAssessment: "fake"}
}

func (a *fakeAnalyzer) SuggestFix(_ context.Context, bug models.Bug) *models.FixSuggestion {
	return &models.FixSuggestion{
		Bug: models.BugRef{Type: bug.Type, Severity: bug.Severity, Message: bug.Message},
		Fix: models.Fix{Explanation: "fix it", Steps: []string{"step"}},
	}
}

func oneBugResult() *models.ScanResult {
	bugs := []models.Bug{models.NewBug(models.BugConsoleError, "boom", time.Now()).WithLocation("app.js:1:2")}
	return &models.ScanResult{
		Timestamp: time.Now(),
		Bugs:      bugs,
		Summary: models.Summary{
			TotalBugs:  1,
			ByCategory: map[string]int{"JavaScript": 1},
			BySeverity: map[string]int{"high": 1},
		},
	}
}

type env struct {
	t       *testing.T
	router  http.Handler
	scanner *fakeScanner
	store   store.Store
}

func newEnv(t *testing.T, mutate func(*config.Config, *Deps)) *env {
	t.Helper()

	cfg := &config.Config{
		Server:    config.ServerConfig{Mode: "test"},
		Auth:      config.AuthConfig{Enabled: true, APIKeys: []string{testKey}},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
	}
	sc := &fakeScanner{result: oneBugResult()}
	st := store.NewMemory(100)
	d := Deps{
		Scanner:   sc,
		Analyzer:  &fakeAnalyzer{},
		Store:     st,
		StartTime: time.Now(),
	}
	if mutate != nil {
		mutate(cfg, &d)
	}
	return &env{t: t, router: NewRouter(t.Context(), cfg, d), scanner: sc, store: st}
}

func (e *env) do(method, path string, body any) *httptest.ResponseRecorder {
	e.t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			e.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testKey)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	h := decode[models.HealthResponse](t, w)
	if h.Status != "healthy" || h.MaxScans != 4 || h.AIEnabled {
		t.Errorf("health = %+v", h)
	}
}

func TestAuth(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil)
	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"missing key", "", "", http.StatusUnauthorized},
		{"wrong key", "X-API-Key", "nope", http.StatusUnauthorized},
		{"x-api-key", "X-API-Key", testKey, http.StatusOK},
		{"bearer", "Authorization", "Bearer " + testKey, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			e.router.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.want == http.StatusUnauthorized {
				resp := decode[models.ErrorResponse](t, w)
				if resp.Error == nil || resp.Error.Code != models.ErrCodeUnauthorized {
					t.Errorf("error = %+v", resp.Error)
				}
			}
		})
	}
}

func TestScan_Success(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil)
	w := e.do(http.MethodPost, "/api/v1/scan", map[string]any{
		"url":     "https://example.com",
		"options": map[string]any{"checkSEO": false, "timeout": 5000},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}

	resp := decode[models.ScanResponse](t, w)
	if !resp.Success || resp.Scan == nil {
		t.Fatalf("resp = %+v", resp)
	}
	if !strings.HasPrefix(resp.Scan.ID, "scan_") || resp.Scan.Status != models.StatusCompleted {
		t.Errorf("scan = %+v", resp.Scan)
	}
	if resp.Scan.Analysis == nil || resp.Scan.Analysis.QualityScore != 90 {
		t.Errorf("analysis = %+v", resp.Scan.Analysis)
	}

	calls := e.scanner.calls()
	if len(calls) != 1 {
		t.Fatalf("scanner calls = %d", len(calls))
	}
	if calls[0].CheckSEO || !calls[0].CheckAccessibility || calls[0].Timeout != 5*time.Second {
		t.Errorf("options = %+v", calls[0])
	}

	got := e.do(http.MethodGet, "/api/v1/scans/"+resp.Scan.ID, nil)
	if got.Code != http.StatusOK {
		t.Errorf("GET stored scan status = %d", got.Code)
	}
}

func TestScan_NoAnalysis(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil)
	w := e.do(http.MethodPost, "/api/v1/scan", `{"url":"https://example.com","analyze":false}`)
	resp := decode[models.ScanResponse](t, w)
	if resp.Scan == nil || resp.Scan.Analysis != nil {
		t.Errorf("analysis should be skipped: %+v", resp.Scan)
	}
}

func TestScan_InvalidInput(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil)
	for _, body := range []string{
		`{}`,
		`{"url":"not a url"}`,
		`{"url":"https://example.com","options":{"timeout":10}}`,
		`{`,
	} {
		w := e.do(http.MethodPost, "/api/v1/scan", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", body, w.Code)
			continue
		}
		if resp := decode[models.ErrorResponse](t, w); resp.Error.Code != models.ErrCodeInvalidInput {
			t.Errorf("%s: code = %s", body, resp.Error.Code)
		}
	}
	if n := len(e.scanner.calls()); n != 0 {
		t.Errorf("scanner called %d times", n)
	}
}

func TestScan_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		wantCode  int
		wantSaved bool
	}{
		{
			name:      "navigation failure is stored",
			err:       models.WrapScanError("https://example.com", &models.NavigationError{URL: "https://example.com", Err: context.DeadlineExceeded}),
			wantCode:  http.StatusBadGateway,
			wantSaved: true,
		},
		{
			name:      "timeout",
			err:       models.WrapScanError("https://example.com", &models.NavigationError{URL: "https://example.com", Timeout: true, Err: context.DeadlineExceeded}),
			wantCode:  http.StatusGatewayTimeout,
			wantSaved: true,
		},
		{
			name:      "busy is not stored",
			err:       &models.ScanError{Code: models.ErrCodeBusy, Message: "no free scan slot"},
			wantCode:  http.StatusServiceUnavailable,
			wantSaved: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := newEnv(t, nil)
			e.scanner.err = tt.err

			w := e.do(http.MethodPost, "/api/v1/scan", `{"url":"https://example.com"}`)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}

			items, total, _ := e.store.List(t.Context(), 10, 0)
			if saved := total == 1; saved != tt.wantSaved {
				t.Fatalf("saved = %v, want %v", saved, tt.wantSaved)
			}
			if tt.wantSaved && items[0].Status != models.StatusFailed {
				t.Errorf("status = %s", items[0].Status)
			}
		})
	}
}

func TestScan_Webhook(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		events []webhook.Event
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev webhook.Event
		_ = json.NewDecoder(r.Body).Decode(&ev)
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}))
	defer srv.Close()

	n := webhook.New(config.WebhookConfig{URL: srv.URL}, webhook.WithRetryDelays(0))
	e := newEnv(t, func(_ *config.Config, d *Deps) { d.Notifier = n })

	resp := decode[models.ScanResponse](t, e.do(http.MethodPost, "/api/v1/scan", `{"url":"https://example.com"}`))
	n.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 || events[0].Type != webhook.EventScanCompleted || events[0].ScanID != resp.Scan.ID {
		t.Errorf("events = %+v", events)
	}
}

func TestScan_Profiles(t *testing.T) {
	t.Parallel()

	stealth := true
	profiles := &config.ProfileFile{
		Sites: map[string]models.ScanOptionsInput{
			"example.com": {Stealth: &stealth, Headers: map[string]string{"X-Env": "staging"}},
		},
	}
	e := newEnv(t, func(_ *config.Config, d *Deps) { d.Profiles = profiles })

	e.do(http.MethodPost, "/api/v1/scan", `{"url":"https://www.example.com","options":{"headers":{"X-Req":"1"}}}`)

	calls := e.scanner.calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d", len(calls))
	}
	got := calls[0]
	if !got.Stealth || got.Headers["X-Env"] != "staging" || got.Headers["X-Req"] != "1" {
		t.Errorf("options = %+v", got)
	}
}

func TestListScans(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 12 {
		_ = e.store.Save(t.Context(), &models.ScanRecord{
			ID:        store.NewID(),
			URL:       "https://example.com",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Status:    models.StatusCompleted,
		})
	}

	resp := decode[models.ScanListResponse](t, e.do(http.MethodGet, "/api/v1/scans", nil))
	if resp.Total != 12 || len(resp.Scans) != 10 || resp.Limit != 10 || resp.Offset != 0 {
		t.Errorf("default page = total %d, len %d, limit %d", resp.Total, len(resp.Scans), resp.Limit)
	}

	resp = decode[models.ScanListResponse](t, e.do(http.MethodGet, "/api/v1/scans?limit=5&offset=10", nil))
	if len(resp.Scans) != 2 {
		t.Errorf("last page len = %d", len(resp.Scans))
	}

	resp = decode[models.ScanListResponse](t, e.do(http.MethodGet, "/api/v1/scans?limit=1000", nil))
	if resp.Limit != 100 {
		t.Errorf("limit should be capped, got %d", resp.Limit)
	}

	for _, q := range []string{"limit=0", "limit=x", "offset=-1"} {
		if w := e.do(http.MethodGet, "/api/v1/scans?"+q, nil); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", q, w.Code)
		}
	}
}

func TestGetScan_NotFound(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil)
	w := e.do(http.MethodGet, "/api/v1/scans/scan_missing", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if resp := decode[models.ErrorResponse](t, w); resp.Error.Code != models.ErrCodeNotFound {
		t.Errorf("code = %s", resp.Error.Code)
	}
}

func TestShare(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil)
	scan := decode[models.ScanResponse](t, e.do(http.MethodPost, "/api/v1/scan", `{"url":"https://example.com"}`)).Scan

	share := decode[models.ShareResponse](t, e.do(http.MethodPost, "/api/v1/scans/"+scan.ID+"/share", nil))
	if !share.IsPublic || share.ShareToken == "" || share.ShareURL != "/api/v1/shared/"+share.ShareToken {
		t.Fatalf("share = %+v", share)
	}

	// Shared reports need no API key.
	req := httptest.NewRequest(http.MethodGet, share.ShareURL, nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("shared status = %d", w.Code)
	}
	if got := decode[models.ScanResponse](t, w); got.Scan.ID != scan.ID || got.Scan.ShareToken != "" {
		t.Errorf("shared scan = %+v", got.Scan)
	}

	unshare := decode[models.ShareResponse](t, e.do(http.MethodPost, "/api/v1/scans/"+scan.ID+"/share", nil))
	if unshare.IsPublic || unshare.ShareURL != "" {
		t.Errorf("unshare = %+v", unshare)
	}
	if w := e.do(http.MethodGet, share.ShareURL, nil); w.Code != http.StatusNotFound {
		t.Errorf("unshared status = %d", w.Code)
	}

	if w := e.do(http.MethodPost, "/api/v1/scans/scan_missing/share", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing share status = %d", w.Code)
	}
}

func TestSuggestFix(t *testing.T) {
	t.Parallel()

	bug := `{"bug":{"type":"console_error","severity":"high","message":"boom"}}`

	t.Run("not configured", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t, nil)
		w := e.do(http.MethodPost, "/api/v1/suggest-fix", bug)
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d", w.Code)
		}
	})

	t.Run("configured", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t, func(_ *config.Config, d *Deps) { d.Analyzer = &fakeAnalyzer{enabled: true} })
		w := e.do(http.MethodPost, "/api/v1/suggest-fix", bug)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		resp := decode[models.FixResponse](t, w)
		if resp.Suggestion == nil || resp.Suggestion.Bug.Type != models.BugConsoleError {
			t.Errorf("suggestion = %+v", resp.Suggestion)
		}
	})

	t.Run("missing bug", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t, func(_ *config.Config, d *Deps) { d.Analyzer = &fakeAnalyzer{enabled: true} })
		if w := e.do(http.MethodPost, "/api/v1/suggest-fix", `{}`); w.Code != http.StatusBadRequest {
			t.Errorf("status = %d", w.Code)
		}
	})
}

func TestStats(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil)
	e.do(http.MethodPost, "/api/v1/scan", `{"url":"https://example.com"}`)
	e.do(http.MethodPost, "/api/v1/scan", `{"url":"https://example.org"}`)

	st := decode[models.Stats](t, e.do(http.MethodGet, "/api/v1/stats", nil))
	if st.TotalScans != 2 || st.TotalBugs != 2 || st.SeverityBreakdown.High != 2 || st.AvgBugsPerScan != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	e := newEnv(t, func(c *config.Config, _ *Deps) {
		c.RateLimit = config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}
	})

	for i := range 2 {
		if w := e.do(http.MethodGet, "/api/v1/stats", nil); w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, w.Code)
		}
	}
	w := e.do(http.MethodGet, "/api/v1/stats", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
}

func TestScreenshots(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "scan_1.png"), []byte("png"), 0o600); err != nil {
		t.Fatal(err)
	}
	e := newEnv(t, func(_ *config.Config, d *Deps) { d.ScreenshotDir = dir })

	req := httptest.NewRequest(http.MethodGet, "/screenshots/scan_1.png", nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "png" {
		t.Errorf("status = %d, body = %q", w.Code, w.Body)
	}
}

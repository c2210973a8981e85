package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/use-agent/bughunter/browser"
	"github.com/use-agent/bughunter/config"
	"github.com/use-agent/bughunter/models"
)

func newTestScanner(sess *fakeSession, opts ...Option) (*Scanner, *fakeLauncher) {
	l := &fakeLauncher{session: sess}
	return New(l, opts...), l
}

func TestScan_CleanPage(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	shots := &memShots{}
	s, l := newTestScanner(sess, WithScreenshotStore(shots))

	res, err := s.Scan(context.Background(), "https://example.com", models.DefaultScanOptions())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(res.Bugs) != 0 {
		t.Errorf("expected no bugs, got %+v", res.Bugs)
	}
	if res.Summary.TotalBugs != 0 {
		t.Errorf("TotalBugs = %d", res.Summary.TotalBugs)
	}
	if !res.PageInfo.HasH1 || res.PageInfo.LinkCount != 1 {
		t.Errorf("PageInfo = %+v", res.PageInfo)
	}
	if len(res.Links) != 1 || res.Links[0].Href != "https://example.com/a" {
		t.Errorf("Links = %+v", res.Links)
	}
	if res.Screenshot == "" || shots.saved[res.Screenshot] == nil {
		t.Errorf("screenshot not stored: ref %q", res.Screenshot)
	}
	if !sess.isClosed() {
		t.Error("session must be closed")
	}

	if l.gotCfg.ViewportWidth != 1920 || l.gotCfg.ViewportHeight != 1080 {
		t.Errorf("viewport = %dx%d", l.gotCfg.ViewportWidth, l.gotCfg.ViewportHeight)
	}
	if l.gotCfg.UserAgent != browser.DefaultUserAgent {
		t.Errorf("UserAgent = %q", l.gotCfg.UserAgent)
	}
}

func TestScan_SubscribesBeforeNavigating(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	s, _ := newTestScanner(sess)
	if _, err := s.Scan(context.Background(), "https://example.com", models.DefaultScanOptions()); err != nil {
		t.Fatal(err)
	}
	if len(sess.order) < 2 || sess.order[0] != "subscribe" || sess.order[1] != "navigate" {
		t.Errorf("call order = %v", sess.order)
	}
	if last := sess.order[len(sess.order)-1]; last != "close" {
		t.Errorf("last call = %q, want close", last)
	}
}

func TestScan_HTTP500(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	sess.status = 500
	s, _ := newTestScanner(sess)

	res, err := s.Scan(context.Background(), "https://example.com", models.DefaultScanOptions())
	if err != nil {
		t.Fatalf("an HTTP error status must not fail the scan: %v", err)
	}
	if len(res.Bugs) != 1 {
		t.Fatalf("bugs = %+v", res.Bugs)
	}
	b := res.Bugs[0]
	if b.Type != models.BugHTTPError || b.Severity != models.SeverityCritical {
		t.Errorf("bug = %+v", b)
	}
	if b.Details["statusCode"] != 500 {
		t.Errorf("statusCode = %v", b.Details["statusCode"])
	}
	if b.Details["statusText"] != "Internal Server Error" {
		t.Errorf("statusText = %v", b.Details["statusText"])
	}
}

func TestScan_HTTP404IsHigh(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	sess.status = 404
	s, _ := newTestScanner(sess)

	res, err := s.Scan(context.Background(), "https://example.com/missing", models.DefaultScanOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Bugs) != 1 || res.Bugs[0].Severity != models.SeverityHigh {
		t.Errorf("bugs = %+v", res.Bugs)
	}
}

func TestScan_BugOrder(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	sess.status = 503
	sess.title = "Home"
	sess.loadTime = 4500
	sess.navEvents = []browser.Event{
		{Kind: browser.EventConsole, Level: browser.LevelError, Text: "boom"},
		{Kind: browser.EventRequestFailed, URL: "https://example.com/app.js", Reason: "net::ERR_FAILED"},
	}
	s, _ := newTestScanner(sess)

	res, err := s.Scan(context.Background(), "https://example.com", models.DefaultScanOptions())
	if err != nil {
		t.Fatal(err)
	}

	want := []models.BugType{
		models.BugConsoleError,
		models.BugNetworkError,
		models.BugHTTPError,
		models.BugSEOTitleLength,
		models.BugPerformanceSlowLoad,
	}
	if len(res.Bugs) != len(want) {
		t.Fatalf("got %d bugs, want %d: %+v", len(res.Bugs), len(want), res.Bugs)
	}
	for i, typ := range want {
		if res.Bugs[i].Type != typ {
			t.Errorf("bug[%d] = %s, want %s", i, res.Bugs[i].Type, typ)
		}
	}
	if res.Summary.TotalBugs != len(want) {
		t.Errorf("summary total = %d", res.Summary.TotalBugs)
	}
}

func TestScan_ChecksDisabled(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	sess.title = ""
	sess.html = `<html><body><img src="a.png"></body></html>`
	sess.loadTime = 9000
	s, _ := newTestScanner(sess)

	opts := models.DefaultScanOptions()
	opts.CheckSEO = false
	opts.CheckAccessibility = false
	opts.CheckPerformance = false

	res, err := s.Scan(context.Background(), "https://example.com", opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Bugs) != 0 {
		t.Errorf("expected no bugs with all checks off, got %+v", res.Bugs)
	}
	for _, step := range sess.order {
		if step == "eval:timing" {
			t.Error("timing must not be read with performance disabled")
		}
	}
}

func TestScan_NavigationTimeout(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	sess.navBlock = true
	s, _ := newTestScanner(sess)

	opts := models.DefaultScanOptions()
	opts.Timeout = 20 * time.Millisecond

	res, err := s.Scan(context.Background(), "https://slow.example", opts)
	if res != nil {
		t.Error("no partial result on failure")
	}
	var se *models.ScanError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want ScanError", err)
	}
	if se.Code != models.ErrCodeTimeout {
		t.Errorf("Code = %s, want %s", se.Code, models.ErrCodeTimeout)
	}
	var ne *models.NavigationError
	if !errors.As(err, &ne) || !ne.Timeout {
		t.Errorf("expected timed-out NavigationError, got %v", err)
	}
	if !sess.isClosed() {
		t.Error("session leaked after navigation timeout")
	}
}

func TestScan_NavigationFailure(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	sess.navErr = errors.New("net::ERR_NAME_NOT_RESOLVED")
	s, _ := newTestScanner(sess)

	_, err := s.Scan(context.Background(), "https://nope.invalid", models.DefaultScanOptions())
	var se *models.ScanError
	if !errors.As(err, &se) || se.Code != models.ErrCodeNavigation {
		t.Errorf("error = %v, want %s", err, models.ErrCodeNavigation)
	}
	if se != nil && se.URL != "https://nope.invalid" {
		t.Errorf("URL = %q", se.URL)
	}
	if !sess.isClosed() {
		t.Error("session leaked after navigation failure")
	}
}

func TestScan_LaunchFailure(t *testing.T) {
	t.Parallel()

	l := &fakeLauncher{err: errors.New("chromium not found")}
	s := New(l)

	_, err := s.Scan(context.Background(), "https://example.com", models.DefaultScanOptions())
	var se *models.ScanError
	if !errors.As(err, &se) || se.Code != models.ErrCodeLaunch {
		t.Fatalf("error = %v, want %s", err, models.ErrCodeLaunch)
	}
	var le *models.LaunchError
	if !errors.As(err, &le) {
		t.Error("expected LaunchError in chain")
	}
}

func TestScan_InspectionFailureClosesSession(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	sess.evalErr = map[string]error{"broken_images": errors.New("execution context was destroyed")}
	s, _ := newTestScanner(sess)

	_, err := s.Scan(context.Background(), "https://example.com", models.DefaultScanOptions())
	var se *models.ScanError
	if !errors.As(err, &se) || se.Code != models.ErrCodeInspection {
		t.Errorf("error = %v, want %s", err, models.ErrCodeInspection)
	}
	if !sess.isClosed() {
		t.Error("session leaked after inspection failure")
	}
}

func TestScan_ScreenshotFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(*fakeSession, *memShots)
	}{
		{"capture fails", func(s *fakeSession, _ *memShots) { s.shotErr = errors.New("capture timeout") }},
		{"store fails", func(_ *fakeSession, m *memShots) { m.err = errors.New("disk full") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sess := newFakeSession()
			shots := &memShots{}
			tt.setup(sess, shots)
			s, _ := newTestScanner(sess, WithScreenshotStore(shots))

			res, err := s.Scan(context.Background(), "https://example.com", models.DefaultScanOptions())
			if err != nil {
				t.Fatalf("Scan() error = %v", err)
			}
			if res.Screenshot != "" {
				t.Errorf("Screenshot = %q, want empty", res.Screenshot)
			}
		})
	}
}

func TestScan_InvalidURL(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "example.com", "ftp://example.com/file", "https://", "javascript:alert(1)"} {
		t.Run(raw, func(t *testing.T) {
			t.Parallel()

			s, l := newTestScanner(newFakeSession())
			_, err := s.Scan(context.Background(), raw, models.DefaultScanOptions())
			var se *models.ScanError
			if !errors.As(err, &se) || se.Code != models.ErrCodeInvalidInput {
				t.Errorf("error = %v, want %s", err, models.ErrCodeInvalidInput)
			}
			if l.launched != 0 {
				t.Error("no session should be launched for an invalid URL")
			}
		})
	}
}

func TestScan_PassesSessionOptions(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	s, l := newTestScanner(sess, WithIdentity(1280, 720, "custom-agent"))

	opts := models.DefaultScanOptions()
	opts.Stealth = true
	opts.Headers = map[string]string{"Authorization": "Bearer x"}
	if _, err := s.Scan(context.Background(), "https://example.com", opts); err != nil {
		t.Fatal(err)
	}
	if l.gotCfg.ViewportWidth != 1280 || l.gotCfg.UserAgent != "custom-agent" {
		t.Errorf("identity = %+v", l.gotCfg)
	}
	if !l.gotCfg.Stealth || l.gotCfg.Headers["Authorization"] != "Bearer x" {
		t.Errorf("session options = %+v", l.gotCfg)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	s := New(&fakeLauncher{}, WithConfig(config.ScannerConfig{
		DefaultTimeout: 10 * time.Second,
		MaxTimeout:     60 * time.Second,
	}))

	tests := []struct {
		in, want time.Duration
	}{
		{0, 10 * time.Second},
		{5 * time.Second, 5 * time.Second},
		{5 * time.Minute, 60 * time.Second},
	}
	for _, tt := range tests {
		got := s.normalize(models.ScanOptions{Timeout: tt.in}).Timeout
		if got != tt.want {
			t.Errorf("normalize(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/bughunter/config"
	"github.com/ysmood/gson"
)

// ErrAlreadySubscribed is returned by a second Subscribe on one session.
var ErrAlreadySubscribed = errors.New("browser: session already has an event subscription")

// RodLauncher owns one Chromium process and hands out an incognito
// browser context per session. It is safe for concurrent use.
type RodLauncher struct {
	browser  *rod.Browser
	launcher *launcher.Launcher // nil when attached to a remote browser
	logger   *slog.Logger
	active   atomic.Int32
}

// NewRodLauncher launches Chromium, or connects to cfg.ControlURL when set.
func NewRodLauncher(cfg config.BrowserConfig, logger *slog.Logger) (*RodLauncher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	controlURL := cfg.ControlURL
	var l *launcher.Launcher
	if controlURL == "" {
		l = launcher.New().
			Headless(cfg.Headless).
			NoSandbox(cfg.NoSandbox)

		if cfg.BrowserBin != "" {
			l = l.Bin(cfg.BrowserBin)
		}
		if cfg.Proxy != "" {
			l = l.Proxy(cfg.Proxy)
		}

		l.Set(flags.Flag("disable-setuid-sandbox"))
		l.Set(flags.Flag("disable-dev-shm-usage"))
		l.Set(flags.Flag("disable-extensions"))
		l.Set(flags.Flag("disable-component-update"))
		l.Set(flags.Flag("disable-default-apps"))
		l.Set(flags.Flag("disable-background-timer-throttling"))
		l.Set(flags.Flag("disable-renderer-backgrounding"))
		l.Set(flags.Flag("no-first-run"))

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chromium: %w", err)
		}
		controlURL = u
		logger.Info("browser launched", "controlURL", controlURL)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	return &RodLauncher{browser: b, launcher: l, logger: logger}, nil
}

// Active returns the number of open sessions.
func (l *RodLauncher) Active() int {
	return int(l.active.Load())
}

// Launch creates an incognito context with one configured page.
func (l *RodLauncher) Launch(ctx context.Context, cfg SessionConfig) (Session, error) {
	incognito, err := l.browser.Context(ctx).Incognito()
	if err != nil {
		return nil, fmt.Errorf("create incognito context: %w", err)
	}
	// The context above only bounds creation; the session lives until Close.
	incognito = incognito.Context(context.Background())

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}

	s := &rodSession{browser: incognito, page: page, logger: l.logger, release: func() { l.active.Add(-1) }}
	l.active.Add(1)

	if err := s.configure(ctx, cfg); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Close shuts the browser down. Open sessions become unusable.
func (l *RodLauncher) Close() error {
	l.logger.Info("closing browser", "activeSessions", l.Active())
	if l.launcher == nil {
		// Attached to a browser we do not own: only drop the connection.
		return nil
	}
	err := l.browser.Close()
	l.launcher.Cleanup()
	return err
}

type rodSession struct {
	browser *rod.Browser // incognito context
	page    *rod.Page
	logger  *slog.Logger
	release func()

	subscribed atomic.Bool
	closeOnce  sync.Once
	closeErr   error
}

// configure applies viewport, identity, stealth and headers. Everything
// here must happen before the first navigation to take effect.
func (s *rodSession) configure(ctx context.Context, cfg SessionConfig) error {
	p := s.page.Context(ctx)

	width, height := cfg.ViewportWidth, cfg.ViewportHeight
	if width <= 0 || height <= 0 {
		width, height = DefaultViewportWidth, DefaultViewportHeight
	}
	if err := p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("set viewport: %w", err)
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
		return fmt.Errorf("set user agent: %w", err)
	}

	if cfg.Stealth {
		if _, err := p.EvalOnNewDocument(stealth.JS); err != nil {
			s.logger.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}

	if len(cfg.Headers) > 0 {
		if err := (proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(cfg.Headers)}).Call(p); err != nil {
			return fmt.Errorf("set extra headers: %w", err)
		}
	}
	return nil
}

func (s *rodSession) Subscribe(ctx context.Context, buffer int) (<-chan Event, error) {
	if !s.subscribed.CompareAndSwap(false, true) {
		return nil, ErrAlreadySubscribed
	}

	out := make(chan Event, buffer)
	emit := func(e Event) {
		e.Time = time.Now()
		select {
		case out <- e:
		case <-ctx.Done():
		}
	}

	// Request URLs by ID; LoadingFailed only carries the ID. All callbacks
	// run on the single goroutine driving wait, so no locking is needed.
	pending := make(map[proto.NetworkRequestID]string)

	wait := s.page.Context(ctx).EachEvent(
		func(e *proto.RuntimeConsoleAPICalled) {
			level := consoleLevel(e.Type)
			if level == "" {
				return
			}
			emit(Event{Kind: EventConsole, Level: level, Text: consoleText(e.Args)})
		},
		// Messages the browser logs itself, such as failed subresource
		// loads, CSP violations and mixed content.
		func(e *proto.LogEntryAdded) {
			level := logLevel(e.Entry)
			if level == "" {
				return
			}
			emit(Event{Kind: EventConsole, Level: level, Text: e.Entry.Text})
		},
		func(e *proto.NetworkRequestWillBeSent) {
			if e.Request != nil {
				pending[e.RequestID] = e.Request.URL
			}
		},
		func(e *proto.NetworkLoadingFinished) {
			delete(pending, e.RequestID)
		},
		func(e *proto.NetworkLoadingFailed) {
			u := pending[e.RequestID]
			delete(pending, e.RequestID)
			emit(Event{Kind: EventRequestFailed, URL: u, Reason: e.ErrorText})
		},
		func(e *proto.RuntimeExceptionThrown) {
			msg, stack := exceptionText(e.ExceptionDetails)
			emit(Event{Kind: EventException, Text: msg, Stack: stack})
		},
	)

	go func() {
		defer close(out)
		wait()
	}()
	return out, nil
}

func (s *rodSession) Navigate(ctx context.Context, url string, idle time.Duration) (*Response, error) {
	p := s.page.Context(ctx)

	// The idle waiter must be registered before Navigate or in-flight
	// requests are missed and the wait returns instantly.
	waitIdle := p.WaitRequestIdle(idle, nil, nil, nil)

	if err := p.Navigate(url); err != nil {
		return nil, err
	}
	waitIdle()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.WaitLoad(); err != nil {
		return nil, err
	}

	resp := &Response{FinalURL: url}
	var nav struct {
		Status int    `json:"status"`
		URL    string `json:"url"`
	}
	if err := s.Eval(ctx, navigationJS, &nav); err == nil {
		resp.Status = nav.Status
		if nav.URL != "" {
			resp.FinalURL = nav.URL
		}
	} else {
		s.logger.Debug("navigation status unavailable", "url", url, "error", err)
	}
	return resp, nil
}

// navigationJS reads the main document status without CDP listeners.
const navigationJS = `() => {
	let status = 0;
	try {
		const entries = performance.getEntriesByType("navigation");
		if (entries.length > 0) status = entries[0].responseStatus || 0;
	} catch (e) {}
	return { status: status, url: window.location.href };
}`

func (s *rodSession) Eval(ctx context.Context, js string, out any) error {
	res, err := s.page.Context(ctx).Eval(js)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal([]byte(res.Value.JSON("", "")), out)
}

func (s *rodSession) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	return s.page.Context(ctx).Screenshot(fullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

// Close uses the session's own context, never a request context, so it
// still succeeds after a scan deadline has expired.
func (s *rodSession) Close() error {
	s.closeOnce.Do(func() {
		if err := s.page.Close(); err != nil {
			s.logger.Debug("close page", "error", err)
		}
		s.closeErr = s.browser.Close()
		s.release()
	})
	return s.closeErr
}

func consoleLevel(t proto.RuntimeConsoleAPICalledType) string {
	switch t {
	case proto.RuntimeConsoleAPICalledTypeError:
		return LevelError
	case proto.RuntimeConsoleAPICalledTypeWarning:
		return LevelWarning
	default:
		return ""
	}
}

// logLevel maps a browser log entry to a console level. Worker entries are
// skipped; workers report through their own targets.
func logLevel(e *proto.LogLogEntry) string {
	if e == nil || e.Source == proto.LogLogEntrySourceWorker {
		return ""
	}
	switch e.Level {
	case proto.LogLogEntryLevelError:
		return LevelError
	case proto.LogLogEntryLevelWarning:
		return LevelWarning
	default:
		return ""
	}
}

// consoleText joins the call arguments the way the devtools console prints them.
func consoleText(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		switch {
		case a.Type == proto.RuntimeRemoteObjectTypeString:
			parts = append(parts, a.Value.Str())
		case a.UnserializableValue != "":
			parts = append(parts, string(a.UnserializableValue))
		case a.Description != "":
			parts = append(parts, a.Description)
		default:
			parts = append(parts, a.Value.JSON("", ""))
		}
	}
	return strings.Join(parts, " ")
}

// exceptionText splits an uncaught exception into message and stack.
func exceptionText(d *proto.RuntimeExceptionDetails) (message, stack string) {
	if d == nil {
		return "Unknown error", ""
	}

	message = d.Text
	if ex := d.Exception; ex != nil {
		switch {
		case ex.Description != "":
			first, _, _ := strings.Cut(ex.Description, "\n")
			message = trimErrorName(first)
			if strings.Contains(ex.Description, "\n") {
				stack = ex.Description
			}
		case ex.Type == proto.RuntimeRemoteObjectTypeString:
			message = ex.Value.Str()
		}
	}

	if stack == "" && d.StackTrace != nil {
		var sb strings.Builder
		for _, f := range d.StackTrace.CallFrames {
			name := f.FunctionName
			if name == "" {
				name = "<anonymous>"
			}
			fmt.Fprintf(&sb, "    at %s (%s:%d:%d)\n", name, f.URL, f.LineNumber+1, f.ColumnNumber+1)
		}
		stack = strings.TrimRight(sb.String(), "\n")
	}
	return message, stack
}

// trimErrorName turns "TypeError: x is undefined" into "x is undefined".
func trimErrorName(line string) string {
	name, rest, ok := strings.Cut(line, ": ")
	if ok && strings.HasSuffix(name, "Error") && !strings.Contains(name, " ") {
		return rest
	}
	return line
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

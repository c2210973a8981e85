// Package browser is the automation boundary the scanner drives: launching
// isolated sessions, navigating, streaming runtime events, evaluating
// scripts, capturing screenshots and closing.
package browser

import (
	"context"
	"time"
)

// Default session identity.
const (
	DefaultViewportWidth  = 1920
	DefaultViewportHeight = 1080
	DefaultUserAgent      = "BugHunterAI/1.0 (Automated QA Testing)"
)

// SessionConfig describes one isolated browsing session.
type SessionConfig struct {
	ViewportWidth  int
	ViewportHeight int
	UserAgent      string
	Stealth        bool
	Headers        map[string]string
}

// Launcher starts isolated sessions. Implementations must be safe for
// concurrent use; each Session is owned by a single caller.
type Launcher interface {
	Launch(ctx context.Context, cfg SessionConfig) (Session, error)
}

// Session is one isolated browser context with a single page.
type Session interface {
	// Subscribe streams runtime events into a channel with the given
	// buffer. The channel is closed once ctx is cancelled or the session
	// closes. Only one subscription per session is supported.
	Subscribe(ctx context.Context, buffer int) (<-chan Event, error)

	// Navigate loads url and waits until the network has been idle for
	// idle, bounded by ctx.
	Navigate(ctx context.Context, url string, idle time.Duration) (*Response, error)

	// Eval runs a JS function expression and decodes its JSON result into out.
	Eval(ctx context.Context, js string, out any) error

	// Screenshot captures a PNG of the viewport or the full page.
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)

	// Close releases the page and its browser context. It is safe to call
	// more than once.
	Close() error
}

// Response describes the main document load.
type Response struct {
	Status     int
	StatusText string
	FinalURL   string
}

// EventKind discriminates Event.
type EventKind int

const (
	EventConsole EventKind = iota
	EventRequestFailed
	EventException
)

func (k EventKind) String() string {
	switch k {
	case EventConsole:
		return "console"
	case EventRequestFailed:
		return "request_failed"
	case EventException:
		return "exception"
	default:
		return "unknown"
	}
}

// Console levels reported in Event.Level.
const (
	LevelError   = "error"
	LevelWarning = "warning"
)

// Event is a normalized runtime signal from the page.
type Event struct {
	Kind EventKind
	Time time.Time

	// Console: Level and Text.
	Level string
	Text  string

	// RequestFailed: URL and Reason (empty when the browser gave none).
	URL    string
	Reason string

	// Exception: Text holds the message, Stack the trace if known.
	Stack string
}

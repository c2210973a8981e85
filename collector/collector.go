// Package collector turns a session's runtime events into bugs.
//
// A Collector owns the bug buffer of exactly one scan. Events arrive over a
// bounded channel from the browser session and are appended by a single
// goroutine in arrival order, so no locking is involved until Detach hands
// the buffer back.
package collector

import (
	"context"
	"log/slog"
	"sync"

	"github.com/use-agent/bughunter/browser"
	"github.com/use-agent/bughunter/models"
)

// DefaultBuffer is the event queue capacity when none is configured.
const DefaultBuffer = 256

const (
	locationConsole = "Browser Console"
	locationRuntime = "Page Runtime"
	unknownFailure  = "Unknown error"
)

// Subscriber is the part of browser.Session the collector needs.
type Subscriber interface {
	Subscribe(ctx context.Context, buffer int) (<-chan browser.Event, error)
}

// Collector accumulates runtime-signal bugs for one scan.
type Collector struct {
	cancel context.CancelFunc
	done   chan struct{}
	logger *slog.Logger

	bugs []models.Bug // owned by the run goroutine until done is closed

	once   sync.Once
	result []models.Bug
}

// Option configures a Collector.
type Option func(*options)

type options struct {
	buffer int
	logger *slog.Logger
}

// WithBuffer sets the event queue capacity.
func WithBuffer(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.buffer = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Attach subscribes to s. It must be called before navigation starts so
// that no early event is lost. The subscription ends when Detach is called
// or ctx is cancelled.
func Attach(ctx context.Context, s Subscriber, opts ...Option) (*Collector, error) {
	o := options{buffer: DefaultBuffer, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	subCtx, cancel := context.WithCancel(ctx)
	events, err := s.Subscribe(subCtx, o.buffer)
	if err != nil {
		cancel()
		return nil, err
	}

	c := &Collector{
		cancel: cancel,
		done:   make(chan struct{}),
		logger: o.logger,
	}
	go c.run(events)
	return c, nil
}

func (c *Collector) run(events <-chan browser.Event) {
	defer close(c.done)
	for ev := range events {
		bug, ok := Normalize(ev)
		if !ok {
			continue
		}
		c.bugs = append(c.bugs, bug)
	}
}

// Detach ends the subscription, waits for already queued events to be
// processed and returns the bugs in arrival order. Later calls return the
// same slice.
func (c *Collector) Detach() []models.Bug {
	c.once.Do(func() {
		c.cancel()
		<-c.done
		c.result = c.bugs
		c.logger.Debug("signal collector detached", "bugs", len(c.result))
	})
	return c.result
}

// Normalize maps one event to a bug. Console levels other than error and
// warning yield no bug.
func Normalize(ev browser.Event) (models.Bug, bool) {
	switch ev.Kind {
	case browser.EventConsole:
		switch ev.Level {
		case browser.LevelError:
			return models.NewBug(models.BugConsoleError, ev.Text, ev.Time).WithLocation(locationConsole), true
		case browser.LevelWarning:
			return models.NewBug(models.BugConsoleWarning, ev.Text, ev.Time).WithLocation(locationConsole), true
		}
		return models.Bug{}, false

	case browser.EventRequestFailed:
		reason := ev.Reason
		if reason == "" {
			reason = unknownFailure
		}
		return models.NewBug(models.BugNetworkError, "Failed to load: "+ev.URL+" ("+reason+")", ev.Time).
			WithLocation(ev.URL).
			WithDetails(models.Details{"failureText": reason}), true

	case browser.EventException:
		b := models.NewBug(models.BugPageError, ev.Text, ev.Time).WithLocation(locationRuntime)
		if ev.Stack != "" {
			b = b.WithDetails(models.Details{"stack": ev.Stack})
		}
		return b, true
	}
	return models.Bug{}, false
}

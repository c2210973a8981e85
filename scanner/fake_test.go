package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/bughunter/browser"
)

// fakeLauncher hands out one prepared session per Launch.
type fakeLauncher struct {
	mu       sync.Mutex
	session  *fakeSession
	err      error
	launched int
	gotCfg   browser.SessionConfig
}

func (l *fakeLauncher) Launch(_ context.Context, cfg browser.SessionConfig) (browser.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launched++
	l.gotCfg = cfg
	if l.err != nil {
		return nil, l.err
	}
	return l.session, nil
}

// fakeSession serves a canned page. Script answers are matched by a
// fragment of the script text.
type fakeSession struct {
	mu     sync.Mutex
	ch     chan browser.Event
	closed bool
	subbed bool

	// navEvents are emitted while Navigate runs.
	navEvents []browser.Event
	status    int
	navErr    error
	navBlock  bool

	title    string
	html     string
	broken   string // JSON array of {src, alt}
	contrast int
	loadTime float64

	evalErr map[string]error
	shot    []byte
	shotErr error

	closeCount int
	order      []string
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		status:   200,
		title:    "Example storefront with a reasonable title",
		html:     `<html><head><meta name="description" content="d"></head><body><h1>Hi</h1><a href="/a">A</a></body></html>`,
		broken:   `[]`,
		loadTime: 900,
		shot:     []byte("png"),
	}
}

func (s *fakeSession) record(step string) {
	s.mu.Lock()
	s.order = append(s.order, step)
	s.mu.Unlock()
}

func (s *fakeSession) Subscribe(ctx context.Context, buffer int) (<-chan browser.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = append(s.order, "subscribe")
	s.subbed = true
	s.ch = make(chan browser.Event, buffer+len(s.navEvents))
	go func() {
		<-ctx.Done()
		s.mu.Lock()
		close(s.ch)
		s.ch = nil
		s.mu.Unlock()
	}()
	return s.ch, nil
}

func (s *fakeSession) Navigate(ctx context.Context, _ string, _ time.Duration) (*browser.Response, error) {
	s.record("navigate")
	s.mu.Lock()
	for _, ev := range s.navEvents {
		if s.ch != nil {
			s.ch <- ev
		}
	}
	s.mu.Unlock()

	if s.navBlock {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.navErr != nil {
		return nil, s.navErr
	}
	return &browser.Response{Status: s.status}, nil
}

func (s *fakeSession) Eval(ctx context.Context, js string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var key, raw string
	switch {
	case strings.Contains(js, "outerHTML"):
		key = "snapshot"
		b, _ := json.Marshal(map[string]string{"title": s.title, "url": "https://example.com/", "html": s.html})
		raw = string(b)
	case strings.Contains(js, "document.images"):
		key, raw = "broken_images", s.broken
	case strings.Contains(js, "getComputedStyle"):
		key = "contrast"
		b, _ := json.Marshal(s.contrast)
		raw = string(b)
	case strings.Contains(js, "loadEventEnd"):
		key = "timing"
		b, _ := json.Marshal(map[string]float64{"loadTime": s.loadTime})
		raw = string(b)
	default:
		return errors.New("unexpected script")
	}
	s.record("eval:" + key)
	if err := s.evalErr[key]; err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), out)
}

func (s *fakeSession) Screenshot(context.Context, bool) ([]byte, error) {
	s.record("screenshot")
	return s.shot, s.shotErr
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.closeCount++
	s.order = append(s.order, "close")
	return nil
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// memShots records saved screenshots.
type memShots struct {
	mu    sync.Mutex
	saved map[string][]byte
	err   error
}

func (m *memShots) Save(_ context.Context, name string, png []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	m.saved[name] = png
	return name, nil
}

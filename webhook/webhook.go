// Package webhook delivers signed scan notifications.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/use-agent/bughunter/config"
)

// Event types.
const (
	EventScanCompleted = "scan.completed"
	EventScanFailed    = "scan.failed"
)

// SignatureHeader carries "sha256=<hex>" of the request body.
const SignatureHeader = "X-Bughunter-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string `json:"type"`
	ScanID    string `json:"scan_id"`
	URL       string `json:"url"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// NewEvent stamps an event with the current time.
func NewEvent(typ, scanID, url string, data any) *Event {
	return &Event{Type: typ, ScanID: scanID, URL: url, Timestamp: time.Now().Unix(), Data: data}
}

// Notifier posts events to one endpoint. A nil or unconfigured Notifier
// drops every event.
type Notifier struct {
	url    string
	secret string
	client *http.Client
	delays []time.Duration
	logger *slog.Logger
	wg     sync.WaitGroup
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithHTTPClient replaces the delivery client.
func WithHTTPClient(c *http.Client) Option {
	return func(n *Notifier) { n.client = c }
}

// WithRetryDelays sets the wait before each attempt. The first entry is
// normally zero.
func WithRetryDelays(d ...time.Duration) Option {
	return func(n *Notifier) { n.delays = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// New creates a Notifier for cfg.URL.
func New(cfg config.WebhookConfig, opts ...Option) *Notifier {
	n := &Notifier{
		url:    cfg.URL,
		secret: cfg.Secret,
		client: &http.Client{Timeout: 10 * time.Second},
		delays: []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Enabled reports whether events are delivered anywhere.
func (n *Notifier) Enabled() bool { return n != nil && n.url != "" }

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Deliver sends one event synchronously. The body is signed when a secret
// is configured.
func (n *Notifier) Deliver(ctx context.Context, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "BugHunter-Webhook/1.0")
	if n.secret != "" {
		req.Header.Set(SignatureHeader, Sign(n.secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Notify delivers event in the background, retrying on failure.
func (n *Notifier) Notify(event *Event) {
	if !n.Enabled() {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.deliverWithRetry(event)
	}()
}

// Wait blocks until every pending delivery has finished.
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}

func (n *Notifier) deliverWithRetry(event *Event) {
	log := n.logger.With("event", event.Type, "scan_id", event.ScanID)
	for attempt, delay := range n.delays {
		if delay > 0 {
			time.Sleep(delay)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := n.Deliver(ctx, event)
		cancel()
		if err == nil {
			log.Info("webhook delivered", "attempt", attempt+1)
			return
		}
		log.Warn("webhook delivery failed", "attempt", attempt+1, "error", err)
	}
	log.Error("webhook delivery exhausted all retries")
}

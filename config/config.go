package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// AppName names the XDG data and config subdirectories.
const AppName = "bughunter"

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Browser    BrowserConfig
	Scanner    ScannerConfig
	Screenshot ScreenshotConfig
	Store      StoreConfig
	AI         AIConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Webhook    WebhookConfig
	Log        LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 3000
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Chromium instance sessions are carved from.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: true

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy routes all browser traffic through this proxy.
	Proxy string

	// ControlURL attaches to an already running browser instead of launching one.
	ControlURL string

	ViewportWidth  int    // default: 1920
	ViewportHeight int    // default: 1080
	UserAgent      string // default: "BugHunterAI/1.0 (Automated QA Testing)"
}

// ScannerConfig controls scan timing and concurrency.
type ScannerConfig struct {
	// DefaultTimeout is the navigation timeout when a request sets none.
	DefaultTimeout time.Duration // default: 30s

	// MaxTimeout caps the navigation timeout a client may ask for.
	MaxTimeout time.Duration // default: 120s

	// IdleWindow is how long the network must be quiet to count as idle.
	IdleWindow time.Duration // default: 500ms

	// InspectionTimeout bounds the post-navigation inspection phase.
	InspectionTimeout time.Duration // default: 20s

	// ScreenshotTimeout bounds the screenshot capture.
	ScreenshotTimeout time.Duration // default: 15s

	// EventBuffer is the capacity of the per-scan event queue.
	EventBuffer int // default: 256

	// MaxConcurrentScans bounds simultaneously open sessions.
	MaxConcurrentScans int // default: 4

	// SlowLoadThreshold is the load time above which a page is flagged slow.
	SlowLoadThreshold time.Duration // default: 3s
}

// ScreenshotConfig controls where screenshots are written.
// When S3Bucket is set screenshots go to S3-compatible storage instead of Dir.
type ScreenshotConfig struct {
	Dir string // default: $XDG_DATA_HOME/bughunter/screenshots

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool // default: true
	S3Prefix    string
}

// StoreConfig controls scan persistence.
type StoreConfig struct {
	// Driver is "memory" or "sqlite". default: "sqlite"
	Driver string

	// Dir holds the sqlite database. default: $XDG_DATA_HOME/bughunter
	Dir string

	// MaxEntries bounds the memory store.
	MaxEntries int // default: 1000
}

// AIConfig controls the OpenAI-compatible analysis backend. An empty APIKey
// disables model calls; the deterministic fallback is used instead.
type AIConfig struct {
	APIKey     string
	BaseURL    string        // default: "https://api.openai.com/v1"
	Model      string        // default: "gpt-4"
	Timeout    time.Duration // default: 60s
	MaxRetries int           // default: 2
}

// Enabled reports whether model calls are configured.
func (c AIConfig) Enabled() bool { return c.APIKey != "" }

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys. Empty means open access.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per API key.
	Burst int // default: 5
}

// WebhookConfig controls scan notifications. Empty URL disables them.
type WebhookConfig struct {
	URL    string
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	dataDir := filepath.Join(xdg.DataHome, AppName)

	return &Config{
		Server: ServerConfig{
			Host: envOr("BUGHUNTER_HOST", "0.0.0.0"),
			Port: envIntOr("BUGHUNTER_PORT", 3000),
			Mode: envOr("BUGHUNTER_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:       envBoolOr("BUGHUNTER_HEADLESS", true),
			NoSandbox:      envBoolOr("BUGHUNTER_NO_SANDBOX", true),
			BrowserBin:     os.Getenv("BUGHUNTER_BROWSER_BIN"),
			Proxy:          os.Getenv("BUGHUNTER_PROXY"),
			ControlURL:     os.Getenv("BUGHUNTER_CONTROL_URL"),
			ViewportWidth:  envIntOr("BUGHUNTER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: envIntOr("BUGHUNTER_VIEWPORT_HEIGHT", 1080),
			UserAgent:      envOr("BUGHUNTER_USER_AGENT", "BugHunterAI/1.0 (Automated QA Testing)"),
		},
		Scanner: ScannerConfig{
			DefaultTimeout:     envDurationOr("BUGHUNTER_DEFAULT_TIMEOUT", 30*time.Second),
			MaxTimeout:         envDurationOr("BUGHUNTER_MAX_TIMEOUT", 120*time.Second),
			IdleWindow:         envDurationOr("BUGHUNTER_IDLE_WINDOW", 500*time.Millisecond),
			InspectionTimeout:  envDurationOr("BUGHUNTER_INSPECTION_TIMEOUT", 20*time.Second),
			ScreenshotTimeout:  envDurationOr("BUGHUNTER_SCREENSHOT_TIMEOUT", 15*time.Second),
			EventBuffer:        envIntOr("BUGHUNTER_EVENT_BUFFER", 256),
			MaxConcurrentScans: envIntOr("BUGHUNTER_MAX_SCANS", 4),
			SlowLoadThreshold:  envDurationOr("BUGHUNTER_SLOW_LOAD", 3*time.Second),
		},
		Screenshot: ScreenshotConfig{
			Dir:         envOr("BUGHUNTER_SCREENSHOT_DIR", filepath.Join(dataDir, "screenshots")),
			S3Endpoint:  os.Getenv("BUGHUNTER_S3_ENDPOINT"),
			S3AccessKey: os.Getenv("BUGHUNTER_S3_ACCESS_KEY"),
			S3SecretKey: os.Getenv("BUGHUNTER_S3_SECRET_KEY"),
			S3Bucket:    os.Getenv("BUGHUNTER_S3_BUCKET"),
			S3UseSSL:    envBoolOr("BUGHUNTER_S3_USE_SSL", true),
			S3Prefix:    envOr("BUGHUNTER_S3_PREFIX", "screenshots/"),
		},
		Store: StoreConfig{
			Driver:     envOr("BUGHUNTER_STORE", "sqlite"),
			Dir:        envOr("BUGHUNTER_DATA_DIR", dataDir),
			MaxEntries: envIntOr("BUGHUNTER_STORE_MAX_ENTRIES", 1000),
		},
		AI: AIConfig{
			APIKey:     os.Getenv("OPENAI_API_KEY"),
			BaseURL:    envOr("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:      envOr("BUGHUNTER_AI_MODEL", "gpt-4"),
			Timeout:    envDurationOr("BUGHUNTER_AI_TIMEOUT", 60*time.Second),
			MaxRetries: envIntOr("BUGHUNTER_AI_RETRIES", 2),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("BUGHUNTER_AUTH_ENABLED", true),
			APIKeys: envSliceOr("BUGHUNTER_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("BUGHUNTER_RATE_RPS", 1.0),
			Burst:             envIntOr("BUGHUNTER_RATE_BURST", 5),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("BUGHUNTER_WEBHOOK_URL"),
			Secret: os.Getenv("BUGHUNTER_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("BUGHUNTER_LOG_LEVEL", "info"),
			Format: envOr("BUGHUNTER_LOG_FORMAT", "json"),
		},
	}
}

// Validate rejects configurations the scanner cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Scanner.DefaultTimeout <= 0 || c.Scanner.MaxTimeout <= 0:
		return ErrInvalidTimeout
	case c.Scanner.DefaultTimeout > c.Scanner.MaxTimeout:
		return ErrTimeoutAboveMax
	case c.Scanner.MaxConcurrentScans <= 0:
		return ErrInvalidConcurrency
	case c.Scanner.EventBuffer <= 0:
		return ErrInvalidEventBuffer
	case c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0:
		return ErrInvalidViewport
	case c.Store.Driver != "memory" && c.Store.Driver != "sqlite":
		return ErrUnknownStoreDriver
	}
	return nil
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}

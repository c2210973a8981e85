package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/use-agent/bughunter/models"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Browser.ViewportWidth != 1920 || cfg.Browser.ViewportHeight != 1080 {
		t.Errorf("viewport = %dx%d, want 1920x1080", cfg.Browser.ViewportWidth, cfg.Browser.ViewportHeight)
	}
	if cfg.Browser.UserAgent != "BugHunterAI/1.0 (Automated QA Testing)" {
		t.Errorf("UserAgent = %q", cfg.Browser.UserAgent)
	}
	if cfg.Scanner.DefaultTimeout != 30*time.Second {
		t.Errorf("DefaultTimeout = %v", cfg.Scanner.DefaultTimeout)
	}
	if cfg.Scanner.SlowLoadThreshold != 3*time.Second {
		t.Errorf("SlowLoadThreshold = %v", cfg.Scanner.SlowLoadThreshold)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BUGHUNTER_PORT", "9090")
	t.Setenv("BUGHUNTER_MAX_SCANS", "8")
	t.Setenv("BUGHUNTER_API_KEYS", "a, b ,,c")
	t.Setenv("BUGHUNTER_HEADLESS", "not-a-bool")

	cfg := Load()
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d", cfg.Server.Port)
	}
	if cfg.Scanner.MaxConcurrentScans != 8 {
		t.Errorf("MaxConcurrentScans = %d", cfg.Scanner.MaxConcurrentScans)
	}
	if got := cfg.Auth.APIKeys; len(got) != 3 || got[1] != "b" {
		t.Errorf("APIKeys = %q", got)
	}
	if !cfg.Browser.Headless {
		t.Error("an unparsable bool should fall back to the default")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"zero timeout", func(c *Config) { c.Scanner.DefaultTimeout = 0 }, ErrInvalidTimeout},
		{"default above max", func(c *Config) { c.Scanner.DefaultTimeout = time.Hour }, ErrTimeoutAboveMax},
		{"no concurrency", func(c *Config) { c.Scanner.MaxConcurrentScans = 0 }, ErrInvalidConcurrency},
		{"no event buffer", func(c *Config) { c.Scanner.EventBuffer = 0 }, ErrInvalidEventBuffer},
		{"zero viewport", func(c *Config) { c.Browser.ViewportWidth = 0 }, ErrInvalidViewport},
		{"bad store", func(c *Config) { c.Store.Driver = "mongo" }, ErrUnknownStoreDriver},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func validConfig() *Config {
	return &Config{
		Browser: BrowserConfig{ViewportWidth: 1920, ViewportHeight: 1080},
		Scanner: ScannerConfig{
			DefaultTimeout:     30 * time.Second,
			MaxTimeout:         120 * time.Second,
			MaxConcurrentScans: 2,
			EventBuffer:        16,
		},
		Store: StoreConfig{Driver: "memory"},
	}
}

func TestLoadProfileFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, DefaultProfileFile)
	content := `defaults:
  timeout: 45000
  checkPerformance: false
sites:
  Shop.Example.com:
    stealth: true
    checkSEO: false
    headers:
      X-Env: staging
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	pf, err := LoadProfileFile(path)
	if err != nil {
		t.Fatalf("LoadProfileFile() error = %v", err)
	}

	t.Run("site profile applies on top of defaults", func(t *testing.T) {
		t.Parallel()

		opts := pf.OptionsFor("https://www.shop.example.com/cart", models.DefaultScanOptions())
		if opts.Timeout != 45*time.Second {
			t.Errorf("Timeout = %v, want 45s", opts.Timeout)
		}
		if opts.CheckPerformance {
			t.Error("defaults should disable performance")
		}
		if opts.CheckSEO {
			t.Error("site should disable SEO")
		}
		if !opts.Stealth {
			t.Error("site should enable stealth")
		}
		if opts.Headers["X-Env"] != "staging" {
			t.Errorf("Headers = %v", opts.Headers)
		}
	})

	t.Run("other hosts only get defaults", func(t *testing.T) {
		t.Parallel()

		opts := pf.OptionsFor("https://other.test", models.DefaultScanOptions())
		if !opts.CheckSEO || opts.Stealth {
			t.Errorf("unexpected site overrides: %+v", opts)
		}
	})
}

func TestLoadProfileFile_Missing(t *testing.T) {
	t.Parallel()

	_, err := LoadProfileFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("error = %v, want ErrProfileNotFound", err)
	}
}

func TestFindProfileFile_ExplicitPath(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "p.yaml")
	if err := os.WriteFile(path, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	if got := FindProfileFile(path); got != path {
		t.Errorf("FindProfileFile() = %q, want %q", got, path)
	}
	if got := FindProfileFile(path + ".missing"); got != "" {
		t.Errorf("missing explicit path should return empty, got %q", got)
	}
}

package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/use-agent/bughunter/models"
	"gopkg.in/yaml.v3"
)

// DefaultProfileFile is the profile file name looked up in the working directory.
const DefaultProfileFile = ".bughunter.yaml"

// ProfileFile holds per-site scan option overrides.
//
//	defaults:
//	  timeout: 45000
//	sites:
//	  shop.example.com:
//	    stealth: true
//	    headers:
//	      Authorization: Bearer staging-token
type ProfileFile struct {
	// Defaults apply to every scan.
	Defaults models.ScanOptionsInput `yaml:"defaults,omitempty"`

	// Sites maps a hostname (no scheme, no port) to its overrides.
	Sites map[string]models.ScanOptionsInput `yaml:"sites,omitempty"`
}

// OptionsFor layers defaults and then the matching site profile over base.
func (f *ProfileFile) OptionsFor(rawURL string, base models.ScanOptions) models.ScanOptions {
	opts := f.Defaults.ApplyTo(base)

	u, err := url.Parse(rawURL)
	if err != nil {
		return opts
	}
	host := strings.ToLower(u.Hostname())
	if site, ok := f.Sites[host]; ok {
		return site.ApplyTo(opts)
	}
	if site, ok := f.Sites[strings.TrimPrefix(host, "www.")]; ok {
		return site.ApplyTo(opts)
	}
	return opts
}

// LoadProfileFile reads a profile file. A missing file yields ErrProfileNotFound.
func LoadProfileFile(path string) (*ProfileFile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided profile path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	var pf ProfileFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, err
	}
	if pf.Sites == nil {
		pf.Sites = make(map[string]models.ScanOptionsInput)
	}
	lowered := make(map[string]models.ScanOptionsInput, len(pf.Sites))
	for host, site := range pf.Sites {
		lowered[strings.ToLower(host)] = site
	}
	pf.Sites = lowered
	return &pf, nil
}

// FindProfileFile searches for a profile file in order:
//  1. path, if given
//  2. .bughunter.yaml in the current directory
//  3. $XDG_CONFIG_HOME/bughunter/profiles.yaml
//
// It returns "" when none exists.
func FindProfileFile(path string) string {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		p := filepath.Join(cwd, DefaultProfileFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if p, err := xdg.SearchConfigFile(filepath.Join(AppName, "profiles.yaml")); err == nil {
		return p
	}
	return ""
}

package scanner

import (
	"net/url"
	"strings"

	"github.com/use-agent/bughunter/models"
)

// ValidateURL accepts absolute http and https URLs with a host.
func ValidateURL(raw string) error {
	invalid := func(msg string) error {
		return models.NewScanError(models.ErrCodeInvalidInput, msg, nil)
	}

	if strings.TrimSpace(raw) == "" {
		return invalid("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return invalid("url is not valid")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return invalid("url must use http or https")
	}
	if u.Hostname() == "" {
		return invalid("url must include a host")
	}
	return nil
}

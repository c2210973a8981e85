// Package screenshot persists scan screenshots and hands back a reference
// the caller can show or fetch later.
package screenshot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/use-agent/bughunter/config"
)

// ErrEmpty is returned when there are no image bytes to save.
var ErrEmpty = errors.New("screenshot: empty image")

// Store saves PNG screenshots.
type Store interface {
	// Save writes png under name and returns its reference.
	Save(ctx context.Context, name string, png []byte) (string, error)
}

// Name returns a unique file name for a screenshot taken at t.
func Name(t time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("scan_%d_%s.png", t.UnixMilli(), id)
}

// New picks the backend from cfg: S3-compatible storage when an endpoint and
// bucket are configured, the local directory otherwise.
func New(ctx context.Context, cfg config.ScreenshotConfig) (Store, error) {
	if cfg.S3Endpoint != "" && cfg.S3Bucket != "" {
		return NewMinioStore(ctx, cfg)
	}
	return NewDirStore(cfg.Dir)
}

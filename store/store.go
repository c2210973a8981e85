// Package store persists scan records.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/use-agent/bughunter/config"
	"github.com/use-agent/bughunter/models"
)

// ErrNotFound is returned when no record matches an ID or share token.
var ErrNotFound = errors.New("scan not found")

// Store saves and queries scan records. Implementations are safe for
// concurrent use.
type Store interface {
	// Save inserts rec, or replaces the record with the same ID.
	Save(ctx context.Context, rec *models.ScanRecord) error

	// Get returns the record with id.
	Get(ctx context.Context, id string) (*models.ScanRecord, error)

	// List returns records newest first, with the total record count.
	List(ctx context.Context, limit, offset int) ([]models.ScanListItem, int, error)

	// Stats aggregates every stored record.
	Stats(ctx context.Context) (*models.Stats, error)

	// ToggleShare flips a record's public flag, assigning a share token
	// the first time it is made public. The token survives unsharing.
	ToggleShare(ctx context.Context, id string) (*models.ScanRecord, error)

	// GetShared returns the public record with the given share token.
	GetShared(ctx context.Context, token string) (*models.ScanRecord, error)

	Close() error
}

// NewID returns a fresh scan ID.
func NewID() string { return "scan_" + uuid.NewString() }

func newShareToken() string { return strings.ReplaceAll(uuid.NewString(), "-", "") }

// Open returns the backend named by cfg.Driver.
func Open(cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemory(cfg.MaxEntries), nil
	case "sqlite", "":
		return OpenSQLite(cfg.Dir)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

func listItem(r *models.ScanRecord) models.ScanListItem {
	return models.ScanListItem{
		ID:        r.ID,
		URL:       r.URL,
		CreatedAt: r.CreatedAt,
		Status:    r.Status,
		Summary:   r.Counts(),
		IsPublic:  r.IsPublic,
	}
}

// pageBounds clamps limit/offset to [0, total].
func pageBounds(limit, offset, total int) (start, end int) {
	start = min(max(offset, 0), total)
	end = total
	if limit > 0 {
		end = min(start+limit, total)
	}
	return start, end
}

package scanner

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/use-agent/bughunter/models"
)

// Runner runs one scan.
type Runner interface {
	Scan(ctx context.Context, url string, opts models.ScanOptions) (*models.ScanResult, error)
}

// Limited bounds how many scans, and therefore browser sessions, run at
// once. Callers over the limit wait until a slot frees or ctx ends.
type Limited struct {
	next Runner
	sem  *semaphore.Weighted
	max  int

	active  atomic.Int32
	waiting atomic.Int32
}

// NewLimited wraps next with a limit of max concurrent scans (min 1).
func NewLimited(next Runner, max int) *Limited {
	if max < 1 {
		max = 1
	}
	return &Limited{next: next, sem: semaphore.NewWeighted(int64(max)), max: max}
}

// Scan implements Runner. A caller whose ctx ends while waiting for a slot
// gets a SCANNER_BUSY error.
func (l *Limited) Scan(ctx context.Context, url string, opts models.ScanOptions) (*models.ScanResult, error) {
	l.waiting.Add(1)
	err := l.sem.Acquire(ctx, 1)
	l.waiting.Add(-1)
	if err != nil {
		se := models.NewScanError(models.ErrCodeBusy, "all scan slots are busy", err)
		se.URL = url
		return nil, se
	}
	defer l.sem.Release(1)

	l.active.Add(1)
	defer l.active.Add(-1)
	return l.next.Scan(ctx, url, opts)
}

// Active returns the number of scans holding a slot.
func (l *Limited) Active() int { return int(l.active.Load()) }

// Waiting returns the number of callers queued for a slot.
func (l *Limited) Waiting() int { return int(l.waiting.Load()) }

// Max returns the slot count.
func (l *Limited) Max() int { return l.max }

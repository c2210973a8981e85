package scanner

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/use-agent/bughunter/models"
)

// Target is one URL of a batch with its resolved options.
type Target struct {
	URL     string
	Options models.ScanOptions
}

// Outcome is the result of one batch target. Exactly one of Result and Err
// is set.
type Outcome struct {
	URL    string
	Result *models.ScanResult
	Err    error
}

// Batch scans targets with at most concurrency scans in flight and returns
// the outcomes in input order. A failed target does not stop the others;
// cancelling ctx does.
func Batch(ctx context.Context, r Runner, targets []Target, concurrency int) []Outcome {
	if concurrency < 1 {
		concurrency = 1
	}
	out := make([]Outcome, len(targets))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, t := range targets {
		out[i].URL = t.URL
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				out[i].Err = models.WrapScanError(t.URL, err)
				return nil
			}
			out[i].Result, out[i].Err = r.Scan(ctx, t.URL, t.Options)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

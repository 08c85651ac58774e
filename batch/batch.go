// Package batch runs multi-seed extraction pipelines with bounded
// concurrency. The core engine processes one seed per call; this is the
// layer that fans out.
package batch

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/use-agent/qrawl/models"
)

// Item is the outcome for one seed URL. Exactly one of Bundle and Err
// is set.
type Item struct {
	URL    string                   `json:"url"`
	Bundle *models.ExtractionBundle `json:"bundle,omitempty"`
	Err    string                   `json:"error,omitempty"`
}

// ExtractFunc extracts a single seed.
type ExtractFunc func(ctx context.Context, url string) (*models.ExtractionBundle, error)

// Run extracts every URL with at most limit extractions in flight and
// returns results in input order. Per-seed failures are captured in the
// corresponding Item; they never cancel the rest of the batch.
func Run(ctx context.Context, urls []string, limit int, fn ExtractFunc) []Item {
	if limit < 1 {
		limit = 1
	}

	out := make([]Item, len(urls))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, u := range urls {
		g.Go(func() error {
			bundle, err := fn(ctx, u)
			if err != nil {
				out[i] = Item{URL: u, Err: err.Error()}
				return nil
			}
			out[i] = Item{URL: u, Bundle: bundle}
			return nil
		})
	}

	_ = g.Wait()
	return out
}

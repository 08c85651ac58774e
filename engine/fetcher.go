package engine

import (
	"context"

	"github.com/use-agent/qrawl/fetch"
	"github.com/use-agent/qrawl/models"
)

// LadderFetcher adapts the fetch ladder to the engine's Fetcher
// contract. The underlying per-profile clients are process-wide and
// shared across all engines.
type LadderFetcher struct{}

// NewLadderFetcher returns the default production fetcher.
func NewLadderFetcher() *LadderFetcher { return &LadderFetcher{} }

func (f *LadderFetcher) Name() string { return "ladder" }

func (f *LadderFetcher) Fetch(ctx context.Context, url string, cfg *models.FetchConfig) (string, error) {
	res, err := fetch.FetchWithConfig(ctx, url, cfg)
	if err != nil {
		return "", err
	}
	return res.HTML, nil
}

func (f *LadderFetcher) FetchRaw(ctx context.Context, url string) (string, error) {
	return fetch.FetchRaw(ctx, url)
}

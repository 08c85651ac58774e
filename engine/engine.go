// Package engine orchestrates a full extraction: policy lookup (or
// inference), the policy-driven fetch, scraping, and child following.
package engine

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/use-agent/qrawl/domain"
	"github.com/use-agent/qrawl/infer"
	"github.com/use-agent/qrawl/mapper"
	"github.com/use-agent/qrawl/models"
	"github.com/use-agent/qrawl/store"
)

// Fetcher is the capability contract the engine needs from the fetch
// layer. Implementations must be safe for concurrent use; tests stub
// this with canned bodies.
type Fetcher interface {
	// Fetch retrieves a URL under a per-policy FetchConfig and returns
	// validated HTML.
	Fetch(ctx context.Context, url string, cfg *models.FetchConfig) (string, error)

	// FetchRaw retrieves a URL with only status-code validation, for
	// non-HTML resources like robots.txt and sitemaps.
	FetchRaw(ctx context.Context, url string) (string, error)

	// Name identifies the implementation in logs.
	Name() string
}

// Scraper turns fetched HTML into a structured extraction. Scraping is
// synchronous and CPU-bound.
type Scraper interface {
	Scrape(url, html string, cfg *models.ScrapeConfig) (*models.PageExtraction, error)
	Name() string
}

// Options tune engine behavior beyond what policies carry.
type Options struct {
	// MaxChildren caps child follows regardless of policy. Zero means
	// the policy limit applies unchanged.
	MaxChildren int
}

// Engine binds a policy store, fetcher, and scraper into the extraction
// pipeline. One engine serves many concurrent extractions.
type Engine struct {
	store   store.PolicyStore
	fetcher Fetcher
	scraper Scraper
	opts    Options
}

// New creates an Engine.
func New(ps store.PolicyStore, f Fetcher, s Scraper, opts Options) *Engine {
	return &Engine{store: ps, fetcher: f, scraper: s, opts: opts}
}

// ExtractKnown extracts a URL whose domain already has a stored policy.
func (e *Engine) ExtractKnown(ctx context.Context, rawURL string) (*models.ExtractionBundle, error) {
	u, d, err := domain.ParseFromURL(rawURL)
	if err != nil {
		return nil, err
	}
	pol, err := e.store.Get(d)
	if err != nil {
		return nil, err
	}
	if pol == nil {
		return nil, models.NewMissingPolicy(string(d))
	}
	return e.extractWithPolicy(ctx, rawURL, u, pol)
}

// ExtractUnknown infers a policy for the URL's domain, persists it, and
// extracts. Re-running it for an already-known domain replaces the
// stored policy; callers wanting create-only semantics check the store
// first.
func (e *Engine) ExtractUnknown(ctx context.Context, rawURL string) (*models.ExtractionBundle, error) {
	u, d, err := domain.ParseFromURL(rawURL)
	if err != nil {
		return nil, err
	}
	pol, err := infer.InferPolicy(ctx, e.fetcher, e.scraper, d, rawURL)
	if err != nil {
		return nil, err
	}
	if err := e.store.Set(pol); err != nil {
		return nil, err
	}
	return e.extractWithPolicy(ctx, rawURL, u, pol)
}

// ExtractAuto picks the known or unknown pipeline based on store
// presence.
func (e *Engine) ExtractAuto(ctx context.Context, rawURL string) (*models.ExtractionBundle, error) {
	_, d, err := domain.ParseFromURL(rawURL)
	if err != nil {
		return nil, err
	}
	pol, err := e.store.Get(d)
	if err != nil {
		return nil, err
	}
	if pol != nil {
		return e.ExtractKnown(ctx, rawURL)
	}
	return e.ExtractUnknown(ctx, rawURL)
}

func (e *Engine) extractWithPolicy(ctx context.Context, rawURL string, u *url.URL, pol *models.Policy) (*models.ExtractionBundle, error) {
	htmlStr, err := e.fetcher.Fetch(ctx, rawURL, &pol.Fetch)
	if err != nil {
		return nil, err
	}
	parent, err := e.scraper.Scrape(rawURL, htmlStr, &pol.Scrape)
	if err != nil {
		return nil, err
	}
	children := e.followItemListChildren(ctx, u, htmlStr, parent, pol)
	return &models.ExtractionBundle{Parent: parent, Children: children}, nil
}

// effectiveFollow determines the child-follow configuration: the first
// area with follow_links enabled wins; otherwise an ItemList in the
// parent JSON-LD auto-enables following with conservative defaults.
func effectiveFollow(parent *models.PageExtraction, pol *models.Policy) (models.FollowLinks, bool) {
	for _, a := range pol.Scrape.Areas {
		if a.FollowLinks.Enabled {
			return a.FollowLinks, true
		}
	}
	for _, v := range parent.JSONLD {
		if mapper.ContainsItemList(v) {
			return models.FollowLinks{
				Enabled: true,
				Scope:   models.ScopeSameDomain,
				Max:     10,
				Dedupe:  true,
			}, true
		}
	}
	return models.FollowLinks{}, false
}

// followItemListChildren gathers child candidates from the parent's
// JSON-LD ItemLists and content links, applies scope, dedupe, and
// budget, then fetches and scrapes each child sequentially with the
// same policy. Per-child failures are swallowed; the extraction as a
// whole never fails because a child did.
func (e *Engine) followItemListChildren(ctx context.Context, base *url.URL, parentHTML string, parent *models.PageExtraction, pol *models.Policy) []*models.PageExtraction {
	follow, ok := effectiveFollow(parent, pol)
	if !ok || follow.Max == 0 {
		return nil
	}

	var links []string
	if doc, err := html.Parse(strings.NewReader(parentHTML)); err == nil {
		links = mapper.ItemListURLsFromValues(parent.JSONLD, doc, base)
	}
	for _, area := range parent.Areas {
		for _, block := range area.Content {
			if block.Type != models.BlockLink {
				continue
			}
			ref, err := url.Parse(block.Href)
			if err != nil {
				continue
			}
			links = append(links, base.ResolveReference(ref).String())
		}
	}

	links = filterScope(links, base, follow)

	if follow.Dedupe {
		seen := make(map[string]bool, len(links))
		deduped := links[:0]
		for _, l := range links {
			if !seen[l] {
				seen[l] = true
				deduped = append(deduped, l)
			}
		}
		links = deduped
	}

	max := int(follow.Max)
	if e.opts.MaxChildren > 0 && e.opts.MaxChildren < max {
		max = e.opts.MaxChildren
	}
	if len(links) > max {
		links = links[:max]
	}

	var out []*models.PageExtraction
	for _, child := range links {
		childHTML, err := e.fetcher.Fetch(ctx, child, &pol.Fetch)
		if err != nil {
			slog.Debug("child fetch failed, skipping", "url", child, "error", err)
			continue
		}
		page, err := e.scraper.Scrape(child, childHTML, &pol.Scrape)
		if err != nil {
			slog.Debug("child scrape failed, skipping", "url", child, "error", err)
			continue
		}
		out = append(out, page)
	}
	return out
}

func filterScope(links []string, base *url.URL, follow models.FollowLinks) []string {
	parentHost := base.Hostname()
	out := links[:0]
	for _, l := range links {
		u, err := url.Parse(l)
		if err != nil {
			continue
		}
		switch follow.Scope {
		case models.ScopeSameDomain:
			if u.Hostname() == parentHost {
				out = append(out, l)
			}
		case models.ScopeAnyDomain:
			out = append(out, l)
		case models.ScopeAllowList:
			host := u.Hostname()
			for _, allowed := range follow.AllowDomains {
				if strings.EqualFold(host, allowed) {
					out = append(out, l)
					break
				}
			}
		}
	}
	return out
}

// Package infer discovers a working policy for an unknown domain by
// probing candidate URLs, parsing robots.txt and sitemaps, verifying
// structured data, and assembling the initial fetch and scrape
// configuration.
package infer

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/use-agent/qrawl/domain"
	"github.com/use-agent/qrawl/mapper"
	"github.com/use-agent/qrawl/models"
	"github.com/use-agent/qrawl/scrape"
	"github.com/use-agent/qrawl/selectors"
)

const probeTimeoutMs = 20_000

// maxSitemapSamples caps how many content URLs one sitemap contributes
// to the candidate list.
const maxSitemapSamples = 5

// topReasons bounds the failure summary.
const topReasons = 8

var (
	itemscopeSel = cascadia.MustCompile("[itemscope]")
	rdfaSel      = cascadia.MustCompile("[typeof], [property], [about], [rel], [vocab]")
)

// Fetcher is what inference needs from the fetch layer: validated
// policy-driven fetches for page probes, and raw status-checked fetches
// for robots.txt and sitemaps (which never pass HTML validation).
type Fetcher interface {
	Fetch(ctx context.Context, url string, cfg *models.FetchConfig) (string, error)
	FetchRaw(ctx context.Context, url string) (string, error)
}

// Scraper verifies that a probe target actually yields parsed JSON-LD.
type Scraper interface {
	Scrape(url, html string, cfg *models.ScrapeConfig) (*models.PageExtraction, error)
}

func probeHeaders() *models.HeaderSet {
	return models.NewHeaderSet().
		With("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8").
		With("Accept-Encoding", "gzip, deflate, br").
		With("Accept-Language", "en-US,en;q=0.5").
		With("Connection", "keep-alive").
		With("DNT", "1").
		With("Upgrade-Insecure-Requests", "1")
}

func probeFetchConfig() *models.FetchConfig {
	return &models.FetchConfig{
		Strategy:         models.StrategyAdaptive,
		TimeoutMs:        probeTimeoutMs,
		RespectRobotsTxt: true,
		DefaultHeaders:   probeHeaders(),
	}
}

// InferPolicy probes a domain until one candidate URL yields structured
// data and a non-empty JSON-LD parse, then returns the initial policy.
// The host search set is the canonical domain plus its www variant,
// each tried over https then http; candidates per host are the optional
// seed, the origin, common language roots, and content URLs sampled
// from the first responsive sitemap.
func InferPolicy(ctx context.Context, fetcher Fetcher, scraper Scraper, d domain.Domain, seedURL string) (*models.Policy, error) {
	schemes := []string{"https", "http"}
	hosts := []string{string(d)}
	if !strings.HasPrefix(string(d), "www.") {
		hosts = append(hosts, "www."+string(d))
	}

	var reasons []string
	attempts := 0

	for _, scheme := range schemes {
		for _, host := range hosts {
			origin := fmt.Sprintf("%s://%s/", scheme, host)
			base, err := url.Parse(origin)
			if err != nil {
				reasons = append(reasons, fmt.Sprintf("[%s] invalid base %s", scheme, origin))
				continue
			}

			candidates := gatherCandidates(ctx, fetcher, scheme, host, origin, base, seedURL, &reasons)

			for _, cand := range candidates {
				attempts++

				html, err := fetcher.Fetch(ctx, cand, probeFetchConfig())
				if err != nil {
					reasons = append(reasons, fmt.Sprintf("[%s] fetch failed (%s) at %s", scheme, trimReason(err.Error()), cand))
					continue
				}

				doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
				if err != nil {
					reasons = append(reasons, fmt.Sprintf("[%s] unparseable html at %s", scheme, cand))
					continue
				}
				if !hasStructuredData(doc) {
					reasons = append(reasons, fmt.Sprintf("[%s] no structured data at %s", scheme, cand))
					continue
				}

				scrapeCfg := models.ScrapeConfig{ExtractJSONLD: true}
				if hasItemListSchema(doc) {
					scrapeCfg.Areas = append(scrapeCfg.Areas, listingArea())
				}

				page, err := scraper.Scrape(cand, html, &scrapeCfg)
				if err != nil {
					reasons = append(reasons, fmt.Sprintf("[%s] scrape failed at %s: %s", scheme, cand, err))
					continue
				}
				if len(page.JSONLD) == 0 {
					reasons = append(reasons, fmt.Sprintf("[%s] structured data present but parsed JSON-LD empty at %s", scheme, cand))
					continue
				}

				slog.Info("policy inferred", "domain", string(d), "candidate", cand, "attempts", attempts)
				return &models.Policy{
					Domain: string(d),
					Fetch:  *probeFetchConfig(),
					Scrape: scrapeCfg,
					PerformanceProfile: models.PerformanceProfile{
						OptimalTimeoutMs:     probeTimeoutMs,
						WorkingStrategy:      models.StrategyAdaptive,
						AvgResponseSizeBytes: uint64(len(html)),
						StrategiesTried:      []models.FetchStrategy{models.StrategyAdaptive},
						StrategiesFailed:     nil,
						LastTestedAt:         time.Now().UTC(),
						SuccessRate:          1.0 / float64(attempts),
					},
				}, nil
			}
		}
	}

	return nil, models.NewOther(fmt.Sprintf(
		"unable to infer policy for %s. attempts=%d. %s",
		string(d), attempts, summarizeReasons(reasons, topReasons)), nil)
}

// gatherCandidates builds the ordered, deduplicated probe list for one
// (scheme, host) pair.
func gatherCandidates(ctx context.Context, fetcher Fetcher, scheme, host, origin string, base *url.URL, seedURL string, reasons *[]string) []string {
	var candidates []string

	// 0) Seed URL, only when it belongs to this host.
	if seedURL != "" {
		if u, err := url.Parse(seedURL); err == nil && u.Hostname() == host {
			candidates = append(candidates, u.String())
		}
	}

	// 1) Homepage + common language roots.
	candidates = append(candidates, origin)
	for _, lang := range []string{"en/", "en-us/", "us/en/", "gb/en/"} {
		candidates = append(candidates, origin+lang)
	}

	// 2) robots.txt → sitemaps for this host, then the conventional
	// sitemap endpoints.
	var sitemaps []string
	robotsURL := origin + "robots.txt"
	if txt, err := fetcher.FetchRaw(ctx, robotsURL); err == nil {
		sitemaps = append(sitemaps, robotsSitemaps(txt, base)...)
	} else {
		*reasons = append(*reasons, fmt.Sprintf("[%s] robots.txt fetch failed for %s", scheme, robotsURL))
	}
	sitemaps = append(sitemaps, origin+"sitemap.xml", origin+"sitemap_index.xml")

	// 3) Sample content URLs from the first responsive sitemap.
	for _, sm := range sitemaps {
		body, err := fetcher.FetchRaw(ctx, sm)
		if err != nil {
			*reasons = append(*reasons, fmt.Sprintf("[%s] sitemap fetch failed for %s", scheme, sm))
			continue
		}
		sampled := 0
		for _, u := range sitemapURLs(body, base) {
			parsed, err := url.Parse(u)
			if err != nil || parsed.Hostname() != host {
				continue
			}
			if strings.HasSuffix(u, ".xml") || strings.HasSuffix(u, ".gz") {
				continue
			}
			candidates = append(candidates, u)
			sampled++
			if sampled == maxSitemapSamples {
				break
			}
		}
		break // use the first working sitemap
	}

	// De-dup preserving order.
	seen := make(map[string]bool, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

func listingArea() models.AreaPolicy {
	return models.AreaPolicy{
		Role:        models.RoleMain,
		Fields:      models.DefaultFieldSelectors(),
		IsRepeating: true,
		FollowLinks: models.FollowLinks{
			Enabled: true,
			Scope:   models.ScopeSameDomain,
			Max:     10,
			Dedupe:  true,
		},
	}
}

// hasStructuredData detects any machine-readable markup: JSON-LD
// scripts, microdata itemscope, or RDFa attributes.
func hasStructuredData(doc *goquery.Document) bool {
	if doc.FindMatcher(selectors.JSONLD).Length() > 0 {
		return true
	}
	if doc.FindMatcher(itemscopeSel).Length() > 0 {
		return true
	}
	return doc.FindMatcher(rdfaSel).Length() > 0
}

// hasItemListSchema reports whether any JSON-LD block on the page
// carries an ItemList (top-level, @graph-nested, or any object with
// itemListElement).
func hasItemListSchema(doc *goquery.Document) bool {
	found := false
	doc.FindMatcher(selectors.JSONLD).EachWithBreak(func(_ int, script *goquery.Selection) bool {
		vals, ok := scrape.ParseJSONLDBlock(script.Text())
		if !ok {
			return true
		}
		for _, v := range vals {
			if mapper.ContainsItemList(v) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// trimReason compresses a fetch error down to its status fragment so
// identical failures aggregate in the summary.
func trimReason(msg string) string {
	if pos := strings.Index(msg, "status "); pos >= 0 {
		fields := strings.Fields(msg[pos:])
		if len(fields) >= 2 {
			return fields[0] + " " + strings.Trim(fields[1], "();:,")
		}
	}
	if pos := strings.Index(msg, " for http"); pos >= 0 {
		return msg[:pos]
	}
	if len(msg) > 120 {
		return msg[:120]
	}
	return msg
}

// summarizeReasons collapses per-candidate failure reasons into the
// top-N by frequency, ties broken lexicographically.
func summarizeReasons(reasons []string, topN int) string {
	if len(reasons) == 0 {
		return "no further details"
	}
	counts := make(map[string]int)
	for _, r := range reasons {
		counts[r]++
	}
	type item struct {
		msg string
		n   int
	}
	items := make([]item, 0, len(counts))
	for msg, n := range counts {
		items = append(items, item{msg, n})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].n != items[j].n {
			return items[i].n > items[j].n
		}
		return items[i].msg < items[j].msg
	})
	if len(items) > topN {
		items = items[:topN]
	}
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = fmt.Sprintf("%d× %s", it.n, it.msg)
	}
	return "Top reasons: " + strings.Join(parts, " | ")
}

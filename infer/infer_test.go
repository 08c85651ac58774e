package infer

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/use-agent/qrawl/domain"
	"github.com/use-agent/qrawl/models"
	"github.com/use-agent/qrawl/scrape"
)

// stubFetcher serves canned bodies and records what was asked for.
type stubFetcher struct {
	pages    map[string]string // validated page fetches
	raw      map[string]string // robots/sitemap fetches
	fetched  []string
	rawCalls []string
}

func (f *stubFetcher) Fetch(_ context.Context, u string, _ *models.FetchConfig) (string, error) {
	f.fetched = append(f.fetched, u)
	if body, ok := f.pages[u]; ok {
		return body, nil
	}
	return "", models.NewFetchError(u, "status 404 (not found)")
}

func (f *stubFetcher) FetchRaw(_ context.Context, u string) (string, error) {
	f.rawCalls = append(f.rawCalls, u)
	if body, ok := f.raw[u]; ok {
		return body, nil
	}
	return "", fmt.Errorf("status 404 (not found)")
}

func itemListPage() string {
	return `<html><head><script type="application/ld+json">` +
		`{"@type":"ItemList","itemListElement":[{"@type":"ListItem","url":"/r1"}]}` +
		`</script></head><body><p>listing</p></body></html>`
}

func plainJSONLDPage() string {
	return `<html><head><script type="application/ld+json">{"@type":"Article"}</script></head><body></body></html>`
}

func TestInferPolicy_HomepageWins(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{
		"https://example.com/": itemListPage(),
	}}

	pol, err := InferPolicy(context.Background(), f, scrape.New(), domain.Domain("example.com"), "")
	if err != nil {
		t.Fatalf("infer failed: %v", err)
	}
	if pol.Domain != "example.com" {
		t.Errorf("policy domain = %q, want canonical example.com", pol.Domain)
	}
	if !pol.Scrape.ExtractJSONLD {
		t.Error("inferred policy must extract JSON-LD")
	}
	if len(pol.Scrape.Areas) != 1 {
		t.Fatalf("areas = %d, want 1 listing area for ItemList page", len(pol.Scrape.Areas))
	}
	area := pol.Scrape.Areas[0]
	if !area.IsRepeating || !area.FollowLinks.Enabled {
		t.Errorf("listing area misconfigured: %+v", area)
	}
	if area.FollowLinks.Scope != models.ScopeSameDomain || area.FollowLinks.Max != 10 || !area.FollowLinks.Dedupe {
		t.Errorf("follow defaults wrong: %+v", area.FollowLinks)
	}
	if pol.Fetch.Strategy != models.StrategyAdaptive || pol.Fetch.TimeoutMs != 20000 {
		t.Errorf("fetch config wrong: %+v", pol.Fetch)
	}
	pp := pol.PerformanceProfile
	if pp.SuccessRate <= 0 || pp.SuccessRate > 1 {
		t.Errorf("success_rate = %f, want (0,1]", pp.SuccessRate)
	}
	if pp.LastTestedAt.IsZero() {
		t.Error("last_tested_at not set")
	}
}

func TestInferPolicy_NoItemListMeansNoArea(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{
		"https://example.com/": plainJSONLDPage(),
	}}
	pol, err := InferPolicy(context.Background(), f, scrape.New(), domain.Domain("example.com"), "")
	if err != nil {
		t.Fatalf("infer failed: %v", err)
	}
	if len(pol.Scrape.Areas) != 0 {
		t.Errorf("areas = %d, want 0 without ItemList", len(pol.Scrape.Areas))
	}
}

func TestInferPolicy_SeedTriedFirst(t *testing.T) {
	seed := "https://example.com/lists/top10"
	f := &stubFetcher{pages: map[string]string{
		seed:                   itemListPage(),
		"https://example.com/": plainJSONLDPage(),
	}}
	pol, err := InferPolicy(context.Background(), f, scrape.New(), domain.Domain("example.com"), seed)
	if err != nil {
		t.Fatalf("infer failed: %v", err)
	}
	if f.fetched[0] != seed {
		t.Errorf("first probe = %s, want the seed URL", f.fetched[0])
	}
	// The seed has an ItemList, so the policy should carry the listing area.
	if len(pol.Scrape.Areas) != 1 {
		t.Errorf("areas = %d, want 1", len(pol.Scrape.Areas))
	}
}

func TestInferPolicy_WwwFallback(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{
		"https://www.example.com/": itemListPage(),
	}}
	pol, err := InferPolicy(context.Background(), f, scrape.New(), domain.Domain("example.com"), "")
	if err != nil {
		t.Fatalf("infer failed: %v", err)
	}
	// Probing won on the www host, but the persisted key stays canonical.
	if pol.Domain != "example.com" {
		t.Errorf("policy domain = %q, want example.com", pol.Domain)
	}
}

func TestInferPolicy_SitemapCandidates(t *testing.T) {
	f := &stubFetcher{
		raw: map[string]string{
			"https://example.com/robots.txt": "User-agent: *\nSitemap: https://example.com/sm.xml\n",
			"https://example.com/sm.xml": `<?xml version="1.0"?><urlset>` +
				`<loc>https://example.com/recipes/a</loc>` +
				`<loc>https://example.com/nested.xml</loc>` +
				`<loc>https://other.com/foreign</loc>` +
				`</urlset>`,
		},
		pages: map[string]string{
			"https://example.com/recipes/a": itemListPage(),
		},
	}

	pol, err := InferPolicy(context.Background(), f, scrape.New(), domain.Domain("example.com"), "")
	if err != nil {
		t.Fatalf("infer failed: %v", err)
	}
	if pol == nil {
		t.Fatal("nil policy")
	}
	// The winning candidate must have come from the sitemap; the .xml and
	// foreign-host entries must not have been probed.
	for _, u := range f.fetched {
		if strings.Contains(u, "nested.xml") || strings.Contains(u, "other.com") {
			t.Errorf("filtered sitemap entry was probed: %s", u)
		}
	}
}

func TestInferPolicy_AllFail(t *testing.T) {
	f := &stubFetcher{}
	_, err := InferPolicy(context.Background(), f, scrape.New(), domain.Domain("example.com"), "")
	if err == nil {
		t.Fatal("expected failure")
	}
	msg := err.Error()
	if !strings.Contains(msg, "unable to infer policy for example.com") {
		t.Errorf("missing domain in error: %s", msg)
	}
	if !strings.Contains(msg, "attempts=") {
		t.Errorf("missing attempts count: %s", msg)
	}
	if !strings.Contains(msg, "Top reasons:") {
		t.Errorf("missing reason summary: %s", msg)
	}
}

func TestRobotsSitemaps(t *testing.T) {
	base, _ := url.Parse("https://example.com/")
	txt := "User-agent: *\nDisallow: /admin\nSITEMAP: /relative-map.xml\nSitemap: https://example.com/abs.xml\nsitemap:https://example.com/tight.xml\n"
	got := robotsSitemaps(txt, base)
	want := []string{
		"https://example.com/relative-map.xml",
		"https://example.com/abs.xml",
		"https://example.com/tight.xml",
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestSitemapURLs(t *testing.T) {
	base, _ := url.Parse("https://example.com/")
	xml := `<urlset><url><loc> https://example.com/a </loc></url>` +
		`<url><loc>/rel</loc></url>` +
		`<url><loc>https://example.com/a</loc></url>` + // duplicate
		`<url><loc></loc></url></urlset>`
	got := sitemapURLs(xml, base)
	want := []string{"https://example.com/a", "https://example.com/rel"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestSummarizeReasons(t *testing.T) {
	reasons := []string{"a", "b", "a", "c", "a", "b"}
	got := summarizeReasons(reasons, 2)
	if !strings.HasPrefix(got, "Top reasons: 3× a | 2× b") {
		t.Errorf("unexpected summary: %s", got)
	}
	if summarizeReasons(nil, 8) != "no further details" {
		t.Error("empty reasons should report no further details")
	}
}

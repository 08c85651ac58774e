package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/use-agent/qrawl/models"
	"github.com/use-agent/qrawl/scrape"
	"github.com/use-agent/qrawl/store"
)

type stubFetcher struct {
	pages    map[string]string
	raw      map[string]string
	fetched  []string
	rawCalls []string
}

func (f *stubFetcher) Name() string { return "stub" }

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

func listingPage(urls ...string) string {
	var items []string
	for _, u := range urls {
		items = append(items, fmt.Sprintf(`{"@type":"ListItem","url":"%s"}`, u))
	}
	return `<html><head><script type="application/ld+json">` +
		`{"@type":"ItemList","itemListElement":[` + strings.Join(items, ",") + `]}` +
		`</script></head><body><p>listing</p></body></html>`
}

func childPage(name string) string {
	return `<html><head><script type="application/ld+json">{"@type":"Recipe","name":"` + name +
		`"}</script></head><body><p>` + name + `</p></body></html>`
}

func knownPolicy(domain string) *models.Policy {
	return &models.Policy{
		Domain: domain,
		Fetch:  models.FetchConfig{Strategy: models.StrategyAdaptive, TimeoutMs: 20000},
		Scrape: models.ScrapeConfig{ExtractJSONLD: true},
	}
}

func newTestEngine(t *testing.T, f Fetcher) (*Engine, *store.LocalFsStore) {
	t.Helper()
	ps, err := store.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return New(ps, f, scrape.New(), Options{}), ps
}

func TestExtractKnown_MissingPolicy(t *testing.T) {
	eng, _ := newTestEngine(t, &stubFetcher{})
	_, err := eng.ExtractKnown(context.Background(), "https://example.com/")
	if err == nil {
		t.Fatal("expected missing-policy error")
	}
	qe, ok := err.(*models.QrawlError)
	if !ok || qe.Code != models.ErrCodeMissingPolicy {
		t.Errorf("got %v, want MISSING_POLICY", err)
	}
}

func TestExtractKnown_FollowsItemListChildren(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{
		"https://example.com/list": listingPage("/a", "/b", "/a", "https://other.com/x"),
		"https://example.com/a":    childPage("a"),
		"https://example.com/b":    childPage("b"),
	}}
	eng, ps := newTestEngine(t, f)
	if err := ps.Set(knownPolicy("example.com")); err != nil {
		t.Fatal(err)
	}

	bundle, err := eng.ExtractKnown(context.Background(), "https://example.com/list")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if bundle.Parent.Domain != "example.com" {
		t.Errorf("parent domain = %q", bundle.Parent.Domain)
	}
	// /a deduped, other.com filtered by same-domain scope.
	if len(bundle.Children) != 2 {
		t.Fatalf("children = %d, want 2", len(bundle.Children))
	}
	if bundle.Children[0].URL != "https://example.com/a" || bundle.Children[1].URL != "https://example.com/b" {
		t.Errorf("children order broken: %s, %s", bundle.Children[0].URL, bundle.Children[1].URL)
	}
}

func TestExtractKnown_ChildFailuresSwallowed(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{
		"https://example.com/list": listingPage("/a", "/broken"),
		"https://example.com/a":    childPage("a"),
	}}
	eng, ps := newTestEngine(t, f)
	if err := ps.Set(knownPolicy("example.com")); err != nil {
		t.Fatal(err)
	}

	bundle, err := eng.ExtractKnown(context.Background(), "https://example.com/list")
	if err != nil {
		t.Fatalf("extract must not fail on child errors: %v", err)
	}
	if len(bundle.Children) != 1 {
		t.Errorf("children = %d, want 1 (broken child skipped)", len(bundle.Children))
	}
}

func TestExtractKnown_NoChildrenWithoutItemList(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{
		"https://example.com/page": childPage("solo"),
	}}
	eng, ps := newTestEngine(t, f)
	if err := ps.Set(knownPolicy("example.com")); err != nil {
		t.Fatal(err)
	}

	bundle, err := eng.ExtractKnown(context.Background(), "https://example.com/page")
	if err != nil {
		t.Fatal(err)
	}
	if len(bundle.Children) != 0 {
		t.Errorf("children = %d, want 0", len(bundle.Children))
	}
	if len(f.fetched) != 1 {
		t.Errorf("fetches = %d, want 1 (parent only)", len(f.fetched))
	}
}

func TestExtractKnown_AreaFollowConfigWins(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{
		"https://example.com/list": listingPage("/a", "/b", "/c"),
		"https://example.com/a":    childPage("a"),
		"https://example.com/b":    childPage("b"),
		"https://example.com/c":    childPage("c"),
	}}
	eng, ps := newTestEngine(t, f)

	pol := knownPolicy("example.com")
	pol.Scrape.Areas = []models.AreaPolicy{{
		Roots:       []string{"body"},
		Fields:      models.DefaultFieldSelectors(),
		IsRepeating: true,
		FollowLinks: models.FollowLinks{
			Enabled: true,
			Scope:   models.ScopeSameDomain,
			Max:     2, // tighter than the ItemList default of 10
			Dedupe:  true,
		},
	}}
	if err := ps.Set(pol); err != nil {
		t.Fatal(err)
	}

	bundle, err := eng.ExtractKnown(context.Background(), "https://example.com/list")
	if err != nil {
		t.Fatal(err)
	}
	if len(bundle.Children) != 2 {
		t.Errorf("children = %d, want 2 (area max applies)", len(bundle.Children))
	}
}

func TestExtractKnown_AllowListScope(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{
		"https://example.com/list": listingPage("https://Partner.COM/a", "https://other.com/b"),
		"https://Partner.COM/a":    childPage("a"),
	}}
	eng, ps := newTestEngine(t, f)

	pol := knownPolicy("example.com")
	pol.Scrape.Areas = []models.AreaPolicy{{
		Roots:       []string{"body"},
		Fields:      models.DefaultFieldSelectors(),
		IsRepeating: true,
		FollowLinks: models.FollowLinks{
			Enabled:      true,
			Scope:        models.ScopeAllowList,
			AllowDomains: []string{"partner.com"},
			Max:          10,
			Dedupe:       true,
		},
	}}
	if err := ps.Set(pol); err != nil {
		t.Fatal(err)
	}

	bundle, err := eng.ExtractKnown(context.Background(), "https://example.com/list")
	if err != nil {
		t.Fatal(err)
	}
	if len(bundle.Children) != 1 {
		t.Fatalf("children = %d, want 1 (allow-list is case-insensitive)", len(bundle.Children))
	}
}

func TestExtractAuto_InfersOnceThenUsesStore(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{
		"https://example.com/": listingPage(),
	}}
	eng, ps := newTestEngine(t, f)

	// First call: store is empty, inference runs (robots.txt probes show
	// up as raw calls) and the policy lands on disk.
	if _, err := eng.ExtractAuto(context.Background(), "https://example.com/"); err != nil {
		t.Fatalf("first auto extract: %v", err)
	}
	pol, err := ps.Get("example.com")
	if err != nil || pol == nil {
		t.Fatalf("policy not persisted: %v %v", pol, err)
	}
	if len(f.rawCalls) == 0 {
		t.Fatal("inference should have probed robots.txt/sitemaps")
	}

	// Second call: store hit, no inference.
	rawBefore := len(f.rawCalls)
	if _, err := eng.ExtractAuto(context.Background(), "https://example.com/"); err != nil {
		t.Fatalf("second auto extract: %v", err)
	}
	if len(f.rawCalls) != rawBefore {
		t.Errorf("second call re-ran inference: %d new raw probes", len(f.rawCalls)-rawBefore)
	}
}

func TestExtractAuto_WwwSeedWritesCanonicalPolicy(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{
		"https://www.example.com/": listingPage(),
	}}
	eng, ps := newTestEngine(t, f)

	bundle, err := eng.ExtractAuto(context.Background(), "https://www.example.com/")
	if err != nil {
		t.Fatalf("auto extract: %v", err)
	}
	if bundle.Parent.Domain != "example.com" {
		t.Errorf("parent domain = %q, want canonical example.com", bundle.Parent.Domain)
	}
	pol, err := ps.Get("example.com")
	if err != nil || pol == nil {
		t.Fatalf("policy must be stored under the canonical domain: %v %v", pol, err)
	}
}

package mapper

import (
	"reflect"
	"testing"
)

func mapOne(t *testing.T, fragment, base string) string {
	t.Helper()
	links := MapSiblingLinks([]string{fragment}, base)
	if len(links) != 1 {
		t.Fatalf("expected one link, got %v", links)
	}
	return links[0]
}

func TestPrimaryLink_UtilityTextFiltered(t *testing.T) {
	fragment := `<div><a href="/recipe">Main</a><a href="/share">Share</a></div>`
	if got := mapOne(t, fragment, "https://example.com"); got != "https://example.com/recipe" {
		t.Errorf("got %s, want /recipe (utility link filtered)", got)
	}

	// Utility first in document order still loses.
	fragment = `<div><a href="/share">Share</a><a href="/recipe">Main</a></div>`
	if got := mapOne(t, fragment, "https://example.com"); got != "https://example.com/recipe" {
		t.Errorf("got %s, want /recipe", got)
	}
}

func TestPrimaryLink_HeadingLinkWins(t *testing.T) {
	fragment := `<div>` +
		`<a href="/comments">42 comments</a>` +
		`<h3><a href="/the-recipe">Best Pancakes</a></h3>` +
		`</div>`
	if got := mapOne(t, fragment, "https://example.com"); got != "https://example.com/the-recipe" {
		t.Errorf("got %s, want the heading link", got)
	}
}

func TestPrimaryLink_TextMatchesHeading(t *testing.T) {
	// The anchor is outside any heading but its text equals the h3 text.
	fragment := `<div><h3>Best  Pancakes</h3>` +
		`<a href="/first">Read more</a>` +
		`<a href="/match">best pancakes</a></div>`
	if got := mapOne(t, fragment, "https://example.com"); got != "https://example.com/match" {
		t.Errorf("got %s, want the text-matched link", got)
	}
}

func TestPrimaryLink_DeterministicPriority(t *testing.T) {
	// Two heading links: exact equality (P1) beats containment (P2).
	fragment := `<div><h3>Pancakes</h3>` +
		`<a href="/longer"><strong>Fluffy Pancakes</strong></a>` +
		`<a href="/exact"><strong>Pancakes</strong></a></div>`
	if got := mapOne(t, fragment, "https://example.com"); got != "https://example.com/exact" {
		t.Errorf("got %s, want the exact-match link", got)
	}
}

func TestPrimaryLink_FallbackToFirstValid(t *testing.T) {
	// Only a utility link exists: last-resort fallback returns it.
	fragment := `<div><a href="/share">Share</a></div>`
	if got := mapOne(t, fragment, "https://example.com"); got != "https://example.com/share" {
		t.Errorf("got %s, want the fallback link", got)
	}
}

func TestPrimaryLink_ProtocolRelative(t *testing.T) {
	fragment := `<div><a href="//cdn.example.com/item">Item</a></div>`
	if got := mapOne(t, fragment, "https://example.com"); got != "https://cdn.example.com/item" {
		t.Errorf("got %s, want scheme-resolved protocol-relative URL", got)
	}
}

func TestPrimaryLink_RejectsNonHTTPSchemes(t *testing.T) {
	fragment := `<div><a href="javascript:void(0)">Click</a><a href="mailto:a@b.c">Mail</a></div>`
	if links := MapSiblingLinks([]string{fragment}, "https://example.com"); len(links) != 0 {
		t.Errorf("non-http schemes must be skipped, got %v", links)
	}
}

func TestPrimaryLink_Deterministic(t *testing.T) {
	fragment := `<div><h3>Title</h3><a href="/a">Title</a><a href="/b">Title</a></div>`
	first := mapOne(t, fragment, "https://example.com")
	for i := 0; i < 10; i++ {
		if got := mapOne(t, fragment, "https://example.com"); got != first {
			t.Fatalf("primary link selection not deterministic: %s vs %s", got, first)
		}
	}
}

func TestCleanHref(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`  /path  `, "/path"},
		{`"/quoted"`, "/quoted"},
		{`'/single'`, "/single"},
		{`\"/escaped\"`, "/escaped"},
		{`&quot;/entity&quot;`, "/entity"},
		{`&#39;/apos&#39;`, "/apos"},
	}
	for _, tt := range tests {
		if got := cleanHref(tt.in); got != tt.want {
			t.Errorf("cleanHref(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMapPage_FirstResolvableLink(t *testing.T) {
	fragments := []string{
		`<div><a href="mailto:x@y.z">mail</a><a href="/real">real</a></div>`,
		`<div>no links here</div>`,
		`<div><a href="https://other.com/abs">abs</a></div>`,
	}
	got := MapPage(fragments, "https://example.com")
	want := []string{"https://example.com/real", "https://other.com/abs"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MapPage = %v, want %v", got, want)
	}
}

package mapper

import (
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/use-agent/qrawl/selectors"
)

var utilityTexts = map[string]bool{
	"share":     true,
	"print":     true,
	"save":      true,
	"pin":       true,
	"email":     true,
	"tweet":     true,
	"facebook":  true,
	"pinterest": true,
	"linkedin":  true,
	"reddit":    true,
	"copy link": true,
	"comment":   true,
	"buy":       true,
}

var headingTags = map[string]bool{"h1": true, "h2": true, "h3": true, "h4": true}

// MapSiblingLinks maps each sibling HTML fragment to its primary
// outbound URL. Fragments with no resolvable link are skipped.
func MapSiblingLinks(siblings []string, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" {
		slog.Warn("invalid base URL for sibling link mapping", "base", baseURL)
		return nil
	}

	var out []string
	for _, fragment := range siblings {
		doc, err := html.Parse(strings.NewReader(fragment))
		if err != nil {
			continue
		}
		if link, ok := primaryLink(doc, base); ok {
			out = append(out, link)
		}
	}
	return out
}

// MapPage returns the first resolvable HTTP(S) link of each HTML
// fragment. Unlike primary-link selection this does no heading or
// utility-text analysis; it is the cheap variant for link sweeps.
func MapPage(fragments []string, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" {
		return nil
	}

	var out []string
	for _, fragment := range fragments {
		doc, err := html.Parse(strings.NewReader(fragment))
		if err != nil {
			continue
		}
		for _, anchor := range selectors.Link.MatchAll(doc) {
			if resolved, ok := resolveHref(attrVal(anchor, "href"), base); ok {
				out = append(out, resolved)
				break
			}
		}
	}
	return out
}

// cleanHref strips escape sequences, quote entities, and stray quotes.
// Malformed HTML in the wild carries hrefs with literal backslashes and
// entity-encoded quotes.
func cleanHref(href string) string {
	r := strings.NewReplacer(`\`, "", "&quot;", "", "&#34;", "", "&apos;", "", "&#39;", "")
	cleaned := strings.TrimSpace(r.Replace(href))
	cleaned = strings.Trim(cleaned, `"'`)
	return strings.TrimSpace(cleaned)
}

func isValidScheme(u *url.URL) bool {
	return u.Scheme == "http" || u.Scheme == "https"
}

// resolveHref cleans and resolves an href against the base, handling
// protocol-relative forms, and accepts only http/https results.
func resolveHref(href string, base *url.URL) (string, bool) {
	href = cleanHref(href)
	if href == "" {
		return "", false
	}

	var resolved *url.URL
	if strings.HasPrefix(href, "//") {
		u, err := url.Parse(base.Scheme + ":" + href)
		if err != nil {
			return "", false
		}
		resolved = u
	} else {
		u, err := url.Parse(href)
		if err != nil {
			return "", false
		}
		if u.IsAbs() {
			resolved = u
		} else {
			resolved = base.ResolveReference(u)
		}
	}

	if !isValidScheme(resolved) {
		return "", false
	}
	return resolved.String(), true
}

func attrVal(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// normalizeText lowercases and collapses whitespace to single spaces.
func normalizeText(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

func hasMeaningfulText(text string) bool {
	return strings.TrimSpace(text) != ""
}

func isUtilityText(text string) bool {
	return utilityTexts[strings.ToLower(strings.TrimSpace(text))]
}

// isHeadingLink reports whether an anchor is structurally a heading
// link: the anchor itself or an ancestor is h1..h4, a descendant is a
// heading or strong/b with meaningful text, or an ancestor is strong/b.
func isHeadingLink(anchor *html.Node, text string) bool {
	if !hasMeaningfulText(text) {
		return false
	}
	if headingTags[anchor.Data] {
		return true
	}
	for _, tag := range []string{"h1", "h2", "h3", "h4"} {
		if insideTag(anchor, tag) {
			return true
		}
	}

	found := false
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found {
			return
		}
		if n != anchor && n.Type == html.ElementNode {
			if (headingTags[n.Data] || n.Data == "strong" || n.Data == "b") &&
				hasMeaningfulText(nodeText(n)) {
				found = true
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(anchor)
	if found {
		return true
	}

	return insideTag(anchor, "strong") || insideTag(anchor, "b")
}

// collectHeadingTexts gathers the normalized text of every h1..h4
// inside an element.
func collectHeadingTexts(root *html.Node) []string {
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && headingTags[n.Data] {
			if text := normalizeText(nodeText(n)); text != "" {
				out = append(out, text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func linkMatchesHeading(linkText string, headings []string) bool {
	if linkText == "" {
		return false
	}
	for _, h := range headings {
		if h == "" {
			continue
		}
		if linkText == h || strings.Contains(linkText, h) || strings.Contains(h, linkText) {
			return true
		}
	}
	return false
}

type headingLink struct {
	url  string
	text string
}

// primaryLink selects the single primary outbound URL of an element's
// subtree.
//
// Heading links win over merely meaningful links, which win over any
// valid link as last resort. When several heading links compete, the
// tie-break is deterministic: exact text match with a heading, then
// link-contains-heading, then heading-contains-link, then the last
// heading link in document order.
func primaryLink(root *html.Node, base *url.URL) (string, bool) {
	headings := collectHeadingTexts(root)

	var headingLinks []headingLink
	var meaningful, fallback string

	for _, anchor := range selectors.Link.MatchAll(root) {
		resolved, ok := resolveHref(attrVal(anchor, "href"), base)
		if !ok {
			continue
		}
		if fallback == "" {
			fallback = resolved
		}

		rawText := nodeText(anchor)
		normText := normalizeText(rawText)

		if isHeadingLink(anchor, rawText) || linkMatchesHeading(normText, headings) {
			headingLinks = append(headingLinks, headingLink{url: resolved, text: normText})
		}
		if meaningful == "" && hasMeaningfulText(rawText) && !isUtilityText(rawText) {
			meaningful = resolved
		}
	}

	switch len(headingLinks) {
	case 0:
		// fall through to meaningful / fallback
	case 1:
		return headingLinks[0].url, true
	default:
		// P1: exact text equality with some heading.
		for _, hl := range headingLinks {
			for _, h := range headings {
				if hl.text == h {
					return hl.url, true
				}
			}
		}
		// P2: link text contains some heading.
		for _, hl := range headingLinks {
			for _, h := range headings {
				if h != "" && strings.Contains(hl.text, h) {
					return hl.url, true
				}
			}
		}
		// P3: some heading contains link text.
		for _, hl := range headingLinks {
			for _, h := range headings {
				if hl.text != "" && strings.Contains(h, hl.text) {
					return hl.url, true
				}
			}
		}
		// P4: last heading link in document order.
		return headingLinks[len(headingLinks)-1].url, true
	}

	if meaningful != "" {
		return meaningful, true
	}
	if fallback != "" {
		return fallback, true
	}
	return "", false
}

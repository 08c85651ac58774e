// Package cleaner provides HTML cleanup utilities: junk-element and
// junk-attribute stripping, main-content region lookup, and
// CSS-selector filtered extraction.
package cleaner

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Regex-based cleaning is deliberately cheap: it runs before parsing on
// bodies that may be megabytes of framework noise, and it preserves
// content structure.
var (
	reScript   = regexp.MustCompile(`(?s)<script[^>]*>.*?</script>`)
	reStyle    = regexp.MustCompile(`(?s)<style[^>]*>.*?</style>`)
	reNoscript = regexp.MustCompile(`(?s)<noscript[^>]*>.*?</noscript>`)
	reIframe   = regexp.MustCompile(`(?s)<iframe[^>]*>.*?</iframe>`)
	reSVG      = regexp.MustCompile(`(?s)<svg[^>]*>.*?</svg>`)
	reNav      = regexp.MustCompile(`(?s)<nav[^>]*>.*?</nav>`)
	reHeader   = regexp.MustCompile(`(?s)<header[^>]*>.*?</header>`)
	reFooter   = regexp.MustCompile(`(?s)<footer[^>]*>.*?</footer>`)
	reAside    = regexp.MustCompile(`(?s)<aside[^>]*>.*?</aside>`)
	reForm     = regexp.MustCompile(`(?s)<form[^>]*>.*?</form>`)
	reComment  = regexp.MustCompile(`<!--.*?-->`)

	// One pass over the common junk attributes in every quote style.
	reJunkAttr = regexp.MustCompile(`(?i)\s+(?:class|id|style|data-[\w-]+|aria-[\w-]+|role|tabindex|xmlns(?::[\w-]+)?|version|viewBox|fill|fill-rule|stroke(?:-[\w-]+)?|on[\w-]+)\s*=\s*(?:"[^"]*"|'[^']*'|[^\s>]+)`)

	reWhitespace = regexp.MustCompile(`\s+`)
	reNewlineLit = regexp.MustCompile(`\\n`)
)

// Clean strips scripts, styles, chrome elements, comments, and junk
// attributes from raw HTML, then collapses whitespace.
func Clean(rawHTML string) string {
	cleaned := reNewlineLit.ReplaceAllString(rawHTML, " ")

	for _, re := range []*regexp.Regexp{
		reScript, reStyle, reNoscript, reIframe, reSVG,
		reNav, reHeader, reFooter, reAside, reForm, reComment,
	} {
		cleaned = re.ReplaceAllString(cleaned, "")
	}

	cleaned = reJunkAttr.ReplaceAllString(cleaned, "")
	cleaned = reWhitespace.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// mainCandidates are tried in order; the first match wins.
var mainCandidates = []cascadia.Selector{
	cascadia.MustCompile("main"),
	cascadia.MustCompile("article"),
	cascadia.MustCompile("[role='main']"),
	cascadia.MustCompile("#content"),
	cascadia.MustCompile(".content"),
	cascadia.MustCompile("body"),
}

// MainContent returns the outer HTML of the page's main content region:
// the first match among main, article, [role=main], #content, .content,
// and body, falling back to the whole document.
func MainContent(rawHTML string) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return rawHTML
	}
	for _, sel := range mainCandidates {
		if node := sel.MatchFirst(doc); node != nil {
			return renderNode(node)
		}
	}
	return renderNode(doc)
}

// ApplyCSSSelector parses rawHTML, matches elements against the given
// CSS selector, and returns the concatenated outer HTML of all matched
// elements.
//
// If no elements match, the original rawHTML is returned unchanged so
// that downstream processing still has something to work with.
func ApplyCSSSelector(rawHTML, selector string) (string, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return "", err
	}

	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", err
	}

	matches := sel.MatchAll(doc)
	if len(matches) == 0 {
		return rawHTML, nil
	}

	var buf bytes.Buffer
	for _, node := range matches {
		if err := html.Render(&buf, node); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

func renderNode(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return buf.String()
}

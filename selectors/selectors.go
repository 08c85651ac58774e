// Package selectors holds the process-wide compiled CSS selectors for
// the hot paths. Compilation happens once at package init; the compiled
// values are read-only afterwards and safe for concurrent use.
package selectors

import "github.com/andybalholm/cascadia"

var (
	// Link matches anchor elements that carry an href.
	Link = cascadia.MustCompile("a[href]")

	// JSONLD matches JSON-LD script tags.
	JSONLD = cascadia.MustCompile("script[type='application/ld+json']")

	// Body matches the document body.
	Body = cascadia.MustCompile("body")

	// Title matches the document title tag.
	Title = cascadia.MustCompile("title")

	// Meta matches metadata tags with name or property attributes.
	Meta = cascadia.MustCompile("meta[name], meta[property]")

	// HTMLLang matches the root element when it declares a language.
	HTMLLang = cascadia.MustCompile("html[lang]")
)

package mapper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/use-agent/qrawl/domain"
	"github.com/use-agent/qrawl/scrape"
	"github.com/use-agent/qrawl/selectors"
)

// ItemLists walks every JSON-LD script in a document and collects any
// object whose @type is ItemList, looking recursively through arrays,
// @graph containers, and mainEntity. The walk is structural: @graph is
// treated as a container and @id references are never dereferenced, so
// cyclic graphs are safe.
func ItemLists(doc *html.Node) []map[string]any {
	var out []map[string]any
	for _, script := range selectors.JSONLD.MatchAll(doc) {
		vals, ok := scrape.ParseJSONLDBlock(nodeText(script))
		if !ok {
			continue
		}
		for _, v := range vals {
			collectItemLists(v, &out)
		}
	}
	return out
}

func collectItemLists(v any, out *[]map[string]any) {
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			collectItemLists(item, out)
		}
	case map[string]any:
		if TypeIsItemList(val["@type"]) {
			*out = append(*out, val)
		}
		if graph, ok := val["@graph"]; ok {
			collectItemLists(graph, out)
		}
		if main, ok := val["mainEntity"]; ok {
			collectItemLists(main, out)
		}
	}
}

// TypeIsItemList matches a JSON-LD @type value against ItemList,
// case-insensitively, in both string and array form.
func TypeIsItemList(t any) bool {
	switch v := t.(type) {
	case string:
		return strings.EqualFold(v, "ItemList")
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.EqualFold(s, "ItemList") {
				return true
			}
		}
	}
	return false
}

// ContainsItemList reports whether a parsed JSON-LD value carries an
// ItemList anywhere: as its own @type, nested under @graph, via an
// itemListElement key, or deeper in the object tree.
func ContainsItemList(v any) bool {
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			if ContainsItemList(item) {
				return true
			}
		}
	case map[string]any:
		if TypeIsItemList(val["@type"]) {
			return true
		}
		if _, ok := val["itemListElement"]; ok {
			return true
		}
		if graph, ok := val["@graph"]; ok && ContainsItemList(graph) {
			return true
		}
		for _, nested := range val {
			if ContainsItemList(nested) {
				return true
			}
		}
	}
	return false
}

// ItemListLinks parses a page, finds its JSON-LD ItemLists, and
// resolves each element to one URL. Anchor references are looked up in
// the document and run through primary-link selection.
func ItemListLinks(htmlStr, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" {
		return nil
	}
	doc, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return nil
	}
	return resolveItemLists(ItemLists(doc), doc, base)
}

// ItemListURLsFromValues resolves ItemList objects that were already
// extracted (for example out of a PageExtraction's json_ld) against a
// parsed document.
func ItemListURLsFromValues(values []any, doc *html.Node, base *url.URL) []string {
	var lists []map[string]any
	for _, v := range values {
		collectItemLists(v, &lists)
	}
	return resolveItemLists(lists, doc, base)
}

func resolveItemLists(lists []map[string]any, doc *html.Node, base *url.URL) []string {
	var out []string
	for _, list := range lists {
		elements, ok := list["itemListElement"]
		if !ok {
			continue
		}
		switch v := elements.(type) {
		case []any:
			for _, elem := range v {
				if resolved, ok := resolveElement(elem, doc, base); ok {
					out = append(out, resolved)
				}
			}
		default:
			if resolved, ok := resolveElement(v, doc, base); ok {
				out = append(out, resolved)
			}
		}
	}
	return out
}

// elementURL picks the reference string out of one itemListElement.
// ItemLists carry either ListItems ({url} or {item:{url|@id}}) or bare
// Things ({url|@id}).
func elementURL(elem any) (string, bool) {
	obj, ok := elem.(map[string]any)
	if !ok {
		return "", false
	}
	if u, ok := obj["url"].(string); ok && u != "" {
		return u, true
	}
	if item, ok := obj["item"].(map[string]any); ok {
		if u, ok := item["url"].(string); ok && u != "" {
			return u, true
		}
		if u, ok := item["@id"].(string); ok && u != "" {
			return u, true
		}
	}
	if u, ok := obj["@id"].(string); ok && u != "" {
		return u, true
	}
	return "", false
}

// resolveElement maps one itemListElement to a URL:
//
//  1. "#fragment" references resolve through the matching [id=...]
//     element's primary link.
//  2. Absolute same-site URLs with a fragment resolve the same way
//     (hosts compared canonically, so www variants still match).
//  3. Other absolute http(s) URLs pass through as-is.
//  4. Anything else resolves relative against the base.
func resolveElement(elem any, doc *html.Node, base *url.URL) (string, bool) {
	ref, ok := elementURL(elem)
	if !ok {
		return "", false
	}

	if frag, found := strings.CutPrefix(ref, "#"); found {
		return anchorLink(frag, doc, base)
	}

	if u, err := url.Parse(ref); err == nil && u.IsAbs() {
		if !isValidScheme(u) {
			return "", false
		}
		if u.Fragment != "" &&
			u.Scheme == base.Scheme &&
			domain.Canonicalize(u.Hostname()) == domain.Canonicalize(base.Hostname()) {
			return anchorLink(u.Fragment, doc, base)
		}
		return u.String(), true
	}

	return resolveHref(ref, base)
}

// anchorLink finds the element carrying the given id and applies
// primary-link selection to its subtree. The selector is built per
// call; anchor references are rare enough that caching does not pay.
func anchorLink(id string, doc *html.Node, base *url.URL) (string, bool) {
	sel, err := cascadia.Compile(fmt.Sprintf("[id='%s']", id))
	if err != nil {
		return "", false
	}
	target := sel.MatchFirst(doc)
	if target == nil {
		return "", false
	}
	return primaryLink(target, base)
}

// Package mapper mines repeating structure out of arbitrary HTML:
// sibling groups that represent listings, the single primary outbound
// link of each sibling, and JSON-LD ItemList references resolved to
// real URLs.
package mapper

import (
	"bytes"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// Minimum number of siblings required to form a valid group.
const minGroupSize = 3

// Minimum shared prefix length when merging single-element patterns.
const minCommonPrefix = 2

var junkTags = map[string]bool{
	"script":   true,
	"style":    true,
	"iframe":   true,
	"noscript": true,
}

var navTags = []string{"nav", "footer", "aside", "header"}

// siblingGroup is one candidate repeating listing.
//
// Groups are scored against each other to find the best group on a
// page. Scoring hierarchy: !inNavigation > inMain > coverage >
// quantity > patternLen.
type siblingGroup struct {
	inMain       bool
	inNavigation bool
	patternLen   int
	siblings     []string
}

func (g *siblingGroup) coverage() int { return g.patternLen * len(g.siblings) }

// betterThan compares two groups by the ordered key. Equal keys favor
// the receiver so that later discoveries win ties.
func (g *siblingGroup) betterThan(other *siblingGroup) bool {
	if g.inNavigation != other.inNavigation {
		return !g.inNavigation
	}
	if g.inMain != other.inMain {
		return g.inMain
	}
	if g.coverage() != other.coverage() {
		return g.coverage() > other.coverage()
	}
	if len(g.siblings) != len(other.siblings) {
		return len(g.siblings) > len(other.siblings)
	}
	return g.patternLen >= other.patternLen
}

// Siblings detects the best repeating sibling group in a document and
// returns the HTML fragment of each sibling, in document order.
//
// Every DOM level is scanned for two kinds of repetition: single
// elements whose child-tag patterns share a common prefix (tolerating
// optional trailing badges), and multi-element windows that repeat as a
// unit. All discovered groups compete under the scoring hierarchy.
func Siblings(htmlStr string) []string {
	doc, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return nil
	}

	var groups []*siblingGroup
	collectGroups(doc, &groups)

	var best *siblingGroup
	for _, g := range groups {
		if best == nil || g.betterThan(best) {
			best = g
		}
	}
	if best == nil {
		return nil
	}
	return best.siblings
}

// SiblingLinks detects the best sibling group and maps each sibling to
// its primary outbound URL.
func SiblingLinks(htmlStr, baseURL string) []string {
	return MapSiblingLinks(Siblings(htmlStr), baseURL)
}

// structurePattern is the ordered list of an element's direct child tag
// names.
func structurePattern(n *html.Node) []string {
	var tags []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			tags = append(tags, c.Data)
		}
	}
	return tags
}

func elementChildren(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && !junkTags[c.Data] {
			out = append(out, c)
		}
	}
	return out
}

func insideTag(n *html.Node, tag string) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == tag {
			return true
		}
	}
	return false
}

func insideAny(n *html.Node, tags []string) bool {
	for _, tag := range tags {
		if insideTag(n, tag) {
			return true
		}
	}
	return false
}

func renderNode(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return buf.String()
}

// collectGroups recursively scans the tree, emitting candidate groups
// at every level before descending.
func collectGroups(n *html.Node, groups *[]*siblingGroup) {
	if n.Type == html.ElementNode || n.Type == html.DocumentNode {
		children := elementChildren(n)

		if len(children) >= minGroupSize {
			singleElementGroups(children, groups)
			multiElementGroups(children, groups)
		}

		for _, child := range children {
			collectGroups(child, groups)
		}
		return
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectGroups(c, groups)
	}
}

// singleElementGroups buckets peers by structure pattern using
// common-prefix matching: two patterns belong together when they agree
// on at least the first two tags, and a merged group keeps the shorter
// pattern as its core. This tolerates rows that are mostly uniform but
// carry optional trailing elements.
func singleElementGroups(children []*html.Node, groups *[]*siblingGroup) {
	type bucket struct {
		tags    []string
		indices []int
	}
	var buckets []*bucket

	for idx, child := range children {
		pattern := structurePattern(child)

		matched := false
		for _, b := range buckets {
			minLen := len(b.tags)
			if len(pattern) < minLen {
				minLen = len(pattern)
			}
			if minLen >= minCommonPrefix && equalPrefix(b.tags, pattern, minLen) {
				b.indices = append(b.indices, idx)
				if len(pattern) < len(b.tags) {
					b.tags = append([]string(nil), pattern...)
				}
				matched = true
				break
			}
		}
		if !matched {
			buckets = append(buckets, &bucket{tags: append([]string(nil), pattern...), indices: []int{idx}})
		}
	}

	for _, b := range buckets {
		if len(b.indices) < minGroupSize || len(b.tags) == 0 {
			continue
		}
		siblings := make([]string, 0, len(b.indices))
		for _, i := range b.indices {
			siblings = append(siblings, renderNode(children[i]))
		}
		first := children[b.indices[0]]
		*groups = append(*groups, &siblingGroup{
			inMain:       insideTag(first, "main"),
			inNavigation: insideAny(first, navTags),
			patternLen:   1,
			siblings:     siblings,
		})
	}
}

func equalPrefix(a, b []string, n int) bool {
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// multiElementGroups finds sequences like h3+p+a that repeat as a unit.
// For each window size k it buckets every length-k window by its tuple
// of structure patterns, drops homogeneous windows (already covered by
// single-element detection), greedily selects non-overlapping
// occurrences in discovery order, and emits groups of at least three.
func multiElementGroups(children []*html.Node, groups *[]*siblingGroup) {
	n := len(children)

	patterns := make([][]string, n)
	for i, c := range children {
		patterns[i] = structurePattern(c)
	}

	for patternLen := 2; patternLen <= n/2; patternLen++ {
		if n < patternLen*minGroupSize {
			break
		}

		occurrences := make(map[string][]int)
		var keyOrder []string
		for idx := 0; idx+patternLen <= n; idx++ {
			key := windowKey(patterns[idx : idx+patternLen])
			if _, seen := occurrences[key]; !seen {
				keyOrder = append(keyOrder, key)
			}
			occurrences[key] = append(occurrences[key], idx)
		}
		// Deterministic emission order regardless of map iteration.
		sort.Strings(keyOrder)

		for _, key := range keyOrder {
			starts := occurrences[key]
			if len(starts) < minGroupSize {
				continue
			}
			if homogeneousWindow(patterns[starts[0] : starts[0]+patternLen]) {
				continue
			}

			var selected []int
			for _, idx := range starts {
				overlaps := false
				for _, s := range selected {
					if idx < s+patternLen && s < idx+patternLen {
						overlaps = true
						break
					}
				}
				if !overlaps {
					selected = append(selected, idx)
				}
			}
			if len(selected) < minGroupSize {
				continue
			}

			siblings := make([]string, 0, len(selected))
			for _, start := range selected {
				var sb strings.Builder
				for off := 0; off < patternLen; off++ {
					sb.WriteString(renderNode(children[start+off]))
				}
				siblings = append(siblings, sb.String())
			}
			first := children[selected[0]]
			*groups = append(*groups, &siblingGroup{
				inMain:       insideTag(first, "main"),
				inNavigation: insideAny(first, navTags),
				patternLen:   patternLen,
				siblings:     siblings,
			})
		}
	}
}

func windowKey(window [][]string) string {
	var sb strings.Builder
	for i, pattern := range window {
		if i > 0 {
			sb.WriteByte('|')
		}
		sb.WriteString(strings.Join(pattern, ">"))
	}
	return sb.String()
}

func homogeneousWindow(window [][]string) bool {
	first := strings.Join(window[0], ">")
	for _, p := range window[1:] {
		if strings.Join(p, ">") != first {
			return false
		}
	}
	return true
}

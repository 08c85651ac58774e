// Package scrape turns fetched HTML into a structured PageExtraction
// by applying a policy's area selectors and collecting JSON-LD.
package scrape

import (
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/use-agent/qrawl/domain"
	"github.com/use-agent/qrawl/models"
	"github.com/use-agent/qrawl/selectors"
)

var (
	liSel   = cascadia.MustCompile("li")
	trSel   = cascadia.MustCompile("tr")
	cellSel = cascadia.MustCompile("td, th")
)

// Scraper applies a ScrapeConfig to raw HTML. The zero value is ready
// to use; parsing is synchronous and CPU-bound.
type Scraper struct{}

// New returns a Scraper.
func New() *Scraper { return &Scraper{} }

// Name identifies the implementation in logs.
func (s *Scraper) Name() string { return "goquery-scraper" }

// Scrape parses html and produces the structured extraction for a URL
// under the given config: JSON-LD blocks in document order, then one
// AreaContent per matched area root.
func (s *Scraper) Scrape(rawURL, html string, cfg *models.ScrapeConfig) (*models.PageExtraction, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, models.NewOther("parse html", err)
	}

	var jsonLD []any
	if cfg.ExtractJSONLD {
		doc.FindMatcher(selectors.JSONLD).Each(func(_ int, script *goquery.Selection) {
			if vals, ok := ParseJSONLDBlock(script.Text()); ok {
				jsonLD = append(jsonLD, vals...)
			}
		})
	}

	var areas []models.AreaContent
	for i := range cfg.Areas {
		areas = append(areas, scrapeArea(doc, &cfg.Areas[i])...)
	}

	host := ""
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = domain.Canonicalize(u.Hostname())
	}

	return &models.PageExtraction{
		URL:       rawURL,
		Domain:    host,
		Areas:     areas,
		JSONLD:    jsonLD,
		FetchedAt: time.Now().UTC(),
	}, nil
}

func compileList(sels []string) []cascadia.Selector {
	out := make([]cascadia.Selector, 0, len(sels))
	for _, raw := range sels {
		sel, err := cascadia.Compile(raw)
		if err != nil {
			slog.Debug("skipping invalid selector", "selector", raw, "error", err)
			continue
		}
		out = append(out, sel)
	}
	return out
}

// scrapeArea emits one AreaContent per matched root. Roots containing a
// match for any exclude_within selector are skipped entirely, and a
// non-repeating area stops after the first match of each root selector.
func scrapeArea(doc *goquery.Document, area *models.AreaPolicy) []models.AreaContent {
	if len(area.Roots) == 0 {
		return nil
	}

	excludes := compileList(area.ExcludeWithin)
	fields := compiledFields{
		title:      compileList(area.Fields.Title),
		headings:   compileList(area.Fields.Headings),
		paragraphs: compileList(area.Fields.Paragraphs),
		images:     compileList(area.Fields.Images),
		links:      compileList(area.Fields.Links),
		lists:      compileList(area.Fields.Lists),
		tables:     compileList(area.Fields.Tables),
	}

	var out []models.AreaContent
	for _, rawSel := range area.Roots {
		rootSel, err := cascadia.Compile(rawSel)
		if err != nil {
			slog.Debug("skipping invalid root selector", "selector", rawSel, "error", err)
			continue
		}

		doc.FindMatcher(rootSel).EachWithBreak(func(_ int, root *goquery.Selection) bool {
			for _, excl := range excludes {
				if root.FindMatcher(excl).Length() > 0 {
					return true
				}
			}

			content := models.AreaContent{
				Role:                area.Role,
				RootSelectorMatched: rawSel,
				Title:               firstText(root, fields.title),
				Content:             collectBlocks(root, &fields),
			}
			out = append(out, content)
			return area.IsRepeating
		})
	}
	return out
}

type compiledFields struct {
	title, headings, paragraphs, images, links, lists, tables []cascadia.Selector
}

func firstText(root *goquery.Selection, sels []cascadia.Selector) string {
	for _, sel := range sels {
		found := ""
		root.FindMatcher(sel).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			if txt := strings.TrimSpace(el.Text()); txt != "" {
				found = txt
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}

func matchesAny(sels []cascadia.Selector, sel *goquery.Selection) bool {
	node := sel.Get(0)
	for _, s := range sels {
		if s.Match(node) {
			return true
		}
	}
	return false
}

// collectBlocks walks all descendants of a root in document order and
// emits exactly one ContentBlock per element whose tag belongs to a
// field family and matches one of that family's selectors. Empty blocks
// are dropped.
func collectBlocks(root *goquery.Selection, fields *compiledFields) []models.ContentBlock {
	var out []models.ContentBlock

	root.Find("*").Each(func(_ int, el *goquery.Selection) {
		tag := goquery.NodeName(el)
		switch tag {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			if !matchesAny(fields.headings, el) {
				return
			}
			if text := strings.TrimSpace(el.Text()); text != "" {
				out = append(out, models.ContentBlock{
					Type:  models.BlockHeading,
					Text:  text,
					Level: int(tag[1] - '0'),
				})
			}
		case "p":
			if !matchesAny(fields.paragraphs, el) {
				return
			}
			if text := strings.TrimSpace(el.Text()); text != "" {
				out = append(out, models.ContentBlock{Type: models.BlockParagraph, Text: text})
			}
		case "img":
			if !matchesAny(fields.images, el) {
				return
			}
			if src, ok := el.Attr("src"); ok {
				block := models.ContentBlock{Type: models.BlockImage, Src: src}
				if alt, ok := el.Attr("alt"); ok {
					block.Alt = &alt
				}
				out = append(out, block)
			}
		case "a":
			if !matchesAny(fields.links, el) {
				return
			}
			if href, ok := el.Attr("href"); ok {
				out = append(out, models.ContentBlock{
					Type: models.BlockLink,
					Href: href,
					Text: strings.TrimSpace(el.Text()),
				})
			}
		case "ul", "ol":
			if !matchesAny(fields.lists, el) {
				return
			}
			var items []string
			el.FindMatcher(liSel).Each(func(_ int, li *goquery.Selection) {
				if text := strings.TrimSpace(li.Text()); text != "" {
					items = append(items, text)
				}
			})
			if len(items) > 0 {
				out = append(out, models.ContentBlock{Type: models.BlockList, Items: items})
			}
		case "table":
			if !matchesAny(fields.tables, el) {
				return
			}
			var rows [][]string
			el.FindMatcher(trSel).Each(func(_ int, tr *goquery.Selection) {
				var cells []string
				tr.FindMatcher(cellSel).Each(func(_ int, cell *goquery.Selection) {
					cells = append(cells, strings.TrimSpace(cell.Text()))
				})
				if len(cells) > 0 {
					rows = append(rows, cells)
				}
			})
			if len(rows) > 0 {
				out = append(out, models.ContentBlock{Type: models.BlockTable, Rows: rows})
			}
		}
	})

	return out
}

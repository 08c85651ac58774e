package scrape

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/qrawl/selectors"
)

// MetaTag is one piece of page metadata: the document title, a
// meta[name|property] pair, or the declared language.
type MetaTag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// BodyContent returns the outer HTML of the document body, or the
// input unchanged when no body can be found.
func BodyContent(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	body := doc.FindMatcher(selectors.Body)
	if body.Length() == 0 {
		return html
	}
	out, err := goquery.OuterHtml(body.First())
	if err != nil {
		return html
	}
	return out
}

// MetadataTags collects the document title, every meta tag carrying a
// name or property, and the html lang attribute.
func MetadataTags(html string) []MetaTag {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var tags []MetaTag

	if title := strings.TrimSpace(doc.FindMatcher(selectors.Title).First().Text()); title != "" {
		tags = append(tags, MetaTag{Key: "title", Value: title})
	}

	doc.FindMatcher(selectors.Meta).Each(func(_ int, el *goquery.Selection) {
		key, ok := el.Attr("name")
		if !ok {
			key, ok = el.Attr("property")
		}
		if !ok {
			return
		}
		if value, ok := el.Attr("content"); ok && strings.TrimSpace(value) != "" {
			tags = append(tags, MetaTag{Key: key, Value: value})
		}
	})

	if lang, ok := doc.FindMatcher(selectors.HTMLLang).First().Attr("lang"); ok && lang != "" {
		tags = append(tags, MetaTag{Key: "lang", Value: lang})
	}

	return tags
}

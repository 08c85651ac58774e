package models

import "time"

// BlockType discriminates ContentBlock variants.
type BlockType string

const (
	BlockHeading   BlockType = "heading"
	BlockParagraph BlockType = "paragraph"
	BlockImage     BlockType = "image"
	BlockLink      BlockType = "link"
	BlockList      BlockType = "list"
	BlockTable     BlockType = "table"
)

// ContentBlock is one extracted unit of page content. Exactly the
// fields of the variant named by Type are populated.
type ContentBlock struct {
	Type  BlockType  `json:"type"`
	Text  string     `json:"text,omitempty"`
	Level int        `json:"level,omitempty"` // headings: 1..6
	Src   string     `json:"src,omitempty"`
	Alt   *string    `json:"alt,omitempty"`
	Href  string     `json:"href,omitempty"`
	Items []string   `json:"items,omitempty"`
	Rows  [][]string `json:"rows,omitempty"`
}

// AreaContent is the extraction of one matched area root.
type AreaContent struct {
	Role                AreaRole       `json:"role"`
	RootSelectorMatched string         `json:"root_selector_matched"`
	Title               string         `json:"title,omitempty"`
	Content             []ContentBlock `json:"content"`
}

// PageExtraction is the structured result of scraping one page.
type PageExtraction struct {
	URL       string            `json:"url"`
	Domain    string            `json:"domain"`
	Areas     []AreaContent `json:"areas"`
	JSONLD    []any         `json:"json_ld"`
	FetchedAt time.Time     `json:"fetched_at"`
}

// ExtractionBundle pairs a parent extraction with its followed
// children.
type ExtractionBundle struct {
	Parent   *PageExtraction   `json:"parent"`
	Children []*PageExtraction `json:"children"`
}

// APIResponse is the envelope the CLI prints. The HTTP handlers emit the
// same ok/data keys but carry errors as an ErrorDetail object.
type APIResponse[T any] struct {
	OK    bool   `json:"ok"`
	Data  *T     `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// OK wraps a successful payload.
func OK[T any](data T) APIResponse[T] {
	return APIResponse[T]{OK: true, Data: &data}
}

// Err wraps a failure message.
func Err[T any](msg string) APIResponse[T] {
	return APIResponse[T]{OK: false, Error: msg}
}

package models

import (
	"encoding/json"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// FetchStrategy selects how many browser profiles the fetch ladder may
// try for a single URL.
type FetchStrategy string

const (
	// StrategyFast attempts exactly one profile (Minimal).
	StrategyFast FetchStrategy = "fast"
	// StrategyAdaptive walks the profile ladder Minimal → Windows → IOS
	// with brief delays in between.
	StrategyAdaptive FetchStrategy = "adaptive"
)

// HeaderSet is an ordered, case-preserving mapping from header name to
// value. Iteration order is insertion order and stable for any single
// build.
type HeaderSet struct {
	m *orderedmap.OrderedMap[string, string]
}

// NewHeaderSet returns an empty HeaderSet.
func NewHeaderSet() *HeaderSet {
	return &HeaderSet{m: orderedmap.New[string, string]()}
}

// With inserts or replaces a header and returns the set for chaining.
func (h *HeaderSet) With(name, value string) *HeaderSet {
	if h.m == nil {
		h.m = orderedmap.New[string, string]()
	}
	h.m.Set(name, value)
	return h
}

// Len returns the number of headers in the set.
func (h *HeaderSet) Len() int {
	if h == nil || h.m == nil {
		return 0
	}
	return h.m.Len()
}

// Each calls fn for every header in insertion order.
func (h *HeaderSet) Each(fn func(name, value string)) {
	if h == nil || h.m == nil {
		return
	}
	for pair := h.m.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

func (h *HeaderSet) MarshalJSON() ([]byte, error) {
	if h == nil || h.m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(h.m)
}

func (h *HeaderSet) UnmarshalJSON(data []byte) error {
	m := orderedmap.New[string, string]()
	if err := json.Unmarshal(data, m); err != nil {
		return err
	}
	h.m = m
	return nil
}

// FetchConfig is the persisted per-domain fetch behavior.
type FetchConfig struct {
	Strategy         FetchStrategy `json:"strategy"`
	TimeoutMs        uint64        `json:"timeout_ms"`
	RespectRobotsTxt bool          `json:"respect_robots_txt"`
	DefaultHeaders   *HeaderSet    `json:"default_headers,omitempty"`
}

// AreaRole labels what part of the page an area policy targets.
type AreaRole string

const (
	RoleMain    AreaRole = "main"
	RoleSection AreaRole = "section"
	RoleSidebar AreaRole = "sidebar"
	RoleHeader  AreaRole = "header"
	RoleFooter  AreaRole = "footer"
	RoleUnknown AreaRole = "unknown"
)

// FieldSelectors holds per-field CSS selector lists for an area.
type FieldSelectors struct {
	Title      []string `json:"title"`
	Headings   []string `json:"headings"`
	Paragraphs []string `json:"paragraphs"`
	Images     []string `json:"images"`
	Links      []string `json:"links"`
	Lists      []string `json:"lists"`
	Tables     []string `json:"tables"`
}

// DefaultFieldSelectors returns the selector set used by inferred
// policies.
func DefaultFieldSelectors() FieldSelectors {
	return FieldSelectors{
		Title:      []string{"h1", ".title", ".entry-title"},
		Headings:   []string{"h2", "h3", "h4", "h5", "h6"},
		Paragraphs: []string{"p"},
		Images:     []string{"img"},
		Links:      []string{"a[href]"},
		Lists:      []string{"ul", "ol"},
		Tables:     []string{"table"},
	}
}

// FollowScope restricts which child URLs an extraction may follow.
type FollowScope string

const (
	ScopeSameDomain FollowScope = "same_domain"
	ScopeAnyDomain  FollowScope = "any_domain"
	ScopeAllowList  FollowScope = "allow_list"
)

// FollowLinks controls child-page following for an area.
type FollowLinks struct {
	Enabled      bool        `json:"enabled"`
	Scope        FollowScope `json:"scope"`
	AllowDomains []string    `json:"allow_domains"`
	Max          uint32      `json:"max"`
	Dedupe       bool        `json:"dedupe"`
}

// AreaPolicy describes one extraction region. An area matches when any
// root selector matches; IsRepeating=false stops after the first match
// per root.
type AreaPolicy struct {
	Roots         []string       `json:"roots"`
	ExcludeWithin []string       `json:"exclude_within"`
	Role          AreaRole       `json:"role"`
	Fields        FieldSelectors `json:"fields"`
	IsRepeating   bool           `json:"is_repeating"`
	FollowLinks   FollowLinks    `json:"follow_links"`
}

// ScrapeConfig is the persisted per-domain scrape behavior.
type ScrapeConfig struct {
	ExtractJSONLD bool         `json:"extract_json_ld"`
	Areas         []AreaPolicy `json:"areas"`
}

// PerformanceProfile records what inference learned about a domain.
type PerformanceProfile struct {
	OptimalTimeoutMs     uint64          `json:"optimal_timeout_ms"`
	WorkingStrategy      FetchStrategy   `json:"working_strategy"`
	AvgResponseSizeBytes uint64          `json:"avg_response_size_bytes"`
	StrategiesTried      []FetchStrategy `json:"strategies_tried"`
	StrategiesFailed     []FetchStrategy `json:"strategies_failed"`
	LastTestedAt         time.Time       `json:"last_tested_at"`
	SuccessRate          float64         `json:"success_rate"` // 0.0 to 1.0
}

// Policy is the canonical in-memory per-domain configuration.
type Policy struct {
	Domain             string             `json:"domain"`
	Fetch              FetchConfig        `json:"fetch"`
	Scrape             ScrapeConfig       `json:"scrape"`
	PerformanceProfile PerformanceProfile `json:"performance_profile"`
}

// Validate runs quick syntactic checks: at least one area and at least
// one field selector somewhere across the areas.
func (p *Policy) Validate() error {
	if len(p.Scrape.Areas) == 0 {
		return NewValidation("scrape.areas", "must not be empty")
	}
	for _, a := range p.Scrape.Areas {
		if len(a.Fields.Title)+len(a.Fields.Headings)+len(a.Fields.Paragraphs)+
			len(a.Fields.Images)+len(a.Fields.Links)+len(a.Fields.Lists)+len(a.Fields.Tables) > 0 {
			return nil
		}
	}
	return NewValidation("scrape.areas", "at least one field selector (title/headings/paragraphs/images/links/lists/tables) is required")
}

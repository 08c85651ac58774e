// Package qrawl is the library facade: policy lifecycle plus
// policy-driven extraction, callable from the CLI, the HTTP API, or
// embedding programs.
package qrawl

import (
	"context"

	"github.com/use-agent/qrawl/domain"
	"github.com/use-agent/qrawl/engine"
	"github.com/use-agent/qrawl/infer"
	"github.com/use-agent/qrawl/models"
	"github.com/use-agent/qrawl/scrape"
	"github.com/use-agent/qrawl/store"
)

// Client binds a policy store to the default fetcher and scraper.
// One client serves concurrent calls.
type Client struct {
	store   store.PolicyStore
	fetcher engine.Fetcher
	scraper engine.Scraper
	engine  *engine.Engine
}

// New creates a Client backed by the default filesystem store.
func New() (*Client, error) {
	ps, err := store.NewDefault()
	if err != nil {
		return nil, err
	}
	return NewWithStore(ps, engine.Options{}), nil
}

// NewWithStore creates a Client over an explicit store, for tests and
// embedders with their own persistence.
func NewWithStore(ps store.PolicyStore, opts engine.Options) *Client {
	fetcher := engine.NewLadderFetcher()
	scraper := scrape.New()
	return &Client{
		store:   ps,
		fetcher: fetcher,
		scraper: scraper,
		engine:  engine.New(ps, fetcher, scraper, opts),
	}
}

// Store exposes the underlying policy store.
func (c *Client) Store() store.PolicyStore { return c.store }

// Extract runs the known pipeline, or the unknown pipeline (inference
// first) when unknown is true.
func (c *Client) Extract(ctx context.Context, url string, unknown bool) (*models.ExtractionBundle, error) {
	if unknown {
		return c.engine.ExtractUnknown(ctx, url)
	}
	return c.engine.ExtractKnown(ctx, url)
}

// ExtractAuto picks known vs unknown based on store presence.
func (c *Client) ExtractAuto(ctx context.Context, url string) (*models.ExtractionBundle, error) {
	return c.engine.ExtractAuto(ctx, url)
}

// CreatePolicy probes a domain, infers a working policy, and persists
// it. Creation is idempotent per domain in the refusing sense: an
// existing policy is never overwritten, delete it first.
func (c *Client) CreatePolicy(ctx context.Context, rawDomain string) (*models.Policy, error) {
	d := domain.FromRaw(rawDomain)
	existing, err := c.store.Get(d)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewOther("policy already exists for "+string(d)+"; delete it first", nil)
	}
	pol, err := infer.InferPolicy(ctx, c.fetcher, c.scraper, d, "")
	if err != nil {
		return nil, err
	}
	if err := c.store.Set(pol); err != nil {
		return nil, err
	}
	return pol, nil
}

// ReadPolicy returns the stored policy for a domain, or nil when none
// exists.
func (c *Client) ReadPolicy(rawDomain string) (*models.Policy, error) {
	return c.store.Get(domain.FromRaw(rawDomain))
}

// UpdatePolicy validates and persists a policy.
func (c *Client) UpdatePolicy(p *models.Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return c.store.Set(p)
}

// ListPolicies returns every stored policy sorted by domain.
func (c *Client) ListPolicies() ([]*models.Policy, error) {
	return c.store.List()
}

// DeletePolicy removes the policy for one domain.
func (c *Client) DeletePolicy(rawDomain string) error {
	return c.store.Delete(domain.FromRaw(rawDomain))
}

// DeleteAllPolicies removes every stored policy. Confirmation is the
// caller's concern (the CLI requires --yes).
func (c *Client) DeleteAllPolicies() error {
	return c.store.DeleteAll()
}

package qrawl

import (
	"context"
	"strings"
	"testing"

	"github.com/use-agent/qrawl/engine"
	"github.com/use-agent/qrawl/models"
	"github.com/use-agent/qrawl/store"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	ps, err := store.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return NewWithStore(ps, engine.Options{})
}

func seedPolicy(t *testing.T, c *Client, domain string) {
	t.Helper()
	err := c.Store().Set(&models.Policy{
		Domain: domain,
		Fetch:  models.FetchConfig{Strategy: models.StrategyAdaptive},
		Scrape: models.ScrapeConfig{ExtractJSONLD: true},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestCreatePolicy_RefusesOverwrite(t *testing.T) {
	c := newTestClient(t)
	seedPolicy(t, c, "example.com")

	// The existing policy short-circuits before any network probing.
	_, err := c.CreatePolicy(context.Background(), "Example.com")
	if err == nil {
		t.Fatal("expected refusal to overwrite")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestReadPolicy_MissingIsNil(t *testing.T) {
	c := newTestClient(t)
	pol, err := c.ReadPolicy("nowhere.invalid")
	if err != nil {
		t.Fatal(err)
	}
	if pol != nil {
		t.Error("expected nil for unknown domain")
	}
}

func TestListAndDeleteAll(t *testing.T) {
	c := newTestClient(t)
	for _, d := range []string{"a.com", "b.com"} {
		seedPolicy(t, c, d)
	}

	policies, err := c.ListPolicies()
	if err != nil || len(policies) != 2 {
		t.Fatalf("list = %v (%v), want 2 policies", policies, err)
	}

	if err := c.DeleteAllPolicies(); err != nil {
		t.Fatal(err)
	}
	policies, err = c.ListPolicies()
	if err != nil || len(policies) != 0 {
		t.Errorf("list after delete_all = %v (%v), want empty", policies, err)
	}
}

func TestDeletePolicy_CanonicalizesTarget(t *testing.T) {
	c := newTestClient(t)
	seedPolicy(t, c, "example.com")

	if err := c.DeletePolicy("WWW.Example.com"); err != nil {
		t.Fatal(err)
	}
	pol, err := c.ReadPolicy("example.com")
	if err != nil {
		t.Fatal(err)
	}
	if pol != nil {
		t.Error("delete should have removed the canonical policy")
	}
}

func TestUpdatePolicy_Validates(t *testing.T) {
	c := newTestClient(t)
	bad := &models.Policy{Domain: "example.com"}
	if err := c.UpdatePolicy(bad); err == nil {
		t.Error("invalid policy must not persist")
	}
}

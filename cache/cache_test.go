package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/use-agent/qrawl/models"
)

func bundle(url string) *models.ExtractionBundle {
	return &models.ExtractionBundle{Parent: &models.PageExtraction{URL: url}}
}

func TestGetSet(t *testing.T) {
	c := New(10)
	defer c.Stop()

	key := Key("https://example.com/", "auto")
	if _, hit := c.Get(key, time.Minute); hit {
		t.Error("unexpected hit on empty cache")
	}

	c.Set(key, bundle("https://example.com/"))
	got, hit := c.Get(key, time.Minute)
	if !hit || got.Parent.URL != "https://example.com/" {
		t.Errorf("expected hit, got %v %v", got, hit)
	}
}

func TestGetDisabledMaxAge(t *testing.T) {
	c := New(10)
	defer c.Stop()

	key := Key("https://example.com/", "auto")
	c.Set(key, bundle("https://example.com/"))
	if _, hit := c.Get(key, 0); hit {
		t.Error("maxAge 0 must disable lookup")
	}
}

func TestKeyDistinguishesMode(t *testing.T) {
	if Key("https://example.com/", "auto") == Key("https://example.com/", "known") {
		t.Error("keys must differ by mode")
	}
}

func TestCapacityEviction(t *testing.T) {
	c := New(3)
	defer c.Stop()

	for i := 0; i < 5; i++ {
		c.Set(Key(fmt.Sprintf("https://example.com/%d", i), "auto"), bundle("x"))
	}
	c.mu.RLock()
	size := len(c.store)
	c.mu.RUnlock()
	if size > 3 {
		t.Errorf("cache grew past capacity: %d", size)
	}
}

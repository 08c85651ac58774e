// Package cache is a small in-memory cache for extraction bundles,
// used by the HTTP API to absorb repeat requests for the same URL.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/use-agent/qrawl/models"
)

// entry holds a cached bundle with its creation timestamp.
type entry struct {
	bundle    *models.ExtractionBundle
	createdAt time.Time
}

// Cache is a bounded in-memory cache. It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	done       chan struct{}
}

// New creates a Cache with the given maximum number of entries. A
// background goroutine evicts entries older than one hour every five
// minutes.
func New(maxEntries int) *Cache {
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		done:       make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// Key generates a cache key from the URL and extraction mode.
func Key(url, mode string) string {
	h := sha256.New()
	h.Write([]byte(url))
	h.Write([]byte("|"))
	h.Write([]byte(mode))
	return hex.EncodeToString(h.Sum(nil))
}

// Get retrieves a cached bundle younger than maxAge. maxAge <= 0
// disables the lookup.
func (c *Cache) Get(key string, maxAge time.Duration) (*models.ExtractionBundle, bool) {
	if maxAge <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok || time.Since(e.createdAt) > maxAge {
		return nil, false
	}
	return e.bundle, true
}

// Set stores a bundle. At capacity, one arbitrary entry is evicted to
// make room (map iteration order is random in Go).
func (c *Cache) Set(key string, bundle *models.ExtractionBundle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}
	c.store[key] = &entry{bundle: bundle, createdAt: time.Now()}
}

// Stop terminates the background cleanup goroutine.
func (c *Cache) Stop() {
	close(c.done)
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-1 * time.Hour)
			c.mu.Lock()
			for k, e := range c.store {
				if e.createdAt.Before(cutoff) {
					delete(c.store, k)
				}
			}
			c.mu.Unlock()
		}
	}
}

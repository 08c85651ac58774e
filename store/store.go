// Package store persists per-domain policies on the local filesystem,
// one pretty-printed JSON file per canonical domain.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/use-agent/qrawl/domain"
	"github.com/use-agent/qrawl/models"
)

// PolicyStore is the persistence contract for policies.
type PolicyStore interface {
	Get(d domain.Domain) (*models.Policy, error)
	Set(p *models.Policy) error
	List() ([]*models.Policy, error)
	Delete(d domain.Domain) error
	DeleteAll() error
}

// LocalFsStore keeps policies under a root directory as
// <canonical-domain>.json. It performs no caching: every Get hits the
// filesystem. Writes are create-or-truncate per file; concurrent
// writers to the same domain race and last-writer-wins.
type LocalFsStore struct {
	root string
}

// DefaultRoot resolves the canonical on-disk location:
// <user-data-dir>/qrawl/policies, overridable with QRAWL_DATA_DIR.
func DefaultRoot() (string, error) {
	if dir := os.Getenv("QRAWL_DATA_DIR"); dir != "" {
		return filepath.Join(dir, "policies"), nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", models.NewOther("could not resolve data dir", err)
	}
	return filepath.Join(base, "qrawl", "policies"), nil
}

// New creates a LocalFsStore rooted at dir, creating it if needed.
func New(dir string) (*LocalFsStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, models.NewOther("create policy dir", err)
	}
	return &LocalFsStore{root: dir}, nil
}

// NewDefault creates a LocalFsStore at the default root.
func NewDefault() (*LocalFsStore, error) {
	root, err := DefaultRoot()
	if err != nil {
		return nil, err
	}
	return New(root)
}

// Root returns the directory the store writes into.
func (s *LocalFsStore) Root() string { return s.root }

func (s *LocalFsStore) pathFor(d domain.Domain) string {
	return filepath.Join(s.root, string(d)+".json")
}

/* ---------- On-disk document shape ----------
{
  "<domain>": {
    "config": { "fetch": {...}, "scrape": {...} },
    "performance_profile": {...}
  }
}
--------------------------------------------- */

type policyConfigDoc struct {
	Fetch  models.FetchConfig  `json:"fetch"`
	Scrape models.ScrapeConfig `json:"scrape"`
}

type policyDoc struct {
	Config             policyConfigDoc           `json:"config"`
	PerformanceProfile models.PerformanceProfile `json:"performance_profile"`
}

func docToPolicy(d domain.Domain, doc *policyDoc) *models.Policy {
	return &models.Policy{
		Domain:             string(d),
		Fetch:              doc.Config.Fetch,
		Scrape:             doc.Config.Scrape,
		PerformanceProfile: doc.PerformanceProfile,
	}
}

// Get returns the stored policy for a domain, or nil when none exists.
// A file whose single top-level key does not match the requested domain
// is an error, never a fallback: cross-key reads could leak one
// domain's policy into another.
func (s *LocalFsStore) Get(d domain.Domain) (*models.Policy, error) {
	data, err := os.ReadFile(s.pathFor(d))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewOther("read policy file", err)
	}

	var m map[string]policyDoc
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, models.NewOther("parse policy file", err)
	}
	doc, ok := m[string(d)]
	if !ok {
		return nil, models.NewOther(
			fmt.Sprintf("policy file key mismatch for %s", d), nil)
	}
	return docToPolicy(d, &doc), nil
}

// Set writes the policy as a one-key document keyed by its canonical
// domain.
func (s *LocalFsStore) Set(p *models.Policy) error {
	d := domain.FromRaw(p.Domain)
	doc := policyDoc{
		Config: policyConfigDoc{
			Fetch:  p.Fetch,
			Scrape: p.Scrape,
		},
		PerformanceProfile: p.PerformanceProfile,
	}
	data, err := json.MarshalIndent(map[string]policyDoc{string(d): doc}, "", "  ")
	if err != nil {
		return models.NewOther("encode policy", err)
	}
	if err := os.WriteFile(s.pathFor(d), data, 0o644); err != nil {
		return models.NewOther("write policy file", err)
	}
	return nil
}

// List scans *.json under the root, skipping corrupt or key-mismatched
// files silently, and returns policies sorted by domain.
func (s *LocalFsStore) List() ([]*models.Policy, error) {
	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewOther("read policy dir", err)
	}

	var out []*models.Policy
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		d := domain.FromRaw(strings.TrimSuffix(name, ".json"))

		data, err := os.ReadFile(filepath.Join(s.root, name))
		if err != nil {
			continue
		}
		var m map[string]policyDoc
		if err := json.Unmarshal(data, &m); err != nil {
			continue // skip corrupt files
		}
		doc, ok := m[string(d)]
		if !ok {
			continue // skip key-mismatched files
		}
		out = append(out, docToPolicy(d, &doc))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out, nil
}

// Delete removes the policy file for a domain if it exists.
func (s *LocalFsStore) Delete(d domain.Domain) error {
	err := os.Remove(s.pathFor(d))
	if err != nil && !os.IsNotExist(err) {
		return models.NewOther("delete policy file", err)
	}
	return nil
}

// DeleteAll removes every *.json policy file under the root.
func (s *LocalFsStore) DeleteAll() error {
	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return models.NewOther("read policy dir", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			_ = os.Remove(filepath.Join(s.root, entry.Name()))
		}
	}
	return nil
}

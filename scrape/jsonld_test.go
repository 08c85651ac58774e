package scrape

import (
	"encoding/json"
	"testing"
)

func parse(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return v
}

func TestFlattenJSONLD_GraphWithResidual(t *testing.T) {
	v := parse(t, `{"@context":"https://schema.org","@graph":[{"@type":"Recipe"},{"@type":"Article"}]}`)
	out := FlattenJSONLD(v)
	// Two graph members plus the residual container (it still carries @context).
	if len(out) != 3 {
		t.Fatalf("flatten produced %d values, want 3", len(out))
	}
	first := out[0].(map[string]any)
	second := out[1].(map[string]any)
	if first["@type"] != "Recipe" || second["@type"] != "Article" {
		t.Errorf("graph members out of order: %v", out)
	}
	residual := out[2].(map[string]any)
	if _, hasGraph := residual["@graph"]; hasGraph {
		t.Error("residual must not keep @graph")
	}
	if residual["@context"] != "https://schema.org" {
		t.Errorf("residual lost its other keys: %v", residual)
	}
}

func TestFlattenJSONLD_GraphOnlyContainerDropped(t *testing.T) {
	v := parse(t, `{"@graph":[{"@type":"Recipe"}]}`)
	out := FlattenJSONLD(v)
	if len(out) != 1 {
		t.Fatalf("flatten produced %d values, want 1 (empty container dropped)", len(out))
	}
}

func TestFlattenJSONLD_NestedArrays(t *testing.T) {
	v := parse(t, `[[{"@type":"A"}],{"@type":"B"}]`)
	out := FlattenJSONLD(v)
	if len(out) != 2 {
		t.Fatalf("flatten produced %d values, want 2", len(out))
	}
}

func TestParseJSONLDBlock_BracketRetry(t *testing.T) {
	// Two comma-separated objects in one script only parse when wrapped.
	vals, ok := ParseJSONLDBlock(`{"@type":"Recipe"},{"@type":"Article"}`)
	if !ok {
		t.Fatal("bracket retry should have rescued the parse")
	}
	if len(vals) != 2 {
		t.Errorf("got %d values, want 2", len(vals))
	}
}

func TestParseJSONLDBlock_Garbage(t *testing.T) {
	if _, ok := ParseJSONLDBlock("not json at all {"); ok {
		t.Error("garbage should not parse")
	}
	if _, ok := ParseJSONLDBlock("   "); ok {
		t.Error("whitespace should not parse")
	}
}

package scrape

import (
	"encoding/json"
	"strings"
)

// ParseJSONLDBlock parses the text of one JSON-LD script. Some sites
// emit several comma-separated objects in a single script, so a failed
// parse is retried with the text wrapped in brackets. The boolean is
// false when neither form parses.
func ParseJSONLDBlock(txt string) ([]any, bool) {
	txt = strings.TrimSpace(txt)
	if txt == "" {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(txt), &v); err == nil {
		return FlattenJSONLD(v), true
	}
	if err := json.Unmarshal([]byte("["+txt+"]"), &v); err == nil {
		return FlattenJSONLD(v), true
	}
	return nil, false
}

// FlattenJSONLD flattens a parsed JSON-LD value into its leaves:
// arrays recurse; objects carrying @graph emit the graph's contents
// followed by the residual object (without @graph) when it still has
// other keys; everything else passes through.
func FlattenJSONLD(v any) []any {
	var out []any
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			out = append(out, FlattenJSONLD(item)...)
		}
	case map[string]any:
		if graph, ok := val["@graph"]; ok {
			out = append(out, FlattenJSONLD(graph)...)
			delete(val, "@graph")
			if len(val) > 0 {
				out = append(out, val)
			}
		} else {
			out = append(out, val)
		}
	default:
		out = append(out, val)
	}
	return out
}

// Package devseed loads resource fixtures for the mock service. Seed files are
// JSON or YAML (chosen by extension) holding a list of entries:
//
//	- kind: accounts
//	  id: "1"
//	  data:
//	    Name: Acme
package devseed

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ResourceSeedEntry is one resource placed in the mock before it serves requests.
type ResourceSeedEntry struct {
	Kind string         `json:"kind" yaml:"kind"`
	ID   string         `json:"id" yaml:"id"`
	Data map[string]any `json:"data" yaml:"data"`
}

// LoadResourceSeed reads entries from path.
func LoadResourceSeed(path string) ([]ResourceSeedEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("devseed: read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(raw)
	default:
		return ParseJSON(raw)
	}
}

// ParseJSON decodes a JSON seed document.
func ParseJSON(raw []byte) ([]ResourceSeedEntry, error) {
	var entries []ResourceSeedEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("devseed: decode json: %w", err)
	}
	return entries, validate(entries)
}

// ParseYAML decodes a YAML seed document. Nested mappings are normalised to
// map[string]any so entries encode as JSON.
func ParseYAML(raw []byte) ([]ResourceSeedEntry, error) {
	var entries []ResourceSeedEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("devseed: decode yaml: %w", err)
	}
	for i := range entries {
		if entries[i].Data != nil {
			entries[i].Data = normalise(entries[i].Data).(map[string]any)
		}
	}
	return entries, validate(entries)
}

func validate(entries []ResourceSeedEntry) error {
	for i, e := range entries {
		if strings.TrimSpace(e.Kind) == "" {
			return fmt.Errorf("devseed: entry %d missing kind", i)
		}
	}
	return nil
}

func normalise(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalise(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalise(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalise(val)
		}
		return out
	default:
		return v
	}
}

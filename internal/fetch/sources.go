// Package fetch pulls configured RSS feeds and stores raw articles.
package fetch

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SourceSpec is one entry in the sources catalog file.
type SourceSpec struct {
	Name             string `yaml:"name"`
	FeedURL          string `yaml:"feed_url"`
	BaseURL          string `yaml:"base_url"`
	Category         string `yaml:"category"`
	Enabled          *bool  `yaml:"enabled"`
	MaxItems         int    `yaml:"max_items"`
	AllowFulltext    bool   `yaml:"allow_fulltext"`
	AllowDerivatives bool   `yaml:"allow_derivatives"`
}

type sourcesFile struct {
	Sources []SourceSpec `yaml:"sources"`
}

// IsEnabled treats a missing enabled key as enabled.
func (s SourceSpec) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// LoadSources reads the YAML sources catalog and validates each entry.
func LoadSources(path string) ([]SourceSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sources catalog: %w", err)
	}
	defer f.Close()

	var parsed sourcesFile
	if err := yaml.NewDecoder(f).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode sources catalog %s: %w", path, err)
	}

	seen := make(map[string]struct{}, len(parsed.Sources))
	for i, spec := range parsed.Sources {
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			return nil, fmt.Errorf("sources catalog entry %d: name is required", i)
		}
		if strings.TrimSpace(spec.FeedURL) == "" {
			return nil, fmt.Errorf("source %q: feed_url is required", name)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("source %q: duplicate name", name)
		}
		seen[name] = struct{}{}
	}
	return parsed.Sources, nil
}

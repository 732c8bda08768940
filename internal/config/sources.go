package config

import (
	"fmt"
	"os"
	"time"

	"github.com/nholik/case-sentinel/internal/source"
	"gopkg.in/yaml.v3"
)

// SourceEntry overrides the endpoint or fetch timeout of one built-in source.
type SourceEntry struct {
	ID      string        `yaml:"id"`
	URL     string        `yaml:"url,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// SourcesFile is the parsed YAML structure for per-source overrides:
// sources: [{id, url, timeout}]
type SourcesFile struct {
	Sources []SourceEntry `yaml:"sources"`
}

// LoadSourcesFile parses a YAML sources file from the given path.
// Returns nil if path is empty (no sources file).
func LoadSourcesFile(path string) (map[source.ID]source.Override, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	var sf SourcesFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse sources file: %w", err)
	}

	return validateSources(sf.Sources)
}

// validateSources ensures all entries are valid and converts them to overrides.
func validateSources(entries []SourceEntry) (map[source.ID]source.Override, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("sources file contains no sources")
	}

	overrides := make(map[source.ID]source.Override, len(entries))

	for i, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("source %d: id is required", i)
		}
		id := source.ID(e.ID)

		if _, seen := overrides[id]; seen {
			return nil, fmt.Errorf("source %q: duplicate id", e.ID)
		}

		if e.URL != "" {
			if err := validateHTTPURL(e.URL, "url"); err != nil {
				return nil, fmt.Errorf("source %q: %w", e.ID, err)
			}
		}

		if e.Timeout < 0 {
			return nil, fmt.Errorf("source %q: timeout cannot be negative", e.ID)
		}

		overrides[id] = source.Override{URL: e.URL, Timeout: e.Timeout}
	}

	return overrides, nil
}

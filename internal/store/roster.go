package store

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RosterEntry is one person in a roster file. Reference photos are enrolled
// separately; the roster only carries identity and grouping.
type RosterEntry struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Group string `yaml:"group"`
}

// LoadRoster reads a yaml roster file: a list of {id, name, group} entries.
func LoadRoster(path string) ([]RosterEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}

	var entries []RosterEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse roster: %w", err)
	}

	for i, e := range entries {
		if e.ID == "" || e.Name == "" {
			return nil, fmt.Errorf("roster entry %d is missing id or name", i+1)
		}
	}

	return entries, nil
}

// ImportRoster enrolls every roster entry, preserving existing photos for
// people already enrolled. Returns the number of entries imported.
func (s *Store) ImportRoster(ctx context.Context, path string) (int, error) {
	entries, err := LoadRoster(path)
	if err != nil {
		return 0, err
	}

	for _, e := range entries {
		person := &Person{ID: e.ID, Name: e.Name, Group: e.Group}
		if err := s.EnrollPerson(ctx, person); err != nil {
			return 0, fmt.Errorf("failed to import %s: %w", e.ID, err)
		}
	}

	return len(entries), nil
}

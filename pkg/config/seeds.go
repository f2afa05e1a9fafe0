package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Seed is one credential entry in the seed file. The seed file is the
// operator-managed inventory of upstream credentials loaded at startup and,
// optionally, re-read on change.
type Seed struct {
	// ID uniquely identifies the credential (e.g., the email the key was
	// provisioned under).
	ID string `yaml:"id"`

	// Key is the secret material presented to the upstream API.
	Key string `yaml:"key"`
}

// LoadSeeds reads credential seeds from a YAML file. The file is a list of
// {id, key} entries. Entries missing either field are rejected so a
// truncated file never silently shrinks the pool.
func LoadSeeds(path string) ([]Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %q: %w", path, err)
	}

	var seeds []Seed
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %q: %w", path, err)
	}

	seen := make(map[string]struct{}, len(seeds))
	for i, s := range seeds {
		if s.ID == "" {
			return nil, fmt.Errorf("seed entry %d: missing id", i)
		}
		if s.Key == "" {
			return nil, fmt.Errorf("seed entry %d (%s): missing key", i, s.ID)
		}
		if _, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("seed entry %d (%s): duplicate id", i, s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return seeds, nil
}

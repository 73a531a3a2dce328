package config

import (
	"fmt"
	"os"

	yaml "go.yaml.in/yaml/v2"
)

// Tunables holds operator-adjustable knobs that aren't secrets and so live
// in a checked-in YAML file rather than the environment, following the
// teacher pack's config.yaml convention for review-batch tuning.
type Tunables struct {
	MemoryLookupK     int     `yaml:"memory_lookup_k"`
	EventsRadiusMeters float64 `yaml:"events_radius_meters"`
	BudgetWeightBump  float64 `yaml:"budget_weight_bump"`
}

// DefaultTunables holds the documented default constants so a missing file
// degrades to sane defaults rather than zero values.
var DefaultTunables = Tunables{
	MemoryLookupK:      2,
	EventsRadiusMeters: 2000.0,
	BudgetWeightBump:   0.2,
}

// LoadTunables reads path as YAML, falling back to DefaultTunables when
// path is empty or the file does not exist.
func LoadTunables(path string) (Tunables, error) {
	if path == "" {
		return DefaultTunables, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultTunables, nil
		}
		return Tunables{}, fmt.Errorf("read tunables file: %w", err)
	}

	tunables := DefaultTunables
	if err := yaml.Unmarshal(data, &tunables); err != nil {
		return Tunables{}, fmt.Errorf("parse tunables file: %w", err)
	}

	return tunables, nil
}

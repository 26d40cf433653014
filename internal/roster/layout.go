package roster

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ColumnLayout maps semantic fields onto positional cells of one export format version
type ColumnLayout struct {
	Version             string `yaml:"version"`
	FullName            int    `yaml:"full_name"`
	Party               int    `yaml:"party"`
	District            int    `yaml:"district"`
	State               int    `yaml:"state"`
	LastName            int    `yaml:"last_name"`
	DetailedInfo        int    `yaml:"detailed_info"`
	ProfilePath         int    `yaml:"profile_path"`
	ProfilePathFallback int    `yaml:"profile_path_fallback"`
}

// DefaultLayout is the WFW_002 export format
var DefaultLayout = ColumnLayout{
	Version:             "WFW_002",
	FullName:            0,
	Party:               1,
	District:            2,
	State:               3,
	LastName:            4,
	DetailedInfo:        6,
	ProfilePath:         7,
	ProfilePathFallback: 11,
}

// LoadLayout reads a layout override from a YAML file. Fields missing from the file keep
// their DefaultLayout value.
func LoadLayout(path string) (ColumnLayout, error) {
	layout := DefaultLayout
	data, err := os.ReadFile(path)
	if err != nil {
		return layout, fmt.Errorf("failed to read layout file: %w", err)
	}
	if err := yaml.Unmarshal(data, &layout); err != nil {
		return layout, fmt.Errorf("failed to unmarshal layout: %w", err)
	}
	if err := layout.Validate(); err != nil {
		return layout, err
	}
	return layout, nil
}

// Validate rejects negative indices
func (l ColumnLayout) Validate() error {
	cols := map[string]int{
		"full_name":             l.FullName,
		"party":                 l.Party,
		"district":              l.District,
		"state":                 l.State,
		"last_name":             l.LastName,
		"detailed_info":         l.DetailedInfo,
		"profile_path":          l.ProfilePath,
		"profile_path_fallback": l.ProfilePathFallback,
	}
	for name, idx := range cols {
		if idx < 0 {
			return fmt.Errorf("layout %s: column %s has negative index %d", l.Version, name, idx)
		}
	}
	return nil
}

// cell returns row[idx] or "" when the row is too short
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

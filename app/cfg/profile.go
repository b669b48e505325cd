package cfg

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/board-cache/app/content"
	"github.com/lysyi3m/board-cache/app/feed"
)

// Profile holds per-board presentation overrides.
//
//	priorities:
//	  critical: 10
//	  info: 4
//	default_display_duration: 20
//	feed:
//	  priority: low
//	  max_items: 5
//	  filters:
//	    - field: title
//	      excludes: ["sponsored"]
type Profile struct {
	Priorities             map[string]int `yaml:"priorities"`
	DefaultDisplayDuration int            `yaml:"default_display_duration"` // seconds
	Feed                   feed.Config    `yaml:"feed"`
}

var validFilterFields = map[string]bool{
	"title":       true,
	"description": true,
	"content":     true,
	"authors":     true,
	"link":        true,
	"categories":  true,
}

// LoadProfile reads a profile file. An empty path yields the defaults.
func LoadProfile(path string) (*Profile, error) {
	profile := &Profile{}
	if path == "" {
		return profile, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	if err := yaml.Unmarshal(data, profile); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := profile.validate(); err != nil {
		return nil, fmt.Errorf("invalid profile %s: %w", path, err)
	}

	return profile, nil
}

// PriorityTable returns the default label table with profile overrides.
func (p *Profile) PriorityTable() content.PriorityTable {
	return content.DefaultPriorityTable().Merge(p.Priorities)
}

func (p *Profile) validate() error {
	for label, value := range p.Priorities {
		if value < content.MinPriority || value > content.MaxPriority {
			return fmt.Errorf("priority %q must be between %d and %d", label, content.MinPriority, content.MaxPriority)
		}
	}

	nonNegativeFields := map[string]int{
		"default display duration": p.DefaultDisplayDuration,
		"feed max items":           p.Feed.MaxItems,
		"feed timeout":             p.Feed.Timeout,
	}
	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	for i, filter := range p.Feed.Filters {
		if !validFilterFields[filter.Field] {
			return fmt.Errorf("invalid filter field at index %d: %s", i, filter.Field)
		}
		if len(filter.Includes) == 0 && len(filter.Excludes) == 0 {
			return fmt.Errorf("filter at index %d must have at least one include or exclude rule", i)
		}
	}

	return nil
}

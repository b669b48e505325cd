package feed

import (
	"time"
)

type Item struct {
	GUID        string
	Title       string
	Link        string
	Description string
	Content     string
	PublishedAt *time.Time
	UpdatedAt   *time.Time
	Authors     []string
	Categories  []string

	ContentHash     string
	EnclosureURL    string
	EnclosureLength int64
	EnclosureType   string
}

// Config describes the optional ticker feed. It is read from the
// "feed" section of the board profile.
type Config struct {
	URL      string         `yaml:"-"`
	Priority string         `yaml:"priority"`
	MaxItems int            `yaml:"max_items"`
	Timeout  int            `yaml:"timeout"` // seconds
	Filters  []ConfigFilter `yaml:"filters"`
}

type ConfigFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

const (
	DefaultPriority = "low"
	DefaultMaxItems = 10
	DefaultTimeout  = 30
)

func (c Config) WithDefaults() Config {
	if c.Priority == "" {
		c.Priority = DefaultPriority
	}
	if c.MaxItems <= 0 {
		c.MaxItems = DefaultMaxItems
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

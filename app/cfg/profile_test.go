package cfg

import (
	"os"
	"path/filepath"
	"testing"
)

func writeProfile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write profile: %v", err)
	}
	return path
}

func TestLoadProfileEmptyPath(t *testing.T) {
	profile, err := LoadProfile("")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if p, ok := profile.PriorityTable().Label("high"); !ok || p != 8 {
		t.Errorf("Expected default table, got %d (%v)", p, ok)
	}
}

func TestLoadProfile(t *testing.T) {
	path := writeProfile(t, `
priorities:
  Critical: 10
  high: 7
default_display_duration: 20
feed:
  priority: medium
  max_items: 5
  filters:
    - field: title
      excludes: ["sponsored"]
`)

	profile, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	table := profile.PriorityTable()
	if p, _ := table.Label("critical"); p != 10 {
		t.Errorf("Expected critical 10, got %d", p)
	}
	if p, _ := table.Label("HIGH"); p != 7 {
		t.Errorf("Expected overridden high 7, got %d", p)
	}
	if p, _ := table.Label("low"); p != 3 {
		t.Errorf("Expected default low 3, got %d", p)
	}
	if profile.DefaultDisplayDuration != 20 {
		t.Errorf("Expected duration 20, got %d", profile.DefaultDisplayDuration)
	}
	if profile.Feed.Priority != "medium" || profile.Feed.MaxItems != 5 || len(profile.Feed.Filters) != 1 {
		t.Errorf("Unexpected feed section %+v", profile.Feed)
	}
}

func TestLoadProfileInvalid(t *testing.T) {
	tests := map[string]string{
		"priority out of range": "priorities:\n  urgent: 11\n",
		"negative duration":     "default_display_duration: -1\n",
		"bad filter field":      "feed:\n  filters:\n    - field: body\n      includes: [x]\n",
		"empty filter":          "feed:\n  filters:\n    - field: title\n",
		"malformed yaml":        "priorities: [",
	}

	for name, body := range tests {
		if _, err := LoadProfile(writeProfile(t, body)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadProfileMissingFile(t *testing.T) {
	if _, err := LoadProfile(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("Expected error for missing profile")
	}
}

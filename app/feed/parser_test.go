package feed

import (
	"testing"
)

const rssFixture = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Campus News</title>
    <link>https://example.com</link>
    <description>Announcements</description>
    <item>
      <title>Library opens late</title>
      <link>https://example.com/item1</link>
      <description>The library opens at &lt;b&gt;10:00&lt;/b&gt; on Monday.</description>
      <guid>item-1</guid>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
      <author>news@example.com (Campus Desk)</author>
      <category>Library</category>
      <enclosure url="https://cdn.example.com/img/library.jpg" length="2048" type="image/jpeg"/>
    </item>
    <item>
      <title>Cafeteria menu</title>
      <link>https://example.com/item2</link>
      <description>Soup of the day</description>
      <guid>item-2</guid>
      <pubDate>Mon, 03 Jul 2023 11:00:00 GMT</pubDate>
      <enclosure url="https://cdn.example.com/audio/menu.mp3" length="99" type="audio/mpeg"/>
    </item>
    <item>
      <title>Sports results</title>
      <link>https://example.com/item3</link>
      <description>Home team won</description>
      <pubDate>Mon, 03 Jul 2023 12:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func TestParseRSS2(t *testing.T) {
	parser := NewParser()
	items, err := parser.Run([]byte(rssFixture))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(items) != 3 {
		t.Fatalf("Expected 3 items, got: %d", len(items))
	}

	first := items[0]
	if first.Title != "Library opens late" {
		t.Errorf("Expected title 'Library opens late', got: %s", first.Title)
	}
	if first.GUID != "item-1" {
		t.Errorf("Expected GUID 'item-1', got: %s", first.GUID)
	}
	if first.PublishedAt == nil || first.PublishedAt.Hour() != 10 {
		t.Errorf("Expected published date, got: %v", first.PublishedAt)
	}
	if len(first.Categories) != 1 || first.Categories[0] != "Library" {
		t.Errorf("Expected category Library, got: %v", first.Categories)
	}
	if first.EnclosureURL != "https://cdn.example.com/img/library.jpg" {
		t.Errorf("Expected image enclosure, got: %s", first.EnclosureURL)
	}
	if first.EnclosureType != "image/jpeg" || first.EnclosureLength != 2048 {
		t.Errorf("Expected enclosure type and length, got: %s %d", first.EnclosureType, first.EnclosureLength)
	}
	if first.ContentHash == "" {
		t.Error("Expected content hash to be generated")
	}

	if items[2].GUID != "https://example.com/item3" {
		t.Errorf("Expected GUID to fall back to link, got: %s", items[2].GUID)
	}
}

func TestParseAtom(t *testing.T) {
	atomData := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Test Atom Feed</title>
  <link href="https://example.com"/>
  <updated>2023-07-03T12:00:00Z</updated>
  <id>urn:uuid:1234567890</id>
  <entry>
    <title>Test Entry</title>
    <link href="https://example.com/entry1"/>
    <id>urn:uuid:entry-1</id>
    <updated>2023-07-03T10:00:00Z</updated>
    <author><name>Jane Doe</name></author>
    <content type="html">Test content</content>
  </entry>
</feed>`

	parser := NewParser()
	items, err := parser.Run([]byte(atomData))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got: %d", len(items))
	}

	item := items[0]
	if item.Link != "https://example.com/entry1" {
		t.Errorf("Expected link 'https://example.com/entry1', got: %s", item.Link)
	}
	if item.UpdatedAt == nil {
		t.Error("Expected updated date")
	}
	if len(item.Authors) != 1 || item.Authors[0] != "Jane Doe" {
		t.Errorf("Expected author Jane Doe, got: %v", item.Authors)
	}
}

func TestParseInvalidFeed(t *testing.T) {
	parser := NewParser()
	if _, err := parser.Run([]byte("invalid xml")); err == nil {
		t.Error("Expected error for invalid XML")
	}
}

func TestContentHashGeneration(t *testing.T) {
	parser := NewParser()

	hash1 := parser.generateContentHash(Item{Title: "Test Title", Link: "https://example.com/item1"})
	hash2 := parser.generateContentHash(Item{Title: "Test Title", Link: "https://example.com/item1", Description: "edited"})
	hash3 := parser.generateContentHash(Item{Title: "Different Title", Link: "https://example.com/item1"})

	if hash1 != hash2 {
		t.Error("Expected description edits to keep the hash")
	}
	if hash1 == hash3 {
		t.Error("Expected different hash for different items")
	}

	guidOnly1 := parser.generateContentHash(Item{GUID: "a"})
	guidOnly2 := parser.generateContentHash(Item{GUID: "b"})
	if guidOnly1 == guidOnly2 {
		t.Error("Expected untitled items to be keyed by GUID")
	}
}

func TestFormatAuthor(t *testing.T) {
	parser := NewParser()

	tests := []struct {
		name, email, expected string
	}{
		{"Jane", "jane@example.com", "jane@example.com (Jane)"},
		{"Jane", "", "Jane"},
		{"", "jane@example.com", "jane@example.com"},
		{" ", " ", ""},
	}

	for _, tt := range tests {
		if got := parser.formatAuthor(tt.name, tt.email); got != tt.expected {
			t.Errorf("formatAuthor(%q, %q): expected %q, got %q", tt.name, tt.email, tt.expected, got)
		}
	}
}

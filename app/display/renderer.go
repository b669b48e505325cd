package display

import (
	"log/slog"

	"github.com/lysyi3m/board-cache/app/content"
)

// Renderer is the presentation layer. Implementations draw the given item
// and attachments until told otherwise.
type Renderer interface {
	ShowContent(item content.Item, attachments []content.Attachment)
	ShowNoContent()
}

// LogRenderer stands in for a screen on headless boards.
type LogRenderer struct{}

func (LogRenderer) ShowContent(item content.Item, attachments []content.Attachment) {
	slog.Info("Displaying content",
		"id", item.ID,
		"title", item.Title,
		"type", string(item.ContentType),
		"priority", item.Priority,
		"duration", item.DisplayDuration(),
		"attachments", len(attachments))
}

func (LogRenderer) ShowNoContent() {
	slog.Info("No content to display")
}

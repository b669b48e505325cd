package database

import (
	"context"
	"time"

	"github.com/lysyi3m/board-cache/app/content"
)

type Stats struct {
	Items       int `json:"items"`
	Active      int `json:"active"`
	Recurring   int `json:"recurring"`
	Attachments int `json:"attachments"`
}

type ContentRepository interface {
	Upsert(ctx context.Context, item content.Item, now time.Time) (bool, error)
	Get(ctx context.Context, id string) (*content.Item, error)
	QueryActive(ctx context.Context, now time.Time) ([]content.Item, error)
	Touch(ctx context.Context, id string, now time.Time) error
	Delete(ctx context.Context, id string) ([]content.Attachment, bool, error)

	ListAttachments(ctx context.Context, contentID string) ([]content.Attachment, error)
	UpsertAttachment(ctx context.Context, attachment content.Attachment) error
	CountAttachmentsByPath(ctx context.Context, localPath string) (int, error)

	ListExpired(ctx context.Context, now time.Time) ([]content.Item, error)
	ListStaleRecurring(ctx context.Context, cutoff time.Time) ([]content.Item, error)
	ListEvictionCandidates(ctx context.Context) ([]content.Item, error)

	Stats(ctx context.Context) (Stats, error)
}

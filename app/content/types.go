package content

import (
	"time"
)

type ContentType string

const (
	TypeText     ContentType = "text"
	TypeImage    ContentType = "image"
	TypeVideo    ContentType = "video"
	TypeMixed    ContentType = "mixed"
	TypeDocument ContentType = "document"
)

const (
	DefaultPriority               = 5
	MinPriority                   = 0
	MaxPriority                   = 10
	DefaultDisplayDurationSeconds = 60
)

// Item is a cached content record. Attachments carries the descriptors
// seen in the remote payload; persisted metadata lives in Attachment rows.
type Item struct {
	ID                     string
	SourceNoticeID         string
	Title                  string
	Body                   string
	ContentType            ContentType
	Priority               int
	ScheduleType           ScheduleType
	ScheduleStart          *time.Time
	ScheduleEnd            *time.Time
	DisplayDurationSeconds int
	IsActive               bool
	RemoteUpdatedAt        *time.Time
	DownloadedAt           time.Time
	LastAccessedAt         time.Time

	Attachments []AttachmentRef
}

func (i Item) IsRecurring() bool {
	return IsRecurring(i.ScheduleType, i.ScheduleEnd)
}

func (i Item) DisplayDuration() time.Duration {
	if i.DisplayDurationSeconds <= 0 {
		return DefaultDisplayDurationSeconds * time.Second
	}
	return time.Duration(i.DisplayDurationSeconds) * time.Second
}

// Expired reports whether a fixed-window item ended before now. Recurring
// items never expire this way.
func (i Item) Expired(now time.Time) bool {
	return !i.IsRecurring() && i.ScheduleEnd.Before(now)
}

// AttachmentRef describes a remote attachment before it is materialized.
type AttachmentRef struct {
	Filename     string
	OriginalName string
	MimeType     string
	Size         int64
	URL          string
}

// Name returns the most descriptive name available for the attachment.
func (r AttachmentRef) Name() string {
	switch {
	case r.Filename != "":
		return r.Filename
	case r.OriginalName != "":
		return r.OriginalName
	default:
		return r.URL
	}
}

type Attachment struct {
	ID            string
	ContentItemID string
	Filename      string
	OriginalName  string
	MimeType      string
	SizeBytes     int64
	LocalPath     string
	RemoteURL     string
	DownloadedAt  time.Time
}

func AttachmentID(contentID, filename string) string {
	return contentID + ":" + filename
}

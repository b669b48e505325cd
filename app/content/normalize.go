package content

import (
	"cmp"
	"errors"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var ErrMissingID = errors.New("remote item has no id")

// legacyUploadPath is where the backend serves notice uploads that carry a
// filename but no url.
const legacyUploadPath = "/uploads/notices/"

// Normalizer converts loosely typed remote items into Items at the ingestion
// boundary.
type Normalizer struct {
	priorities      PriorityTable
	defaultDuration int
	text            *TextExtractor
}

func NewNormalizer(priorities PriorityTable, defaultDurationSeconds int) *Normalizer {
	if priorities == nil {
		priorities = DefaultPriorityTable()
	}
	if defaultDurationSeconds <= 0 {
		defaultDurationSeconds = DefaultDisplayDurationSeconds
	}
	return &Normalizer{
		priorities:      priorities,
		defaultDuration: defaultDurationSeconds,
		text:            NewTextExtractor(),
	}
}

func (n *Normalizer) Item(r RemoteItem) (Item, error) {
	id := strings.TrimSpace(cmp.Or(r.MongoID, r.ID))
	if id == "" {
		return Item{}, ErrMissingID
	}

	var schedule RemoteSchedule
	if r.Schedule != nil {
		schedule = *r.Schedule
	}

	start := firstValid(schedule.StartDate, r.ScheduleStart).Ptr()
	end := firstValid(schedule.EndDate, r.ScheduleEnd, r.ExpiryDate).EndPtr()

	scheduleType := ParseScheduleType(schedule.Type)
	if strings.TrimSpace(schedule.Type) == "" && end != nil {
		scheduleType = ScheduleFixed
	}

	item := Item{
		ID:                     id,
		SourceNoticeID:         strings.TrimSpace(cmp.Or(r.SourceNoticeID, r.NoticeID, id)),
		Title:                  norm.NFC.String(strings.TrimSpace(r.Title)),
		Body:                   n.text.Run(cmp.Or(r.Content, r.Body)),
		Priority:               n.priorities.Parse(r.Priority),
		ScheduleType:           scheduleType,
		ScheduleStart:          start,
		ScheduleEnd:            end,
		DisplayDurationSeconds: n.duration(r),
		IsActive:               r.IsActive == nil || *r.IsActive,
		RemoteUpdatedAt:        r.UpdatedAt.Ptr(),
		Attachments:            attachmentRefs(r.Attachments),
	}
	item.ContentType = contentTypeFor(cmp.Or(r.ContentType, r.Type), item)

	return item, nil
}

func (n *Normalizer) duration(r RemoteItem) int {
	for _, d := range []FlexInt{r.DisplayDuration, r.Duration} {
		if d.Valid && d.Value > 0 {
			return int(d.Value)
		}
	}
	return n.defaultDuration
}

func contentTypeFor(label string, item Item) ContentType {
	if strings.TrimSpace(label) != "" {
		return ParseContentType(label)
	}
	switch {
	case len(item.Attachments) > 0 && item.Body != "":
		return TypeMixed
	case len(item.Attachments) > 0:
		return TypeImage
	default:
		return TypeText
	}
}

func attachmentRefs(remote []RemoteAttachment) []AttachmentRef {
	refs := make([]AttachmentRef, 0, len(remote))
	for _, a := range remote {
		url := strings.TrimSpace(a.URL)
		filename := strings.TrimSpace(a.Filename)
		if url == "" && filename == "" {
			continue
		}
		if url == "" {
			url = legacyUploadPath + filename
		}
		refs = append(refs, AttachmentRef{
			Filename:     filename,
			OriginalName: strings.TrimSpace(a.OriginalName),
			MimeType:     cmp.Or(a.MimeType, a.Mimetype),
			Size:         a.Size.Value,
			URL:          url,
		})
	}
	return refs
}

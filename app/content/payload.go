package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Payload is the "content" object of the board content endpoint.
type Payload struct {
	ScheduledContent RemoteList `json:"scheduledContent"`
	BoardNotices     RemoteList `json:"boardNotices"`
	GroupContent     RemoteList `json:"groupContent"`
	Board            *BoardInfo `json:"board,omitempty"`
}

type BoardInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsOperating bool   `json:"isOperating"`
	Location    string `json:"location"`
}

// Items returns every remote item in precedence order: scheduled content
// first, then board notices, then group content.
func (p *Payload) Items() []RemoteItem {
	if p == nil {
		return nil
	}
	items := make([]RemoteItem, 0, len(p.ScheduledContent)+len(p.BoardNotices)+len(p.GroupContent))
	items = append(items, p.ScheduledContent...)
	items = append(items, p.BoardNotices...)
	items = append(items, p.GroupContent...)
	return items
}

// RemoteList decodes element by element so one malformed record does not
// discard the rest of the payload.
type RemoteList []RemoteItem

func (l *RemoteList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	items := make(RemoteList, 0, len(raw))
	for i, element := range raw {
		var item RemoteItem
		if err := json.Unmarshal(element, &item); err != nil {
			slog.Warn("Malformed remote item dropped", "index", i, "error", err)
			continue
		}
		items = append(items, item)
	}
	*l = items
	return nil
}

type RemoteItem struct {
	MongoID         string             `json:"_id"`
	ID              string             `json:"id"`
	NoticeID        string             `json:"noticeId"`
	SourceNoticeID  string             `json:"sourceNoticeId"`
	Title           string             `json:"title"`
	Content         string             `json:"content"`
	Body            string             `json:"body"`
	Type            string             `json:"type"`
	ContentType     string             `json:"contentType"`
	Priority        json.RawMessage    `json:"priority"`
	Duration        FlexInt            `json:"duration"`
	DisplayDuration FlexInt            `json:"displayDuration"`
	Schedule        *RemoteSchedule    `json:"schedule"`
	ScheduleStart   FlexTime           `json:"scheduleStart"`
	ScheduleEnd     FlexTime           `json:"scheduleEnd"`
	ExpiryDate      FlexTime           `json:"expiryDate"`
	IsActive        *bool              `json:"isActive"`
	UpdatedAt       FlexTime           `json:"updatedAt"`
	Attachments     []RemoteAttachment `json:"attachments"`
}

type RemoteSchedule struct {
	Type       string   `json:"type"`
	StartDate  FlexTime `json:"startDate"`
	EndDate    FlexTime `json:"endDate"`
	StartTime  string   `json:"startTime"`
	EndTime    string   `json:"endTime"`
	DaysOfWeek []int    `json:"daysOfWeek"`
}

type RemoteAttachment struct {
	Type         string  `json:"type"`
	Filename     string  `json:"filename"`
	OriginalName string  `json:"originalName"`
	MimeType     string  `json:"mimeType"`
	Mimetype     string  `json:"mimetype"`
	Size         FlexInt `json:"size"`
	URL          string  `json:"url"`
}

// FlexInt accepts a JSON number, a numeric string or null.
type FlexInt struct {
	Value int64
	Valid bool
}

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	*f = FlexInt{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	var n json.Number
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s = strings.TrimSpace(s); s == "" {
			return nil
		}
		n = json.Number(s)
	} else {
		n = json.Number(data)
	}

	if v, err := n.Int64(); err == nil {
		f.Value, f.Valid = v, true
		return nil
	}
	v, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", string(n), err)
	}
	f.Value, f.Valid = int64(v), true
	return nil
}

var flexTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

const dateOnlyLayout = "2006-01-02"

// FlexTime accepts RFC 3339 timestamps, naive timestamps (UTC), plain dates,
// empty strings and null.
type FlexTime struct {
	Time     time.Time
	Valid    bool
	DateOnly bool
}

func (f *FlexTime) UnmarshalJSON(data []byte) error {
	*f = FlexTime{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid timestamp %s: %w", string(data), err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	for _, layout := range flexTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			f.Time, f.Valid = t.UTC(), true
			return nil
		}
	}
	if t, err := time.Parse(dateOnlyLayout, s); err == nil {
		f.Time, f.Valid, f.DateOnly = t.UTC(), true, true
		return nil
	}
	return fmt.Errorf("unsupported timestamp format %q", s)
}

// Ptr returns the parsed time or nil.
func (f FlexTime) Ptr() *time.Time {
	if !f.Valid {
		return nil
	}
	t := f.Time
	return &t
}

// EndPtr is Ptr for window end bounds: a plain date covers the whole day.
func (f FlexTime) EndPtr() *time.Time {
	if !f.Valid {
		return nil
	}
	t := f.Time
	if f.DateOnly {
		t = t.Add(24*time.Hour - time.Millisecond)
	}
	return &t
}

func firstValid(values ...FlexTime) FlexTime {
	for _, v := range values {
		if v.Valid {
			return v
		}
	}
	return FlexTime{}
}

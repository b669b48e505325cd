package content

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

type ScheduleType string

const (
	ScheduleFixed     ScheduleType = "fixed"
	ScheduleRecurring ScheduleType = "recurring"
	SchedulePermanent ScheduleType = "permanent"
	ScheduleAlways    ScheduleType = "always"
)

// recurringSchedules lists the schedule types that never expire on their own.
var recurringSchedules = map[ScheduleType]bool{
	ScheduleFixed:     false,
	ScheduleRecurring: true,
	SchedulePermanent: true,
	ScheduleAlways:    true,
}

var contentTypes = map[string]ContentType{
	"text":     TypeText,
	"notice":   TypeText,
	"image":    TypeImage,
	"video":    TypeVideo,
	"mixed":    TypeMixed,
	"document": TypeDocument,
}

func foldLabel(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// ParseScheduleType maps a remote label onto a known schedule type.
// Empty input means the item is always available.
func ParseScheduleType(s string) ScheduleType {
	label := ScheduleType(foldLabel(s))
	if label == "" {
		return ScheduleAlways
	}
	if _, ok := recurringSchedules[label]; ok {
		return label
	}
	return ScheduleFixed
}

func ParseContentType(s string) ContentType {
	if t, ok := contentTypes[foldLabel(s)]; ok {
		return t
	}
	return TypeText
}

func IsRecurring(scheduleType ScheduleType, scheduleEnd *time.Time) bool {
	return recurringSchedules[scheduleType] || scheduleEnd == nil
}

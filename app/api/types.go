package api

import (
	"context"
	"time"

	"github.com/lysyi3m/board-cache/app/attachments"
	"github.com/lysyi3m/board-cache/app/database"
	"github.com/lysyi3m/board-cache/app/display"
	"github.com/lysyi3m/board-cache/app/retention"
	"github.com/lysyi3m/board-cache/app/syncer"
	"github.com/lysyi3m/board-cache/app/tasks"
)

type StatsReader interface {
	Stats(ctx context.Context) (database.Stats, error)
}

type UsageReader interface {
	Usage() (attachments.Usage, error)
	LastReport() retention.Report
}

type SnapshotReader interface {
	Snapshot() display.Snapshot
}

type SyncStatusReader interface {
	LastResult() (syncer.Result, bool)
}

var (
	_ StatsReader      = (*database.ContentStore)(nil)
	_ UsageReader      = (*retention.Manager)(nil)
	_ SnapshotReader   = (*display.Selector)(nil)
	_ SyncStatusReader = (*syncer.Coordinator)(nil)
)

type Handler struct {
	boardID   string
	stats     StatsReader
	usage     UsageReader
	selector  SnapshotReader
	syncer    SyncStatusReader
	scheduler tasks.TaskSchedulerInterface
	startedAt time.Time
}

type activeItem struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	ContentType     string     `json:"content_type"`
	Priority        int        `json:"priority"`
	ScheduleType    string     `json:"schedule_type"`
	ScheduleEnd     *time.Time `json:"schedule_end,omitempty"`
	DisplayDuration string     `json:"display_duration"`
	Recurring       bool       `json:"recurring"`
	LastAccessedAt  time.Time  `json:"last_accessed_at"`
}

type activeResponse struct {
	State        display.State `json:"state"`
	Current      *activeItem   `json:"current"`
	Index        int           `json:"index"`
	Items        []activeItem  `json:"items"`
	LastChangeAt time.Time     `json:"last_change_at"`
	RefreshedAt  time.Time     `json:"refreshed_at"`
}

package tasks

import (
	"context"
	"time"

	"github.com/lysyi3m/board-cache/app/remote"
	"github.com/lysyi3m/board-cache/app/retention"
	"github.com/lysyi3m/board-cache/app/syncer"
)

// TaskSchedulerInterface is the background work surface used by main, the
// push subscriber and the status API.
//
//	scheduler := NewScheduler(cfg, coordinator, retentionManager, remoteClient)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.RequestSync("push")
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	RequestSync(trigger string) error
}

type ContentSyncer interface {
	Sync(ctx context.Context) (syncer.Result, error)
}

type ContentCleaner interface {
	Run(ctx context.Context, now time.Time) retention.Report
}

type StatusReporter interface {
	UpdateStatus(ctx context.Context, status remote.Status, now time.Time) error
}

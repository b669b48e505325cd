package tasks

import (
	"context"
	"log/slog"
	"time"
)

type CleanupContentTask struct {
	Task
	cleaner ContentCleaner
}

func NewCleanupContentTask(trigger string, cleaner ContentCleaner) *CleanupContentTask {
	return &CleanupContentTask{
		Task:    NewTask(TaskTypeCleanupContent, trigger),
		cleaner: cleaner,
	}
}

func (t *CleanupContentTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	report := t.cleaner.Run(ctx, time.Now())

	// Runs every second; stay quiet unless something was removed.
	if report.Expired+report.Stale+report.Evicted == 0 {
		return nil
	}

	slog.Info("Task completed",
		"type", "CleanupContent",
		"expired", report.Expired,
		"stale", report.Stale,
		"evicted", report.Evicted,
		"files_removed", report.FilesRemoved,
		"duration", t.GetDuration())

	return nil
}

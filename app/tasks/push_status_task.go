package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/board-cache/app/remote"
)

type PushStatusTask struct {
	Task
	Status   remote.Status
	reporter StatusReporter
}

func NewPushStatusTask(trigger string, status remote.Status, reporter StatusReporter) *PushStatusTask {
	return &PushStatusTask{
		Task:     NewTask(TaskTypePushStatus, trigger),
		Status:   status,
		reporter: reporter,
	}
}

func (t *PushStatusTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := t.reporter.UpdateStatus(ctx, t.Status, time.Now()); err != nil {
		slog.Warn("Task failed", "type", "PushStatus", "status", t.Status, "error", err)
		return fmt.Errorf("failed to push status: %w", err)
	}

	slog.Debug("Task completed",
		"type", "PushStatus",
		"status", t.Status,
		"duration", t.GetDuration())

	return nil
}

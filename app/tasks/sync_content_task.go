package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

type SyncContentTask struct {
	Task
	syncer ContentSyncer
}

func NewSyncContentTask(trigger string, syncer ContentSyncer) *SyncContentTask {
	return &SyncContentTask{
		Task:   NewTask(TaskTypeSyncContent, trigger),
		syncer: syncer,
	}
}

func (t *SyncContentTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.syncer.Sync(ctx)
	if err != nil {
		slog.Error("Task failed", "type", "SyncContent", "trigger", t.Trigger, "error", err)
		return fmt.Errorf("failed to sync content: %w", err)
	}

	slog.Info("Task completed",
		"type", "SyncContent",
		"trigger", t.Trigger,
		"written", result.Written,
		"downloaded", result.Downloaded,
		"duration", t.GetDuration())

	return nil
}

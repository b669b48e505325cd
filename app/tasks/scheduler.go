package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/board-cache/app/remote"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const (
	DefaultQueueSize = 64
	taskTimeout      = 5 * time.Minute
)

type Config struct {
	SyncInterval    time.Duration
	CleanupInterval time.Duration
	StatusInterval  time.Duration
	QueueSize       int
}

// Scheduler owns three single-consumer queues. Content syncs are applied one
// at a time in arrival order; retention and status pushes each get their own
// lane, so neither a slow download nor an unreachable server delays cleanup.
type Scheduler struct {
	syncer   ContentSyncer
	cleaner  ContentCleaner
	reporter StatusReporter
	cfg      Config

	ctx              context.Context
	cancel           context.CancelFunc
	wg               sync.WaitGroup
	syncQueue        chan TaskInterface
	maintenanceQueue chan TaskInterface
	statusQueue      chan TaskInterface
}

func NewScheduler(cfg Config, syncer ContentSyncer, cleaner ContentCleaner, reporter StatusReporter) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}

	return &Scheduler{
		syncer:           syncer,
		cleaner:          cleaner,
		reporter:         reporter,
		cfg:              cfg,
		ctx:              ctx,
		cancel:           cancel,
		syncQueue:        make(chan TaskInterface, cfg.QueueSize),
		maintenanceQueue: make(chan TaskInterface, cfg.QueueSize),
		statusQueue:      make(chan TaskInterface, cfg.QueueSize),
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(3)
	go s.worker("sync", s.syncQueue)
	go s.worker("maintenance", s.maintenanceQueue)
	go s.worker("status", s.statusQueue)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		syncTicker := newTicker(s.cfg.SyncInterval)
		defer syncTicker.Stop()
		cleanupTicker := newTicker(s.cfg.CleanupInterval)
		defer cleanupTicker.Stop()
		statusTicker := newTicker(s.cfg.StatusInterval)
		defer statusTicker.Stop()

		s.enqueueStartupTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-syncTicker.C:
				if err := s.RequestSync("interval"); err != nil {
					slog.Warn("Failed to enqueue SyncContentTask", "trigger", "interval", "error", err)
				}
			case <-cleanupTicker.C:
				s.enqueueCleanup()
			case <-statusTicker.C:
				s.enqueueStatus("interval", remote.StatusActive)
			}
		}
	}()
}

// Stop cancels the running task and waits for the workers to exit. Queued
// tasks are dropped.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	var queue chan TaskInterface
	switch task.GetType() {
	case TaskTypeSyncContent:
		queue = s.syncQueue
	case TaskTypePushStatus:
		queue = s.statusQueue
	default:
		queue = s.maintenanceQueue
	}

	if err := s.ctx.Err(); err != nil {
		return err
	}

	select {
	case queue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// RequestSync queues a content sync. Requests are not coalesced; every
// push notification produces its own sync.
func (s *Scheduler) RequestSync(trigger string) error {
	if s.syncer == nil {
		return fmt.Errorf("no content syncer configured")
	}
	return s.EnqueueTask(NewSyncContentTask(trigger, s.syncer))
}

func (s *Scheduler) enqueueStartupTasks() {
	if err := s.RequestSync("startup"); err != nil {
		slog.Warn("Failed to enqueue SyncContentTask", "trigger", "startup", "error", err)
	}
	s.enqueueStatus("startup", remote.StatusActive)
}

func (s *Scheduler) enqueueCleanup() {
	if s.cleaner == nil {
		return
	}
	if err := s.EnqueueTask(NewCleanupContentTask("interval", s.cleaner)); err != nil {
		slog.Debug("Failed to enqueue CleanupContentTask", "error", err)
	}
}

func (s *Scheduler) enqueueStatus(trigger string, status remote.Status) {
	if s.reporter == nil {
		return
	}
	if err := s.EnqueueTask(NewPushStatusTask(trigger, status, s.reporter)); err != nil {
		slog.Warn("Failed to enqueue PushStatusTask", "trigger", trigger, "error", err)
	}
}

func (s *Scheduler) worker(lane string, queue <-chan TaskInterface) {
	defer s.wg.Done()

	for {
		select {
		case task := <-queue:
			s.executeTask(lane, task)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(lane string, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	if err := task.Execute(taskCtx); err != nil {
		slog.Error("Worker task execution failed",
			"lane", lane,
			"type", string(task.GetType()),
			"id", task.GetID(),
			"trigger", task.GetTrigger(),
			"error", err)
	}
}

// ticker returns a ticker that never fires for a non-positive interval.
type ticker struct {
	C    <-chan time.Time
	stop func()
}

func (t ticker) Stop() {
	t.stop()
}

func newTicker(interval time.Duration) ticker {
	if interval <= 0 {
		return ticker{C: nil, stop: func() {}}
	}
	tk := time.NewTicker(interval)
	return ticker{C: tk.C, stop: tk.Stop}
}

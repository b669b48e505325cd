package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/board-cache/app/attachments"
	"github.com/lysyi3m/board-cache/app/content"
)

const DefaultMaxAge = 7 * 24 * time.Hour

type Store interface {
	ListExpired(ctx context.Context, now time.Time) ([]content.Item, error)
	ListStaleRecurring(ctx context.Context, cutoff time.Time) ([]content.Item, error)
	ListEvictionCandidates(ctx context.Context) ([]content.Item, error)
	Delete(ctx context.Context, id string) ([]content.Attachment, bool, error)
	CountAttachmentsByPath(ctx context.Context, localPath string) (int, error)
}

type Config struct {
	MaxAge       time.Duration
	EnforceQuota bool
}

type Report struct {
	Expired      int               `json:"expired"`
	Stale        int               `json:"stale"`
	Evicted      int               `json:"evicted"`
	FilesRemoved int               `json:"files_removed"`
	Usage        attachments.Usage `json:"usage"`
	At           time.Time         `json:"at"`
}

type Manager struct {
	store   Store
	storage *attachments.Storage
	cfg     Config

	mu         sync.Mutex
	running    bool
	overQuota  bool
	lastReport Report
}

func NewManager(store Store, storage *attachments.Storage, cfg Config) *Manager {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	return &Manager{store: store, storage: storage, cfg: cfg}
}

// CleanupExpired deletes non-recurring content whose window has closed.
func (m *Manager) CleanupExpired(ctx context.Context, now time.Time) (deleted, files int, err error) {
	items, err := m.store.ListExpired(ctx, now)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list expired content: %w", err)
	}
	deleted, files = m.purge(ctx, items, "expired")
	return deleted, files, nil
}

// CleanupStaleRecurring deletes recurring content not displayed within the
// configured maximum age.
func (m *Manager) CleanupStaleRecurring(ctx context.Context, now time.Time) (deleted, files int, err error) {
	items, err := m.store.ListStaleRecurring(ctx, now.Add(-m.cfg.MaxAge))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list stale content: %w", err)
	}
	deleted, files = m.purge(ctx, items, "stale")
	return deleted, files, nil
}

// EnforceQuota evicts recurring content, lowest priority and least recently
// shown first, until storage usage is back under quota.
func (m *Manager) EnforceQuota(ctx context.Context) (evicted, files int, err error) {
	usage, err := m.storage.Usage()
	if err != nil {
		return 0, 0, err
	}
	if !usage.Exceeded() {
		return 0, 0, nil
	}

	candidates, err := m.store.ListEvictionCandidates(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list eviction candidates: %w", err)
	}

	for _, item := range candidates {
		if ctx.Err() != nil {
			return evicted, files, ctx.Err()
		}

		deleted, removed := m.purge(ctx, []content.Item{item}, "quota")
		evicted += deleted
		files += removed

		if usage, err = m.storage.Usage(); err != nil {
			return evicted, files, err
		}
		if !usage.Exceeded() {
			break
		}
	}

	return evicted, files, nil
}

func (m *Manager) Usage() (attachments.Usage, error) {
	return m.storage.Usage()
}

// Run performs one retention cycle. Overlapping calls return immediately
// with the previous report.
func (m *Manager) Run(ctx context.Context, now time.Time) Report {
	m.mu.Lock()
	if m.running {
		last := m.lastReport
		m.mu.Unlock()
		return last
	}
	m.running = true
	m.mu.Unlock()

	report := Report{At: now}
	var files int
	var err error

	if report.Expired, files, err = m.CleanupExpired(ctx, now); err != nil {
		slog.Error("Retention cleanup failed", "phase", "expired", "error", err)
	}
	report.FilesRemoved += files

	if report.Stale, files, err = m.CleanupStaleRecurring(ctx, now); err != nil {
		slog.Error("Retention cleanup failed", "phase", "stale", "error", err)
	}
	report.FilesRemoved += files

	if m.cfg.EnforceQuota {
		if report.Evicted, files, err = m.EnforceQuota(ctx); err != nil {
			slog.Error("Retention cleanup failed", "phase", "quota", "error", err)
		}
		report.FilesRemoved += files
	}

	if report.Usage, err = m.storage.Usage(); err != nil {
		slog.Error("Failed to compute storage usage", "error", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	m.lastReport = report
	m.reportQuota(report.Usage)

	if report.Expired+report.Stale+report.Evicted > 0 {
		slog.Info("Retention completed",
			"expired", report.Expired,
			"stale", report.Stale,
			"evicted", report.Evicted,
			"files_removed", report.FilesRemoved,
			"usage", report.Usage.String())
	}

	return report
}

func (m *Manager) LastReport() Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastReport
}

// reportQuota logs only when usage crosses the quota in either direction.
func (m *Manager) reportQuota(usage attachments.Usage) {
	exceeded := usage.Exceeded()
	switch {
	case exceeded && !m.overQuota:
		slog.Warn("Storage quota exceeded", "usage", usage.String(), "enforced", m.cfg.EnforceQuota)
	case !exceeded && m.overQuota:
		slog.Info("Storage back under quota", "usage", usage.String())
	}
	m.overQuota = exceeded
}

func (m *Manager) purge(ctx context.Context, items []content.Item, reason string) (deleted, files int) {
	for _, item := range items {
		removed, ok, err := m.store.Delete(ctx, item.ID)
		if err != nil {
			slog.Error("Failed to delete content", "id", item.ID, "reason", reason, "error", err)
			continue
		}
		if ok {
			deleted++
			slog.Debug("Content deleted", "id", item.ID, "reason", reason)
		}
		files += m.releaseFiles(ctx, removed)
	}
	return deleted, files
}

// releaseFiles unlinks files no longer referenced by any attachment row.
// Must run after the deleting transaction has committed.
func (m *Manager) releaseFiles(ctx context.Context, removed []content.Attachment) int {
	seen := make(map[string]bool, len(removed))
	released := 0

	for _, a := range removed {
		if a.LocalPath == "" || seen[a.LocalPath] {
			continue
		}
		seen[a.LocalPath] = true

		if m.releaseFile(ctx, a.LocalPath) {
			released++
		}
	}
	return released
}

func (m *Manager) releaseFile(ctx context.Context, path string) bool {
	unlock := m.storage.Lock(path)
	defer unlock()

	refs, err := m.store.CountAttachmentsByPath(ctx, path)
	if err != nil {
		slog.Error("Failed to count file references, keeping file", "path", path, "error", err)
		return false
	}
	if refs > 0 {
		return false
	}

	if _, ok := m.storage.Exists(path); !ok {
		return false
	}
	if err := m.storage.Remove(path); err != nil {
		slog.Error("Failed to remove attachment file", "path", path, "error", err)
		return false
	}
	return true
}

package retention

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/board-cache/app/attachments"
	"github.com/lysyi3m/board-cache/app/content"
	"github.com/lysyi3m/board-cache/app/database"
)

var now = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store   *database.ContentStore
	storage *attachments.Storage
}

func newFixture(t *testing.T, quotaBytes int64) *fixture {
	t.Helper()

	dir := t.TempDir()
	db, err := database.NewConnection(dir)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	storage, err := attachments.NewStorage(dir, quotaBytes)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	return &fixture{store: database.NewContentStore(db), storage: storage}
}

func (f *fixture) addItem(t *testing.T, item content.Item, at time.Time) {
	t.Helper()
	if _, err := f.store.Upsert(context.Background(), item, at); err != nil {
		t.Fatalf("Failed to upsert %s: %v", item.ID, err)
	}
}

// addFile stores body under the content address of url and links it to contentID.
func (f *fixture) addFile(t *testing.T, contentID, url, body string) string {
	t.Helper()

	path := f.storage.LocalPath(url)
	if _, ok := f.storage.Exists(path); !ok {
		if _, err := f.storage.WriteAtomic(path, strings.NewReader(body)); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}
	}

	err := f.store.UpsertAttachment(context.Background(), content.Attachment{
		ID:            content.AttachmentID(contentID, url),
		ContentItemID: contentID,
		SizeBytes:     int64(len(body)),
		LocalPath:     path,
		RemoteURL:     url,
		DownloadedAt:  now,
	})
	if err != nil {
		t.Fatalf("Failed to upsert attachment: %v", err)
	}
	return path
}

func (f *fixture) exists(t *testing.T, id string) bool {
	t.Helper()
	item, err := f.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Failed to get %s: %v", id, err)
	}
	return item != nil
}

func item(id string, priority int, scheduleType content.ScheduleType, end *time.Time) content.Item {
	return content.Item{
		ID:                     id,
		Title:                  id,
		ContentType:            content.TypeText,
		Priority:               priority,
		ScheduleType:           scheduleType,
		ScheduleEnd:            end,
		DisplayDurationSeconds: 60,
		IsActive:               true,
	}
}

func at(t time.Time) *time.Time {
	return &t
}

func TestCleanupExpired(t *testing.T) {
	f := newFixture(t, 0)
	yesterday := now.Add(-24 * time.Hour)

	f.addItem(t, item("expired", 5, content.ScheduleFixed, at(yesterday)), now.Add(-48*time.Hour))
	f.addItem(t, item("recurring", 5, content.ScheduleRecurring, at(yesterday)), now)
	f.addItem(t, item("running", 5, content.ScheduleFixed, at(now.Add(time.Hour))), now)
	expiredFile := f.addFile(t, "expired", "http://h/expired.png", "xxxx")

	m := NewManager(f.store, f.storage, Config{})
	deleted, files, err := m.CleanupExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if deleted != 1 || files != 1 {
		t.Errorf("Expected 1 deleted and 1 file removed, got %d and %d", deleted, files)
	}

	if f.exists(t, "expired") {
		t.Error("Expected expired item to be deleted")
	}
	if !f.exists(t, "recurring") || !f.exists(t, "running") {
		t.Error("Expected recurring and running items to survive")
	}
	if _, ok := f.storage.Exists(expiredFile); ok {
		t.Error("Expected expired item's file to be removed")
	}
}

func TestSharedFileKeptWhileReferenced(t *testing.T) {
	f := newFixture(t, 0)
	yesterday := now.Add(-24 * time.Hour)

	f.addItem(t, item("old", 5, content.ScheduleFixed, at(yesterday)), now)
	f.addItem(t, item("current", 5, content.ScheduleAlways, nil), now)
	shared := f.addFile(t, "old", "http://h/shared.png", "shared")
	f.addFile(t, "current", "http://h/shared.png", "shared")

	m := NewManager(f.store, f.storage, Config{})
	if _, files, err := m.CleanupExpired(context.Background(), now); err != nil || files != 0 {
		t.Fatalf("Expected no files removed, got %d (err=%v)", files, err)
	}
	if _, ok := f.storage.Exists(shared); !ok {
		t.Fatal("Expected shared file to be kept")
	}

	if _, files, err := m.CleanupStaleRecurring(context.Background(), now.Add(8*24*time.Hour)); err != nil || files != 1 {
		t.Fatalf("Expected shared file removed with last reference, got %d (err=%v)", files, err)
	}
	if _, ok := f.storage.Exists(shared); ok {
		t.Error("Expected shared file to be removed once unreferenced")
	}
}

func TestCleanupStaleRecurring(t *testing.T) {
	f := newFixture(t, 0)

	f.addItem(t, item("stale", 5, content.ScheduleRecurring, nil), now.Add(-8*24*time.Hour))
	f.addItem(t, item("fresh", 5, content.ScheduleRecurring, nil), now.Add(-8*24*time.Hour))
	f.addItem(t, item("fixed", 5, content.ScheduleFixed, at(now.Add(24*time.Hour))), now.Add(-30*24*time.Hour))

	if err := f.store.Touch(context.Background(), "fresh", now.Add(-time.Hour)); err != nil {
		t.Fatalf("Failed to touch: %v", err)
	}

	m := NewManager(f.store, f.storage, Config{MaxAge: 7 * 24 * time.Hour})
	deleted, _, err := m.CleanupStaleRecurring(context.Background(), now)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted, got %d", deleted)
	}
	if f.exists(t, "stale") {
		t.Error("Expected stale recurring item to be deleted")
	}
	if !f.exists(t, "fresh") {
		t.Error("Expected recently shown item to survive")
	}
	if !f.exists(t, "fixed") {
		t.Error("Expected non-recurring item to be left to expiry")
	}
}

func TestMissingFileDoesNotBlockDeletion(t *testing.T) {
	f := newFixture(t, 0)

	f.addItem(t, item("expired", 5, content.ScheduleFixed, at(now.Add(-time.Hour))), now)
	path := f.addFile(t, "expired", "http://h/gone.png", "x")
	if err := f.storage.Remove(path); err != nil {
		t.Fatalf("Failed to remove file: %v", err)
	}

	report := NewManager(f.store, f.storage, Config{}).Run(context.Background(), now)
	if report.Expired != 1 || report.FilesRemoved != 0 {
		t.Errorf("Expected 1 expired and 0 files removed, got %+v", report)
	}
	if f.exists(t, "expired") {
		t.Error("Expected row to be deleted")
	}
}

func TestQuotaAdvisoryByDefault(t *testing.T) {
	f := newFixture(t, 4)

	f.addItem(t, item("big", 1, content.ScheduleAlways, nil), now)
	f.addFile(t, "big", "http://h/big.bin", "0123456789")

	report := NewManager(f.store, f.storage, Config{}).Run(context.Background(), now)
	if !report.Usage.Exceeded() {
		t.Errorf("Expected usage over quota, got %+v", report.Usage)
	}
	if report.Evicted != 0 || !f.exists(t, "big") {
		t.Error("Expected advisory quota not to evict")
	}
}

func TestEnforceQuotaEvictsLowestPriorityFirst(t *testing.T) {
	f := newFixture(t, 12)

	f.addItem(t, item("low-old", 1, content.ScheduleAlways, nil), now.Add(-2*time.Hour))
	f.addItem(t, item("low-new", 1, content.ScheduleAlways, nil), now.Add(-time.Hour))
	f.addItem(t, item("high", 9, content.ScheduleAlways, nil), now.Add(-3*time.Hour))
	f.addItem(t, item("fixed", 0, content.ScheduleFixed, at(now.Add(time.Hour))), now)

	f.addFile(t, "low-old", "http://h/1.bin", "12345")
	f.addFile(t, "low-new", "http://h/2.bin", "12345")
	f.addFile(t, "high", "http://h/3.bin", "12345")
	f.addFile(t, "fixed", "http://h/4.bin", "12345")

	m := NewManager(f.store, f.storage, Config{EnforceQuota: true})
	report := m.Run(context.Background(), now)

	if report.Evicted != 2 {
		t.Errorf("Expected 2 evictions, got %d", report.Evicted)
	}
	if f.exists(t, "low-old") || f.exists(t, "low-new") {
		t.Error("Expected low priority items evicted")
	}
	if !f.exists(t, "high") || !f.exists(t, "fixed") {
		t.Error("Expected high priority and non-recurring items kept")
	}
	if report.Usage.Exceeded() {
		t.Errorf("Expected usage under quota, got %+v", report.Usage)
	}
	if m.LastReport().Evicted != 2 {
		t.Errorf("Expected last report to be kept, got %+v", m.LastReport())
	}
}

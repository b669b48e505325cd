package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lysyi3m/board-cache/app/attachments"
	"github.com/lysyi3m/board-cache/app/content"
	"github.com/lysyi3m/board-cache/app/database"
	"github.com/lysyi3m/board-cache/app/display"
	"github.com/lysyi3m/board-cache/app/retention"
	"github.com/lysyi3m/board-cache/app/syncer"
	"github.com/lysyi3m/board-cache/app/tasks"
)

var _ tasks.TaskSchedulerInterface = (*fakeScheduler)(nil)

type fakeStats struct {
	stats database.Stats
	err   error
}

func (f fakeStats) Stats(ctx context.Context) (database.Stats, error) {
	return f.stats, f.err
}

type fakeUsage struct {
	usage  attachments.Usage
	report retention.Report
}

func (f fakeUsage) Usage() (attachments.Usage, error) { return f.usage, nil }
func (f fakeUsage) LastReport() retention.Report      { return f.report }

type fakeSelector struct {
	snapshot display.Snapshot
}

func (f fakeSelector) Snapshot() display.Snapshot { return f.snapshot }

type fakeSyncStatus struct {
	result *syncer.Result
}

func (f fakeSyncStatus) LastResult() (syncer.Result, bool) {
	if f.result == nil {
		return syncer.Result{}, false
	}
	return *f.result, true
}

type fakeScheduler struct {
	triggers []string
	err      error
}

func (f *fakeScheduler) Start()                                     {}
func (f *fakeScheduler) Stop()                                      {}
func (f *fakeScheduler) EnqueueTask(task tasks.TaskInterface) error { return f.err }
func (f *fakeScheduler) RequestSync(trigger string) error {
	f.triggers = append(f.triggers, trigger)
	return f.err
}

var syncedAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestHandler(stats fakeStats, scheduler *fakeScheduler) *Handler {
	item := content.Item{
		ID:                     "a",
		Title:                  "Welcome",
		ContentType:            content.TypeText,
		Priority:               8,
		ScheduleType:           content.ScheduleRecurring,
		DisplayDurationSeconds: 15,
		IsActive:               true,
	}

	return NewHandler("lobby", stats,
		fakeUsage{
			usage:  attachments.Usage{Bytes: 2048, Files: 2, QuotaBytes: 1024},
			report: retention.Report{Expired: 1, At: syncedAt},
		},
		fakeSelector{snapshot: display.Snapshot{
			State: display.StateCycling,
			Items: []content.Item{item},
		}},
		fakeSyncStatus{result: &syncer.Result{Fetched: 3, Written: 1, At: syncedAt}},
		scheduler)
}

func doRequest(t *testing.T, handler *Handler, key, method, path string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	router := NewServer(handler, key)
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var body map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
		}
	}
	return w, body
}

func TestHealth(t *testing.T) {
	handler := newTestHandler(fakeStats{stats: database.Stats{Items: 4}}, &fakeScheduler{})

	w, body := doRequest(t, handler, "", http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if body["status"] != "ok" || body["board_id"] != "lobby" {
		t.Errorf("Unexpected health body %v", body)
	}
	if body["items"] != float64(4) {
		t.Errorf("Expected 4 items, got %v", body["items"])
	}
	if _, ok := body["last_sync_at"]; !ok {
		t.Error("Expected last sync time")
	}
}

func TestHealthDegraded(t *testing.T) {
	handler := newTestHandler(fakeStats{err: errors.New("database is locked")}, &fakeScheduler{})

	w, body := doRequest(t, handler, "", http.MethodGet, "/health", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", w.Code)
	}
	if body["status"] != "degraded" {
		t.Errorf("Expected degraded status, got %v", body["status"])
	}
}

func TestStats(t *testing.T) {
	handler := newTestHandler(fakeStats{stats: database.Stats{Items: 4, Active: 2, Recurring: 1, Attachments: 3}}, &fakeScheduler{})

	w, body := doRequest(t, handler, "", http.MethodGet, "/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	contentStats, ok := body["content"].(map[string]any)
	if !ok || contentStats["active"] != float64(2) || contentStats["attachments"] != float64(3) {
		t.Errorf("Unexpected content stats %v", body["content"])
	}

	storage, ok := body["storage"].(map[string]any)
	if !ok || storage["exceeded"] != true || storage["summary"] != "2.0 KiB of 1.0 KiB in 2 files" {
		t.Errorf("Unexpected storage stats %v", body["storage"])
	}

	lastSync, ok := body["last_sync"].(map[string]any)
	if !ok || lastSync["fetched"] != float64(3) {
		t.Errorf("Unexpected last sync %v", body["last_sync"])
	}

	if _, ok := body["last_cleanup"]; !ok {
		t.Error("Expected last cleanup report")
	}
}

func TestActiveContent(t *testing.T) {
	handler := newTestHandler(fakeStats{}, &fakeScheduler{})

	w, body := doRequest(t, handler, "", http.MethodGet, "/api/content/active", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if body["state"] != "cycling" {
		t.Errorf("Expected cycling state, got %v", body["state"])
	}

	current, ok := body["current"].(map[string]any)
	if !ok {
		t.Fatalf("Expected current item, got %v", body["current"])
	}
	if current["id"] != "a" || current["display_duration"] != "15s" || current["recurring"] != true {
		t.Errorf("Unexpected current item %v", current)
	}
}

func TestActiveContentEmpty(t *testing.T) {
	handler := newTestHandler(fakeStats{}, &fakeScheduler{})
	handler.selector = fakeSelector{snapshot: display.Snapshot{State: display.StateEmpty}}

	_, body := doRequest(t, handler, "", http.MethodGet, "/api/content/active", nil)
	if body["current"] != nil {
		t.Errorf("Expected no current item, got %v", body["current"])
	}
	if items, ok := body["items"].([]any); !ok || len(items) != 0 {
		t.Errorf("Expected empty items list, got %v", body["items"])
	}
}

func TestPostSyncWithoutKey(t *testing.T) {
	scheduler := &fakeScheduler{}
	handler := newTestHandler(fakeStats{}, scheduler)

	w, _ := doRequest(t, handler, "", http.MethodPost, "/api/sync", nil)
	if w.Code != http.StatusAccepted {
		t.Errorf("Expected 202, got %d", w.Code)
	}
	if len(scheduler.triggers) != 1 || scheduler.triggers[0] != "api" {
		t.Errorf("Expected api trigger, got %v", scheduler.triggers)
	}
}

func TestPostSyncAuth(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		expected int
	}{
		{"missing key", nil, http.StatusUnauthorized},
		{"wrong key", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"header key", map[string]string{"X-API-Key": "secret"}, http.StatusAccepted},
		{"bearer key", map[string]string{"Authorization": "Bearer secret"}, http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestHandler(fakeStats{}, &fakeScheduler{})
			w, _ := doRequest(t, handler, "secret", http.MethodPost, "/api/sync", tt.headers)
			if w.Code != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, w.Code)
			}
		})
	}
}

func TestPostSyncQueueFull(t *testing.T) {
	handler := newTestHandler(fakeStats{}, &fakeScheduler{err: errors.New("task queue is full")})

	w, body := doRequest(t, handler, "", http.MethodPost, "/api/sync", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", w.Code)
	}
	if body["details"] != "task queue is full" {
		t.Errorf("Expected error details, got %v", body["details"])
	}
}

func TestOptionsPreflight(t *testing.T) {
	handler := newTestHandler(fakeStats{}, &fakeScheduler{})

	w, _ := doRequest(t, handler, "secret", http.MethodOptions, "/api/sync", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected CORS header")
	}
}

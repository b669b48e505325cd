package display

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/board-cache/app/content"
)

const TickInterval = time.Second

type Store interface {
	QueryActive(ctx context.Context, now time.Time) ([]content.Item, error)
	Touch(ctx context.Context, id string, now time.Time) error
	ListAttachments(ctx context.Context, contentID string) ([]content.Attachment, error)
}

type State string

const (
	StateEmpty   State = "empty"
	StateCycling State = "cycling"
)

type Snapshot struct {
	State        State          `json:"state"`
	Items        []content.Item `json:"items"`
	Index        int            `json:"index"`
	LastChangeAt time.Time      `json:"last_change_at"`
	RefreshedAt  time.Time      `json:"refreshed_at"`
}

// Selector cycles through the currently displayable content. It keeps its
// own copy of the active list between refreshes.
type Selector struct {
	store    Store
	renderer Renderer

	mu           sync.Mutex
	items        []content.Item
	index        int
	lastChangeAt time.Time
	refreshedAt  time.Time
}

func NewSelector(store Store, renderer Renderer) *Selector {
	if renderer == nil {
		renderer = LogRenderer{}
	}
	return &Selector{store: store, renderer: renderer}
}

// Refresh recomputes the active list and restarts the cycle from the top.
// On a query failure the current list is kept.
func (s *Selector) Refresh(ctx context.Context, now time.Time) error {
	items, err := s.store.QueryActive(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to query active content: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = items
	s.index = 0
	s.lastChangeAt = now
	s.refreshedAt = now

	slog.Debug("Active content refreshed", "count", len(items))
	s.present(ctx, now)
	return nil
}

// Tick advances to the next item once the current one has been shown for
// its display duration.
func (s *Selector) Tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) == 0 {
		return
	}
	if now.Sub(s.lastChangeAt) < s.items[s.index].DisplayDuration() {
		return
	}

	s.index = (s.index + 1) % len(s.items)
	s.lastChangeAt = now
	s.present(ctx, now)
}

// Current returns the item on screen, if any.
func (s *Selector) Current() (content.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) == 0 {
		return content.Item{}, false
	}
	return s.items[s.index], true
}

func (s *Selector) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := Snapshot{
		State:        StateEmpty,
		Items:        append([]content.Item(nil), s.items...),
		Index:        s.index,
		LastChangeAt: s.lastChangeAt,
		RefreshedAt:  s.refreshedAt,
	}
	if len(s.items) > 0 {
		snapshot.State = StateCycling
	}
	return snapshot
}

// Run ticks the selector until ctx is done.
func (s *Selector) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = TickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			s.Tick(ctx, t)
		}
	}
}

// present touches and renders the current item. Callers hold s.mu.
func (s *Selector) present(ctx context.Context, now time.Time) {
	if len(s.items) == 0 {
		s.renderer.ShowNoContent()
		return
	}

	item := s.items[s.index]
	if err := s.store.Touch(ctx, item.ID, now); err != nil {
		slog.Warn("Failed to record display access", "id", item.ID, "error", err)
	}
	if now.After(item.LastAccessedAt) {
		item.LastAccessedAt = now
		s.items[s.index] = item
	}

	attachments, err := s.store.ListAttachments(ctx, item.ID)
	if err != nil {
		slog.Warn("Failed to load attachments", "id", item.ID, "error", err)
	}

	s.renderer.ShowContent(item, attachments)
}

package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/board-cache/app/content"
)

type ContentFetcher interface {
	FetchContent(ctx context.Context) (*content.Payload, error)
}

type FeedSource interface {
	Fetch(ctx context.Context) ([]content.RemoteItem, error)
}

type Store interface {
	Upsert(ctx context.Context, item content.Item, now time.Time) (bool, error)
}

type AttachmentEnsurer interface {
	EnsureAll(ctx context.Context, contentID string, refs []content.AttachmentRef) (ensured, downloaded int)
}

// Result summarizes one sync cycle.
type Result struct {
	Fetched     int           `json:"fetched"`
	Written     int           `json:"written"`
	Skipped     int           `json:"skipped"`
	Invalid     int           `json:"invalid"`
	Failed      int           `json:"failed"`
	Attachments int           `json:"attachments"`
	Downloaded  int           `json:"downloaded"`
	At          time.Time     `json:"at"`
	Duration    time.Duration `json:"duration"`
}

type Coordinator struct {
	remote     ContentFetcher
	feed       FeedSource
	store      Store
	fetcher    AttachmentEnsurer
	normalizer *content.Normalizer
	hooks      []func(context.Context, Result)
	now        func() time.Time

	mu sync.Mutex

	lastMu sync.RWMutex
	last   *Result
}

func NewCoordinator(remote ContentFetcher, store Store, fetcher AttachmentEnsurer, normalizer *content.Normalizer) *Coordinator {
	if normalizer == nil {
		normalizer = content.NewNormalizer(nil, 0)
	}
	return &Coordinator{
		remote:     remote,
		store:      store,
		fetcher:    fetcher,
		normalizer: normalizer,
		now:        time.Now,
	}
}

// SetFeed appends items from an RSS/Atom source after the board payload.
func (c *Coordinator) SetFeed(feed FeedSource) {
	c.feed = feed
}

// OnSynced registers a hook run after every successful sync.
func (c *Coordinator) OnSynced(hook func(context.Context, Result)) {
	c.hooks = append(c.hooks, hook)
}

// Sync fetches the board payload and merges it into the store. Syncs are
// serialized; a failed fetch leaves the store untouched.
func (c *Coordinator) Sync(ctx context.Context) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := c.now()
	result := Result{At: start}

	payload, err := c.remote.FetchContent(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to fetch content: %w", err)
	}

	remote := payload.Items()
	if c.feed != nil {
		if feedItems, err := c.feed.Fetch(ctx); err != nil {
			slog.Warn("Failed to fetch feed items", "error", err)
		} else {
			remote = append(remote, feedItems...)
		}
	}
	result.Fetched = len(remote)

	seen := make(map[string]bool, len(remote))
	for _, r := range remote {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		item, err := c.normalizer.Item(r)
		if err != nil {
			result.Invalid++
			if errors.Is(err, content.ErrMissingID) {
				slog.Warn("Remote item skipped", "title", r.Title, "error", err)
			}
			continue
		}
		if seen[item.ID] {
			result.Skipped++
			slog.Debug("Duplicate content id ignored", "id", item.ID)
			continue
		}
		seen[item.ID] = true

		written, err := c.store.Upsert(ctx, item, start)
		if err != nil {
			result.Failed++
			slog.Error("Failed to store content item", "id", item.ID, "error", err)
			continue
		}
		if written {
			result.Written++
		} else {
			result.Skipped++
		}

		if item.Expired(start) {
			slog.Debug("Attachments of expired content not fetched", "id", item.ID)
			continue
		}
		if len(item.Attachments) > 0 {
			ensured, downloaded := c.fetcher.EnsureAll(ctx, item.ID, item.Attachments)
			result.Attachments += ensured
			result.Downloaded += downloaded
		}
	}

	result.Duration = c.now().Sub(start)
	c.lastMu.Lock()
	c.last = &result
	c.lastMu.Unlock()

	slog.Info("Sync completed",
		"fetched", result.Fetched,
		"written", result.Written,
		"skipped", result.Skipped,
		"invalid", result.Invalid,
		"attachments", result.Attachments,
		"downloaded", result.Downloaded,
		"duration", result.Duration)

	for _, hook := range c.hooks {
		hook(ctx, result)
	}

	return result, nil
}

// LastResult returns the most recent successful sync, if any.
func (c *Coordinator) LastResult() (Result, bool) {
	c.lastMu.RLock()
	defer c.lastMu.RUnlock()
	if c.last == nil {
		return Result{}, false
	}
	return *c.last, true
}

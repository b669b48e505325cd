package feed

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/lysyi3m/board-cache/app/content"
)

const idPrefix = "feed-"

// Source turns an RSS/Atom feed into low-priority recurring ticker items
// that are synced after the board payload.
type Source struct {
	cfg       Config
	client    *http.Client
	userAgent string
	parser    *Parser
	filterer  *Filterer
}

func NewSource(cfg Config, userAgent string, client *http.Client) (*Source, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("feed url is required")
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Source{
		cfg:       cfg.WithDefaults(),
		client:    client,
		userAgent: userAgent,
		parser:    NewParser(),
		filterer:  NewFilterer(),
	}, nil
}

func (s *Source) URL() string {
	return s.cfg.URL
}

func (s *Source) Fetch(ctx context.Context) ([]content.RemoteItem, error) {
	data, err := s.fetchFeed(ctx)
	if err != nil {
		return nil, err
	}

	items, err := s.parser.Run(data)
	if err != nil {
		return nil, err
	}

	items = s.filterer.Run(items, s.cfg.Filters)
	if len(items) > s.cfg.MaxItems {
		items = items[:s.cfg.MaxItems]
	}

	remote := make([]content.RemoteItem, 0, len(items))
	for _, item := range items {
		remote = append(remote, s.toRemote(item))
	}

	slog.Debug("Feed fetched", "url", s.cfg.URL, "items", len(remote), "bytes", len(data))
	return remote, nil
}

func (s *Source) fetchFeed(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.Timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed body: %w", err)
	}

	return data, nil
}

func (s *Source) toRemote(item Item) content.RemoteItem {
	remote := content.RemoteItem{
		ID:             idPrefix + item.ContentHash[:16],
		SourceNoticeID: item.GUID,
		Title:          item.Title,
		Content:        cmp.Or(item.Description, item.Content),
		Priority:       json.RawMessage(strconv.Quote(s.cfg.Priority)),
		Schedule:       &content.RemoteSchedule{Type: string(content.ScheduleRecurring)},
	}

	if t := cmp.Or(item.UpdatedAt, item.PublishedAt); t != nil {
		remote.UpdatedAt = content.FlexTime{Time: t.UTC(), Valid: true}
	}

	if att, ok := enclosureAttachment(item); ok {
		remote.Attachments = []content.RemoteAttachment{att}
	}

	return remote
}

func enclosureAttachment(item Item) (content.RemoteAttachment, bool) {
	if item.EnclosureURL == "" {
		return content.RemoteAttachment{}, false
	}
	if item.EnclosureType != "" && !strings.HasPrefix(item.EnclosureType, "image/") {
		return content.RemoteAttachment{}, false
	}

	u, err := url.Parse(item.EnclosureURL)
	if err != nil {
		return content.RemoteAttachment{}, false
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		name = ""
	}

	return content.RemoteAttachment{
		Type:         "image",
		Filename:     name,
		OriginalName: name,
		MimeType:     item.EnclosureType,
		Size:         content.FlexInt{Value: item.EnclosureLength, Valid: item.EnclosureLength > 0},
		URL:          item.EnclosureURL,
	}, true
}

package attachments

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/singleflight"

	"github.com/lysyi3m/board-cache/app/content"
)

var ErrDownload = errors.New("attachment download failed")

const (
	downloadTimeout = 30 * time.Second
	ensureAttempts  = 2
)

type MetadataStore interface {
	UpsertAttachment(ctx context.Context, attachment content.Attachment) error
}

type Fetcher struct {
	store     MetadataStore
	storage   *Storage
	client    *http.Client
	baseURL   *url.URL
	userAgent string
	group     singleflight.Group
	now       func() time.Time
}

type fileInfo struct {
	size       int64
	mimeType   string
	downloaded bool
}

// NewFetcher builds a fetcher resolving relative attachment URLs against
// serverURL.
func NewFetcher(store MetadataStore, storage *Storage, client *http.Client, serverURL, userAgent string) (*Fetcher, error) {
	var base *url.URL
	if serverURL != "" {
		u, err := url.Parse(serverURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse server url: %w", err)
		}
		base = u
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &Fetcher{
		store:     store,
		storage:   storage,
		client:    client,
		baseURL:   base,
		userAgent: userAgent,
		now:       time.Now,
	}, nil
}

func (f *Fetcher) ResolveURL(raw string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid attachment url %q: %w", raw, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	if f.baseURL == nil {
		return "", fmt.Errorf("relative attachment url %q without server url", raw)
	}
	return f.baseURL.ResolveReference(ref).String(), nil
}

// Ensure materializes one attachment and records its metadata. Concurrent
// calls for the same source share a single transfer. The returned flag
// reports whether bytes were transferred.
func (f *Fetcher) Ensure(ctx context.Context, contentID string, ref content.AttachmentRef) (*content.Attachment, bool, error) {
	remote, err := f.ResolveURL(ref.URL)
	if err != nil {
		return nil, false, err
	}
	localPath := f.storage.LocalPath(remote)

	for attempt := 1; attempt <= ensureAttempts; attempt++ {
		v, err, _ := f.group.Do(localPath, func() (any, error) {
			return f.materialize(ctx, remote, localPath, ref.MimeType)
		})
		if err != nil {
			return nil, false, err
		}
		info := v.(fileInfo)

		attachment, err := f.register(ctx, contentID, ref, remote, localPath, info)
		if err != nil {
			return nil, false, err
		}
		if attachment != nil {
			return attachment, info.downloaded, nil
		}

		slog.Debug("Attachment removed before registration, retrying", "url", remote, "attempt", attempt)
	}

	return nil, false, fmt.Errorf("attachment %s vanished during download", remote)
}

// EnsureAll ensures every attachment of a content item. Failures are logged
// and skipped.
func (f *Fetcher) EnsureAll(ctx context.Context, contentID string, refs []content.AttachmentRef) (ensured, downloaded int) {
	for _, ref := range refs {
		_, fetched, err := f.Ensure(ctx, contentID, ref)
		if err != nil {
			slog.Warn("Attachment skipped", "content_id", contentID, "attachment", ref.Name(), "error", err)
			continue
		}
		ensured++
		if fetched {
			downloaded++
		}
	}
	return ensured, downloaded
}

func (f *Fetcher) materialize(ctx context.Context, remote, localPath, declaredMime string) (fileInfo, error) {
	unlock := f.storage.Lock(localPath)
	defer unlock()

	if size, ok := f.storage.Exists(localPath); ok {
		return fileInfo{size: size, mimeType: f.mimeType(localPath, declaredMime)}, nil
	}

	size, err := f.download(ctx, remote, localPath)
	if err != nil {
		return fileInfo{}, err
	}

	slog.Debug("Attachment downloaded", "url", remote, "path", localPath, "size", size)

	return fileInfo{size: size, mimeType: f.mimeType(localPath, declaredMime), downloaded: true}, nil
}

func (f *Fetcher) download(ctx context.Context, remote, localPath string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remote, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to create request for %s: %v", ErrDownload, remote, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrDownload, remote, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: %s: HTTP %d", ErrDownload, remote, resp.StatusCode)
	}

	size, err := f.storage.WriteAtomic(localPath, resp.Body)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrDownload, remote, err)
	}
	return size, nil
}

func (f *Fetcher) mimeType(localPath, declared string) string {
	if declared = strings.TrimSpace(declared); declared != "" {
		return declared
	}
	mt, err := mimetype.DetectFile(localPath)
	if err != nil {
		slog.Debug("Failed to detect mime type", "path", localPath, "error", err)
		return ""
	}
	return mt.String()
}

// register writes the metadata row while holding the path lock, so
// retention cannot unlink the file between the existence check and the
// insert. A nil attachment means the file is gone and must be fetched again.
func (f *Fetcher) register(ctx context.Context, contentID string, ref content.AttachmentRef, remote, localPath string, info fileInfo) (*content.Attachment, error) {
	unlock := f.storage.Lock(localPath)
	defer unlock()

	if _, ok := f.storage.Exists(localPath); !ok {
		return nil, nil
	}

	attachment := content.Attachment{
		ID:            content.AttachmentID(contentID, ref.Name()),
		ContentItemID: contentID,
		Filename:      cmp.Or(ref.Filename, filepath.Base(localPath)),
		OriginalName:  ref.OriginalName,
		MimeType:      info.mimeType,
		SizeBytes:     info.size,
		LocalPath:     localPath,
		RemoteURL:     remote,
		DownloadedAt:  f.now().UTC(),
	}

	if err := f.store.UpsertAttachment(ctx, attachment); err != nil {
		return nil, fmt.Errorf("failed to record attachment %s: %w", attachment.ID, err)
	}
	return &attachment, nil
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/board-cache/app/content"
)

var _ ContentRepository = (*ContentStore)(nil)

const contentColumns = `id, source_notice_id, title, body, content_type, priority,
	schedule_type, schedule_start, schedule_end, display_duration_seconds,
	is_active, remote_updated_at, downloaded_at, last_accessed_at`

const attachmentColumns = `id, content_item_id, filename, original_name, mime_type,
	size_bytes, local_path, remote_url, downloaded_at`

type ContentStore struct {
	db *DB
}

func NewContentStore(db *DB) *ContentStore {
	return &ContentStore{db: db}
}

// Upsert inserts an unseen item. An existing row is only rewritten when the
// incoming remote update stamp is strictly newer than the stored one.
func (s *ContentStore) Upsert(ctx context.Context, item content.Item, now time.Time) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var stored sql.NullInt64
	err = tx.QueryRowContext(ctx, `SELECT remote_updated_at FROM content WHERE id = ?`, item.ID).Scan(&stored)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, `
			INSERT INTO content (`+contentColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, item.SourceNoticeID, item.Title, item.Body, string(item.ContentType),
			content.ClampPriority(item.Priority), string(item.ScheduleType),
			toMillis(item.ScheduleStart), toMillis(item.ScheduleEnd), item.DisplayDurationSeconds,
			item.IsActive, toMillis(item.RemoteUpdatedAt), now.UnixMilli(), now.UnixMilli())
		if err != nil {
			return false, fmt.Errorf("failed to insert content %s: %w", item.ID, err)
		}

	case err != nil:
		return false, fmt.Errorf("failed to read content %s: %w", item.ID, err)

	case item.RemoteUpdatedAt != nil && stored.Valid && item.RemoteUpdatedAt.UnixMilli() > stored.Int64:
		_, err = tx.ExecContext(ctx, `
			UPDATE content SET
				source_notice_id = ?, title = ?, body = ?, content_type = ?, priority = ?,
				schedule_type = ?, schedule_start = ?, schedule_end = ?,
				display_duration_seconds = ?, is_active = ?, remote_updated_at = ?
			WHERE id = ?`,
			item.SourceNoticeID, item.Title, item.Body, string(item.ContentType),
			content.ClampPriority(item.Priority), string(item.ScheduleType),
			toMillis(item.ScheduleStart), toMillis(item.ScheduleEnd),
			item.DisplayDurationSeconds, item.IsActive, toMillis(item.RemoteUpdatedAt), item.ID)
		if err != nil {
			return false, fmt.Errorf("failed to refresh content %s: %w", item.ID, err)
		}
		slog.Debug("Content refreshed from newer remote version", "id", item.ID)

	default:
		return false, nil
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit content %s: %w", item.ID, err)
	}
	return true, nil
}

func (s *ContentStore) Get(ctx context.Context, id string) (*content.Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+contentColumns+` FROM content WHERE id = ?`, id)

	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content %s: %w", id, err)
	}
	return &item, nil
}

// QueryActive returns active items whose window contains now, highest
// priority first, then most recently downloaded.
func (s *ContentStore) QueryActive(ctx context.Context, now time.Time) ([]content.Item, error) {
	ts := now.UnixMilli()
	return s.queryItems(ctx, "active", `
		SELECT `+contentColumns+` FROM content
		WHERE is_active = 1
			AND (schedule_start IS NULL OR schedule_start <= ?)
			AND (schedule_end IS NULL OR schedule_end >= ?)
		ORDER BY priority DESC, downloaded_at DESC, id ASC`, ts, ts)
}

func (s *ContentStore) Touch(ctx context.Context, id string, now time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE content SET last_accessed_at = MAX(last_accessed_at, ?) WHERE id = ?`,
		now.UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to touch content %s: %w", id, err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		slog.Warn("Touch on unknown content ignored", "id", id)
	}
	return nil
}

// Delete removes a content row and its attachment rows in one transaction
// and returns the removed attachments so their files can be released.
func (s *ContentStore) Delete(ctx context.Context, id string) ([]content.Attachment, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE content_item_id = ?`, id)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list attachments of %s: %w", id, err)
	}
	attachments, err := collectAttachments(rows)
	if err != nil {
		return nil, false, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM attachments WHERE content_item_id = ?`, id); err != nil {
		return nil, false, fmt.Errorf("failed to delete attachments of %s: %w", id, err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM content WHERE id = ?`, id)
	if err != nil {
		return nil, false, fmt.Errorf("failed to delete content %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit delete of %s: %w", id, err)
	}
	return attachments, n > 0, nil
}

func (s *ContentStore) ListAttachments(ctx context.Context, contentID string) ([]content.Attachment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+attachmentColumns+` FROM attachments WHERE content_item_id = ? ORDER BY id`, contentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments of %s: %w", contentID, err)
	}
	return collectAttachments(rows)
}

// UpsertAttachment writes attachment metadata. The first download time is
// kept on rewrite.
func (s *ContentStore) UpsertAttachment(ctx context.Context, a content.Attachment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attachments (`+attachmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			filename = excluded.filename,
			original_name = excluded.original_name,
			mime_type = excluded.mime_type,
			size_bytes = excluded.size_bytes,
			local_path = excluded.local_path,
			remote_url = excluded.remote_url`,
		a.ID, a.ContentItemID, a.Filename, a.OriginalName, a.MimeType,
		a.SizeBytes, a.LocalPath, a.RemoteURL, a.DownloadedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert attachment %s: %w", a.ID, err)
	}
	return nil
}

func (s *ContentStore) CountAttachmentsByPath(ctx context.Context, localPath string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attachments WHERE local_path = ?`, localPath).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count attachments for %s: %w", localPath, err)
	}
	return count, nil
}

// ListExpired returns non-recurring items whose window closed before now.
func (s *ContentStore) ListExpired(ctx context.Context, now time.Time) ([]content.Item, error) {
	return s.queryItems(ctx, "expired", `
		SELECT `+contentColumns+` FROM content
		WHERE is_recurring = 0 AND schedule_end IS NOT NULL AND schedule_end < ?
		ORDER BY schedule_end ASC`, now.UnixMilli())
}

// ListStaleRecurring returns recurring items not displayed since cutoff.
func (s *ContentStore) ListStaleRecurring(ctx context.Context, cutoff time.Time) ([]content.Item, error) {
	return s.queryItems(ctx, "stale", `
		SELECT `+contentColumns+` FROM content
		WHERE is_recurring = 1 AND last_accessed_at < ?
		ORDER BY last_accessed_at ASC`, cutoff.UnixMilli())
}

// ListEvictionCandidates returns recurring items in eviction order.
func (s *ContentStore) ListEvictionCandidates(ctx context.Context) ([]content.Item, error) {
	return s.queryItems(ctx, "eviction", `
		SELECT `+contentColumns+` FROM content
		WHERE is_recurring = 1
		ORDER BY priority ASC, last_accessed_at ASC, id ASC`)
}

func (s *ContentStore) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(is_active), 0),
			COALESCE(SUM(is_recurring), 0),
			(SELECT COUNT(*) FROM attachments)
		FROM content`).Scan(&stats.Items, &stats.Active, &stats.Recurring, &stats.Attachments)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to get stats: %w", err)
	}
	return stats, nil
}

func (s *ContentStore) queryItems(ctx context.Context, name, query string, args ...any) ([]content.Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s content: %w", name, err)
	}
	defer rows.Close()

	var items []content.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s content: %w", name, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s content: %w", name, err)
	}
	return items, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (content.Item, error) {
	var (
		item                         content.Item
		contentType, scheduleType    string
		start, end, remoteUpdated    sql.NullInt64
		downloadedAt, lastAccessedAt int64
	)

	err := row.Scan(&item.ID, &item.SourceNoticeID, &item.Title, &item.Body, &contentType,
		&item.Priority, &scheduleType, &start, &end, &item.DisplayDurationSeconds,
		&item.IsActive, &remoteUpdated, &downloadedAt, &lastAccessedAt)
	if err != nil {
		return content.Item{}, err
	}

	item.ContentType = content.ContentType(contentType)
	item.ScheduleType = content.ScheduleType(scheduleType)
	item.ScheduleStart = fromMillis(start)
	item.ScheduleEnd = fromMillis(end)
	item.RemoteUpdatedAt = fromMillis(remoteUpdated)
	item.DownloadedAt = time.UnixMilli(downloadedAt).UTC()
	item.LastAccessedAt = time.UnixMilli(lastAccessedAt).UTC()
	return item, nil
}

func collectAttachments(rows *sql.Rows) ([]content.Attachment, error) {
	defer rows.Close()

	var attachments []content.Attachment
	for rows.Next() {
		var a content.Attachment
		var downloadedAt int64
		if err := rows.Scan(&a.ID, &a.ContentItemID, &a.Filename, &a.OriginalName, &a.MimeType,
			&a.SizeBytes, &a.LocalPath, &a.RemoteURL, &downloadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		a.DownloadedAt = time.UnixMilli(downloadedAt).UTC()
		attachments = append(attachments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attachments: %w", err)
	}
	return attachments, nil
}

func toMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

package attachments

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
)

const (
	contentDir   = "content"
	tempPrefix   = ".part-"
	maxExtLength = 10
)

// Storage is the content-addressed attachment area. Files are named after
// the SHA-256 of their source URL, so one URL maps to exactly one file.
type Storage struct {
	dir        string
	quotaBytes int64

	mu    sync.Mutex
	locks map[string]*pathLock
}

type pathLock struct {
	mu   sync.Mutex
	refs int
}

type Usage struct {
	Bytes      int64 `json:"bytes"`
	Files      int   `json:"files"`
	QuotaBytes int64 `json:"quota_bytes"`
}

func (u Usage) Exceeded() bool {
	return u.QuotaBytes > 0 && u.Bytes > u.QuotaBytes
}

func (u Usage) String() string {
	if u.QuotaBytes <= 0 {
		return fmt.Sprintf("%s in %d files", humanize.IBytes(uint64(u.Bytes)), u.Files)
	}
	return fmt.Sprintf("%s of %s in %d files",
		humanize.IBytes(uint64(u.Bytes)), humanize.IBytes(uint64(u.QuotaBytes)), u.Files)
}

func NewStorage(root string, quotaBytes int64) (*Storage, error) {
	dir := filepath.Join(root, contentDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create attachment directory: %w", err)
	}

	return &Storage{
		dir:        dir,
		quotaBytes: quotaBytes,
		locks:      make(map[string]*pathLock),
	}, nil
}

func (s *Storage) Dir() string {
	return s.dir
}

// LocalPath returns the content address for remoteURL. It depends on the
// URL alone; the extension is taken from the URL path when it has one.
func (s *Storage) LocalPath(remoteURL string) string {
	sum := sha256.Sum256([]byte(remoteURL))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+extension(remoteURL))
}

func extension(remoteURL string) string {
	u, err := url.Parse(remoteURL)
	if err != nil {
		return ""
	}
	if ext := strings.ToLower(path.Ext(u.Path)); validExtension(ext) {
		return ext
	}
	return ""
}

func validExtension(ext string) bool {
	if len(ext) < 2 || len(ext) > maxExtLength {
		return false
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// Lock serializes work on one path across the fetcher and retention.
func (s *Storage) Lock(p string) func() {
	s.mu.Lock()
	l, ok := s.locks[p]
	if !ok {
		l = &pathLock{}
		s.locks[p] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, p)
		}
		s.mu.Unlock()
	}
}

// Exists reports whether a regular file is present at p and its size.
func (s *Storage) Exists(p string) (int64, bool) {
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return 0, false
	}
	return info.Size(), true
}

// WriteAtomic streams r into a temp file next to p and renames it into
// place, so readers never observe a partial file.
func (s *Storage) WriteAtomic(p string, r io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(p), tempPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return 0, fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return 0, fmt.Errorf("failed to move file into place: %w", err)
	}

	return size, nil
}

// Remove unlinks p. A missing file is not an error.
func (s *Storage) Remove(p string) error {
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", p, err)
	}
	return nil
}

// Usage sums the size of the stored files, ignoring in-flight temp files.
func (s *Storage) Usage() (Usage, error) {
	usage := Usage{QuotaBytes: s.quotaBytes}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return usage, fmt.Errorf("failed to read attachment directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), tempPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		usage.Bytes += info.Size()
		usage.Files++
	}

	return usage, nil
}

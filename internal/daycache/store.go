// Package daycache persists the date-keyed bundle of generated content
// that decouples generation time from delivery time. Each calendar day
// owns one JSON document plus its image blobs; documents are written as
// all-or-nothing snapshots, read-only afterwards, and never deleted by
// the pipeline (they double as an audit trail and re-send safety net).
//
// The store also keeps a per-date sent marker so a delivery re-run after
// a crash does not re-notify recipients.
package daycache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"foreversister/internal/types"
)

// Store is a directory-backed day cache.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates a Store rooted at dir. The directory is created lazily
// on first write.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger}
}

// Dir returns the cache directory root.
func (s *Store) Dir() string {
	return s.dir
}

// Write persists an all-or-nothing snapshot of the day's items keyed by
// date. An existing snapshot for the same date is overwritten whole; there
// is no merge. The document is written to a temporary file and renamed so
// readers never observe a partial cache.
func (s *Store) Write(date string, items []types.CacheItem) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return types.NewAppError(types.ErrCodeInternalCache, "failed to create cache directory", err)
	}

	doc := types.DayCache{Date: date, Items: items}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalCache, "failed to encode day cache", err)
	}

	path := s.docPath(date)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return types.NewAppError(types.ErrCodeInternalCache, "failed to write day cache", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return types.NewAppError(types.ErrCodeInternalCache, "failed to finalize day cache", err)
	}

	s.logger.Info("day cache written",
		"date", date,
		"items", len(items),
		"path", path,
	)
	return nil
}

// Read returns the day cache for date, or nil when none exists.
func (s *Store) Read(date string) (*types.DayCache, error) {
	data, err := os.ReadFile(s.docPath(date))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalCache, "failed to read day cache", err)
	}

	var doc types.DayCache
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalCache,
			fmt.Sprintf("day cache for %s is corrupt", date), err)
	}
	return &doc, nil
}

// Exists reports whether a day cache has been written for date.
func (s *Store) Exists(date string) bool {
	_, err := os.Stat(s.docPath(date))
	return err == nil
}

// WriteImage persists an image blob under the given file name inside the
// cache directory and returns the stored path. The name is deterministic
// per segment and date, so re-runs overwrite rather than accumulate.
func (s *Store) WriteImage(name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", types.NewAppError(types.ErrCodeInternalCache, "failed to create cache directory", err)
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", types.NewAppError(types.ErrCodeInternalCache, "failed to write cache image", err)
	}
	return path, nil
}

// ReadImage loads an image blob previously stored by WriteImage. The path
// is the one recorded in the cache item.
func (s *Store) ReadImage(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalCache,
			fmt.Sprintf("failed to read cache image %s", path), err)
	}
	return data, nil
}

// MarkSent records that the day's cache was fully delivered. The marker
// is only written after every item went out, so a partially delivered run
// leaves no marker and the whole day is re-attempted on re-run.
func (s *Store) MarkSent(date string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return types.NewAppError(types.ErrCodeInternalCache, "failed to create cache directory", err)
	}
	if err := os.WriteFile(s.sentPath(date), []byte(date+"\n"), 0o644); err != nil {
		return types.NewAppError(types.ErrCodeInternalCache, "failed to write sent marker", err)
	}
	return nil
}

// WasSent reports whether the day's cache was already delivered.
func (s *Store) WasSent(date string) bool {
	_, err := os.Stat(s.sentPath(date))
	return err == nil
}

func (s *Store) docPath(date string) string {
	return filepath.Join(s.dir, date+".json")
}

func (s *Store) sentPath(date string) string {
	return filepath.Join(s.dir, date+".sent")
}

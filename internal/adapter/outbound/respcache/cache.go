// Package respcache is a disk-backed TTL cache for GET responses. Entries
// live one file per key under the cache directory, so stale entries can be
// inspected and removed with ordinary shell tools.
package respcache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"specli/internal/usecase"
)

const entrySuffix = ".cache.json"

// Cache implements usecase.ResponseCache on the local filesystem.
type Cache struct {
	dir    string
	ttl    time.Duration
	logger *slog.Logger
	// now is swapped in tests.
	now func() time.Time
}

type entry struct {
	CreatedAt   time.Time `json:"created_at"`
	TTLSeconds  int64     `json:"ttl_seconds"`
	StatusCode  int       `json:"status_code"`
	ContentType string    `json:"content_type"`
	Body        []byte    `json:"body"`
}

// New creates a cache rooted at dir. The directory is created on first
// write, not here, so constructing a cache for a read-only run is free.
func New(dir string, ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{
		dir:    dir,
		ttl:    ttl,
		logger: logger.With("component", "response_cache"),
		now:    time.Now,
	}
}

// Get returns the entry for key if present and unexpired. Expired entries
// are removed on the way out.
func (c *Cache) Get(key string) (usecase.CachedResponse, bool) {
	path := c.path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return usecase.CachedResponse{}, false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.logger.Warn("Removing unreadable cache entry", slog.String("path", path), slog.Any("error", err))
		_ = os.Remove(path)
		return usecase.CachedResponse{}, false
	}

	if c.now().After(e.CreatedAt.Add(time.Duration(e.TTLSeconds) * time.Second)) {
		c.logger.Debug("Cache entry expired", slog.String("key", key))
		_ = os.Remove(path)
		return usecase.CachedResponse{}, false
	}

	return usecase.CachedResponse{
		StatusCode:  e.StatusCode,
		ContentType: e.ContentType,
		Body:        e.Body,
	}, true
}

// Set writes an entry atomically: temp file then rename, so a concurrent
// reader never sees a torn entry.
func (c *Cache) Set(key string, resp usecase.CachedResponse) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	data, err := json.Marshal(entry{
		CreatedAt:   c.now(),
		TTLSeconds:  int64(c.ttl / time.Second),
		StatusCode:  resp.StatusCode,
		ContentType: resp.ContentType,
		Body:        resp.Body,
	})
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, "entry-*")
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("closing cache entry: %w", err)
	}
	return os.Rename(tmp.Name(), c.path(key))
}

func (c *Cache) Invalidate(key string) error {
	err := os.Remove(c.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Clear removes every cache entry but leaves other files in the directory
// alone.
func (c *Cache) Clear() error {
	entries, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading cache directory: %w", err)
	}

	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), entrySuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) Stats() (usecase.CacheStats, error) {
	entries, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return usecase.CacheStats{}, nil
	}
	if err != nil {
		return usecase.CacheStats{}, fmt.Errorf("reading cache directory: %w", err)
	}

	var stats usecase.CacheStats
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), entrySuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		stats.Entries++
		stats.SizeBytes += info.Size()
	}
	return stats, nil
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+entrySuffix)
}

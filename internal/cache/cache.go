// Package cache persists chosen query results between runs so repeat
// lookups skip the network fan-out entirely.
//
// The store is file-per-key JSON: each entry lives in its own file named by
// the MD5 hex of its key, wrapped in a {timestamp, content} envelope. The
// hash bounds filename length and avoids illegal characters; it is not a
// security boundary. Independent files mean concurrent reads and writes for
// different keys never contend with each other.
package cache

import (
	"crypto/md5" //nolint:gosec // key derivation only, not a security boundary
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/tonearm/tonearm/internal/source"
)

// DefaultExpireDays is the entry lifetime when none is configured.
const DefaultExpireDays = 30

// Cache is a file-backed result cache with time-based expiry. Reads are
// self-healing: a corrupt or expired entry is deleted and reported as a
// miss. Writes are best effort and never return an error to the caller.
type Cache struct {
	dir    string
	expiry time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// entry is the on-disk envelope. Timestamp is epoch seconds.
type entry struct {
	Timestamp int64             `json:"timestamp"`
	Content   *source.Candidate `json:"content"`
}

// New creates a cache rooted at dir, creating the directory if needed.
// A dir that cannot be created is the one cache failure that surfaces as an
// error: it makes the whole store unusable and should be fatal at startup.
func New(dir string, expireDays int, logger *slog.Logger) (*Cache, error) {
	if expireDays <= 0 {
		expireDays = DefaultExpireDays
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &Cache{
		dir:    dir,
		expiry: time.Duration(expireDays) * 24 * time.Hour,
		logger: logger.With(slog.String("component", "cache")),
		now:    time.Now,
	}, nil
}

// Get returns the cached candidate for key, or (nil, false) when there is no
// entry, the entry is unreadable, or it has expired. Expired and corrupt
// entries are removed as a side effect so they are never served again.
func (c *Cache) Get(key string) (*source.Candidate, bool) {
	path := c.file(key)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil || e.Content == nil {
		c.remove(path)
		return nil, false
	}

	age := c.now().Unix() - e.Timestamp
	if age > int64(c.expiry.Seconds()) {
		c.remove(path)
		return nil, false
	}

	return e.Content, true
}

// Set stores the candidate for key, overwriting any existing entry and
// stamping it with the current time. Caching is an optimization: a write
// failure is logged and swallowed so it can never fail the caller's
// operation.
func (c *Cache) Set(key string, cand *source.Candidate) {
	e := entry{
		Timestamp: c.now().Unix(),
		Content:   cand,
	}

	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		c.logger.Warn("marshaling cache entry", slog.String("error", err.Error()))
		return
	}

	if err := os.WriteFile(c.file(key), data, 0o600); err != nil {
		c.logger.Warn("writing cache entry", slog.String("error", err.Error()))
	}
}

// file maps a key to its on-disk path.
func (c *Cache) file(key string) string {
	sum := md5.Sum([]byte(key)) //nolint:gosec // see package comment
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".json")
}

func (c *Cache) remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("removing stale cache entry", slog.String("error", err.Error()))
	}
}

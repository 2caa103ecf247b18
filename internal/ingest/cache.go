package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"paperdesk/internal/retrieval"
)

const defaultCacheTTL = 24 * time.Hour

// PageCache short-circuits repeat extraction of the same file. Keys carry
// the file's modification time and size, so a changed source file is
// never served stale pages. Every failure degrades silently to direct
// extraction; the cache is an optimization, never a source of truth.
type PageCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPageCache connects a cache to Redis. TTL <= 0 uses the default.
func NewPageCache(addr, password string, ttl time.Duration) (*PageCache, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("redis addr required")
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &PageCache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		ttl: ttl,
	}, nil
}

// Get returns cached pages for the file's current mtime, if present.
func (c *PageCache) Get(ctx context.Context, path string) ([]retrieval.Chunk, bool) {
	if c == nil {
		return nil, false
	}
	key, ok := c.key(path)
	if !ok {
		return nil, false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Debug("page cache get failed", "path", path, "error", err)
		}
		return nil, false
	}
	var chunks []retrieval.Chunk
	if err := json.Unmarshal(raw, &chunks); err != nil {
		slog.Debug("page cache decode failed", "path", path, "error", err)
		return nil, false
	}
	return chunks, true
}

// Put stores extracted pages under the file's current mtime key.
func (c *PageCache) Put(ctx context.Context, path string, chunks []retrieval.Chunk) {
	if c == nil || len(chunks) == 0 {
		return
	}
	key, ok := c.key(path)
	if !ok {
		return
	}
	raw, err := json.Marshal(chunks)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		slog.Debug("page cache put failed", "path", path, "error", err)
	}
}

func (c *PageCache) key(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("paperdesk:pages:%s:%d:%d", path, info.ModTime().UnixNano(), info.Size()), true
}

package pokeapi

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ResourceCache stores raw HTTP bodies keyed by URL in the resource_cache
// table with a TTL (default 6h). It sits under the PokeAPI client so repeated
// tool calls across research invocations do not re-fetch the same resource.
// Expired rows are removed by the shared cache sweep.
type ResourceCache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time // injectable for expiry tests
}

// DefaultResourceTTL is the lifetime of a cached resource.
const DefaultResourceTTL = 6 * time.Hour

// NewResourceCache returns a cache over db. ttl <= 0 uses DefaultResourceTTL.
func NewResourceCache(db *sql.DB, ttl time.Duration) (*ResourceCache, error) {
	if db == nil {
		return nil, fmt.Errorf("resource cache: db must not be nil")
	}
	if ttl <= 0 {
		ttl = DefaultResourceTTL
	}
	return &ResourceCache{db: db, ttl: ttl, now: time.Now}, nil
}

// Get returns the cached body and content type for url, or ok=false when the
// entry is absent or expired.
func (c *ResourceCache) Get(ctx context.Context, url string) (content []byte, contentType string, ok bool, err error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT content, content_type FROM resource_cache WHERE url = ? AND expires_at > ?`,
		url, c.now().UTC())
	var ct sql.NullString
	if err := row.Scan(&content, &ct); err != nil {
		if err == sql.ErrNoRows {
			return nil, "", false, nil
		}
		return nil, "", false, fmt.Errorf("resource cache get: %w", err)
	}
	return content, ct.String, true, nil
}

// Put inserts or replaces the entry for url, resetting its expiry from now.
func (c *ResourceCache) Put(ctx context.Context, url string, content []byte, contentType string) error {
	now := c.now().UTC()
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO resource_cache (url, content, content_type, size, cached_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		url, content, contentType, len(content), now, now.Add(c.ttl))
	if err != nil {
		return fmt.Errorf("resource cache put: %w", err)
	}
	return nil
}

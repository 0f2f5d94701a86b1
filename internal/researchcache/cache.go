package researchcache

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"pokescout/internal/domain"
)

// DefaultTTL is the lifetime of a research-cache entry.
const DefaultTTL = 24 * time.Hour

// CacheStore answers "have we already answered something like this?".
// Two interchangeable strategies implement it: ExactCache (normalized-hash
// equality) and SemanticCache (embedding similarity). A deployment picks one;
// the key schemes do not migrate into each other.
type CacheStore interface {
	// Lookup returns the cached answer for query, if a non-expired entry
	// matches. A hit increments the entry's access count, and that update is
	// committed before Lookup returns.
	Lookup(ctx context.Context, query string) (*domain.CachedAnswer, bool, error)

	// Store inserts or replaces the entry for query, resetting its expiry to
	// now+ttl and its access count to zero. ttl is taken as given, so a zero
	// ttl produces an already-expired entry.
	Store(ctx context.Context, query, results string, ttl time.Duration) error

	// SweepExpired deletes all entries past expiry across every cache table
	// in one logical operation and returns the number removed.
	SweepExpired(ctx context.Context) (int, error)

	// Stats reports entry and hit totals for the strategy's table.
	Stats(ctx context.Context) (domain.CacheStats, error)
}

// NormalizeQuery lowercases and trims query text so lookups are case- and
// whitespace-insensitive.
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// HashQuery returns the exact-strategy cache key for query.
func HashQuery(query string) string {
	sum := md5.Sum([]byte(NormalizeQuery(query)))
	return hex.EncodeToString(sum[:])
}

// =============================================================================
// Exact strategy
// =============================================================================

// ExactCache matches queries by equality on the hash of their normalized text.
type ExactCache struct {
	db  *sql.DB
	now func() time.Time // injectable for expiry tests
}

// NewExactCache returns an exact-match cache over db.
func NewExactCache(db *sql.DB) (*ExactCache, error) {
	if db == nil {
		return nil, fmt.Errorf("research cache: db must not be nil")
	}
	return &ExactCache{db: db, now: time.Now}, nil
}

// Lookup implements CacheStore.
func (c *ExactCache) Lookup(ctx context.Context, query string) (*domain.CachedAnswer, bool, error) {
	hash := HashQuery(query)
	now := c.now().UTC()

	row := c.db.QueryRowContext(ctx,
		`SELECT query, results, created_at FROM research_cache WHERE query_hash = ? AND expires_at > ?`,
		hash, now)
	var answer domain.CachedAnswer
	if err := row.Scan(&answer.Query, &answer.Results, &answer.CachedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("research cache lookup: %w", err)
	}

	// Access bookkeeping is part of the hit contract and must be committed
	// before returning.
	if _, err := c.db.ExecContext(ctx,
		`UPDATE research_cache SET access_count = access_count + 1 WHERE query_hash = ?`, hash); err != nil {
		return nil, false, fmt.Errorf("research cache hit update: %w", err)
	}
	return &answer, true, nil
}

// Store implements CacheStore. Replacing an entry resets its access count.
func (c *ExactCache) Store(ctx context.Context, query, results string, ttl time.Duration) error {
	now := c.now().UTC()
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO research_cache (query_hash, query, results, created_at, expires_at, access_count)
		 VALUES (?, ?, ?, ?, ?, 0)`,
		HashQuery(query), NormalizeQuery(query), results, now, now.Add(ttl))
	if err != nil {
		return fmt.Errorf("research cache store: %w", err)
	}
	return nil
}

// SweepExpired implements CacheStore.
func (c *ExactCache) SweepExpired(ctx context.Context) (int, error) {
	return sweepExpired(ctx, c.db, c.now())
}

// Stats implements CacheStore.
func (c *ExactCache) Stats(ctx context.Context) (domain.CacheStats, error) {
	return tableStats(ctx, c.db, "research_cache")
}

// =============================================================================
// Shared helpers
// =============================================================================

// sweepExpired removes expired rows from every cache table in one transaction.
func sweepExpired(ctx context.Context, db *sql.DB, now time.Time) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("cache sweep begin: %w", err)
	}
	defer tx.Rollback()

	total := 0
	for _, table := range []string{"research_cache", "semantic_cache", "resource_cache"} {
		res, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE expires_at < ?", table), now.UTC())
		if err != nil {
			return 0, fmt.Errorf("cache sweep %s: %w", table, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("cache sweep commit: %w", err)
	}
	return total, nil
}

// tableStats aggregates entry and hit counts for one cache table.
func tableStats(ctx context.Context, db *sql.DB, table string) (domain.CacheStats, error) {
	row := db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*), COALESCE(SUM(access_count), 0) FROM %s", table))
	var stats domain.CacheStats
	if err := row.Scan(&stats.Entries, &stats.TotalHits); err != nil {
		return domain.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return stats, nil
}

var _ CacheStore = (*ExactCache)(nil)

package researchcache

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"pokescout/internal/domain"
)

// DefaultSimilarityThreshold is the minimum cosine similarity for a semantic
// cache hit.
const DefaultSimilarityThreshold = 0.95

// SemanticCache matches queries by nearest-neighbor search over embedding
// vectors. Paraphrased queries whose similarity reaches the threshold reuse
// the prior answer; below it, a fresh computation is required.
type SemanticCache struct {
	db       *sql.DB
	embedder domain.Embedder

	mu        sync.RWMutex // guards threshold, which is hot-reloadable
	threshold float64

	now func() time.Time // injectable for expiry tests
}

// NewSemanticCache returns a semantic cache over db using embedder.
// threshold <= 0 uses DefaultSimilarityThreshold.
func NewSemanticCache(db *sql.DB, embedder domain.Embedder, threshold float64) (*SemanticCache, error) {
	if db == nil {
		return nil, fmt.Errorf("semantic cache: db must not be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("semantic cache: embedder must not be nil")
	}
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	return &SemanticCache{db: db, embedder: embedder, threshold: threshold, now: time.Now}, nil
}

// Threshold returns the current similarity threshold.
func (c *SemanticCache) Threshold() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.threshold
}

// SetThreshold updates the similarity threshold (config hot-reload).
// Out-of-range values are ignored.
func (c *SemanticCache) SetThreshold(v float64) {
	if v <= 0 || v > 1 {
		return
	}
	c.mu.Lock()
	c.threshold = v
	c.mu.Unlock()
}

// Lookup implements CacheStore. It embeds the query, scans all non-expired
// entries, and returns the most similar one when its similarity is at or
// above the threshold. Ties keep the first-encountered (lowest id) entry.
func (c *SemanticCache) Lookup(ctx context.Context, query string) (*domain.CachedAnswer, bool, error) {
	queryVec, err := c.embedder.Embed(ctx, NormalizeQuery(query))
	if err != nil {
		return nil, false, fmt.Errorf("semantic cache embed: %w", err)
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT id, query, embedding, results, created_at FROM semantic_cache WHERE expires_at > ? ORDER BY id`,
		c.now().UTC())
	if err != nil {
		return nil, false, fmt.Errorf("semantic cache query: %w", err)
	}
	defer rows.Close()

	var (
		bestID    int64 = -1
		bestScore       = -1.0
		best      domain.CachedAnswer
	)
	for rows.Next() {
		var (
			id        int64
			q         string
			blob      []byte
			results   string
			createdAt time.Time
		)
		if err := rows.Scan(&id, &q, &blob, &results, &createdAt); err != nil {
			return nil, false, fmt.Errorf("semantic cache scan: %w", err)
		}
		score := CosineSimilarity(queryVec, DecodeEmbedding(blob))
		// Strictly greater keeps the first-encountered entry on ties.
		if score > bestScore {
			bestScore = score
			bestID = id
			best = domain.CachedAnswer{Query: q, Results: results, CachedAt: createdAt}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("semantic cache rows: %w", err)
	}

	if bestID < 0 || bestScore < c.Threshold() {
		return nil, false, nil
	}

	if _, err := c.db.ExecContext(ctx,
		`UPDATE semantic_cache SET access_count = access_count + 1 WHERE id = ?`, bestID); err != nil {
		return nil, false, fmt.Errorf("semantic cache hit update: %w", err)
	}
	return &best, true, nil
}

// Store implements CacheStore. An entry with the same normalized query text is
// replaced (expiry and access count reset); otherwise a new row is inserted.
func (c *SemanticCache) Store(ctx context.Context, query, results string, ttl time.Duration) error {
	normalized := NormalizeQuery(query)
	vec, err := c.embedder.Embed(ctx, normalized)
	if err != nil {
		return fmt.Errorf("semantic cache embed: %w", err)
	}

	now := c.now().UTC()
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("semantic cache store begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM semantic_cache WHERE query = ?`, normalized); err != nil {
		return fmt.Errorf("semantic cache store delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO semantic_cache (query, embedding, results, created_at, expires_at, access_count)
		 VALUES (?, ?, ?, ?, ?, 0)`,
		normalized, EncodeEmbedding(vec), results, now, now.Add(ttl)); err != nil {
		return fmt.Errorf("semantic cache store insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("semantic cache store commit: %w", err)
	}
	return nil
}

// SweepExpired implements CacheStore.
func (c *SemanticCache) SweepExpired(ctx context.Context) (int, error) {
	return sweepExpired(ctx, c.db, c.now())
}

// Stats implements CacheStore.
func (c *SemanticCache) Stats(ctx context.Context) (domain.CacheStats, error) {
	return tableStats(ctx, c.db, "semantic_cache")
}

var _ CacheStore = (*SemanticCache)(nil)

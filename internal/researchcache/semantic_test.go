package researchcache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// =============================================================================
// Helpers
// =============================================================================

// stubEmbedder returns canned vectors by normalized query text.
type stubEmbedder struct {
	vectors map[string][]float64
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	v, ok := s.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no vector for %q", text)
	}
	return v, nil
}

// =============================================================================
// Construction
// =============================================================================

func TestNewSemanticCache_WhenNilDB_ShouldError(t *testing.T) {
	if _, err := NewSemanticCache(nil, &stubEmbedder{}, 0.9); err == nil {
		t.Fatal("expected error for nil db")
	}
}

func TestNewSemanticCache_WhenNilEmbedder_ShouldError(t *testing.T) {
	if _, err := NewSemanticCache(newTestDB(t), nil, 0.9); err == nil {
		t.Fatal("expected error for nil embedder")
	}
}

func TestNewSemanticCache_WhenThresholdNonPositive_ShouldUseDefault(t *testing.T) {
	cache, err := NewSemanticCache(newTestDB(t), &stubEmbedder{}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cache.Threshold() != DefaultSimilarityThreshold {
		t.Errorf("expected default threshold, got %v", cache.Threshold())
	}
}

func TestSemanticCache_SetThreshold_WhenOutOfRange_ShouldIgnore(t *testing.T) {
	cache, _ := NewSemanticCache(newTestDB(t), &stubEmbedder{}, 0.9)
	cache.SetThreshold(1.5)
	cache.SetThreshold(-0.1)
	if cache.Threshold() != 0.9 {
		t.Errorf("expected threshold unchanged at 0.9, got %v", cache.Threshold())
	}
	cache.SetThreshold(0.8)
	if cache.Threshold() != 0.8 {
		t.Errorf("expected threshold 0.8, got %v", cache.Threshold())
	}
}

// =============================================================================
// Lookup / Store
// =============================================================================

func TestSemanticCache_Lookup_WhenSimilarityBelowThreshold_ShouldMiss(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float64{
		"what is pikachu":  {1, 0},
		"unrelated matter": {0, 1}, // orthogonal: similarity 0
	}}
	cache, _ := NewSemanticCache(newTestDB(t), embedder, 0.95)
	ctx := context.Background()

	if err := cache.Store(ctx, "what is pikachu", "electric mouse", time.Hour); err != nil {
		t.Fatalf("store: %v", err)
	}
	_, hit, err := cache.Lookup(ctx, "unrelated matter")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if hit {
		t.Error("expected miss for dissimilar query")
	}
}

func TestSemanticCache_Lookup_WhenSimilarityEqualsThreshold_ShouldHit(t *testing.T) {
	// Identical unit vectors give exactly 1.0; a threshold of exactly 1.0
	// exercises the inclusive boundary.
	embedder := &stubEmbedder{vectors: map[string][]float64{
		"what is pikachu":        {1, 0},
		"tell me about pikachu?": {1, 0},
	}}
	cache, _ := NewSemanticCache(newTestDB(t), embedder, 1.0)
	ctx := context.Background()

	if err := cache.Store(ctx, "What is Pikachu", "electric mouse", time.Hour); err != nil {
		t.Fatalf("store: %v", err)
	}
	answer, hit, err := cache.Lookup(ctx, "Tell me about Pikachu?")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !hit {
		t.Fatal("expected hit at exact threshold")
	}
	if answer.Results != "electric mouse" {
		t.Errorf("unexpected results: %q", answer.Results)
	}
}

func TestSemanticCache_Lookup_WhenScoresTie_ShouldKeepFirstStoredEntry(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float64{
		"first phrasing":  {1, 0},
		"second phrasing": {1, 0},
		"probe":           {1, 0},
	}}
	cache, _ := NewSemanticCache(newTestDB(t), embedder, 0.95)
	ctx := context.Background()

	if err := cache.Store(ctx, "first phrasing", "first answer", time.Hour); err != nil {
		t.Fatalf("store first: %v", err)
	}
	if err := cache.Store(ctx, "second phrasing", "second answer", time.Hour); err != nil {
		t.Fatalf("store second: %v", err)
	}

	answer, hit, err := cache.Lookup(ctx, "probe")
	if err != nil || !hit {
		t.Fatalf("lookup: hit=%v err=%v", hit, err)
	}
	if answer.Results != "first answer" {
		t.Errorf("expected first-stored entry to win the tie, got %q", answer.Results)
	}
}

func TestSemanticCache_Store_WhenSameQuery_ShouldReplaceEntry(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float64{
		"what is pikachu": {1, 0},
	}}
	cache, _ := NewSemanticCache(newTestDB(t), embedder, 0.95)
	ctx := context.Background()

	if err := cache.Store(ctx, "what is pikachu", "old", time.Hour); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := cache.Store(ctx, "What Is Pikachu", "new", time.Hour); err != nil {
		t.Fatalf("replace: %v", err)
	}

	stats, err := cache.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Entries != 1 {
		t.Fatalf("expected replacement, got %d entries", stats.Entries)
	}
	answer, hit, _ := cache.Lookup(ctx, "what is pikachu")
	if !hit || answer.Results != "new" {
		t.Errorf("expected new answer, got hit=%v results=%q", hit, answer)
	}
}

func TestSemanticCache_Lookup_WhenHit_ShouldIncrementAccessCount(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float64{
		"what is pikachu": {1, 0},
	}}
	cache, _ := NewSemanticCache(newTestDB(t), embedder, 0.95)
	ctx := context.Background()

	if err := cache.Store(ctx, "what is pikachu", "answer", time.Hour); err != nil {
		t.Fatalf("store: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, hit, err := cache.Lookup(ctx, "what is pikachu"); err != nil || !hit {
			t.Fatalf("lookup %d: hit=%v err=%v", i, hit, err)
		}
	}
	stats, _ := cache.Stats(ctx)
	if stats.TotalHits != 2 {
		t.Errorf("expected 2 hits, got %d", stats.TotalHits)
	}
}

func TestSemanticCache_Lookup_WhenEntryExpired_ShouldMiss(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float64{
		"what is pikachu": {1, 0},
	}}
	cache, _ := NewSemanticCache(newTestDB(t), embedder, 0.95)
	ctx := context.Background()

	if err := cache.Store(ctx, "what is pikachu", "answer", 0); err != nil {
		t.Fatalf("store: %v", err)
	}
	_, hit, err := cache.Lookup(ctx, "what is pikachu")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if hit {
		t.Error("expected expired entry to miss")
	}
}

func TestSemanticCache_Lookup_WhenEmbedderFails_ShouldError(t *testing.T) {
	cache, _ := NewSemanticCache(newTestDB(t), &stubEmbedder{}, 0.95)
	if _, _, err := cache.Lookup(context.Background(), "anything"); err == nil {
		t.Fatal("expected error from failing embedder")
	}
}

package tokenizer

import (
	"strings"
	"testing"
)

// newTestTokenizer skips the test when the encoding data cannot be loaded
// (tiktoken-go fetches it on first use).
func newTestTokenizer(t *testing.T) *TikToken {
	t.Helper()
	tok, err := NewTikToken("cl100k_base")
	if err != nil {
		t.Skipf("cl100k_base encoding unavailable: %v", err)
	}
	return tok
}

func TestNewTikToken_WhenUnknownEncoding_ShouldReturnError(t *testing.T) {
	if _, err := NewTikToken("no_such_encoding"); err == nil {
		t.Fatal("expected error for unknown encoding")
	}
}

func TestTikToken_CountTokens_WhenEmpty_ShouldReturnZero(t *testing.T) {
	tok := newTestTokenizer(t)
	n, err := tok.CountTokens("")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 tokens, got %d", n)
	}
}

func TestTikToken_CountTokens_ShouldReturnPositiveCount(t *testing.T) {
	tok := newTestTokenizer(t)
	n, err := tok.CountTokens("Pikachu is an Electric-type Pokémon introduced in Generation I.")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n <= 0 {
		t.Errorf("expected positive token count, got %d", n)
	}
}

func TestTikToken_Truncate_WhenWithinBudget_ShouldReturnUnchanged(t *testing.T) {
	tok := newTestTokenizer(t)
	text := "short text"
	got, err := tok.Truncate(text, 1000)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if got != text {
		t.Errorf("expected unchanged text, got %q", got)
	}
}

func TestTikToken_Truncate_WhenOverBudget_ShouldFitBudget(t *testing.T) {
	tok := newTestTokenizer(t)
	text := strings.Repeat("the quick brown fox jumps over the lazy dog ", 50)

	got, err := tok.Truncate(text, 10)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if len(got) >= len(text) {
		t.Fatal("expected truncation to shorten text")
	}
	n, err := tok.CountTokens(got)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n > 10 {
		t.Errorf("expected at most 10 tokens, got %d", n)
	}
}

func TestTikToken_Truncate_ShouldBeIdempotent(t *testing.T) {
	tok := newTestTokenizer(t)
	text := strings.Repeat("pikachu raichu pichu ", 100)

	once, err := tok.Truncate(text, 20)
	if err != nil {
		t.Fatalf("first truncate: %v", err)
	}
	twice, err := tok.Truncate(once, 20)
	if err != nil {
		t.Fatalf("second truncate: %v", err)
	}
	if once != twice {
		t.Errorf("expected idempotent truncation")
	}
}

func TestTikToken_Truncate_WhenNoLimit_ShouldReturnUnchanged(t *testing.T) {
	tok := newTestTokenizer(t)
	text := strings.Repeat("a lot of text ", 100)
	got, err := tok.Truncate(text, 0)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if got != text {
		t.Error("expected unchanged text with no limit")
	}
}

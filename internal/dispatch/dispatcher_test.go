package dispatch

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"pokescout/internal/db"
	"pokescout/internal/domain"
	"pokescout/internal/explore"
	"pokescout/internal/tooling"
)

// =============================================================================
// Helpers
// =============================================================================

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.Migrate(conn); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// countingTool records how many times it was invoked.
type countingTool struct {
	name   string
	calls  int
	result any
	err    error
}

func (t *countingTool) Name() string        { return t.name }
func (t *countingTool) Description() string { return "test tool" }
func (t *countingTool) Definition() string  { return `{"type": "object"}` }
func (t *countingTool) Call(_ context.Context, _ json.RawMessage) (any, error) {
	t.calls++
	if t.err != nil {
		return nil, t.err
	}
	return t.result, nil
}

// truncatingTokenizer keeps the first n bytes of any text.
type truncatingTokenizer struct{ n int }

func (tt *truncatingTokenizer) CountTokens(text string) (int, error) { return len(text), nil }
func (tt *truncatingTokenizer) Truncate(text string, _ int) (string, error) {
	if len(text) <= tt.n {
		return text, nil
	}
	return text[:tt.n], nil
}

func newTestDispatcher(t *testing.T, tools ...tooling.Tool) (*Dispatcher, *tooling.Registry) {
	t.Helper()
	registry := tooling.NewRegistry()
	for _, tool := range tools {
		if err := registry.Register(tool); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	d := NewDispatcher(newTestDB(t), registry, explore.NewExplorer(3))
	return d, registry
}

func request(name string, args map[string]any) domain.ToolCallRequest {
	return domain.ToolCallRequest{ID: "call-1", Name: name, Args: args}
}

// =============================================================================
// Construction
// =============================================================================

func TestNewDispatcher_WhenNilDB_ShouldPanic(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for nil db")
		}
	}()
	NewDispatcher(nil, tooling.NewRegistry(), explore.NewExplorer(3))
}

// =============================================================================
// Caching behaviour
// =============================================================================

func TestDispatcher_Dispatch_WhenFirstCall_ShouldInvokeFresh(t *testing.T) {
	tool := &countingTool{name: "lookup_pokemon", result: map[string]any{"name": "pikachu"}}
	d, _ := newTestDispatcher(t, tool)

	record := d.Dispatch(context.Background(), NewSession(), request("lookup_pokemon", map[string]any{"name": "pikachu"}))

	if record.Status != domain.CacheFresh {
		t.Errorf("expected fresh status, got %s", record.Status)
	}
	if tool.calls != 1 {
		t.Errorf("expected 1 invocation, got %d", tool.calls)
	}
	if record.IsErr {
		t.Error("expected success record")
	}
	if !strings.Contains(record.Result, "pikachu") {
		t.Errorf("expected result to contain pikachu, got %q", record.Result)
	}
}

func TestDispatcher_Dispatch_WhenIdenticalCallAcrossSessions_ShouldServeDurableWithoutReinvoking(t *testing.T) {
	tool := &countingTool{name: "lookup_pokemon", result: map[string]any{"name": "pikachu"}}
	d, _ := newTestDispatcher(t, tool)
	ctx := context.Background()
	args := map[string]any{"name": "pikachu"}

	first := d.Dispatch(ctx, NewSession(), request("lookup_pokemon", args))
	second := d.Dispatch(ctx, NewSession(), request("lookup_pokemon", args))

	if first.Status != domain.CacheFresh {
		t.Errorf("expected first call fresh, got %s", first.Status)
	}
	if second.Status != domain.CacheDurable {
		t.Errorf("expected second call durable, got %s", second.Status)
	}
	if second.Result != first.Result {
		t.Error("expected identical cached result")
	}
	if tool.calls != 1 {
		t.Errorf("expected exactly 1 invocation, got %d", tool.calls)
	}
}

func TestDispatcher_Dispatch_WhenRepeatedWithinSession_ShouldFlagRedundancyInBand(t *testing.T) {
	tool := &countingTool{name: "lookup_pokemon", result: map[string]any{"name": "pikachu"}}
	d, _ := newTestDispatcher(t, tool)
	ctx := context.Background()
	sess := NewSession()
	args := map[string]any{"name": "pikachu"}

	first := d.Dispatch(ctx, sess, request("lookup_pokemon", args))
	second := d.Dispatch(ctx, sess, request("lookup_pokemon", args))

	if first.Status != domain.CacheFresh {
		t.Errorf("expected first call fresh, got %s", first.Status)
	}
	if second.Status != domain.CacheSession {
		t.Errorf("expected session status on repeat, got %s", second.Status)
	}
	if !strings.HasPrefix(second.Result, "[cached:") {
		t.Errorf("expected in-band cached marker, got %q", second.Result)
	}
	if tool.calls != 1 {
		t.Errorf("expected 1 invocation, got %d", tool.calls)
	}
}

func TestDispatcher_Dispatch_WhenArgsWrappedInKwargs_ShouldShareCacheEntry(t *testing.T) {
	tool := &countingTool{name: "lookup_pokemon", result: map[string]any{"name": "pikachu"}}
	d, _ := newTestDispatcher(t, tool)
	ctx := context.Background()

	plain := d.Dispatch(ctx, NewSession(), request("lookup_pokemon", map[string]any{"name": "pikachu"}))
	wrapped := d.Dispatch(ctx, NewSession(), request("lookup_pokemon", map[string]any{
		"kwargs": map[string]any{"name": "pikachu"},
	}))

	if plain.Status != domain.CacheFresh {
		t.Errorf("expected fresh, got %s", plain.Status)
	}
	if wrapped.Status != domain.CacheDurable {
		t.Errorf("expected wrapped call to hit the same entry, got %s", wrapped.Status)
	}
	if tool.calls != 1 {
		t.Errorf("expected 1 invocation, got %d", tool.calls)
	}
}

func TestDispatcher_Dispatch_WhenToolFails_ShouldCacheErrorText(t *testing.T) {
	tool := &countingTool{name: "lookup_pokemon", err: errors.New("pokemon not found")}
	d, _ := newTestDispatcher(t, tool)
	ctx := context.Background()
	args := map[string]any{"name": "not-a-pokemon"}

	first := d.Dispatch(ctx, NewSession(), request("lookup_pokemon", args))
	second := d.Dispatch(ctx, NewSession(), request("lookup_pokemon", args))

	if !first.IsErr {
		t.Fatal("expected error record")
	}
	if !strings.Contains(first.Result, "Error executing lookup_pokemon") {
		t.Errorf("unexpected error text: %q", first.Result)
	}
	if !strings.Contains(first.Result, "(check the argument values)") {
		t.Errorf("expected not-found hint, got %q", first.Result)
	}
	if second.Status != domain.CacheDurable || !second.IsErr {
		t.Errorf("expected cached error on repeat, got status=%s isErr=%v", second.Status, second.IsErr)
	}
	if tool.calls != 1 {
		t.Errorf("expected failing call cached, got %d invocations", tool.calls)
	}
}

func TestDispatcher_Dispatch_WhenToolUnknown_ShouldReportInResultNotError(t *testing.T) {
	d, _ := newTestDispatcher(t)

	record := d.Dispatch(context.Background(), NewSession(), request("no_such_tool", nil))

	if !record.IsErr {
		t.Fatal("expected error record")
	}
	if record.Result != "Tool no_such_tool not found" {
		t.Errorf("unexpected result: %q", record.Result)
	}
}

func TestDispatcher_Dispatch_WhenTokenizerConfigured_ShouldTruncateResult(t *testing.T) {
	tool := &countingTool{name: "lookup_pokemon", result: map[string]any{
		"description": strings.Repeat("very long text ", 50),
	}}
	registry := tooling.NewRegistry()
	if err := registry.Register(tool); err != nil {
		t.Fatalf("register: %v", err)
	}
	d := NewDispatcher(newTestDB(t), registry, explore.NewExplorer(3),
		WithTokenizer(&truncatingTokenizer{n: 40}, 40))

	record := d.Dispatch(context.Background(), NewSession(), request("lookup_pokemon", nil))

	if len(record.Result) != 40 {
		t.Errorf("expected truncated result of 40 bytes, got %d", len(record.Result))
	}
}

func TestDispatcher_Dispatch_WhenNilArgs_ShouldDispatchWithEmptyObject(t *testing.T) {
	tool := &countingTool{name: "lookup_pokemon", result: "ok"}
	d, _ := newTestDispatcher(t, tool)

	record := d.Dispatch(context.Background(), NewSession(), request("lookup_pokemon", nil))
	if record.IsErr {
		t.Errorf("expected success, got %q", record.Result)
	}
	if record.Args == nil {
		t.Error("expected non-nil sanitized args")
	}
}

// =============================================================================
// Sanitization and keying
// =============================================================================

func TestSanitizeArgs_WhenWrapperValueIsObject_ShouldMergeContents(t *testing.T) {
	got := sanitizeArgs(map[string]any{
		"kwargs": map[string]any{"name": "pikachu"},
		"depth":  2,
	})
	if got["name"] != "pikachu" {
		t.Errorf("expected merged name, got %v", got)
	}
	if got["depth"] != 2 {
		t.Errorf("expected depth preserved, got %v", got)
	}
	if _, ok := got["kwargs"]; ok {
		t.Error("expected kwargs key removed")
	}
}

func TestSanitizeArgs_WhenWrapperValueIsScalar_ShouldJustDrop(t *testing.T) {
	got := sanitizeArgs(map[string]any{"args": "stray", "name": "pikachu"})
	if _, ok := got["args"]; ok {
		t.Error("expected args key removed")
	}
	if got["name"] != "pikachu" {
		t.Errorf("expected name preserved, got %v", got)
	}
}

func TestSanitizeArgs_WhenWrapperCollidesWithRealKey_ShouldKeepExisting(t *testing.T) {
	got := sanitizeArgs(map[string]any{
		"name":   "pikachu",
		"kwargs": map[string]any{"name": "charmander"},
	})
	if got["name"] != "pikachu" {
		t.Errorf("expected outer key to win, got %v", got["name"])
	}
}

func TestCanonicalKey_WhenSameNameAndArgs_ShouldMatch(t *testing.T) {
	a, err := canonicalKey("lookup_pokemon", map[string]any{"name": "pikachu", "depth": 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := canonicalKey("lookup_pokemon", map[string]any{"depth": 2, "name": "pikachu"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Error("expected order-independent keys to match")
	}
}

func TestCanonicalKey_WhenNamesDiffer_ShouldNotMatch(t *testing.T) {
	a, _ := canonicalKey("lookup_pokemon", map[string]any{"name": "pikachu"})
	b, _ := canonicalKey("lookup_species", map[string]any{"name": "pikachu"})
	if a == b {
		t.Error("expected different tools to produce different keys")
	}
}

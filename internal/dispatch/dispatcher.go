package dispatch

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"pokescout/internal/domain"
	"pokescout/internal/explore"
	"pokescout/internal/tooling"
)

// wrapperKeys are stray argument-wrapper keys some models emit around real
// arguments. They are stripped before dispatch; their presence is not an error.
var wrapperKeys = []string{"args", "kwargs"}

// Session is the per-research-invocation record of calls already dispatched.
// It exists only to flag immediate repetition to the reasoning service; the
// durable function cache is what actually avoids re-invocation.
type Session struct {
	seen map[string]struct{}
}

// NewSession returns an empty session call set. One per research invocation.
func NewSession() *Session {
	return &Session{seen: make(map[string]struct{})}
}

// Dispatcher executes named tool calls. Results are explored, serialized,
// token-budgeted, and cached in the durable function_cache table keyed by
// (tool, canonical arguments); failing calls cache their error string under
// the same key so a deterministically failing call is never retried.
type Dispatcher struct {
	db           *sql.DB
	registry     *tooling.Registry
	explorer     explore.Explorer
	tokenizer    domain.Tokenizer // optional; nil disables result truncation
	resultTokens int              // token budget per result; 0 = unlimited
	logger       *slog.Logger
}

// Option is a functional option for configuring Dispatcher.
type Option func(*Dispatcher)

// WithTokenizer enables token-budget truncation of serialized results.
func WithTokenizer(tok domain.Tokenizer, budget int) Option {
	return func(d *Dispatcher) {
		if tok != nil {
			d.tokenizer = tok
			d.resultTokens = budget
		}
	}
}

// WithLogger sets a structured logger. If l is nil it is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher creates a dispatcher over the registry and the durable cache
// database. registry and db must not be nil.
func NewDispatcher(db *sql.DB, registry *tooling.Registry, explorer explore.Explorer, opts ...Option) *Dispatcher {
	if db == nil {
		panic("dispatch: db must not be nil")
	}
	if registry == nil {
		panic("dispatch: registry must not be nil")
	}
	d := &Dispatcher{
		db:       db,
		registry: registry,
		explorer: explorer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch executes one tool-call request within a session and returns the
// resulting record. Failures are reported in the record's result text, never
// as an error: nothing propagates past this boundary.
func (d *Dispatcher) Dispatch(ctx context.Context, sess *Session, req domain.ToolCallRequest) domain.ToolCallRecord {
	args := sanitizeArgs(req.Args)
	key, keyErr := canonicalKey(req.Name, args)
	if keyErr != nil {
		// Unserializable arguments; execute uncached.
		d.logger.Warn("tool args not canonicalizable", "tool", req.Name, "error", keyErr)
		text, isErr := d.invoke(ctx, req.Name, args)
		return domain.ToolCallRecord{Name: req.Name, Args: args, Result: text, Status: domain.CacheFresh, IsErr: isErr}
	}

	// Durable cache first: a hit never re-invokes the operation.
	if cached, isErr, ok := d.durableGet(ctx, key); ok {
		record := domain.ToolCallRecord{Name: req.Name, Args: args, Result: cached, Status: domain.CacheDurable, IsErr: isErr}
		if sess != nil {
			if _, repeated := sess.seen[key]; repeated {
				// In-band redundancy signal: the model already made this
				// exact call during this invocation.
				record.Status = domain.CacheSession
				record.Result = "[cached: identical call already made in this research session]\n" + cached
			} else {
				sess.seen[key] = struct{}{}
			}
		}
		return record
	}

	// Miss: invoke. Two concurrent identical calls may both reach here; the
	// second INSERT OR REPLACE writes the same value, so at-least-once
	// invocation is the only consequence, never a corrupted cache.
	text, isErr := d.invoke(ctx, req.Name, args)
	if err := d.durablePut(ctx, key, req.Name, args, text, isErr); err != nil {
		d.logger.Warn("function cache write failed", "tool", req.Name, "error", err)
	}
	if sess != nil {
		sess.seen[key] = struct{}{}
	}
	return domain.ToolCallRecord{Name: req.Name, Args: args, Result: text, Status: domain.CacheFresh, IsErr: isErr}
}

// invoke resolves the tool, runs it, and converts the outcome to result text.
// The bool reports whether the text describes a failure.
func (d *Dispatcher) invoke(ctx context.Context, name string, args map[string]any) (string, bool) {
	tool, err := d.registry.Get(name)
	if err != nil {
		return fmt.Sprintf("Tool %s not found", name), true
	}

	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("Error executing %s: cannot encode arguments: %v", name, err), true
	}

	value, err := tool.Call(ctx, json.RawMessage(raw))
	if err != nil {
		msg := fmt.Sprintf("Error executing %s: %v", name, err)
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			msg += " (check the argument values)"
		}
		return msg, true
	}

	explored := d.explorer.Explore(value)
	serialized, err := json.MarshalIndent(explored, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error executing %s: cannot serialize result: %v", name, err), true
	}

	text := string(serialized)
	if d.tokenizer != nil && d.resultTokens > 0 {
		truncated, tErr := d.tokenizer.Truncate(text, d.resultTokens)
		if tErr != nil {
			d.logger.Warn("result truncation failed", "tool", name, "error", tErr)
		} else {
			text = truncated
		}
	}
	return text, false
}

// durableGet looks up the function cache. ok is false on miss or read error.
func (d *Dispatcher) durableGet(ctx context.Context, key string) (result string, isErr bool, ok bool) {
	row := d.db.QueryRowContext(ctx,
		`SELECT result, is_error FROM function_cache WHERE call_key = ?`, key)
	var errFlag int
	if err := row.Scan(&result, &errFlag); err != nil {
		if err != sql.ErrNoRows {
			d.logger.Warn("function cache read failed", "error", err)
		}
		return "", false, false
	}
	return result, errFlag != 0, true
}

// durablePut stores a result (or error text) under its call key.
func (d *Dispatcher) durablePut(ctx context.Context, key, tool string, args map[string]any, result string, isErr bool) error {
	argJSON, err := json.Marshal(args)
	if err != nil {
		argJSON = []byte("{}")
	}
	errFlag := 0
	if isErr {
		errFlag = 1
	}
	_, err = d.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO function_cache (call_key, tool, args, result, is_error) VALUES (?, ?, ?, ?, ?)`,
		key, tool, string(argJSON), result, errFlag)
	return err
}

// sanitizeArgs returns a copy of args with wrapper keys removed. A wrapper key
// whose value is itself an argument object is merged into the result, so
// {"kwargs": {"name": "pikachu"}} dispatches as {"name": "pikachu"}.
func sanitizeArgs(args map[string]any) map[string]any {
	if args == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	for _, wk := range wrapperKeys {
		v, ok := out[wk]
		if !ok {
			continue
		}
		delete(out, wk)
		if nested, isMap := v.(map[string]any); isMap {
			for k, nv := range nested {
				if _, exists := out[k]; !exists {
					out[k] = nv
				}
			}
		}
	}
	return out
}

// canonicalKey derives an order-independent cache key from the tool name and
// arguments. encoding/json marshals map keys in sorted order at every level,
// which makes the serialization canonical.
func canonicalKey(name string, args map[string]any) (string, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(append(append([]byte(name), 0), raw...))
	return hex.EncodeToString(sum[:]), nil
}

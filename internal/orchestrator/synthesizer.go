package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"pokescout/internal/domain"
)

// synthesisPrompt asks for a best-effort answer from partial data.
const synthesisPrompt = `You are a Pokémon research assistant. The research loop ended before producing a final answer, but the tool calls below collected real data. Write the best answer you can to the user's question using only that data. If the data is insufficient, say what is known and what is missing.`

// resultExcerptLen bounds how much of each tool result goes into the
// synthesis prompt and the deterministic fallback.
const resultExcerptLen = 500

// Synthesizer produces an answer from an interrupted research run. It tries
// one plain reasoning call over the collected tool results; if that also
// fails, it formats the raw data deterministically so the caller still gets
// something usable.
type Synthesizer struct {
	provider domain.ReasoningProvider
	logger   *slog.Logger
}

// NewSynthesizer returns a Synthesizer over provider.
func NewSynthesizer(provider domain.ReasoningProvider) *Synthesizer {
	return &Synthesizer{provider: provider, logger: slog.Default()}
}

// Synthesize returns an answer to query built from the collected tool-call
// history. It never fails: the deterministic fallback has no error path.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, history []domain.ToolCallRecord) string {
	messages := []domain.Message{
		{Role: domain.RoleSystem, Content: synthesisPrompt},
		{Role: domain.RoleUser, Content: fmt.Sprintf("Question: %s\n\nCollected data:\n%s", query, formatHistory(history))},
	}

	// No tools offered: this call must terminate, not start another loop.
	completion, err := s.provider.Complete(ctx, messages, nil)
	if err == nil && strings.TrimSpace(completion.Text) != "" {
		return completion.Text
	}
	if err != nil {
		s.logger.Warn("synthesis call failed, using deterministic fallback", "error", err)
	}
	return fallbackAnswer(query, history)
}

// formatHistory renders the tool-call history for the synthesis prompt.
func formatHistory(history []domain.ToolCallRecord) string {
	var b strings.Builder
	for i, rec := range history {
		fmt.Fprintf(&b, "%d. %s(%s)", i+1, rec.Name, compactArgs(rec.Args))
		if rec.IsErr {
			b.WriteString(" [failed]")
		}
		b.WriteString("\n")
		b.WriteString(excerpt(rec.Result))
		b.WriteString("\n\n")
	}
	return b.String()
}

// fallbackAnswer deterministically formats the collected data when the
// reasoning service is entirely unavailable.
func fallbackAnswer(query string, history []domain.ToolCallRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research for %q was interrupted before a final answer could be written. Raw data collected:\n\n", query)
	for _, rec := range history {
		fmt.Fprintf(&b, "## %s(%s)\n", rec.Name, compactArgs(rec.Args))
		b.WriteString(excerpt(rec.Result))
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// compactArgs renders tool arguments as one-line JSON, empty for no args.
func compactArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(raw)
}

// excerpt bounds a tool result to at most resultExcerptLen bytes, backing
// off to the nearest rune boundary so the cut never splits a multi-byte
// character.
func excerpt(s string) string {
	if len(s) <= resultExcerptLen {
		return s
	}
	cut := resultExcerptLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

package tokenizer

import (
	"fmt"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"pokescout/internal/domain"
)

// TikToken wraps tiktoken-go to implement domain.Tokenizer. The dispatcher
// uses it to keep explored tool results within a per-result token budget
// before they enter the conversation.
type TikToken struct {
	encoding *tiktoken.Tiktoken
}

// NewTikToken creates a tokenizer with the given encoding name.
// Common encodings: "cl100k_base" (GPT-4/3.5), "o200k_base" (GPT-4o).
// Returns an error if the encoding is not recognized.
func NewTikToken(encodingName string) (*TikToken, error) {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: unknown encoding %q: %w", encodingName, err)
	}
	return &TikToken{encoding: enc}, nil
}

// CountTokens returns the number of tokens in the given text.
func (t *TikToken) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	tokens := t.encoding.Encode(text, nil, nil)
	return len(tokens), nil
}

// Truncate returns the longest prefix of text that fits within maxTokens
// tokens. maxTokens <= 0 means no limit. Text already within the budget is
// returned unchanged, so Truncate is idempotent.
func (t *TikToken) Truncate(text string, maxTokens int) (string, error) {
	if maxTokens <= 0 || text == "" {
		return text, nil
	}
	tokens := t.encoding.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text, nil
	}
	return t.encoding.Decode(tokens[:maxTokens]), nil
}

var _ domain.Tokenizer = (*TikToken)(nil)

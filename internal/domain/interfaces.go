package domain

import "context"

// ReasoningProvider is the model-agnostic interface for the external reasoning
// service. Complete sends the conversation plus the available tool definitions
// and returns either a final text or further tool-call requests.
// Implementations may be OpenAI, OpenRouter, Ollama, or mocks.
type ReasoningProvider interface {
	Complete(ctx context.Context, messages []Message, tools []ToolDefinition) (*Completion, error)
}

// Embedder generates vector embeddings from text for the semantic cache.
type Embedder interface {
	// Embed returns a dense float64 vector for the given text.
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Field is one named value of an Explorable.
type Field struct {
	Name  string
	Value any
}

// Explorable is the capability interface for domain values that the explorer
// may expand. Fields returns the value's public attributes in declaration
// order; nested values may themselves be Explorable.
type Explorable interface {
	Fields() []Field
}

// Tokenizer counts and truncates tokens for payload budgeting.
type Tokenizer interface {
	// CountTokens returns the number of tokens in the given text.
	CountTokens(text string) (int, error)

	// Truncate returns the longest prefix of text within maxTokens tokens.
	Truncate(text string, maxTokens int) (string, error)
}

package domain

import (
	"time"
)

// =============================================================================
// Core Configuration
// =============================================================================

type Config struct {
	Gateway GatewayConfig `json:"gateway" yaml:"gateway"`
	Agent   AgentConfig   `json:"agent" yaml:"agent"`
	Cache   CacheConfig   `json:"cache" yaml:"cache"`
	Retry   RetryConfig   `json:"retry" yaml:"retry"`
	Infra   InfraConfig   `json:"infra" yaml:"infra"`
}

type GatewayConfig struct {
	Port      int    `json:"port" yaml:"port"`
	AuthToken string `json:"authToken,omitempty" yaml:"authToken,omitempty"` // When set, requests need Authorization: Bearer <authToken>
}

// AgentConfig controls the research loop and the reasoning provider behind it.
type AgentConfig struct {
	Provider       string `json:"provider" yaml:"provider"` // "openai" | "openrouter" | "ollama"
	Model          string `json:"model" yaml:"model"`
	APIKey         string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	BaseURL        string `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"` // override the provider endpoint
	MaxIterations  int    `json:"maxIterations" yaml:"maxIterations"`         // reasoning-call budget per research invocation
	ExploreDepth   int    `json:"exploreDepth" yaml:"exploreDepth"`           // max depth for tool result exploration
	ResultTokens   int    `json:"resultTokens" yaml:"resultTokens"`           // token budget per tool result (0 = unlimited)
	Encoding       string `json:"encoding" yaml:"encoding"`                   // tiktoken encoding name, e.g. "cl100k_base"
	RequestTimeout int    `json:"requestTimeout" yaml:"requestTimeout"`       // seconds per reasoning/tool HTTP call
}

// CacheConfig selects the research-cache strategy and its tuning.
// One strategy per deployment; there is no migration between key schemes.
type CacheConfig struct {
	Strategy            string  `json:"strategy" yaml:"strategy"` // "exact" | "semantic"
	TTLHours            int     `json:"ttlHours" yaml:"ttlHours"`
	ResourceTTLHours    int     `json:"resourceTtlHours" yaml:"resourceTtlHours"`
	SimilarityThreshold float64 `json:"similarityThreshold" yaml:"similarityThreshold"`
	EmbedModel          string  `json:"embedModel" yaml:"embedModel"`       // Ollama embedding model for the semantic strategy
	SweepSchedule       string  `json:"sweepSchedule" yaml:"sweepSchedule"` // cron expression for expired-entry sweeps
	DatabaseURL         string  `json:"databaseUrl" yaml:"databaseUrl"`     // file: or libsql: URL
}

// RetryConfig controls retry behaviour for reasoning-service calls.
type RetryConfig struct {
	MaxRetries     int `json:"maxRetries" yaml:"maxRetries"`         // Maximum retry attempts (0 = no retries)
	InitialBackoff int `json:"initialBackoff" yaml:"initialBackoff"` // Initial backoff in milliseconds
	MaxBackoff     int `json:"maxBackoff" yaml:"maxBackoff"`         // Maximum backoff in milliseconds
	Multiplier     int `json:"multiplier" yaml:"multiplier"`         // Backoff multiplier (e.g. 2 for exponential doubling)
}

type InfraConfig struct {
	LogFormat string `json:"logFormat" yaml:"logFormat"` // "json" | "text"
	LogLevel  string `json:"logLevel" yaml:"logLevel"`
}

// =============================================================================
// Conversation Protocol
// =============================================================================

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
	RoleTool      MessageRole = "tool"
)

// Message is one entry in the research conversation. Assistant messages may
// carry ToolCalls; tool messages carry the result for a single ToolCallID.
type Message struct {
	Role       MessageRole       `json:"role"`
	Content    string            `json:"content"`
	ToolCalls  []ToolCallRequest `json:"toolCalls,omitempty"`
	ToolCallID string            `json:"toolCallId,omitempty"`
	ToolName   string            `json:"toolName,omitempty"`
}

// ToolCallRequest is produced by the reasoning service. Args may contain stray
// wrapper keys ("args", "kwargs") that the dispatcher strips before execution.
type ToolCallRequest struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Completion is the reasoning service's answer to one conversation turn:
// either free text, or one or more tool-call requests, or both.
type Completion struct {
	Text      string
	ToolCalls []ToolCallRequest
}

// =============================================================================
// Tooling
// =============================================================================

// ToolDefinition describes one callable tool for the function-calling API.
type ToolDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema string `json:"input_schema"` // JSON Schema for the tool's arguments
}

// CacheStatus records how a tool result was obtained.
type CacheStatus string

const (
	CacheFresh   CacheStatus = "fresh"          // tool was invoked
	CacheDurable CacheStatus = "cached-durable" // served from the cross-invocation function cache
	CacheSession CacheStatus = "cached-session" // repeated within the current invocation
)

// ToolCallRecord is one dispatched call in a research invocation's history.
// Records live only for the duration of the invocation.
type ToolCallRecord struct {
	Name   string         `json:"name"`
	Args   map[string]any `json:"args"`
	Result string         `json:"result"`
	Status CacheStatus    `json:"status"`
	IsErr  bool           `json:"isError,omitempty"`
}

// =============================================================================
// Research Results & Cache
// =============================================================================

// ReasoningStep is one (tool, arguments) pair, reported to the caller as the
// provenance of an answer.
type ReasoningStep struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// ResearchResult is the caller-facing answer object. Success distinguishes
// confident and best-effort answers; it is false only when no data was
// collected at all.
type ResearchResult struct {
	Results    string          `json:"results"`
	Reasoning  []ReasoningStep `json:"reasoning"`
	Success    bool            `json:"success"`
	Iterations int             `json:"iterations_used"`
	Cached     bool            `json:"cached"`
}

// CachedAnswer is a research-cache hit.
type CachedAnswer struct {
	Query    string    `json:"query"`
	Results  string    `json:"results"`
	CachedAt time.Time `json:"cached_at"`
}

// CacheStats aggregates research-cache usage for reporting.
type CacheStats struct {
	Entries   int `json:"entries"`
	TotalHits int `json:"total_hits"`
}

// =============================================================================
// Chat Sessions
// =============================================================================

type ChatSession struct {
	SessionID  string    `json:"session_id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

type ChatMessage struct {
	ID        int64          `json:"id"`
	SessionID string         `json:"session_id"`
	Role      MessageRole    `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

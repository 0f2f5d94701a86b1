package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"pokescout/internal/dispatch"
	"pokescout/internal/domain"
	"pokescout/internal/researchcache"
	"pokescout/internal/tooling"
)

// systemPrompt seeds every research conversation.
const systemPrompt = `You are a Pokémon research assistant with access to Pokédex lookup tools.

IMPORTANT INSTRUCTIONS:
1. Use the available tools to gather detailed Pokémon data
2. Tool responses contain nested data structures that have been bounded for size - examine them carefully
3. Look for relationships between different data points (e.g. Pokémon types, abilities, stats, moves)
4. If you need more specific information, call additional tools
5. A tool response marked as cached means you already made that exact call - do not repeat it
6. Always cite the specific data you used in your analysis

Your goal is to provide comprehensive, accurate, and insightful Pokémon research based on the user's query.`

// noDataMessage is returned when neither the loop nor the fallback collected
// anything usable.
const noDataMessage = "I was unable to collect any data for this query. The research service may be unavailable; please try again."

// DefaultMaxIterations is the reasoning-call budget per research invocation.
const DefaultMaxIterations = 5

// Orchestrator runs the bounded tool-call loop: send the conversation to the
// reasoning service, dispatch any requested tool calls, append the results,
// and repeat until a final answer, the iteration budget, or a transport error.
// Answers are served from and written back to the research cache.
type Orchestrator struct {
	provider   domain.ReasoningProvider
	dispatcher *dispatch.Dispatcher
	registry   *tooling.Registry
	cache      researchcache.CacheStore // optional; nil disables caching
	synth      *Synthesizer
	logger     *slog.Logger

	maxIterations  int
	requestTimeout time.Duration // per reasoning call; 0 = rely on caller ctx

	mu       sync.RWMutex // guards cacheTTL, which is hot-reloadable
	cacheTTL time.Duration
}

// Option is a functional option for configuring Orchestrator.
type Option func(*Orchestrator)

// WithCache sets the research cache. If c is nil it is ignored.
func WithCache(c researchcache.CacheStore) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.cache = c
		}
	}
}

// WithMaxIterations sets the reasoning-call budget. Non-positive values are ignored.
func WithMaxIterations(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxIterations = n
		}
	}
}

// WithCacheTTL sets the research-cache entry lifetime. Non-positive values are ignored.
func WithCacheTTL(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.cacheTTL = d
		}
	}
}

// WithRequestTimeout bounds each reasoning-service call. Non-positive values are ignored.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.requestTimeout = d
		}
	}
}

// WithLogger sets a structured logger. If l is nil it is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New returns an Orchestrator. provider, dispatcher, and registry must not be nil.
func New(provider domain.ReasoningProvider, dispatcher *dispatch.Dispatcher, registry *tooling.Registry, opts ...Option) *Orchestrator {
	if provider == nil {
		panic("orchestrator: provider must not be nil")
	}
	if dispatcher == nil {
		panic("orchestrator: dispatcher must not be nil")
	}
	if registry == nil {
		panic("orchestrator: registry must not be nil")
	}
	o := &Orchestrator{
		provider:      provider,
		dispatcher:    dispatcher,
		registry:      registry,
		synth:         NewSynthesizer(provider),
		logger:        slog.Default(),
		maxIterations: DefaultMaxIterations,
		cacheTTL:      researchcache.DefaultTTL,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.synth.logger = o.logger
	return o
}

// SetCacheTTL updates the research-cache entry lifetime (config hot-reload).
// Non-positive values are ignored.
func (o *Orchestrator) SetCacheTTL(d time.Duration) {
	if d <= 0 {
		return
	}
	o.mu.Lock()
	o.cacheTTL = d
	o.mu.Unlock()
}

func (o *Orchestrator) ttl() time.Duration {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.cacheTTL
}

// Research handles one query end to end. It always returns an answer object:
// every failure mode degrades to explanatory text with the success flag set
// accordingly, never to an error.
func (o *Orchestrator) Research(ctx context.Context, query string) domain.ResearchResult {
	// Cache first: repeated or near-duplicate questions must not re-invoke
	// the reasoning service.
	if o.cache != nil {
		answer, hit, err := o.cache.Lookup(ctx, query)
		if err != nil {
			o.logger.Warn("research cache lookup failed", "error", err)
		} else if hit {
			o.logger.Info("research cache hit", "query", query)
			return domain.ResearchResult{Results: answer.Results, Reasoning: []domain.ReasoningStep{}, Success: true, Cached: true}
		}
	}

	messages := []domain.Message{
		{Role: domain.RoleSystem, Content: systemPrompt},
		{Role: domain.RoleUser, Content: query},
	}
	sess := dispatch.NewSession()
	tools := o.registry.Definitions()

	var (
		history    []domain.ToolCallRecord
		reasoning  = []domain.ReasoningStep{}
		iterations int
	)

	for iterations < o.maxIterations {
		iterations++

		completion, err := o.complete(ctx, messages, tools)
		if err != nil {
			// Transport error: keep whatever history we have and fall through
			// to synthesis.
			o.logger.Warn("reasoning service call failed", "iteration", iterations, "error", err)
			break
		}

		if len(completion.ToolCalls) == 0 {
			// Final answer.
			o.storeAnswer(ctx, query, completion.Text)
			return domain.ResearchResult{
				Results:    completion.Text,
				Reasoning:  reasoning,
				Success:    true,
				Iterations: iterations,
			}
		}

		messages = append(messages, domain.Message{
			Role:      domain.RoleAssistant,
			Content:   completion.Text,
			ToolCalls: completion.ToolCalls,
		})

		// Dispatch sequentially in request order: later calls may depend on
		// earlier results being visible to the model.
		for _, call := range completion.ToolCalls {
			record := o.dispatcher.Dispatch(ctx, sess, call)
			history = append(history, record)
			reasoning = append(reasoning, domain.ReasoningStep{Tool: record.Name, Args: record.Args})
			messages = append(messages, domain.Message{
				Role:       domain.RoleTool,
				Content:    record.Result,
				ToolCallID: call.ID,
				ToolName:   call.Name,
			})
		}
	}

	// Budget exhausted or transport error. With no collected data there is
	// nothing to synthesize from.
	if len(history) == 0 {
		return domain.ResearchResult{
			Results:    noDataMessage,
			Reasoning:  reasoning,
			Success:    false,
			Iterations: iterations,
		}
	}

	answer := o.synth.Synthesize(ctx, query, history)
	o.storeAnswer(ctx, query, answer)
	return domain.ResearchResult{
		Results:    answer,
		Reasoning:  reasoning,
		Success:    true,
		Iterations: iterations,
	}
}

// complete calls the reasoning service with the per-call timeout applied.
func (o *Orchestrator) complete(ctx context.Context, messages []domain.Message, tools []domain.ToolDefinition) (*domain.Completion, error) {
	if o.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.requestTimeout)
		defer cancel()
	}
	return o.provider.Complete(ctx, messages, tools)
}

// storeAnswer writes a computed answer back into the research cache.
// Failures are logged, not surfaced: caching is best-effort.
func (o *Orchestrator) storeAnswer(ctx context.Context, query, answer string) {
	if o.cache == nil || answer == "" {
		return
	}
	if err := o.cache.Store(ctx, query, answer, o.ttl()); err != nil {
		o.logger.Warn("research cache store failed", "error", err)
	}
}

// Stats reports research-cache statistics, or zeros when caching is disabled.
func (o *Orchestrator) Stats(ctx context.Context) (domain.CacheStats, error) {
	if o.cache == nil {
		return domain.CacheStats{}, nil
	}
	return o.cache.Stats(ctx)
}

// SweepExpired removes expired cache entries. Returns 0 when caching is disabled.
func (o *Orchestrator) SweepExpired(ctx context.Context) (int, error) {
	if o.cache == nil {
		return 0, nil
	}
	return o.cache.SweepExpired(ctx)
}

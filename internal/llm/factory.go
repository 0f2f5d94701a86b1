package llm

import (
	"fmt"
	"os"

	"pokescout/internal/domain"
)

// lookupEnv resolves API keys from the environment; tests may replace it.
var lookupEnv = os.Getenv

// NewProvider returns a ReasoningProvider for the given agent config.
// Provider may be "openai", "openrouter", or "ollama"; empty defaults to
// "openai". API keys come from the config or, failing that, the conventional
// environment variable for the provider.
func NewProvider(agent *domain.AgentConfig) (domain.ReasoningProvider, error) {
	if agent == nil {
		return nil, fmt.Errorf("llm: agent config must not be nil")
	}
	provider := agent.Provider
	if provider == "" {
		provider = "openai"
	}

	var p *OpenAIProvider
	switch provider {
	case "openai":
		key := agent.APIKey
		if key == "" {
			key = lookupEnv("OPENAI_API_KEY")
		}
		if key == "" {
			return nil, fmt.Errorf("llm: openai requires an API key (config apiKey or OPENAI_API_KEY)")
		}
		p = NewOpenAIProvider(key, agent.Model)
	case "openrouter":
		key := agent.APIKey
		if key == "" {
			key = lookupEnv("OPENROUTER_API_KEY")
		}
		if key == "" {
			return nil, fmt.Errorf("llm: openrouter requires an API key (config apiKey or OPENROUTER_API_KEY)")
		}
		p = NewOpenRouterProvider(key, agent.Model)
	case "ollama":
		p = NewOllamaProvider(agent.Model)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", provider)
	}

	p.SetBaseURL(agent.BaseURL)
	return p, nil
}

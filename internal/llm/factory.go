package llm

import (
	"context"
	"fmt"

	"github.com/argus-core/backend/internal/config"
)

// New selects a concrete Provider from cfg.Provider.
func New(ctx context.Context, cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case "", "gemini":
		return NewGeminiProvider(ctx, cfg.APIKey, cfg.Model)
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("missing ARGUS_LLM_API_KEY for openai provider")
		}
		return NewOpenAIProvider(cfg.APIKey, cfg.Model), nil
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("missing ARGUS_LLM_API_KEY for anthropic provider")
		}
		return NewAnthropicProvider(cfg.APIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

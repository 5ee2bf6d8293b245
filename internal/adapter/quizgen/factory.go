package quizgen

import (
	"context"

	"quiztube/internal/config"
	"quiztube/internal/domain"
)

// NewClient picks the LLM client for the configured provider.
func NewClient(ctx context.Context, cfg config.LLMConfig) (domain.LLMClient, error) {
	if cfg.Provider == "openai-tools" {
		return NewOpenAIToolClient(cfg)
	}
	return NewLangchainClient(ctx, cfg)
}

package quizgen

import (
	"context"
	"fmt"
	"net/http"

	"quiztube/internal/config"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangchainClient implements domain.LLMClient for the providers langchaingo supports.
type LangchainClient struct {
	llm  llms.Model
	opts []llms.CallOption
}

// NewLangchainClient builds a client for cfg.Provider: ollama, openai or googleai.
func NewLangchainClient(ctx context.Context, cfg config.LLMConfig) (*LangchainClient, error) {
	var (
		llm llms.Model
		err error
	)

	switch cfg.Provider {
	case "ollama":
		llm, err = ollama.New(
			ollama.WithServerURL(cfg.ServerURL),
			ollama.WithModel(cfg.Model),
			ollama.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
			ollama.WithFormat("json"),
		)
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai API key cannot be empty")
		}
		opts := []openai.Option{openai.WithToken(cfg.APIKey), openai.WithModel(cfg.Model)}
		if cfg.ServerURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.ServerURL))
		}
		llm, err = openai.New(opts...)
	case "googleai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini API key cannot be empty")
		}
		llm, err = googleai.New(ctx,
			googleai.WithAPIKey(cfg.APIKey),
			googleai.WithDefaultModel(cfg.Model),
		)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.Provider, err)
	}

	return newLangchainClient(llm, cfg.Temperature), nil
}

func newLangchainClient(llm llms.Model, temperature float64) *LangchainClient {
	return &LangchainClient{
		llm:  llm,
		opts: []llms.CallOption{llms.WithTemperature(temperature), llms.WithJSONMode()},
	}
}

func (c *LangchainClient) Complete(ctx context.Context, prompt string) (string, error) {
	completion, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt, c.opts...)
	if err != nil {
		return "", classifyError(ctx, err)
	}
	return completion, nil
}

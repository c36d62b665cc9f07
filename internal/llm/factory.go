package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/agenthands/strata/internal/config"
)

// NewClient builds the configured provider and wraps it with retry and
// circuit-breaker behavior. The embedder return is nil for providers without
// an embedding API; callers degrade by skipping embeddings.
func NewClient(ctx context.Context, cfg config.LLMConfig) (LLMClient, EmbedderClient, error) {
	provider := strings.ToLower(cfg.Provider)

	switch provider {
	case "openai":
		c := NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.EmbeddingModel, cfg.BaseURL)
		rc := NewResilientClient(c, c, "openai", cfg.MaxRetries)
		return rc, rc, nil

	case "gemini":
		c, err := NewGeminiClient(ctx, cfg.APIKey, cfg.Model, cfg.EmbeddingModel)
		if err != nil {
			return nil, nil, err
		}
		rc := NewResilientClient(c, c, "gemini", cfg.MaxRetries)
		return rc, rc, nil

	case "claude":
		c := NewClaudeClient(cfg.APIKey, cfg.Model, cfg.BaseURL)
		rc := NewResilientClient(c, nil, "claude", cfg.MaxRetries)
		return rc, nil, nil

	case "ollama":
		// Ollama speaks the OpenAI-compatible API; the key is a dummy.
		baseURL := strings.TrimRight(cfg.BaseURL, "/")
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		if !strings.HasSuffix(baseURL, "/v1") {
			baseURL = baseURL + "/v1"
		}
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = "ollama"
		}
		c := NewOpenAIClient(apiKey, cfg.Model, cfg.EmbeddingModel, baseURL)
		rc := NewResilientClient(c, c, "ollama", cfg.MaxRetries)
		return rc, rc, nil

	default:
		return nil, nil, fmt.Errorf("unsupported llm provider: %s", provider)
	}
}

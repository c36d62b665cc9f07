package llm

import (
	"context"
)

// LLMClient is the language-level reasoning capability: extraction,
// disambiguation, contradiction judgment, and summarization all go through
// Generate. Providers are substitutable.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type EmbedderClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type RerankerClient interface {
	Rank(ctx context.Context, query string, documents []string) ([]int, error)
}

package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/agenthands/strata/internal/logger"
)

const baseBackoff = 500 * time.Millisecond

// ResilientClient wraps a provider with bounded-backoff retries and a circuit
// breaker, so transient capability failures do not cascade through the
// ingestion pipeline.
type ResilientClient struct {
	inner      LLMClient
	embedder   EmbedderClient
	cb         *gobreaker.CircuitBreaker
	maxRetries int
}

func NewResilientClient(inner LLMClient, embedder EmbedderClient, name string, maxRetries int) *ResilientClient {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	st := gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				logger.Get().Warn("llm circuit breaker opened",
					zap.String("name", name), zap.String("from", from.String()))
			}
		},
	}
	return &ResilientClient{
		inner:      inner,
		embedder:   embedder,
		cb:         gobreaker.NewCircuitBreaker(st),
		maxRetries: maxRetries,
	}
}

func (c *ResilientClient) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := c.do(ctx, func() (interface{}, error) {
		return c.inner.Generate(ctx, prompt)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (c *ResilientClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.embedder == nil {
		return nil, fmt.Errorf("provider has no embedding capability")
	}
	out, err := c.do(ctx, func() (interface{}, error) {
		return c.embedder.Embed(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return out.([]float32), nil
}

func (c *ResilientClient) do(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := baseBackoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		out, err := c.cb.Execute(fn)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// An open breaker will not recover within this call's retry window.
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			break
		}
	}
	return nil, fmt.Errorf("llm call failed after %d attempts: %w", c.maxRetries, lastErr)
}

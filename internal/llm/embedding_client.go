package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrEmbeddingUnavailable is returned once the embedding provider's
// transient-failure retry budget is exhausted.
var ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

const (
	embeddingMaxAttempts = 4
	embeddingBaseDelay   = 200 * time.Millisecond
)

// EmbeddingClient wraps a raw EmbeddingGenerator with a fixed, construction-time
// dimension contract: exponential-backoff retry on
// transient failure, Matryoshka-style prefix truncation when the provider's
// native width exceeds the configured dimension, and L2 normalization of
// the result.
type EmbeddingClient struct {
	Generator EmbeddingGenerator
	Dimension int
}

func NewEmbeddingClient(generator EmbeddingGenerator, dimension int) *EmbeddingClient {
	return &EmbeddingClient{Generator: generator, Dimension: dimension}
}

// Embed retries the underlying provider call with doubling delay, then
// truncates to Dimension and L2-normalizes before returning.
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	delay := embeddingBaseDelay

	for attempt := 0; attempt < embeddingMaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		vector, err := c.Generator.Embed(ctx, text)
		if err == nil {
			return normalize(truncate(vector, c.Dimension)), nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, lastErr)
}

func truncate(vector []float32, dimension int) []float32 {
	if dimension <= 0 || len(vector) <= dimension {
		return vector
	}
	return vector[:dimension]
}

func normalize(vector []float32) []float32 {
	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares == 0 {
		return vector
	}
	norm := math.Sqrt(sumSquares)
	out := make([]float32, len(vector))
	for i, v := range vector {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

package llm_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/scrypster/aegis/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	vector   []float32
	failures int
	calls    int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("transient failure")
	}
	return f.vector, nil
}

func (f *fakeEmbedder) GetModel() string { return "fake" }

func TestEmbeddingClient_TruncatesAndNormalizes(t *testing.T) {
	gen := &fakeEmbedder{vector: []float32{3, 4, 0, 0}}
	c := llm.NewEmbeddingClient(gen, 2)

	vec, err := c.Embed(context.Background(), "text")
	require.NoError(t, err)
	require.Len(t, vec, 2)

	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSquares), 0.001)
}

func TestEmbeddingClient_RetriesTransientFailures(t *testing.T) {
	gen := &fakeEmbedder{vector: []float32{1, 0}, failures: 2}
	c := llm.NewEmbeddingClient(gen, 2)

	vec, err := c.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Len(t, vec, 2)
	assert.Equal(t, 3, gen.calls)
}

func TestEmbeddingClient_ExhaustsRetriesAndReturnsUnavailable(t *testing.T) {
	gen := &fakeEmbedder{vector: []float32{1, 0}, failures: 100}
	c := llm.NewEmbeddingClient(gen, 2)

	_, err := c.Embed(context.Background(), "text")
	assert.ErrorIs(t, err, llm.ErrEmbeddingUnavailable)
}

package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-assistant/internal/config"
)

type countingEmbedder struct {
	calls int
	err   error
}

func (c *countingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := c.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (c *countingEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text))}, nil
}

func TestRateLimited_EmbedDocuments(t *testing.T) {
	inner := &countingEmbedder{}
	r := NewRateLimited(inner, 1000)

	vectors, err := r.EmbedDocuments(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}, {3}}, vectors)
	assert.Equal(t, 3, inner.calls)
}

func TestRateLimited_PropagatesError(t *testing.T) {
	boom := errors.New("model not found")
	r := NewRateLimited(&countingEmbedder{err: boom}, 1000)

	_, err := r.EmbedDocuments(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, boom)
}

func TestRateLimited_CancelledContext(t *testing.T) {
	inner := &countingEmbedder{}
	r := NewRateLimited(inner, 0.001)

	// the first call consumes the only token
	_, err := r.EmbedQuery(context.Background(), "x")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = r.EmbedQuery(ctx, "y")
	assert.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestNewEmbedder(t *testing.T) {
	t.Run("ollama", func(t *testing.T) {
		e, err := NewEmbedder(&config.LLMConfig{Provider: config.ProviderOllama, BaseURL: "http://localhost:11434", Model: "mxbai-embed-large"})
		require.NoError(t, err)
		assert.NotNil(t, e)
	})

	t.Run("rate limited", func(t *testing.T) {
		e, err := NewEmbedder(&config.LLMConfig{Provider: config.ProviderOllama, BaseURL: "http://localhost:11434", Model: "m", RequestsPerSecond: 2})
		require.NoError(t, err)
		assert.IsType(t, &RateLimited{}, e)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := NewEmbedder(&config.LLMConfig{Provider: "carrier-pigeon"})
		assert.Error(t, err)
	})
}

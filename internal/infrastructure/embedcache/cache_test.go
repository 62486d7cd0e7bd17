package embedcache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	queries int
	batches int
	err     error
}

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.batches++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

func (c *countingEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	c.queries++
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func TestEmbedQueryCachesByText(t *testing.T) {
	next := &countingEmbedder{}
	cache := New(next, 2)

	first, err := cache.EmbedQuery(context.Background(), "oppsigelse")
	require.NoError(t, err)
	first[0] = 999

	second, err := cache.EmbedQuery(context.Background(), "oppsigelse")
	require.NoError(t, err)
	assert.Equal(t, 1, next.queries)
	assert.Equal(t, float32(10), second[0], "cached vector must not be affected by caller mutation")

	_, _ = cache.EmbedQuery(context.Background(), "ferie")
	_, _ = cache.EmbedQuery(context.Background(), "husleie")
	assert.Equal(t, 2, cache.Len())
}

func TestEmbedQueryDoesNotCacheErrors(t *testing.T) {
	next := &countingEmbedder{err: errors.New("down")}
	cache := New(next, 0)

	_, err := cache.EmbedQuery(context.Background(), "q")
	require.Error(t, err)
	_, err = cache.EmbedQuery(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, 2, next.queries)
	assert.Equal(t, 0, cache.Len())
}

func TestEmbedPassesThrough(t *testing.T) {
	next := &countingEmbedder{}
	vectors, err := New(next, 4).Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vectors, 2)
	assert.Equal(t, 1, next.batches)
}

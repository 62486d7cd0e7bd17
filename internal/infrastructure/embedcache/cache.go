package embedcache

import (
	"context"
	"crypto/sha256"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kirillkom/lovdata-assistant/internal/core/ports"
)

const defaultSize = 2048

// Embedder memoizes query embeddings by content hash. Batch embedding of
// chunks during ingestion passes straight through.
type Embedder struct {
	next  ports.Embedder
	cache *lru.Cache[[32]byte, []float32]
}

func New(next ports.Embedder, size int) *Embedder {
	if size <= 0 {
		size = defaultSize
	}
	cache, err := lru.New[[32]byte, []float32](size)
	if err != nil {
		cache, _ = lru.New[[32]byte, []float32](defaultSize)
	}
	return &Embedder{next: next, cache: cache}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return e.next.Embed(ctx, texts)
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := sha256.Sum256([]byte(text))
	if vector, ok := e.cache.Get(key); ok {
		return copyVector(vector), nil
	}
	vector, err := e.next.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Add(key, copyVector(vector))
	return vector, nil
}

func (e *Embedder) Len() int {
	return e.cache.Len()
}

// copyVector keeps callers from mutating cached values.
func copyVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

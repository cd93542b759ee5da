package genai

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/melonneet/ezhishi-chatbot/internal/metrics"
)

// DefaultCacheSize is the number of embeddings kept by CachedEmbedder.
const DefaultCacheSize = 2048

// CachedEmbedder memoizes an Embedder. Concurrent requests for the same text
// share one upstream call; the oldest entry is evicted once size is reached.
// Errors are not cached.
type CachedEmbedder struct {
	next    Embedder
	metrics *metrics.Metrics
	size    int

	group singleflight.Group
	mu    sync.Mutex
	items map[string][]float32
	order []string
}

// NewCachedEmbedder wraps next. size <= 0 uses DefaultCacheSize.
func NewCachedEmbedder(next Embedder, size int, m *metrics.Metrics) *CachedEmbedder {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &CachedEmbedder{
		next:    next,
		metrics: m,
		size:    size,
		items:   make(map[string][]float32, size),
	}
}

// Embed implements Embedder.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.get(text); ok {
		c.metrics.RecordEmbeddingCache("hit")
		return v, nil
	}
	c.metrics.RecordEmbeddingCache("miss")

	result, err, _ := c.group.Do(text, func() (any, error) {
		if v, ok := c.get(text); ok {
			return v, nil
		}
		start := time.Now()
		v, err := c.next.Embed(ctx, text)
		status := "success"
		if err != nil {
			status = "error"
		}
		c.metrics.RecordEmbedding(c.next.Provider().String(), status, time.Since(start).Seconds())
		if err != nil {
			return nil, err
		}
		c.put(text, v)
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]float32), nil
}

// Provider implements Embedder.
func (c *CachedEmbedder) Provider() Provider { return c.next.Provider() }

// Len returns the number of cached embeddings.
func (c *CachedEmbedder) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *CachedEmbedder) get(text string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[text]
	return v, ok
}

func (c *CachedEmbedder) put(text string, v []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[text]; ok {
		return
	}
	for len(c.order) >= c.size {
		delete(c.items, c.order[0])
		c.order = c.order[1:]
	}
	c.items[text] = v
	c.order = append(c.order, text)
}

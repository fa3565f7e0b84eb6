// Package embcache memoizes embedding vectors by content fingerprint so the
// same probe never hits the model twice within the TTL window.
package embcache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/JuanCabardoneschi/clip-search-api/internal/db"
	"github.com/JuanCabardoneschi/clip-search-api/internal/domain"
)

var cacheKeyPrefix = domain.KeyPrefix + "emb_cache:"

// DefaultTTL applies when the decorator is created with a non-positive TTL.
const DefaultTTL = time.Hour

// store is the consumer interface for the embedding cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedEmbedder caches embeddings in a key-value store with a fixed TTL.
// On store unavailability it degrades to an in-process map for the lifetime
// of the process; nothing survives a restart in that mode.
type CachedEmbedder struct {
	inner      domain.Embedder
	store      store
	ttl        time.Duration
	group      singleflight.Group
	fallback   sync.Map // fingerprint key -> []float32
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result", passed explicitly.
func New(
	inner domain.Embedder,
	s store,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CachedEmbedder{
		inner:      inner,
		store:      s,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Embed returns a cached embedding or calls the inner embedder. Concurrent
// misses for the same fingerprint collapse into a single inner call. An
// inner failure propagates uncached; no poison entry is stored.
func (c *CachedEmbedder) Embed(ctx context.Context, probe domain.Probe) (domain.EmbeddingResult, error) {
	key := cacheKeyPrefix + probe.Fingerprint()

	if vec, result := c.lookup(ctx, key); vec != nil {
		c.incCache(result)
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	c.incCache("miss")

	v, err, _ := c.group.Do(key, func() (any, error) {
		res, err := c.inner.Embed(ctx, probe)
		if err != nil {
			return nil, fmt.Errorf("embed probe: %w", err)
		}
		c.put(ctx, key, res.Embedding)
		return res, nil
	})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return v.(domain.EmbeddingResult), nil
}

func (c *CachedEmbedder) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

// lookup checks the shared store first and the in-process fallback second.
// Returns the vector and the cache-result label, or (nil, "") on miss.
func (c *CachedEmbedder) lookup(ctx context.Context, key string) ([]float32, string) {
	data, err := c.store.Get(ctx, key)
	switch {
	case err == nil && len(data) > 0:
		vec, decErr := bytesToVector(data)
		if decErr != nil {
			c.logger.Warn("Failed to parse cached embedding", zap.String("key", key), zap.Error(decErr))
			return nil, ""
		}
		return vec, "hit"
	case err != nil && !errors.Is(err, db.ErrKeyNotFound):
		c.logger.Warn("Embedding cache store unavailable", zap.String("key", key), zap.Error(err))
		if v, ok := c.fallback.Load(key); ok {
			return v.([]float32), "fallback_hit"
		}
	}
	return nil, ""
}

// put writes through to the shared store; when that fails the vector lands
// in the in-process fallback instead.
func (c *CachedEmbedder) put(ctx context.Context, key string, vec []float32) {
	if err := c.store.SetWithTTL(ctx, key, vectorToCacheBytes(vec), c.ttl); err != nil {
		c.logger.Warn("Failed to cache embedding, using in-process fallback",
			zap.String("key", key), zap.Error(err))
		c.fallback.Store(key, vec)
	}
}

func vectorToCacheBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding cache data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}

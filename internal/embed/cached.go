package embed

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/qbot/internal/cache"
)

// Cached wraps an embedder with a cache keyed by embedder name and text.
// Only misses are sent to the wrapped embedder, in one batch.
type Cached struct {
	inner  Embedder
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCached wraps inner with c. A zero ttl uses the cache default.
func NewCached(inner Embedder, c cache.Cache, ttl time.Duration, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{inner: inner, cache: c, ttl: ttl, logger: logger}
}

// Name returns the wrapped embedder's name
func (c *Cached) Name() string {
	return c.inner.Name()
}

// Embed returns cached vectors where available and embeds the rest
func (c *Cached) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		if raw, ok := c.cache.Get(cache.Key(c.inner.Name(), text)); ok {
			if v, err := DecodeVector(raw); err == nil {
				out[i] = v
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if err := checkCount(c.inner.Name(), len(vectors), len(missTexts)); err != nil {
		return nil, err
	}

	for j, v := range vectors {
		out[missIdx[j]] = v
		if err := c.cache.Set(cache.Key(c.inner.Name(), missTexts[j]), EncodeVector(v), c.ttl); err != nil {
			c.logger.Warn("embedding cache write failed", zap.Error(err))
		}
	}

	c.logger.Debug("embedded texts",
		zap.String("embedder", c.inner.Name()),
		zap.Int("hits", len(texts)-len(missTexts)),
		zap.Int("misses", len(missTexts)))

	return out, nil
}

// EncodeVector serializes v as little-endian float32 values
func EncodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

// DecodeVector is the inverse of EncodeVector
func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("corrupt vector: %d bytes", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

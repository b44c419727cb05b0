package feature

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// CachedExtractor consults caches, in order, before running the wrapped
// extractor. Keys are SHA-256 digests of the image bytes.
type CachedExtractor struct {
	inner  Extractor
	caches []Cache
}

// NewCachedExtractor wraps inner with the given caches, fastest first.
func NewCachedExtractor(inner Extractor, caches ...Cache) *CachedExtractor {
	return &CachedExtractor{inner: inner, caches: caches}
}

// ContentKey returns the cache key for data.
func ContentKey(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Extract returns a cached vector when one exists, otherwise extracts and
// populates every cache. A hit in a slower cache backfills the faster ones.
func (c *CachedExtractor) Extract(ctx context.Context, data []byte) ([]float32, error) {
	key := ContentKey(data)
	for i, cache := range c.caches {
		if vec, ok := cache.Get(key); ok && len(vec) == c.inner.Dimensions() {
			for _, faster := range c.caches[:i] {
				faster.Set(key, vec)
			}
			return vec, nil
		}
	}

	vec, err := c.inner.Extract(ctx, data)
	if err != nil {
		return nil, err
	}
	for _, cache := range c.caches {
		cache.Set(key, vec)
	}
	return vec, nil
}

// Dimensions returns the wrapped extractor's dimension.
func (c *CachedExtractor) Dimensions() int {
	return c.inner.Dimensions()
}

// Close closes the wrapped extractor.
func (c *CachedExtractor) Close() error {
	return c.inner.Close()
}

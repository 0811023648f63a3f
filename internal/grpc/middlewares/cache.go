package middleware

// In-memory response cache for read-only methods. Entries expire after a
// TTL and the whole cache is dropped whenever a write method succeeds.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"google.golang.org/grpc"
)

type cachedResponse struct {
	resp     interface{}
	storedAt time.Time
}

// Cache is an LRU of unary responses keyed by method and request.
type Cache struct {
	lru         *lru.Cache
	ttl         time.Duration
	cacheable   map[string]bool
	invalidates map[string]bool
	now         func() time.Time
}

// NewCache caches the responses of the cacheable full method names. A
// successful call to any of invalidates purges the cache. ttl <= 0 keeps
// entries until they are evicted.
func NewCache(size int, ttl time.Duration, cacheable, invalidates []string) (*Cache, error) {
	l, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	c := &Cache{
		lru:         l,
		ttl:         ttl,
		cacheable:   make(map[string]bool, len(cacheable)),
		invalidates: make(map[string]bool, len(invalidates)),
		now:         time.Now,
	}
	for _, m := range cacheable {
		c.cacheable[m] = true
	}
	for _, m := range invalidates {
		c.invalidates[m] = true
	}
	return c, nil
}

// Len is the number of cached responses.
func (c *Cache) Len() int { return c.lru.Len() }

func (c *Cache) Purge() { c.lru.Purge() }

// Interceptor is a gRPC middleware for caching responses in memory.
func (c *Cache) Interceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if !c.cacheable[info.FullMethod] {
			resp, err := handler(ctx, req)
			if err == nil && c.invalidates[info.FullMethod] {
				c.lru.Purge()
			}
			return resp, err
		}

		key, err := generateCacheKey(info.FullMethod, req)
		if err != nil {
			return handler(ctx, req)
		}

		if v, ok := c.lru.Get(key); ok {
			entry := v.(cachedResponse)
			if c.ttl <= 0 || c.now().Sub(entry.storedAt) < c.ttl {
				return entry.resp, nil
			}
			c.lru.Remove(key)
		}

		resp, err := handler(ctx, req)
		if err != nil {
			return nil, err
		}

		c.lru.Add(key, cachedResponse{resp: resp, storedAt: c.now()})
		return resp, nil
	}
}

// generateCacheKey generates a cache key based on the gRPC method and request.
func generateCacheKey(method string, req interface{}) (string, error) {
	reqBytes, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s", method, string(reqBytes)), nil
}

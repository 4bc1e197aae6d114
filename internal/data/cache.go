package data

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/stratswitch/internal/domain/market"
)

const redisOpTimeout = 500 * time.Millisecond

// Cache is a byte cache with per-entry TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration)
}

type memoryCache struct {
	mu  sync.Mutex
	m   map[string]entry
	now func() time.Time
}

type entry struct {
	b   []byte
	exp time.Time
}

// NewMemoryCache creates a process-local cache.
func NewMemoryCache() Cache {
	return &memoryCache{m: make(map[string]entry), now: time.Now}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok || (!e.exp.IsZero() && c.now().After(e.exp)) {
		return nil, false
	}
	return e.b, true
}

func (c *memoryCache) Set(_ context.Context, key string, val []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := entry{b: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = c.now().Add(ttl)
	}
	c.m[key] = e
}

type redisCache struct{ r *redis.Client }

// NewRedisCache wraps a go-redis client.
func NewRedisCache(client *redis.Client) Cache {
	return &redisCache{r: client}
}

// NewAutoCache uses Redis when addr is set and memory otherwise.
func NewAutoCache(addr, password string, db int) Cache {
	if addr != "" {
		return NewRedisCache(redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}))
	}
	return NewMemoryCache()
}

func (r *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	v, err := r.r.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return v, true
}

func (r *redisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	if err := r.r.Set(ctx, key, val, ttl).Err(); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("History cache write failed")
	}
}

// CachedProvider memoises history lookups for a TTL.
type CachedProvider struct {
	next  Provider
	cache Cache
	ttl   time.Duration
}

// NewCachedProvider wraps next with cache.
func NewCachedProvider(next Provider, cache Cache, ttl time.Duration) *CachedProvider {
	return &CachedProvider{next: next, cache: cache, ttl: ttl}
}

// History serves from cache when possible. Misses and decode failures fall
// through to the wrapped provider.
func (p *CachedProvider) History(ctx context.Context, instrument string, bars int) (market.PriceSeries, error) {
	key := fmt.Sprintf("stratswitch:history:%s:%d", instrument, bars)

	if raw, ok := p.cache.Get(ctx, key); ok {
		var s market.PriceSeries
		if err := json.Unmarshal(raw, &s); err == nil {
			return s, nil
		}
	}

	s, err := p.next.History(ctx, instrument, bars)
	if err != nil {
		return s, err
	}

	if raw, err := json.Marshal(s); err == nil {
		p.cache.Set(ctx, key, raw, p.ttl)
	}
	return s, nil
}

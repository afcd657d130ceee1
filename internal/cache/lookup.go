package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Backend stores opaque payloads for the lookup tier.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Clear(ctx context.Context) error
}

// Lookup is the generic short-TTL tier used for search results, profiles
// and candles. Values are stored as JSON so the tier can live in Redis.
type Lookup struct {
	backend Backend
	ttl     time.Duration
}

// GetJSON decodes the cached value for key into dst. It reports false on a
// miss or when the stored payload no longer decodes.
func (l *Lookup) GetJSON(ctx context.Context, key string, dst any) bool {
	b, ok := l.backend.Get(ctx, key)
	if !ok {
		return false
	}
	return json.Unmarshal(b, dst) == nil
}

// SetJSON encodes v and stores it under key.
func (l *Lookup) SetJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	return l.backend.Set(ctx, key, b, l.ttl)
}

// Backend returns the underlying store.
func (l *Lookup) Backend() Backend { return l.backend }

// --- memory backend ---

// memoryBackend keeps payloads in a Cache that shares the tier lock.
type memoryBackend struct {
	c *Cache[[]byte]
}

func (m *memoryBackend) Get(_ context.Context, key string) ([]byte, bool) {
	return m.c.Get(key)
}

func (m *memoryBackend) Set(_ context.Context, key string, val []byte, _ time.Duration) error {
	m.c.Set(key, val)
	return nil
}

func (m *memoryBackend) Clear(context.Context) error {
	m.c.Clear()
	return nil
}

// --- redis backend ---

// RedisBackend stores lookup payloads in Redis under a key prefix.
// Expiry is carried by the Redis TTL.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend connects to url and pings it.
func NewRedisBackend(ctx context.Context, url, prefix string) (*RedisBackend, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cache: ping redis: %w", err)
	}
	return &RedisBackend{client: client, prefix: prefix}, nil
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

func (r *RedisBackend) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.prefix+key, val, ttl).Err()
}

// Clear deletes every key under the prefix.
func (r *RedisBackend) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 200).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache: scan redis: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// Close releases the Redis connection pool.
func (r *RedisBackend) Close() error { return r.client.Close() }

// lookupBackend picks Redis when url is set and reachable, else memory.
func lookupBackend(ctx context.Context, mu *sync.Mutex, url, prefix string, ttl time.Duration,
	now func() time.Time, logger *slog.Logger) Backend {

	mem := &memoryBackend{c: newShared[[]byte](mu, ttl, now)}
	if url == "" {
		return mem
	}
	rb, err := NewRedisBackend(ctx, url, prefix)
	if err != nil {
		logger.Warn("redis lookup cache unavailable, using memory", "error", err)
		return mem
	}
	logger.Info("lookup cache backed by redis", "prefix", prefix)
	return rb
}

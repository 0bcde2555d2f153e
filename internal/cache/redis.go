package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Cache[int] = (*RedisCache[int])(nil)

// RedisCache shares cached values between processes. Values are stored as
// JSON; any Redis error degrades to a cache miss.
type RedisCache[T any] struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

// NewRedisClient connects to addr/db. The connection is lazy.
func NewRedisClient(addr string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
}

// NewRedisCache stores keys under namespace with the given TTL.
func NewRedisCache[T any](client *redis.Client, namespace string, ttl time.Duration) *RedisCache[T] {
	return &RedisCache[T]{client: client, namespace: namespace, ttl: ttl}
}

func (r *RedisCache[T]) key(k string) string {
	return r.namespace + ":" + k
}

func (r *RedisCache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.DebugContext(ctx, "Redis cache get failed", "key", key, "error", err)
		}
		return zero, false
	}
	var out T
	if err := json.Unmarshal(val, &out); err != nil {
		slog.WarnContext(ctx, "Dropping undecodable cache entry", "key", key, "error", err)
		r.Delete(ctx, key)
		return zero, false
	}
	return out, true
}

func (r *RedisCache[T]) Set(ctx context.Context, key string, data T) {
	val, err := json.Marshal(data)
	if err != nil {
		slog.WarnContext(ctx, "Cache value not encodable", "key", key, "error", err)
		return
	}
	if err := r.client.Set(ctx, r.key(key), val, r.ttl).Err(); err != nil {
		slog.DebugContext(ctx, "Redis cache set failed", "key", key, "error", err)
	}
}

func (r *RedisCache[T]) Delete(ctx context.Context, key string) {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		slog.DebugContext(ctx, "Redis cache delete failed", "key", key, "error", err)
	}
}

func (r *RedisCache[T]) DeletePrefix(ctx context.Context, prefix string) int {
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.key(prefix)+"*", 100).Result()
		if err != nil {
			slog.DebugContext(ctx, "Redis cache scan failed", "prefix", prefix, "error", err)
			return removed
		}
		if len(keys) > 0 {
			n, err := r.client.Del(ctx, keys...).Result()
			if err != nil {
				slog.DebugContext(ctx, "Redis cache delete failed", "prefix", prefix, "error", err)
				return removed
			}
			removed += int(n)
		}
		cursor = next
		if cursor == 0 {
			return removed
		}
	}
}

// Ping reports whether Redis is reachable.
func (r *RedisCache[T]) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

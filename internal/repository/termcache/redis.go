package termcache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kailas-cloud/trialmatch/internal/domain"
)

var redisKeyPrefix = domain.KeyPrefix + "termcache:"

// KVStore is the Redis surface the redis backend needs.
type KVStore interface {
	GetMulti(ctx context.Context, keys []string) (map[string][]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// RedisBackend stores one string value per entry in Redis, so several
// processes can share a cache.
type RedisBackend struct {
	store KVStore
}

// NewRedisBackend creates a Redis-backed cache backend.
func NewRedisBackend(s KVStore) *RedisBackend {
	return &RedisBackend{store: s}
}

// Load reads every entry under the cache prefix. Undecodable values are skipped.
func (b *RedisBackend) Load(ctx context.Context) (map[string]Entry, error) {
	keys, err := b.store.Scan(ctx, redisKeyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan cache keys: %w", err)
	}

	values, err := b.store.GetMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("load cache entries: %w", err)
	}

	out := make(map[string]Entry, len(values))
	for k, data := range values {
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			continue
		}
		if e.Key == "" {
			e.Key = strings.TrimPrefix(k, redisKeyPrefix)
		}
		out[e.Key] = e
	}
	return out, nil
}

// Put writes an entry.
func (b *RedisBackend) Put(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	if err := b.store.Set(ctx, redisKeyPrefix+e.Key, data); err != nil {
		return fmt.Errorf("set %s: %w", e.Key, err)
	}
	return nil
}

// Delete removes entries; the first failure is returned after trying all keys.
func (b *RedisBackend) Delete(ctx context.Context, keys ...string) error {
	var firstErr error
	for _, k := range keys {
		if err := b.store.Del(ctx, redisKeyPrefix+k); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("del %s: %w", k, err)
		}
	}
	return firstErr
}

// Size is not tracked for Redis.
func (b *RedisBackend) Size(_ context.Context) (int64, error) { return -1, nil }

// Location returns the key pattern used in Redis.
func (b *RedisBackend) Location() string { return "redis://" + redisKeyPrefix + "*" }

// Close is a no-op; the shared Redis client is closed by its owner.
func (b *RedisBackend) Close() error { return nil }

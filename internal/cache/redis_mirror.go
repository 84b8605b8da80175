package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"agentmemory/internal/memmodel"
	"github.com/redis/go-redis/v9"
)

// RedisMirror optionally backs the result cache with a shared Redis
// instance, so recall results survive process restarts and are shared
// across memoryd replicas. It is a mirror, not a replacement: ResultCache
// remains the fast in-process path and RedisMirror is consulted only on a
// local miss, grounded on the teacher's ratelimit.RedisLimiter connection
// setup.
type RedisMirror struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisMirror builds a RedisMirror against addr, namespacing every key
// under prefix (typically the deployment name) so multiple environments can
// share one Redis instance safely.
func NewRedisMirror(addr, password string, db int, prefix string, ttl time.Duration) *RedisMirror {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisMirror{client: client, ttl: ttl, prefix: prefix}
}

// Ping verifies connectivity, for use during engine startup health checks.
func (m *RedisMirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

func (m *RedisMirror) redisKey(key ResultKey) string {
	return fmt.Sprintf("%s:result:%s", m.prefix, key.cacheKey())
}

// Get fetches a mirrored result set, deserializing from JSON.
func (m *RedisMirror) Get(ctx context.Context, key ResultKey) ([]memmodel.Result, bool, error) {
	raw, err := m.client.Get(ctx, m.redisKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var results []memmodel.Result
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, false, err
	}
	return results, true, nil
}

// Set mirrors a result set into Redis with the mirror's configured TTL.
func (m *RedisMirror) Set(ctx context.Context, key ResultKey, results []memmodel.Result) error {
	raw, err := json.Marshal(results)
	if err != nil {
		return err
	}
	return m.client.Set(ctx, m.redisKey(key), raw, m.ttl).Err()
}

// InvalidateTenant scans for and deletes every mirrored key under
// tenantID, since Redis has no native prefix-delete. The engine calls it
// on every remember and forget, so each write pays for one SCAN pass.
func (m *RedisMirror) InvalidateTenant(ctx context.Context, tenantID string) (int, error) {
	pattern := fmt.Sprintf("%s:result:%s:*", m.prefix, tenantID)
	var removed int
	iter := m.client.Scan(ctx, 0, pattern, 200).Iterator()
	for iter.Next(ctx) {
		if err := m.client.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, iter.Err()
}

// Close releases the underlying Redis connection pool.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}

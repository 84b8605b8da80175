package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindowScript is the teacher's ZSET-based sliding window script,
// unchanged: it trims entries older than the window, counts what is left,
// and admits the request only if that count is still under the limit.
const slidingWindowScript = `
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local current = redis.call('ZCARD', key)

if current < limit then
    redis.call('ZADD', key, now, now .. '-' .. math.random())
    redis.call('PEXPIRE', key, window)
    return 1
end
return 0
`

// RedisLimiter is a Redis-backed sliding window limiter, used instead of
// Window when multiple memoryd processes share rate limit state.
type RedisLimiter struct {
	client    *redis.Client
	script    *redis.Script
	limit     Limit
	keyPrefix string
}

// NewRedisLimiter builds a limiter against an already-constructed client.
func NewRedisLimiter(client *redis.Client, limit Limit) *RedisLimiter {
	return &RedisLimiter{client: client, script: redis.NewScript(slidingWindowScript), limit: limit, keyPrefix: "agentmemory:ratelimit:"}
}

func (rl *RedisLimiter) Allow(tenantID string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := rl.keyPrefix + tenantID
	windowMS := rl.limit.Window.Milliseconds()
	nowMS := time.Now().UnixMilli()

	res, err := rl.script.Run(ctx, rl.client, []string{key}, rl.limit.Requests, windowMS, nowMS).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

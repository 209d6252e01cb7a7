package ratelimit

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nkiryanov/videotube/internal/logger"
)

// Fixed window counter: first hit sets the window expiry
const rateLimitScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
if current > tonumber(ARGV[2]) then
  return 0
end
return 1
`

const callTimeout = 250 * time.Millisecond

type RedisLimiter struct {
	client redis.Scripter
	limit  int
	window time.Duration
	prefix string
	script *redis.Script
	logger logger.Logger
}

// Limiter allows limit hits per window for every key
// Nil client, non-positive limit or window disable limiting
// Keys are stored as "<prefix>:<key>"
func NewRedisLimiter(client redis.Scripter, limit int, window time.Duration, prefix string, l logger.Logger) *RedisLimiter {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: strings.TrimRight(prefix, ":"),
		script: redis.NewScript(rateLimitScript),
		logger: l,
	}
}

// Allow reports whether the hit fits into the current window
// Redis failures do not block requests
func (l *RedisLimiter) Allow(ctx context.Context, key string) bool {
	if l == nil || l.client == nil {
		return true
	}
	if l.limit <= 0 || l.window <= 0 || key == "" {
		return true
	}

	redisKey := key
	if l.prefix != "" {
		redisKey = l.prefix + ":" + key
	}
	ttl := l.window.Milliseconds()
	if ttl <= 0 {
		ttl = 1
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	allowed, err := l.script.Run(ctx, l.client, []string{redisKey}, ttl, l.limit).Int64()
	if err != nil {
		l.logger.Warn("Rate limiter unavailable", "error", err)
		return true
	}

	return allowed == 1
}

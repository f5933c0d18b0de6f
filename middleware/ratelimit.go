package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"bugmarket/metrics"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// limiter 记录一次尝试并返回是否放行
type limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// memoryLimiter 单机滑动窗口
type memoryLimiter struct {
	mu          sync.Mutex
	store       map[string][]time.Time
	maxAttempts int
	window      time.Duration
}

func newMemoryLimiter(maxAttempts int, window time.Duration) *memoryLimiter {
	l := &memoryLimiter{
		store:       make(map[string][]time.Time),
		maxAttempts: maxAttempts,
		window:      window,
	}
	// 定期清理过期数据
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			l.cleanup(time.Now())
		}
	}()
	return l
}

// prune 移除窗口外的记录
func (l *memoryLimiter) prune(ts []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

func (l *memoryLimiter) cleanup(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, ts := range l.store {
		if kept := l.prune(ts, now); len(kept) == 0 {
			delete(l.store, key)
		} else {
			l.store[key] = kept
		}
	}
}

func (l *memoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	ts := l.prune(l.store[key], now)
	if len(ts) >= l.maxAttempts {
		l.store[key] = ts
		return false, nil
	}
	l.store[key] = append(ts, now)
	return true, nil
}

// fixedWindowLua 计数与设置过期在同一脚本内完成；
// 计数缺少过期时间时（如此前设置失败）重新补上，避免永久封禁
const fixedWindowLua = `
local n = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`

// redisLimiter 多实例共享的固定窗口计数
type redisLimiter struct {
	rdb         *redis.Client
	prefix      string
	maxAttempts int
	window      time.Duration
	script      *redis.Script
}

func newRedisLimiter(rdb *redis.Client, maxAttempts int, window time.Duration) *redisLimiter {
	return &redisLimiter{
		rdb:         rdb,
		prefix:      "bugmarket:ratelimit:login:",
		maxAttempts: maxAttempts,
		window:      window,
		script:      redis.NewScript(fixedWindowLua),
	}
}

func (l *redisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	n, err := l.script.Run(ctx, l.rdb, []string{l.prefix + key}, l.window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("ratelimit eval: %w", err)
	}
	return n <= int64(l.maxAttempts), nil
}

// LoginRateLimit 登录接口限流中间件
// 每 IP 每个窗口最多 maxAttempts 次尝试，超过则返回 429。rdb 为 nil 时使用单机计数。
func LoginRateLimit(rdb *redis.Client, maxAttempts int, window time.Duration) gin.HandlerFunc {
	var l limiter
	if rdb != nil {
		l = newRedisLimiter(rdb, maxAttempts, window)
	} else {
		l = newMemoryLimiter(maxAttempts, window)
	}

	return func(c *gin.Context) {
		ok, err := l.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			// Redis 故障时放行，不影响登录
			slog.Warn("登录限流检查失败", "error", err)
			c.Next()
			return
		}
		if !ok {
			metrics.LoginAttemptsTotal.WithLabelValues("limited").Inc()
			abortJSON(c, http.StatusTooManyRequests, "登录尝试过于频繁，请稍后再试")
			return
		}
		c.Next()
	}
}

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoginRouter(h gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(h)
	router.POST("/login", func(c *gin.Context) {
		c.String(200, "ok")
	})
	return router
}

func doLogin(router *gin.Engine, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/login", nil)
	req.Header.Set("X-Real-IP", ip)
	req.RemoteAddr = ip + ":12345"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestLoginRateLimit(t *testing.T) {
	// 短窗口 200ms，最多 2 次
	router := newLoginRouter(LoginRateLimit(nil, 2, 200*time.Millisecond))

	// 同一 IP 连续 3 次，第 3 次应返回 429
	w1 := doLogin(router, "192.168.1.1")
	w2 := doLogin(router, "192.168.1.1")
	w3 := doLogin(router, "192.168.1.1")

	assert.Equal(t, 200, w1.Code)
	assert.Equal(t, 200, w2.Code)
	assert.Equal(t, http.StatusTooManyRequests, w3.Code)
	assert.Contains(t, w3.Body.String(), "频繁")
	assert.Contains(t, w3.Body.String(), `"code":429`)

	// 不同 IP 互不影响
	assert.Equal(t, 200, doLogin(router, "192.168.1.2").Code)
	assert.Equal(t, 200, doLogin(router, "192.168.1.2").Code)

	// 窗口过后恢复
	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, 200, doLogin(router, "192.168.1.1").Code)
}

func TestLoginRateLimit_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	router := newLoginRouter(LoginRateLimit(rdb, 2, time.Minute))

	assert.Equal(t, 200, doLogin(router, "10.0.0.1").Code)
	assert.Equal(t, 200, doLogin(router, "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, doLogin(router, "10.0.0.1").Code)
	assert.Equal(t, 200, doLogin(router, "10.0.0.2").Code)

	// 计数带过期时间
	assert.True(t, mr.TTL("bugmarket:ratelimit:login:10.0.0.1") > 0)

	mr.FastForward(time.Minute + time.Second)
	assert.Equal(t, 200, doLogin(router, "10.0.0.1").Code)
}

func TestLoginRateLimit_RedisRestoresMissingTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	// 之前设置过期失败，计数没有过期时间
	key := "bugmarket:ratelimit:login:10.0.0.9"
	require.NoError(t, mr.Set(key, "5"))
	assert.Equal(t, time.Duration(0), mr.TTL(key))

	router := newLoginRouter(LoginRateLimit(rdb, 2, time.Minute))
	assert.Equal(t, http.StatusTooManyRequests, doLogin(router, "10.0.0.9").Code)

	ttl := mr.TTL(key)
	assert.True(t, ttl > 0 && ttl <= time.Minute, "ttl=%s", ttl)

	mr.FastForward(time.Minute + time.Second)
	assert.Equal(t, 200, doLogin(router, "10.0.0.9").Code)
}

func TestRedisLimiter_KeepsExistingTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	l := newRedisLimiter(rdb, 3, time.Minute)
	ctx := context.Background()
	ok, err := l.Allow(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	// 窗口内后续计数不延长过期时间
	mr.FastForward(40 * time.Second)
	_, err = l.Allow(ctx, "a")
	require.NoError(t, err)
	assert.True(t, mr.TTL("bugmarket:ratelimit:login:a") <= 20*time.Second)
}

func TestLoginRateLimit_RedisDownFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	router := newLoginRouter(LoginRateLimit(rdb, 1, time.Minute))
	mr.Close()

	assert.Equal(t, 200, doLogin(router, "10.0.0.3").Code)
	assert.Equal(t, 200, doLogin(router, "10.0.0.3").Code)
}

func TestMemoryLimiter_Cleanup(t *testing.T) {
	l := &memoryLimiter{store: map[string][]time.Time{}, maxAttempts: 1, window: time.Second}
	ok, _ := l.Allow(context.Background(), "a")
	assert.True(t, ok)
	ok, _ = l.Allow(context.Background(), "a")
	assert.False(t, ok)

	l.cleanup(time.Now().Add(2 * time.Second))
	assert.Empty(t, l.store)
}

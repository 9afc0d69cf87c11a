package middleware_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SergeiKhy/clicktrail/internal/middleware"
	"github.com/SergeiKhy/clicktrail/internal/repository"
	"github.com/SergeiKhy/clicktrail/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func get(router http.Handler, path string, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	router.ServeHTTP(w, req)
	return w
}

func okHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func TestClickRateLimit_RejectsAfterLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	limiter := service.NewRateLimiter(repository.NewMemoryRateCounterRepository(), 3, time.Hour, nil)
	router := gin.New()
	router.Use(middleware.ClickRateLimit(limiter, middleware.ClientIdentity("CF-Connecting-IP")))
	router.GET("/:slug", func(c *gin.Context) {
		id, _ := middleware.Identity(c)
		c.JSON(http.StatusOK, gin.H{"count": middleware.RateCount(c), "id": id})
	})

	edge := map[string]string{"CF-Connecting-IP": "198.51.100.9"}
	for i := 0; i < 3; i++ {
		w := get(router, "/abc", edge)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, fmt.Sprintf(`{"count":%d,"id":"198.51.100.9"}`, i), w.Body.String())
	}

	w := get(router, "/abc", edge)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, middleware.RateExceededBody, w.Body.String())

	// у другого адреса свой счётчик
	w = get(router, "/abc", map[string]string{"CF-Connecting-IP": "198.51.100.10"})
	assert.Equal(t, http.StatusOK, w.Code)
}

type slowCounter struct {
	delay time.Duration
}

func (s slowCounter) Get(ctx context.Context, identity string) (int64, error) {
	time.Sleep(s.delay)
	return 0, nil
}

func (s slowCounter) Set(ctx context.Context, identity string, count int64, ttl time.Duration) error {
	time.Sleep(s.delay)
	return nil
}

func TestClickRateLimit_StartedAtIncludesCounterTime(t *testing.T) {
	gin.SetMode(gin.TestMode)

	limiter := service.NewRateLimiter(slowCounter{delay: 20 * time.Millisecond}, 100, time.Hour, nil)
	router := gin.New()
	router.Use(middleware.ClickRateLimit(limiter, nil))

	var elapsed time.Duration
	router.GET("/:slug", func(c *gin.Context) {
		elapsed = time.Since(middleware.StartedAt(c))
		c.Status(http.StatusOK)
	})

	w := get(router, "/abc", nil)

	require.Equal(t, http.StatusOK, w.Code)
	// два обращения к счётчику по 20ms
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
}

func TestClientIdentity_FallsBackToClientIP(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, middleware.ClientIdentity("")(c))
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.44:5555"
	router.ServeHTTP(w, req)
	assert.Equal(t, "192.0.2.44", w.Body.String())

	w = get(router, "/", map[string]string{"CF-Connecting-IP": " 203.0.113.1 "})
	assert.Equal(t, "203.0.113.1", w.Body.String())
}

func TestRateLimiter_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: 5,
		BurstSize:         5,
		CleanupInterval:   time.Minute,
	})
	defer rl.Stop()

	router := gin.New()
	router.Use(rl.Middleware())
	router.GET("/test", okHandler)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, get(router, "/test", nil).Code)
	}

	w := get(router, "/test", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "rate_limit_exceeded")
}

func TestRateLimiter_KeyFunc(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: 1,
		BurstSize:         1,
		KeyFunc:           func(c *gin.Context) string { return c.GetHeader("X-User-ID") },
	})
	defer rl.Stop()

	router := gin.New()
	router.Use(rl.Middleware())
	router.GET("/test", okHandler)

	assert.Equal(t, http.StatusOK, get(router, "/test", map[string]string{"X-User-ID": "a"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, get(router, "/test", map[string]string{"X-User-ID": "a"}).Code)
	assert.Equal(t, http.StatusOK, get(router, "/test", map[string]string{"X-User-ID": "b"}).Code)
}

func TestAPIKey_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	ak := middleware.NewAPIKey(middleware.APIKeyConfig{Keys: []string{"test-key-1", "test-key-2"}})
	router := gin.New()
	router.Use(ak.Middleware())
	router.GET("/test", okHandler)

	assert.Equal(t, http.StatusUnauthorized, get(router, "/test", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, get(router, "/test", map[string]string{"X-API-Key": "invalid-key"}).Code)
	assert.Equal(t, http.StatusOK, get(router, "/test", map[string]string{"X-API-Key": "test-key-2"}).Code)
	assert.Equal(t, http.StatusOK, get(router, "/test?api_key=test-key-1", nil).Code)
	assert.Equal(t, http.StatusOK, get(router, "/test", map[string]string{"Authorization": "Bearer test-key-1"}).Code)
}

func TestAPIKey_NoKeysConfigured(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(middleware.RequireAPIKey(nil))
	router.GET("/test", okHandler)

	assert.Equal(t, http.StatusOK, get(router, "/test", nil).Code)
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	core, logs := observer.New(zapcore.InfoLevel)
	router := gin.New()
	router.Use(middleware.RequestLogger(zap.New(core)))
	router.GET("/test", okHandler)
	router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	get(router, "/test", nil)
	get(router, "/boom", nil)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "/test", entries[0].ContextMap()["path"])
	assert.Equal(t, int64(http.StatusOK), entries[0].ContextMap()["status"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}


// internal/api/middleware.go
package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/Corphon/SceneScribe/internal/utils"
)

// RateLimiter 固定窗口限流器，按用户或客户端IP计数
type RateLimiter struct {
	visitors *cache.Cache
	mu       sync.Mutex
	limit    int
	window   time.Duration
}

type visitor struct {
	remaining int
	reset     time.Time
}

// NewRateLimiter 创建限流器，limit 为每个窗口内允许的请求数
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		visitors: cache.New(window, 2*window),
		limit:    limit,
		window:   window,
	}
}

// Allow 记录一次访问并返回剩余额度
func (rl *RateLimiter) Allow(key string) (int, time.Time, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if v, found := rl.visitors.Get(key); found {
		vis := v.(*visitor)
		if now.Before(vis.reset) {
			if vis.remaining <= 0 {
				return 0, vis.reset, false
			}
			vis.remaining--
			return vis.remaining, vis.reset, true
		}
	}

	vis := &visitor{remaining: rl.limit - 1, reset: now.Add(rl.window)}
	rl.visitors.Set(key, vis, rl.window)
	return vis.remaining, vis.reset, true
}

// Middleware 返回限流中间件
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString("user_id")
		if key == "" {
			key = c.ClientIP()
		}

		remaining, reset, ok := rl.Allow(key)
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(time.Until(reset).Seconds())+1))
			NewResponseHelper().Error(c, http.StatusTooManyRequests, ErrorRateLimited, "请求过于频繁，请稍后再试")
			return
		}
		c.Next()
	}
}

// RequestIDMiddleware 为每个请求分配ID
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// MetricsMiddleware 记录请求耗时与状态码
func MetricsMiddleware(metrics *utils.APIMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if metrics == nil {
			return
		}
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordAPIRequest(path, c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}

// corsMiddleware 处理跨域请求
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

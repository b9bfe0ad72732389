package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	contextx "github.com/blueplan/diary-go/internal/diary/context"
	logx "github.com/blueplan/diary-go/internal/diary/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const headerRequestID = "X-Request-ID"

// requestContext 注入请求ID，日志从 context 读取
func (s *Server) requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(headerRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Header(headerRequestID, rid)
		c.Request = c.Request.WithContext(contextx.WithRequestID(c.Request.Context(), rid))
		c.Next()
	}
}

func (s *Server) requestLogging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if s.cfg.App.Debug || c.Writer.Status() >= http.StatusInternalServerError {
			s.logger.Info(c.Request.Context(), "http.request",
				logx.KV("method", c.Request.Method),
				logx.KV("path", c.FullPath()),
				logx.KV("status", c.Writer.Status()),
				logx.KV("latency_ms", time.Since(start).Milliseconds()))
		}
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", headerRequestID},
		ExposeHeaders: []string{headerRequestID},
		MaxAge:        12 * time.Hour,
	}
	allowAll := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
	}
	if allowAll {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

// IPLimiter keeps one token bucket per client IP.
type IPLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func NewIPLimiter(perMinute, burst int) *IPLimiter {
	if perMinute <= 0 {
		perMinute = 20
	}
	if burst <= 0 {
		burst = 1
	}
	return &IPLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(float64(perMinute) / 60.0),
		burst:    burst,
	}
}

func (l *IPLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.rate, l.burst)
		l.limiters[key] = lim
	}
	return lim
}

func (l *IPLimiter) Allow(key string) bool {
	return l.get(key).Allow()
}

// Prune drops buckets that have refilled completely. A full bucket behaves
// exactly like a fresh one, so eviction never loosens the limit.
func (l *IPLimiter) Prune(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, lim := range l.limiters {
		if lim.TokensAt(now) >= float64(l.burst) {
			delete(l.limiters, key)
			removed++
		}
	}
	return removed
}

// Len reports how many client buckets are tracked.
func (l *IPLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// rateLimit 速率限制中间件，只挂在生成接口上
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}
		key := "ip:" + c.ClientIP()
		if s.limiter.Allow(key) {
			c.Next()
			return
		}
		retry := time.Duration(float64(time.Second) / float64(s.limiter.rate))
		c.Header("Retry-After", strconv.Itoa(int(retry.Seconds()+0.5)))
		s.logger.Warn(c.Request.Context(), "请求被速率限制",
			logx.KV("key", key),
			logx.KV("path", c.Request.URL.Path))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": "Too many requests, please slow down.",
			"code":  "rate_limited",
		})
	}
}

package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/yeisme/flowvault/pkg/configs"
)

type keyedLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet 按 key 维护令牌桶，发布接口与普通读取共用同一份配额.
type limiterSet struct {
	mu    sync.Mutex
	rps   rate.Limit
	burst int
	idle  time.Duration
	items map[string]*keyedLimiter
	sweep time.Time
}

func newLimiterSet(rps float64, burst int, idle time.Duration) *limiterSet {
	if idle <= 0 {
		idle = 10 * time.Minute
	}

	return &limiterSet{rps: rate.Limit(rps), burst: burst, idle: idle, items: map[string]*keyedLimiter{}, sweep: time.Now()}
}

func (s *limiterSet) allow(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.sweep) > s.idle {
		for k, v := range s.items {
			if now.Sub(v.lastSeen) > s.idle {
				delete(s.items, k)
			}
		}

		s.sweep = now
	}

	item, ok := s.items[key]
	if !ok {
		item = &keyedLimiter{limiter: rate.NewLimiter(s.rps, s.burst)}
		s.items[key] = item
	}

	item.lastSeen = now

	return item.limiter.AllowN(now, 1)
}

// RateLimitMiddleware 令牌桶限流. Key 取值:
//   - global 全局共用
//   - ip 按客户端 IP
//   - email 按认证邮箱，匿名请求退回 IP
//   - header:Name 按指定请求头，缺失时退回 IP
//
// 拒绝时 Retry-After 为补满一个令牌所需的秒数.
func RateLimitMiddleware(cfg configs.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.RPS <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	mode := strings.ToLower(strings.TrimSpace(cfg.Key))
	set := newLimiterSet(cfg.RPS, max(cfg.Burst, 1), cfg.IdleTTL)
	retryAfter := strconv.Itoa(max(1, int(math.Ceil(1/cfg.RPS))))

	return func(c *gin.Context) {
		for _, p := range cfg.ExemptPaths {
			if strings.HasPrefix(c.Request.URL.Path, p) {
				c.Next()
				return
			}
		}

		if !set.allow(limitKey(c, mode), time.Now()) {
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})

			return
		}

		c.Next()
	}
}

func limitKey(c *gin.Context, mode string) string {
	switch {
	case mode == "" || mode == "global":
		return "global"
	case mode == "email":
		if email := GetIdentity(c).Email; email != "" {
			return "email:" + strings.ToLower(email)
		}
	case strings.HasPrefix(mode, "header:"):
		if v := c.GetHeader(strings.TrimPrefix(mode, "header:")); v != "" {
			return "header:" + v
		}
	}

	return "ip:" + c.ClientIP()
}

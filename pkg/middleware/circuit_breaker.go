package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"

	"github.com/yeisme/flowvault/pkg/configs"
	"github.com/yeisme/flowvault/pkg/log"
)

// CircuitBreakerMiddleware 按路由模板各自熔断，渲染接口因存储故障熔断时不影响其他路由.
// 打开状态直接返回 503 并带 Retry-After.
func CircuitBreakerMiddleware(cfg configs.CircuitBreakerConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	var (
		mu       sync.Mutex
		breakers = map[string]*gobreaker.TwoStepCircuitBreaker{}
	)

	get := func(route string) *gobreaker.TwoStepCircuitBreaker {
		mu.Lock()
		defer mu.Unlock()

		if cb, ok := breakers[route]; ok {
			return cb
		}

		cb := gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
			Name:        route,
			MaxRequests: cfg.MaxRequestsInHalf,
			Interval:    cfg.Interval(),
			Timeout:     cfg.Timeout(),
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return cfg.ShouldTrip(counts.Requests, counts.TotalFailures)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				l := log.Component("breaker")
				l.Warn().Str("route", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit state changed")
			},
		})
		breakers[route] = cb

		return cb
	}

	retryAfter := strconv.Itoa(int(cfg.Timeout() / time.Second))

	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" || isHealthPath(route) {
			c.Next()
			return
		}

		done, err := get(route).Allow()
		if err != nil {
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "service temporarily unavailable"})

			return
		}

		c.Next()

		done(!cfg.IsFailureStatus(c.Writer.Status()))
	}
}

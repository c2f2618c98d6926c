// Package middleware 提供 gin 中间件：认证、角色、限流、熔断、缓存、追踪与监控.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	appcache "github.com/yeisme/flowvault/pkg/cache"
	"github.com/yeisme/flowvault/pkg/configs"
	"github.com/yeisme/flowvault/pkg/internal/storage"
	"github.com/yeisme/flowvault/pkg/scheduler"
)

// Stack 返回全局中间件链，顺序：恢复、日志、CORS、追踪、监控、注入依赖、身份、限流、熔断.
func Stack(cfg *configs.AppConfig, manager *storage.Manager, sched *scheduler.Scheduler) []gin.HandlerFunc {
	chain := []gin.HandlerFunc{
		gin.Recovery(),
		GinLoggerMiddleware(),
		CORSMiddleware(cfg.Server),
		TracingMiddleware(),
		PrometheusMiddleware(cfg.Metrics.Path),
		StorageMiddleware(manager),
	}

	if sched != nil {
		chain = append(chain, SchedulerMiddleware(sched))
	}

	return append(chain,
		AuthMiddleware(cfg.Auth),
		RateLimitMiddleware(cfg.RateLimit),
		CircuitBreakerMiddleware(cfg.CircuitBreaker),
	)
}

// RenderCache 渲染结果缓存，c 为 nil 或 ttl 不为正时返回 nil.
func RenderCache(c *appcache.Cache, ttl time.Duration) gin.HandlerFunc {
	if c == nil || ttl <= 0 {
		return nil
	}

	return RenderCacheMiddleware(RenderCacheConfig{
		Cache:        c,
		TTL:          ttl,
		VaryHeaders:  []string{"Accept"},
		MaxBodyBytes: int(configs.DefaultProxyMaxBytes),
	})
}

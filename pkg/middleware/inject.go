package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	ctxPkg "github.com/yeisme/flowvault/pkg/context"
	"github.com/yeisme/flowvault/pkg/internal/storage"
	"github.com/yeisme/flowvault/pkg/scheduler"
)

type schedulerKey struct{}

// StorageMiddleware 把存储管理器放进请求 context，service 层通过 ctx 取用.
// manager 为空时除健康检查外的请求返回 503.
func StorageMiddleware(manager *storage.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if manager == nil {
			if isHealthPath(c.Request.URL.Path) {
				c.Next()
				return
			}

			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "storage not initialized"})

			return
		}

		c.Request = c.Request.WithContext(ctxPkg.WithStorageManager(c.Request.Context(), manager))
		c.Next()
	}
}

// SchedulerMiddleware 注入调度器，供 /scheduler 路由使用.
func SchedulerMiddleware(sched *scheduler.Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sched != nil {
			c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), schedulerKey{}, sched))
		}

		c.Next()
	}
}

// GetScheduler 取出调度器，未注入时为 nil.
func GetScheduler(c *gin.Context) *scheduler.Scheduler {
	sched, _ := c.Request.Context().Value(schedulerKey{}).(*scheduler.Scheduler)
	return sched
}

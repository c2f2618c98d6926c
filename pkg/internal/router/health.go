package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/flowvault/pkg/internal/handle"
)

// RegisterHealthCheckRoute 注册存活、就绪与单组件检查路由.
func RegisterHealthCheckRoute(g *gin.RouterGroup) {
	healthRoutes := g.Group("/health")
	{
		healthRoutes.GET("", handle.Health)
		healthRoutes.GET("/ready", handle.HealthReady)
		healthRoutes.GET("/:component", handle.HealthComponent)
	}
}

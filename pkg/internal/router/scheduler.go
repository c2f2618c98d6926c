package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/flowvault/pkg/internal/handle"
	"github.com/yeisme/flowvault/pkg/middleware"
)

// RegisterSchedulerRoutes 注册后台任务路由，修改类操作仅管理员可用.
func RegisterSchedulerRoutes(g *gin.RouterGroup) {
	s := g.Group("/scheduler")
	s.GET("/jobs", handle.SchedulerJobs)

	admin := s.Group("", middleware.RequireMinRole(middleware.RoleAdmin))
	admin.POST("/jobs/:name/run", handle.SchedulerRunJob)
	admin.POST("/jobs/stop", handle.SchedulerStopJobs)
	admin.DELETE("/jobs/:id", handle.SchedulerRemoveJob)
}

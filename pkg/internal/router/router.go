// Package router 管理路由配置，用于设置HTTP服务的路由规则.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/flowvault/pkg/internal/handle"
)

// RegisterFlowRoutes 注册流程相关路由，renderMW 只作用于渲染与资源路由.
func RegisterFlowRoutes(g *gin.RouterGroup, renderMW ...gin.HandlerFunc) {
	flowRoutes := g.Group("/flows")
	{
		flowRoutes.POST("", handle.PublishFlow)
		flowRoutes.GET("", handle.ListFlows)

		singleGroup := flowRoutes.Group("/:id")
		{
			singleGroup.GET("", handle.GetFlow)
			singleGroup.DELETE("", handle.DeleteFlow)
			singleGroup.PATCH("/status", handle.UpdateFlowStatus)
			singleGroup.GET("/render", with(renderMW, handle.RenderFlow)...)

			versionGroup := singleGroup.Group("/versions")
			{
				versionGroup.POST("", handle.PublishVersion)
				versionGroup.GET("/:number/files", handle.ListVersionFiles)
				versionGroup.GET("/:number/assets/*path", with(renderMW, handle.ServeAsset)...)
			}
		}
	}
}

// with 返回 mw 与 h 组成的新处理链，不修改 mw.
func with(mw []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	chain := make([]gin.HandlerFunc, 0, len(mw)+1)
	chain = append(chain, mw...)

	return append(chain, h)
}

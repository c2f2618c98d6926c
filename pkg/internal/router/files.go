package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/flowvault/pkg/internal/handle"
)

// RegisterFileRoutes 注册单个文件访问路由.
func RegisterFileRoutes(g *gin.RouterGroup, renderMW ...gin.HandlerFunc) {
	fileRoutes := g.Group("/files/:id")
	{
		// 签名 URL 与下载
		fileRoutes.GET("/url", handle.GetFileURL)
		fileRoutes.GET("/download", handle.DownloadFile)

		// HTML 渲染与原文
		fileRoutes.GET("/render", with(renderMW, handle.RenderFile)...)
		fileRoutes.GET("/preview", handle.PreviewFile)
	}
}

// RegisterSectorRoutes 注册部门路由.
func RegisterSectorRoutes(g *gin.RouterGroup) {
	g.GET("/sectors", handle.ListSectors)
}

// Package api 组装对外 HTTP 接口的路由分组.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/flowvault/pkg/internal/router"
	"github.com/yeisme/flowvault/pkg/internal/storage/kv"
	"github.com/yeisme/flowvault/pkg/log"
)

// RegisterGroup 将 /api/v1 下的业务路由与健康检查挂载到引擎，renderMW 作用于渲染类路由.
func RegisterGroup(e *gin.Engine, renderMW ...gin.HandlerFunc) *gin.Engine {
	v1 := e.Group("/api/v1")

	router.RegisterFlowRoutes(v1, renderMW...)
	router.RegisterFileRoutes(v1, renderMW...)
	router.RegisterSectorRoutes(v1)
	router.RegisterSchedulerRoutes(v1)
	router.RegisterHealthCheckRoute(v1)

	router.RegisterSwaggerRoute(e)

	return e
}

// RegisterPeers 挂载 KV 实现需要的节点间端点.
func RegisterPeers(e *gin.Engine, store kv.KVStore) {
	if router.RegisterPeerRoute(e, store) {
		l := log.Component("kv")
		l.Info().Str("path", kv.GroupcachePeerPath).Msg("groupcache peer endpoint mounted")
	}
}

package router

import (
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/yeisme/flowvault/docs"
	"github.com/yeisme/flowvault/pkg/configs"
	"github.com/yeisme/flowvault/pkg/internal/storage/kv"
)

// RegisterSwaggerRoute 在 debug 或 server.swagger 开启时挂载 /swagger.
func RegisterSwaggerRoute(r *gin.Engine) {
	cfg := configs.GetConfig()
	if !cfg.Server.SwaggerEnabled() {
		return
	}

	// 文档里的 Host 为空时浏览器使用当前地址，0.0.0.0 不能直接访问
	if cfg.Server.Host != "0.0.0.0" {
		docs.SwaggerInfo.Host = cfg.Server.Addr()
	}

	docs.SwaggerInfo.Version = configs.AppVersion

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler,
		ginSwagger.DefaultModelsExpandDepth(-1),
		ginSwagger.PersistAuthorization(true),
	))
}

// RegisterPeerRoute 多节点 groupcache 时挂载节点间取数端点.
func RegisterPeerRoute(r *gin.Engine, store kv.KVStore) bool {
	ps, ok := store.(kv.PeerServer)
	if !ok || ps.PeerHandler() == nil {
		return false
	}

	r.Any(strings.TrimSuffix(ps.PeerPath(), "/")+"/*key", gin.WrapH(ps.PeerHandler()))

	return true
}

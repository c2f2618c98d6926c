package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yeisme/flowvault/pkg/configs"
)

// CORSMiddleware 按 server.allow_origins 放行跨域，暴露渲染缓存相关响应头.
func CORSMiddleware(cfg configs.ServerConfig) gin.HandlerFunc {
	config := cors.DefaultConfig()
	if cfg.AllowAllOrigins() {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = cfg.AllowOrigins
		config.AllowCredentials = true
	}

	config.AllowHeaders = append(config.AllowHeaders, "X-Role", "X-User", BypassHeader, RequestIDHeader)
	config.ExposeHeaders = []string{"X-Cache", "ETag", "Age", "Retry-After", RequestIDHeader}
	config.MaxAge = 12 * time.Hour
	config.AllowFiles = true

	return cors.New(config)
}

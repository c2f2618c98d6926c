package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/flowvault/pkg/configs"
)

// Role 请求方角色，数值越大权限越高.
type Role int

const (
	RoleViewer Role = iota + 1 // 只读
	RolePublisher              // 可发布并维护自己的流程
	RoleAdmin                  // 可维护任意流程与后台任务
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RolePublisher:
		return "publisher"
	default:
		return "viewer"
	}
}

// ParseRole 解析角色名，未知值按 viewer 处理.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin
	case "publisher", "editor":
		return RolePublisher
	default:
		return RoleViewer
	}
}

// Identity 当前请求的身份，Email 为空表示匿名.
type Identity struct {
	Email string
	Role  Role
}

const identityKey = "identity"

// AuthMiddleware 从 oauth2-proxy 请求头解析身份并写入 gin.Context.
// 认证开启时缺少身份返回 401；跳过路径不解析身份.
func AuthMiddleware(conf configs.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isSkippedPath(c.Request.URL.Path, conf.SkipPaths) {
			c.Next()
			return
		}

		email := strings.TrimSpace(c.GetHeader("X-Auth-Request-Email"))
		if email == "" {
			email = strings.TrimSpace(c.GetHeader("X-Forwarded-Email"))
		}

		if email == "" && conf.DevAllowQuery {
			email = strings.TrimSpace(c.GetHeader("X-User"))
			if email == "" {
				email = strings.TrimSpace(c.Query("user"))
			}
		}

		if email == "" && conf.Enabled {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Set(identityKey, Identity{Email: email, Role: resolveRole(&conf, email, c.GetHeader("X-Role"))})
		c.Next()
	}
}

// resolveRole 管理员名单优先，其次是可信的 X-Role，已登录用户至少为 publisher.
func resolveRole(conf *configs.AuthConfig, email, header string) Role {
	if email != "" && conf.IsAdminEmail(email) {
		return RoleAdmin
	}

	role := RoleViewer
	if conf.TrustRoleHeader && header != "" {
		role = ParseRole(header)
	}

	if email != "" && role < RolePublisher {
		role = RolePublisher
	}

	return role
}

// GetIdentity 返回 AuthMiddleware 解析的身份，未经过认证中间件时为匿名 viewer.
func GetIdentity(c *gin.Context) Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(Identity); ok {
			return id
		}
	}

	return Identity{Role: RoleViewer}
}

// GetRole 当前请求角色.
func GetRole(c *gin.Context) Role {
	return GetIdentity(c).Role
}

// RequireMinRole 角色低于 minRole 时返回 403.
func RequireMinRole(minRole Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetRole(c) < minRole {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden: insufficient role"})
			return
		}

		c.Next()
	}
}

func isSkippedPath(path string, skips []string) bool {
	for _, p := range skips {
		if p = strings.TrimSpace(p); p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}

	return false
}

// isHealthPath 健康检查路径，存储未就绪时仍需响应.
func isHealthPath(path string) bool {
	return strings.HasPrefix(path, "/api/v1/health")
}

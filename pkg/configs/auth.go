package configs

import (
	"strings"

	"github.com/spf13/viper"
)

// AuthConfig 身份认证配置，身份来自 oauth2-proxy 注入的请求头.
type AuthConfig struct {
	Enabled       bool     `mapstructure:"enabled"`         // 缺少身份时拒绝请求
	SkipPaths     []string `mapstructure:"skip_paths"`      // 跳过认证的路径前缀
	DevAllowQuery bool     `mapstructure:"dev_allow_query"` // 允许 X-User 或 ?user= 充当身份，仅用于本地调试
	// AdminEmails 中的邮箱一律视为管理员，可修改任意流程.
	AdminEmails []string `mapstructure:"admin_emails" rule:"dive,email"`
	// TrustRoleHeader 为 true 时采信上游网关写入的 X-Role.
	TrustRoleHeader bool `mapstructure:"trust_role_header"`
}

// IsAdminEmail 判断邮箱是否在管理员名单中，忽略大小写.
func (c *AuthConfig) IsAdminEmail(email string) bool {
	for _, e := range c.AdminEmails {
		if strings.EqualFold(strings.TrimSpace(e), strings.TrimSpace(email)) {
			return true
		}
	}

	return false
}

func (c *AuthConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.dev_allow_query", true)
	v.SetDefault("auth.trust_role_header", true)
	v.SetDefault("auth.admin_emails", []string{})
	v.SetDefault("auth.skip_paths", []string{
		"/metrics",
		"/debug/pprof",
		"/api/v1/health",
		"/swagger",
		"/_groupcache",
	})
}

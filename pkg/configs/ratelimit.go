package configs

import (
	"time"

	"github.com/spf13/viper"
)

// RateLimitConfig 令牌桶限流，按 Key 维度各自一桶.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"   rule:"min=0"`
	Burst   int     `mapstructure:"burst" rule:"min=1"`
	// Key 限流维度: global、ip、email（按认证邮箱）或 header:Header-Name.
	Key string `mapstructure:"key" rule:"omitempty,ratelimit_key"`
	// ExemptPaths 前缀匹配，命中的请求不计数.
	ExemptPaths []string `mapstructure:"exempt_paths" rule:"dive,startswith=/"`
	// IdleTTL 桶闲置超过该时长后回收.
	IdleTTL time.Duration `mapstructure:"idle_ttl"`
}

func (c *RateLimitConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.rps", 50.0)
	v.SetDefault("rate_limit.burst", 100)
	v.SetDefault("rate_limit.key", "email")
	v.SetDefault("rate_limit.exempt_paths", []string{"/api/v1/health", "/metrics"})
	v.SetDefault("rate_limit.idle_ttl", 10*time.Minute)
}

package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultCBEnabled           = false
	DefaultCBFailureRate       = 0.5
	DefaultCBMinRequests       = 20
	DefaultCBIntervalSeconds   = 60
	DefaultCBTimeoutSeconds    = 30
	DefaultCBMaxRequestsInHalf = 5
)

// CircuitBreakerConfig 熔断配置，对象存储网关与 HTTP 路由共用.
type CircuitBreakerConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	FailureRate       float64 `mapstructure:"failure_rate"         rule:"min=0,max=1"` // 统计窗口内的失败比例阈值
	MinRequests       uint32  `mapstructure:"min_requests"`                            // 少于该请求数不熔断
	IntervalSeconds   int     `mapstructure:"interval_seconds"     rule:"min=0"`       // 闭合状态下计数清零周期
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"      rule:"min=1"`       // 打开后多久进入半开
	MaxRequestsInHalf uint32  `mapstructure:"max_requests_in_half" rule:"min=1"`       // 半开状态放行的请求数
	// FailureStatuses 计为失败的响应码，存储故障在 API 上表现为 502.
	FailureStatuses []int `mapstructure:"failure_statuses"`
}

// ShouldTrip 请求数达到下限且失败比例达到阈值时熔断.
func (c *CircuitBreakerConfig) ShouldTrip(requests, failures uint32) bool {
	if requests == 0 || requests < c.MinRequests {
		return false
	}

	return float64(failures)/float64(requests) >= c.FailureRate
}

// Interval 计数清零周期.
func (c *CircuitBreakerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Timeout 打开状态持续时间.
func (c *CircuitBreakerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// IsFailureStatus 判断响应码是否计为失败，未配置时取 5xx.
func (c *CircuitBreakerConfig) IsFailureStatus(status int) bool {
	if len(c.FailureStatuses) == 0 {
		return status >= 500
	}

	for _, s := range c.FailureStatuses {
		if s == status {
			return true
		}
	}

	return false
}

func (c *CircuitBreakerConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("circuit_breaker.enabled", DefaultCBEnabled)
	v.SetDefault("circuit_breaker.failure_rate", DefaultCBFailureRate)
	v.SetDefault("circuit_breaker.min_requests", DefaultCBMinRequests)
	v.SetDefault("circuit_breaker.interval_seconds", DefaultCBIntervalSeconds)
	v.SetDefault("circuit_breaker.timeout_seconds", DefaultCBTimeoutSeconds)
	v.SetDefault("circuit_breaker.max_requests_in_half", DefaultCBMaxRequestsInHalf)
	v.SetDefault("circuit_breaker.failure_statuses", []int{500, 502, 503, 504})
}

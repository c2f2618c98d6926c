package configs

import "github.com/spf13/viper"

// MetricsConfig Prometheus 指标配置，指标挂在主监听端口的 Path 上.
type MetricsConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Path           string `mapstructure:"path"            rule:"omitempty,startswith=/"`
	RuntimeMetrics bool   `mapstructure:"runtime_metrics"`
	// Pprof 同时暴露 /debug/pprof.
	Pprof bool `mapstructure:"pprof"`
	// Labels 附加到本服务注册的全部指标上.
	Labels map[string]string `mapstructure:"labels"`
	// DBRefreshSeconds gorm 连接池指标刷新间隔.
	DBRefreshSeconds uint32 `mapstructure:"db_refresh_seconds" rule:"min=1,max=3600"`
}

func (c *MetricsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.runtime_metrics", true)
	v.SetDefault("metrics.pprof", false)
	v.SetDefault("metrics.labels", map[string]string{})
	v.SetDefault("metrics.db_refresh_seconds", 15)
}

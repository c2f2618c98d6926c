package configs

import (
	"time"

	"github.com/spf13/viper"
)

// TracingConfig OpenTelemetry 导出配置. 未启用时仍会安装 W3C 传播器.
type TracingConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"    rule:"required"`
	ServiceVersion string `mapstructure:"service_version"`
	ExporterType   string `mapstructure:"exporter_type"   rule:"oneof=otlp-http otlp-grpc zipkin"`
	// Endpoint otlp-http 与 zipkin 为完整 URL，otlp-grpc 为 host:port.
	Endpoint string `mapstructure:"endpoint" rule:"required_if=Enabled true"`

	// Headers 随导出请求发送，例如鉴权 token.
	Headers map[string]string `mapstructure:"headers"`
	// Insecure otlp-grpc 不使用 TLS.
	Insecure      bool          `mapstructure:"insecure"`
	ExportTimeout time.Duration `mapstructure:"export_timeout"`

	SampleRate     float64           `mapstructure:"sample_rate"     rule:"min=0,max=1"` // 根 span 采样率，子 span 跟随上游
	BatchTimeout   time.Duration     `mapstructure:"batch_timeout"`
	MaxBatchSize   int               `mapstructure:"max_batch_size"  rule:"min=0"`
	MaxQueueSize   int               `mapstructure:"max_queue_size"  rule:"min=0"`
	ResourceLabels map[string]string `mapstructure:"resource_labels"` // 附加到 resource，例如 deployment.environment
}

func (c *TracingConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "flowvault")
	v.SetDefault("tracing.service_version", AppVersion)
	v.SetDefault("tracing.exporter_type", "otlp-http")
	v.SetDefault("tracing.endpoint", "http://localhost:4318")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.batch_timeout", "5s")
	v.SetDefault("tracing.max_batch_size", 512)
	v.SetDefault("tracing.max_queue_size", 2048)
	v.SetDefault("tracing.headers", map[string]string{})
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.export_timeout", "10s")
	v.SetDefault("tracing.resource_labels", map[string]string{
		"deployment.environment": "dev",
	})
}

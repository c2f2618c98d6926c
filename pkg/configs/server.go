package configs

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig HTTP 服务配置.
type ServerConfig struct {
	Port         int    `mapstructure:"port"          rule:"min=1,max=65535"`
	Host         string `mapstructure:"host"          rule:"ip|hostname"`
	ReloadConfig bool   `mapstructure:"reload_config"`
	Debug        bool   `mapstructure:"debug"`
	// Swagger 非 debug 模式下也暴露 /swagger.
	Swagger bool `mapstructure:"swagger"`
	// AllowOrigins 为空时允许任意来源.
	AllowOrigins []string `mapstructure:"allow_origins" rule:"dive,url|eq=*"`

	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" rule:"min=0"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"       rule:"min=0"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"        rule:"min=0"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"    rule:"min=0"`
}

// Addr 监听地址 host:port.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SwaggerEnabled debug 或显式开启时为 true.
func (s *ServerConfig) SwaggerEnabled() bool {
	return s.Debug || s.Swagger
}

// AllowAllOrigins 未配置来源或包含 "*" 时为 true.
func (s *ServerConfig) AllowAllOrigins() bool {
	if len(s.AllowOrigins) == 0 {
		return true
	}

	for _, o := range s.AllowOrigins {
		if o == "*" {
			return true
		}
	}

	return false
}

func (s *ServerConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.reload_config", true)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.swagger", false)
	v.SetDefault("server.allow_origins", []string{})
	v.SetDefault("server.read_header_timeout", 10*time.Second)
	// 归档上传可能较慢，写超时为 0 表示不限制
	v.SetDefault("server.write_timeout", time.Duration(0))
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
}

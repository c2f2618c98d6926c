package configs

import (
	"github.com/spf13/viper"
)

const (
	DefaultLogEnableFile = false                // 文件日志，生产环境在配置中开启
	DefaultLogFilePath   = "logs/flowvault.log" // 日志文件路径
	DefaultLogMaxSize    = 100                  // 单个文件上限（MB）
	DefaultLogMaxBackups = 7                    // 保留的轮转文件数
	DefaultLogMaxAge     = 28                   // 轮转文件保留天数
	DefaultLogCompress   = true                 // 压缩轮转文件
	DefaultLogLevel      = "info"               // 日志级别，可热更新
	DefaultLogFormat     = "console"            // console 或 json
)

// LogConfig 日志配置. Level 变更随配置热重载生效，其余项需重启.
type LogConfig struct {
	EnableFile bool   `mapstructure:"enable_file"`
	FilePath   string `mapstructure:"file_path"    rule:"required_if=EnableFile true"`
	MaxSize    int    `mapstructure:"max_size_mb"  rule:"min=0"`
	MaxBackups int    `mapstructure:"max_backups"  rule:"min=0"`
	MaxAge     int    `mapstructure:"max_age_days" rule:"min=0"`
	Compress   bool   `mapstructure:"compress"`
	Level      string `mapstructure:"level"        rule:"oneof=trace debug info warn error fatal panic disabled"`
	// Format 终端输出格式，json 适合被日志采集器读取.
	Format string `mapstructure:"format" rule:"oneof=console json"`
}

func (l *LogConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("log.enable_file", DefaultLogEnableFile)
	v.SetDefault("log.file_path", DefaultLogFilePath)
	v.SetDefault("log.max_size_mb", DefaultLogMaxSize)
	v.SetDefault("log.max_backups", DefaultLogMaxBackups)
	v.SetDefault("log.max_age_days", DefaultLogMaxAge)
	v.SetDefault("log.compress", DefaultLogCompress)
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
}

package configs

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// StorageType 对象存储网关类型.
type StorageType string

const (
	StorageTypeS3       StorageType = "s3"       // MinIO / S3 兼容存储
	StorageTypeSupabase StorageType = "supabase" // Supabase Storage REST 接口
)

const (
	DefaultS3Endpoint        = "localhost:9000" // 默认S3端点
	DefaultS3AccessKeyID     = "minioadmin"     // 默认访问密钥ID
	DefaultS3SecretAccessKey = "minioadmin"     // 默认秘密访问密钥
	DefaultS3UseSSL          = false            // 默认是否使用SSL
	DefaultBucketName        = "flowvault"      // 默认存储桶名称
	DefaultS3Region          = "us-east-1"      // 默认区域
	DefaultStorageTimeout    = 30               // 网关调用超时（秒）
)

// StorageConfig 对象存储网关配置.
type StorageConfig struct {
	Type     StorageType    `mapstructure:"type"     rule:"oneof=s3 supabase"`
	Bucket   string         `mapstructure:"bucket"   rule:"required"`
	Timeout  int            `mapstructure:"timeout"  rule:"min=1,max=600"` // 单次调用超时（秒）
	S3       S3Config       `mapstructure:"s3"`
	Supabase SupabaseConfig `mapstructure:"supabase"`
}

// S3Config MinIO S3存储配置.
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"          rule:"hostname_port"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Region          string `mapstructure:"region"`
	AutoCreate      bool   `mapstructure:"auto_create"` // 存储桶不存在时自动创建
}

// SupabaseConfig Supabase Storage 配置.
type SupabaseConfig struct {
	URL            string `mapstructure:"url"             rule:"omitempty,url"`
	ServiceRoleKey string `mapstructure:"service_role_key"`
}

// GetEndpointURL 获取完整的端点URL.
func (c *S3Config) GetEndpointURL() string {
	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}

	return fmt.Sprintf("%s://%s", scheme, c.Endpoint)
}

// GetBaseURL 返回去掉末尾斜杠的 Supabase 项目地址.
func (c *SupabaseConfig) GetBaseURL() string {
	return strings.TrimRight(c.URL, "/")
}

// GetTimeoutDuration 返回网关调用超时.
func (c *StorageConfig) GetTimeoutDuration() time.Duration {
	if c.Timeout <= 0 {
		return DefaultStorageTimeout * time.Second
	}

	return time.Duration(c.Timeout) * time.Second
}

// setDefaults 设置对象存储配置的默认值.
func (c *StorageConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("storage.type", StorageTypeS3)
	v.SetDefault("storage.bucket", DefaultBucketName)
	v.SetDefault("storage.timeout", DefaultStorageTimeout)

	v.SetDefault("storage.s3.endpoint", DefaultS3Endpoint)
	v.SetDefault("storage.s3.access_key_id", DefaultS3AccessKeyID)
	v.SetDefault("storage.s3.secret_access_key", DefaultS3SecretAccessKey)
	v.SetDefault("storage.s3.use_ssl", DefaultS3UseSSL)
	v.SetDefault("storage.s3.region", DefaultS3Region)
	v.SetDefault("storage.s3.auto_create", true)

	v.SetDefault("storage.supabase.url", "")
	v.SetDefault("storage.supabase.service_role_key", "")
}

package configs

import (
	"time"

	"github.com/spf13/viper"
)

// KVConfig 键值存储配置，承载 URL 映射与渲染缓存.
type KVConfig struct {
	Type       string             `mapstructure:"type"       rule:"oneof=memory redis nats groupcache"`
	Redis      RedisKVConfig      `mapstructure:"redis"`
	NATS       NATSKVConfig       `mapstructure:"nats"`
	Groupcache GroupcacheKVConfig `mapstructure:"groupcache"`
}

// RedisKVConfig Redis KV 配置.
type RedisKVConfig struct {
	Addr         string        `mapstructure:"addr"          rule:"hostname_port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"            rule:"min=0,max=15"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
	PoolSize     int           `mapstructure:"pool_size"     rule:"min=0"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// NATSKVConfig NATS JetStream KV 配置.
type NATSKVConfig struct {
	URL      string        `mapstructure:"url"      rule:"required"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	Bucket   string        `mapstructure:"bucket"   rule:"required,excludesall=.*>"`
	History  int           `mapstructure:"history"  rule:"min=0,max=64"`
	Replicas int           `mapstructure:"replicas" rule:"min=0,max=5"`
	MaxAge   time.Duration `mapstructure:"max_age"` // bucket 级过期，0 表示不过期
}

// GroupcacheKVConfig Groupcache KV 配置.
type GroupcacheKVConfig struct {
	Name       string   `mapstructure:"name"        rule:"required"`
	CacheBytes int64    `mapstructure:"cache_bytes" rule:"min=1048576"`
	Peers      []string `mapstructure:"peers"       rule:"dive,url"`
	Self       string   `mapstructure:"self"        rule:"omitempty,url"`
}

// GetKVType 返回当前配置的 KV 类型.
func (c *KVConfig) GetKVType() string {
	return c.Type
}

func (c *KVConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("kv.type", "memory")

	v.SetDefault("kv.redis.addr", "localhost:6379")
	v.SetDefault("kv.redis.db", 0)
	v.SetDefault("kv.redis.key_prefix", "flowvault:")
	v.SetDefault("kv.redis.pool_size", 20)
	v.SetDefault("kv.redis.dial_timeout", 5*time.Second)
	v.SetDefault("kv.redis.read_timeout", 3*time.Second)
	v.SetDefault("kv.redis.write_timeout", 3*time.Second)

	v.SetDefault("kv.nats.url", "nats://localhost:4222")
	v.SetDefault("kv.nats.bucket", "flowvault-kv")
	v.SetDefault("kv.nats.history", 1)
	v.SetDefault("kv.nats.replicas", 1)
	v.SetDefault("kv.nats.max_age", 24*time.Hour)

	// 渲染缓存只放小页面，64MB 足够
	v.SetDefault("kv.groupcache.name", "flowvault-cache")
	v.SetDefault("kv.groupcache.cache_bytes", int64(64<<20))
	v.SetDefault("kv.groupcache.peers", []string{})
	v.SetDefault("kv.groupcache.self", "http://localhost:8080")
}

package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultKeyPrefix        = "flowvault/flows" // 对象键前缀，后接 <flowCode>/v<n>/
	DefaultSignExpiry       = 3600              // 签名 URL 有效期（秒）
	DefaultURLMapCacheTTL   = 600               // 路径->URL 映射缓存时间（秒），需小于签名有效期
	DefaultMaxArchiveBytes  = 200 << 20         // 压缩包最大体积
	DefaultMaxEntryBytes    = 50 << 20          // 单个条目解压后最大体积
	DefaultProxyMaxBytes    = 5 << 20           // 小于该体积的资源直接代理返回，否则重定向
	DefaultAssetCacheMaxAge = 3600              // 代理资源的 Cache-Control max-age（秒）
	DefaultPurgeCron        = "15 * * * *"      // 清理软删除文件的定时任务
	DefaultPurgeGrace       = 24 * time.Hour    // 软删除后保留多久再清理
	DefaultRenderCacheTTL   = 30 * time.Second  // 渲染结果响应缓存，发布、改状态、删除时按流程失效
)

// SectorSeed 启动时写入的部门.
type SectorSeed struct {
	Code        string `mapstructure:"code"        rule:"required,sector_code"`
	Name        string `mapstructure:"name"        rule:"required"`
	Description string `mapstructure:"description"`
}

// BundleConfig 压缩包导入、渲染与资源代理配置.
type BundleConfig struct {
	KeyPrefix        string        `mapstructure:"key_prefix"          rule:"required"`
	SignExpiry       int           `mapstructure:"sign_expiry"         rule:"min=60,max=604800"`
	URLMapCacheTTL   int           `mapstructure:"url_map_cache_ttl"   rule:"min=0"`
	MaxArchiveBytes  int64         `mapstructure:"max_archive_bytes"   rule:"min=1"`
	MaxEntryBytes    int64         `mapstructure:"max_entry_bytes"     rule:"min=1"`
	ProxyMaxBytes    int64         `mapstructure:"proxy_max_bytes"     rule:"min=0"`
	AssetCacheMaxAge int           `mapstructure:"asset_cache_max_age" rule:"min=0"`
	RenderCacheTTL   time.Duration `mapstructure:"render_cache_ttl"`
	PurgeCron        string        `mapstructure:"purge_cron"          rule:"omitempty,cron"`
	PurgeGrace       time.Duration `mapstructure:"purge_grace"`
	Sectors          []SectorSeed  `mapstructure:"sectors"             rule:"dive"`
}

// GetSignExpiry 返回签名 URL 有效期.
func (c *BundleConfig) GetSignExpiry() time.Duration {
	if c.SignExpiry <= 0 {
		return DefaultSignExpiry * time.Second
	}

	return time.Duration(c.SignExpiry) * time.Second
}

// GetURLMapCacheTTL 返回映射缓存时间，不超过签名有效期的一半.
func (c *BundleConfig) GetURLMapCacheTTL() time.Duration {
	ttl := time.Duration(c.URLMapCacheTTL) * time.Second
	if limit := c.GetSignExpiry() / 2; ttl > limit {
		ttl = limit
	}

	return ttl
}

func (c *BundleConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("bundle.key_prefix", DefaultKeyPrefix)
	v.SetDefault("bundle.sign_expiry", DefaultSignExpiry)
	v.SetDefault("bundle.url_map_cache_ttl", DefaultURLMapCacheTTL)
	v.SetDefault("bundle.max_archive_bytes", DefaultMaxArchiveBytes)
	v.SetDefault("bundle.max_entry_bytes", DefaultMaxEntryBytes)
	v.SetDefault("bundle.proxy_max_bytes", DefaultProxyMaxBytes)
	v.SetDefault("bundle.asset_cache_max_age", DefaultAssetCacheMaxAge)
	v.SetDefault("bundle.render_cache_ttl", DefaultRenderCacheTTL)
	v.SetDefault("bundle.purge_cron", DefaultPurgeCron)
	v.SetDefault("bundle.purge_grace", DefaultPurgeGrace)
	v.SetDefault("bundle.sectors", []map[string]string{
		{"code": "TI", "name": "Tecnologia da Informação", "description": "Departamento de TI"},
		{"code": "RH", "name": "Recursos Humanos", "description": "Departamento de RH"},
		{"code": "FIN", "name": "Financeiro", "description": "Departamento Financeiro"},
		{"code": "ADM", "name": "Administrativo", "description": "Departamento Administrativo"},
		{"code": "COM", "name": "Comercial", "description": "Departamento Comercial"},
		{"code": "OPS", "name": "Operacional", "description": "Departamento Operacional"},
	})
}

// DefaultBundleConfig 返回全部取默认值的 BundleConfig，不含部门种子.
func DefaultBundleConfig() BundleConfig {
	return BundleConfig{
		KeyPrefix:        DefaultKeyPrefix,
		SignExpiry:       DefaultSignExpiry,
		URLMapCacheTTL:   DefaultURLMapCacheTTL,
		MaxArchiveBytes:  DefaultMaxArchiveBytes,
		MaxEntryBytes:    DefaultMaxEntryBytes,
		ProxyMaxBytes:    DefaultProxyMaxBytes,
		AssetCacheMaxAge: DefaultAssetCacheMaxAge,
		RenderCacheTTL:   DefaultRenderCacheTTL,
		PurgeCron:        DefaultPurgeCron,
		PurgeGrace:       DefaultPurgeGrace,
	}
}

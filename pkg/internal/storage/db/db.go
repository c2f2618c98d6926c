// Package db 处理数据库存储操作，基于 GORM 并通过 build tag 选择驱动.
package db

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	gormPrometheus "gorm.io/plugin/prometheus"

	"github.com/yeisme/flowvault/pkg/configs"
	nlog "github.com/yeisme/flowvault/pkg/log"
)

// DialectorFactory 按配置构造 dialector，DSN 格式由驱动自己决定.
type DialectorFactory func(cfg *configs.DBConfig) gorm.Dialector

var dialectorFactories = map[configs.DBType]DialectorFactory{}

// RegisterDialectorFactory 注册数据库 dialector 工厂函数.
func RegisterDialectorFactory(dbType configs.DBType, factory DialectorFactory) {
	dialectorFactories[dbType] = factory
}

// GetRegisteredDBTypes 返回已注册的数据库类型列表（有序）.
func GetRegisteredDBTypes() []configs.DBType {
	types := make([]configs.DBType, 0, len(dialectorFactories))
	for dbType := range dialectorFactories {
		types = append(types, dbType)
	}

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}

// joinParams 合并驱动默认参数与用户参数（用户优先），按键排序后用 sep 连接.
func joinParams(defaults, extra map[string]string, sep string) string {
	merged := make(map[string]string, len(defaults)+len(extra))
	maps.Copy(merged, defaults)
	maps.Copy(merged, extra)

	keys := slices.Sorted(maps.Keys(merged))
	parts := make([]string, 0, len(keys))

	for _, k := range keys {
		if merged[k] == "" {
			continue
		}

		parts = append(parts, k+"="+merged[k])
	}

	return strings.Join(parts, sep)
}

// Client 包装 GORM DB 客户端.
type Client struct {
	*gorm.DB
}

// New 按配置打开数据库连接并配置连接池.
func New(ctx context.Context, cfg *configs.DBConfig) (*Client, error) {
	factory, exists := dialectorFactories[cfg.Type]
	if !exists {
		return nil, fmt.Errorf("unsupported database type: %s (registered: %v)", cfg.Type, GetRegisteredDBTypes())
	}

	level := logger.Warn
	if configs.GetConfig().Server.Debug {
		level = logger.Info
	}

	l := nlog.Component("db")

	db, err := gorm.Open(factory(cfg), &gorm.Config{
		Logger: logger.New(&l, logger.Config{
			SlowThreshold:             cfg.SlowThreshold,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
		PrepareStmt:    true,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.GetDBType(), err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s database: %w", cfg.GetDBType(), err)
	}

	l.Info().Str("type", cfg.GetDBType()).Str("host", cfg.Host).Str("database", cfg.Database).Msg("database connected")

	return &Client{DB: db}, nil
}

// Wrap 用已有的 *gorm.DB 构造 Client，便于测试和命令行工具复用.
func Wrap(db *gorm.DB) *Client {
	return &Client{DB: db}
}

// GetDB 返回 GORM DB 实例.
func (c *Client) GetDB() *gorm.DB {
	if c == nil {
		return nil
	}

	return c.DB
}

// Migrate 自动迁移传入的模型.
func (c *Client) Migrate(ctx context.Context, models ...any) error {
	if err := c.WithContext(ctx).AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	return nil
}

// Close 关闭底层连接池.
func (c *Client) Close() error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// RegisterGORMMetrics 注册 gorm 连接池指标，refreshSeconds 为 0 时取 15 秒.
func (c *Client) RegisterGORMMetrics(dbName string, refreshSeconds uint32) error {
	if refreshSeconds == 0 {
		refreshSeconds = 15
	}

	promConfig := gormPrometheus.Config{
		DBName:          dbName,
		RefreshInterval: refreshSeconds,
		StartServer:     false,
	}

	if err := c.Use(gormPrometheus.New(promConfig)); err != nil {
		return fmt.Errorf("failed to register GORM prometheus plugin: %w", err)
	}

	return nil
}

// Package storage 聚合应用使用的存储资源：关系数据库、对象存储网关、KV 与消息队列.
//
// Example:
//
// 初始化
//
//	mgr, err := storage.Init(ctx, configs.GetConfig())
//	if err != nil {
//		// 处理错误
//	}
//	defer mgr.Close()
//
// 获取存储客户端
//
//	gw := mgr.GetGateway()
//	dbClient := mgr.GetDBClient()
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yeisme/flowvault/pkg/configs"
	"github.com/yeisme/flowvault/pkg/internal/bundle"
	dbc "github.com/yeisme/flowvault/pkg/internal/storage/db"
	kvc "github.com/yeisme/flowvault/pkg/internal/storage/kv"
	mqc "github.com/yeisme/flowvault/pkg/internal/storage/mq"
	s3c "github.com/yeisme/flowvault/pkg/internal/storage/s3"
	"github.com/yeisme/flowvault/pkg/internal/storage/supabase"
	nlog "github.com/yeisme/flowvault/pkg/log"
)

// Manager 聚合所有存储资源. KV 与 MQ 可能为 nil（初始化失败时降级运行）.
type Manager struct {
	DB      *dbc.Client
	Gateway bundle.Gateway
	KV      *kvc.Client
	MQ      *mqc.Client
}

var (
	mgr     *Manager
	mgrErr  error
	mgrOnce sync.Once
)

// Init 按配置初始化存储，重复调用只返回已初始化实例.
// 数据库与对象存储是必需的；KV 与 MQ 失败只记录警告.
func Init(ctx context.Context, cfg *configs.AppConfig) (*Manager, error) {
	mgrOnce.Do(func() {
		m := &Manager{}

		dbi, err := dbc.New(ctx, &cfg.DB)
		if err != nil {
			mgrErr = err
			return
		}

		m.DB = dbi

		gw, err := NewGateway(ctx, cfg)
		if err != nil {
			mgrErr = err
			return
		}

		m.Gateway = gw

		if kvi, err := kvc.NewKVClient(ctx, &cfg.KV); err != nil {
			nlog.Logger().Warn().Err(err).Str("type", cfg.KV.Type).Msg("kv unavailable, caching disabled")
		} else {
			m.KV = kvi
		}

		if cfg.Events.Enabled {
			if mqi, err := mqc.New(ctx, &cfg.MQ); err != nil {
				nlog.Logger().Warn().Err(err).Str("type", string(cfg.MQ.Type)).Msg("mq unavailable, events disabled")
			} else {
				m.MQ = mqi
			}
		}

		mgr = m

		nlog.Logger().Info().Msg("storage manager initialized")
	})

	return mgr, mgrErr
}

// NewGateway 按 storage.type 创建对象存储网关.
func NewGateway(ctx context.Context, cfg *configs.AppConfig) (bundle.Gateway, error) {
	switch cfg.Storage.Type {
	case configs.StorageTypeS3, "":
		return s3c.New(ctx, &cfg.Storage)
	case configs.StorageTypeSupabase:
		return supabase.New(&cfg.Storage, supabase.WithBreaker(cfg.CircuitBreaker))
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}

// GetGateway 获取对象存储网关.
func (m *Manager) GetGateway() bundle.Gateway {
	return m.Gateway
}

// GetDBClient 获取 DB 客户端.
func (m *Manager) GetDBClient() *dbc.Client {
	return m.DB
}

// GetKVClient 获取 KV 客户端.
func (m *Manager) GetKVClient() *kvc.Client {
	return m.KV
}

// GetMQClient 获取 MQ 客户端.
func (m *Manager) GetMQClient() *mqc.Client {
	return m.MQ
}

// Close 释放所有资源.
func (m *Manager) Close() error {
	var errs []error

	if m.MQ != nil {
		errs = append(errs, m.MQ.Close())
	}

	if m.KV != nil {
		errs = append(errs, m.KV.Close())
	}

	if m.DB != nil {
		errs = append(errs, m.DB.Close())
	}

	return errors.Join(errs...)
}

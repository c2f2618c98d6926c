// Package service 实现流程发布、版本导入、渲染与文件访问等业务逻辑.
//
// 服务按请求从 context 中取出存储客户端构建（NewXxxService），
// 测试中可通过 NewXxxServiceWith 直接注入依赖.
package service

import (
	"bytes"
	"context"
	"path"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/yeisme/flowvault/pkg/cache"
	"github.com/yeisme/flowvault/pkg/configs"
	ctxPkg "github.com/yeisme/flowvault/pkg/context"
	"github.com/yeisme/flowvault/pkg/internal/bundle"
	"github.com/yeisme/flowvault/pkg/internal/model"
	"github.com/yeisme/flowvault/pkg/internal/storage/kv"
	"github.com/yeisme/flowvault/pkg/log"
	"github.com/yeisme/flowvault/pkg/queue"
)

// Deps 服务依赖. Cache 与 Events 可为 nil.
type Deps struct {
	DB      *gorm.DB
	Gateway bundle.Gateway
	Cache   *cache.Cache
	Events  *queue.Publisher
	Bundle  configs.BundleConfig
	Logger  *zerolog.Logger
}

// Actor 操作者身份.
type Actor struct {
	Email string
	Admin bool
}

// CanModify 发布者本人或管理员可以修改流程.
func (a Actor) CanModify(f *model.Flow) bool {
	return a.Admin || (a.Email != "" && strings.EqualFold(a.Email, f.PublishedBy))
}

// Upload 上传的文件内容.
type Upload struct {
	Name string
	Data []byte
}

var zipMagic = []byte("PK\x03\x04")

// IsArchive 以扩展名或 zip 魔数判断是否为压缩包.
func (u Upload) IsArchive() bool {
	return strings.EqualFold(path.Ext(u.Name), ".zip") || bytes.HasPrefix(u.Data, zipMagic)
}

var (
	cacheMu     sync.Mutex
	cacheStore  kv.KVStore
	sharedCache *cache.Cache
)

// cacheFor 同一 KV 存储复用同一个 Cache，使 singleflight 跨请求生效.
func cacheFor(store kv.KVStore) *cache.Cache {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if sharedCache == nil || cacheStore != store {
		cacheStore = store
		sharedCache = cache.NewCache(store)
	}

	return sharedCache
}

// depsFromContext 从 context 中的存储管理器组装依赖.
func depsFromContext(ctx context.Context) Deps {
	cfg := configs.GetConfig()
	l := ctxPkg.WithTraceContext(ctx, log.Component("service"))

	d := Deps{
		Gateway: ctxPkg.GetGateway(ctx),
		Bundle:  cfg.Bundle,
		Logger:  &l,
	}

	if dbc := ctxPkg.GetDBClient(ctx); dbc != nil {
		d.DB = dbc.GetDB()
	}

	if kvc := ctxPkg.GetKVClient(ctx); kvc != nil && kvc.KVStore != nil {
		d.Cache = cacheFor(kvc.KVStore)
	}

	if mqc := ctxPkg.GetMQClient(ctx); mqc != nil {
		d.Events = queue.NewPublisher(mqc.Publisher(), cfg.Events)
	}

	return d
}

func (d *Deps) logger() *zerolog.Logger {
	if d.Logger != nil {
		return d.Logger
	}

	return log.Logger()
}

// ingester 创建写入 db 的导入引擎.
func (d *Deps) ingester(db *gorm.DB) *bundle.Ingester {
	return bundle.NewIngester(d.Gateway, gormRecorder(db),
		bundle.WithKeyPrefix(d.Bundle.KeyPrefix),
		bundle.WithMaxEntryBytes(d.Bundle.MaxEntryBytes),
		bundle.WithLogger(d.logger()),
	)
}

// gormRecorder 将导入产生的 File 写入数据库.
func gormRecorder(db *gorm.DB) bundle.FileRecorder {
	return bundle.RecorderFunc(func(ctx context.Context, f *model.File) error {
		return db.WithContext(ctx).Create(f).Error
	})
}

// eventOpts 事件头带上当前 span 与请求 ID.
func eventOpts(ctx context.Context, extra ...queue.Option) []queue.Option {
	return append([]queue.Option{queue.WithSpan(ctx), queue.WithRequestID(ctxPkg.RequestID(ctx))}, extra...)
}

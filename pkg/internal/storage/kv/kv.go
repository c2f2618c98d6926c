// Package kv 是 URL 映射缓存与渲染缓存的底层存储. 四种实现通过工厂注册:
// memory 单进程，redis 与 nats 多实例共享，groupcache 在对等节点间分摊读取.
package kv

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/yeisme/flowvault/pkg/configs"
)

// ErrKeyNotFound 键不存在或已过期，各实现以 %w 包装返回.
var ErrKeyNotFound = errors.New("kv: key not found")

// IsNotFound 判断错误是否为键不存在.
func IsNotFound(err error) bool { return errors.Is(err, ErrKeyNotFound) }

func notFound(key string) error { return fmt.Errorf("%w: %s", ErrKeyNotFound, key) }

// KVStore 键值存储. Get 返回的切片归调用方所有，Set 不保留 value 的引用.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set ttl<=0 表示不过期.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// Keys 按 glob 列出未过期的键，用于失效与命令行排查.
	Keys(ctx context.Context, pattern string) ([]string, error)
	Close() error
}

// Client 当前配置的存储及其类型.
type Client struct {
	KVStore

	Type KVType
}

// KVType 存储实现.
type KVType string

const (
	KVTypeMemory     KVType = "memory"
	KVTypeRedis      KVType = "redis"
	KVTypeNATS       KVType = "nats"
	KVTypeGroupcache KVType = "groupcache"
)

// KVFactory 用各实现自己的子配置创建存储.
type KVFactory func(ctx context.Context, config any) (KVStore, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[KVType]KVFactory{}
)

// RegisterKVFactory 注册实现，同名覆盖.
func RegisterKVFactory(kvType KVType, factory KVFactory) {
	factoriesMu.Lock()
	factories[kvType] = factory
	factoriesMu.Unlock()
}

// GetRegisteredKVTypes 已注册的类型，按名称排序.
func GetRegisteredKVTypes() []KVType {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	return slices.Sorted(maps.Keys(factories))
}

// NewKVStore 按类型创建存储.
func NewKVStore(ctx context.Context, kvType KVType, config any) (KVStore, error) {
	factoriesMu.RLock()
	factory, ok := factories[kvType]
	factoriesMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unsupported KV type: %s (registered: %v)", kvType, GetRegisteredKVTypes())
	}

	return factory(ctx, config)
}

// NewKVClient 取 cfg 中对应类型的子配置创建存储.
func NewKVClient(ctx context.Context, cfg *configs.KVConfig) (*Client, error) {
	t := KVType(cfg.Type)

	var sub any

	switch t {
	case KVTypeRedis:
		sub = &cfg.Redis
	case KVTypeNATS:
		sub = &cfg.NATS
	case KVTypeGroupcache:
		sub = &cfg.Groupcache
	}

	store, err := NewKVStore(ctx, t, sub)
	if err != nil {
		return nil, fmt.Errorf("kv %s: %w", t, err)
	}

	return &Client{KVStore: store, Type: t}, nil
}

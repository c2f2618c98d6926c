// Package cache 在 KVStore 之上提供泛型缓存，值用 sonic 编码为 JSON.
//
// 缓存两类数据，键前缀固定:
//   - urlmap.<versionID>.<digest> 版本内路径到签名 URL 的映射
//   - render.<flowID>.<digest> 渲染接口的完整响应，不属于某个流程的请求用 "_"
//
// Groupcache 不支持删除，失效依赖键中的摘要变化. 未命中不视为错误，由调用方回源.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"golang.org/x/sync/singleflight"

	"github.com/yeisme/flowvault/pkg/internal/storage/kv"
)

// 缓存键前缀.
const (
	URLMapPrefix = "urlmap."
	RenderPrefix = "render."
)

// RenderKey 渲染缓存键，scope 为流程 ID.
func RenderKey(scope, digest string) string {
	if scope == "" {
		scope = "_"
	}

	return RenderPrefix + scope + "." + digest
}

// RenderFlowPattern 匹配某个流程的全部渲染缓存.
func RenderFlowPattern(flowID uint) string {
	return RenderPrefix + strconv.FormatUint(uint64(flowID), 10) + ".*"
}

// Cache 基于 KVStore 的缓存，GetOrLoad 合并同一 key 的并发回源.
type Cache struct {
	kvStore kv.KVStore
	group   singleflight.Group
}

// NewCache 创建一个新的缓存实例.
func NewCache(kvStore kv.KVStore) *Cache {
	return &Cache{
		kvStore: kvStore,
	}
}

// Get 泛型获取缓存值.
func Get[T any](ctx context.Context, c *Cache, key string) (T, error) {
	var zero T

	data, err := c.kvStore.Get(ctx, key)
	if err != nil {
		return zero, err
	}

	var value T
	if err := sonic.Unmarshal(data, &value); err != nil {
		return zero, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}

	return value, nil
}

// Set 泛型设置缓存值.
func Set[T any](ctx context.Context, c *Cache, key string, value T, ttl time.Duration) error {
	data, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	return c.kvStore.Set(ctx, key, data, ttl)
}

// Delete 删除缓存键.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.kvStore.Delete(ctx, key)
}

// Exists 检查缓存键是否存在.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	return c.kvStore.Exists(ctx, key)
}

// GetOrLoad 获取缓存值，未命中时调用 loader 并写回缓存.
// 同一 key 的并发未命中只会执行一次 loader；hit 表示是否直接命中缓存.
// 写回失败不影响返回值.
func GetOrLoad[T any](ctx context.Context, c *Cache, key string, loader func(context.Context) (T, error), ttl time.Duration) (T, bool, error) {
	if value, err := Get[T](ctx, c, key); err == nil {
		return value, true, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}

		_ = Set(ctx, c, key, value, ttl)

		return value, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}

	return v.(T), false, nil
}

// Clear 清空两类缓存，返回删除数量.
func (c *Cache) Clear(ctx context.Context) (int, error) {
	total := 0

	for _, prefix := range []string{URLMapPrefix, RenderPrefix} {
		n, err := c.DeleteMatching(ctx, prefix+"*")
		total += n

		if err != nil {
			return total, err
		}
	}

	return total, nil
}

// DeleteMatching 删除匹配 pattern 的键，返回删除数量.
func (c *Cache) DeleteMatching(ctx context.Context, pattern string) (int, error) {
	keys, err := c.kvStore.Keys(ctx, pattern)
	if err != nil {
		return 0, err
	}

	n := 0

	for _, key := range keys {
		if err := c.kvStore.Delete(ctx, key); err != nil {
			return n, err
		}

		n++
	}

	return n, nil
}

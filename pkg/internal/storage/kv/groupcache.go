package kv

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang/groupcache"

	"github.com/yeisme/flowvault/pkg/configs"
)

// GroupcachePeerPath 节点间互取数据的 HTTP 前缀.
const GroupcachePeerPath = "/_groupcache/"

// PeerServer 需要对外暴露 HTTP 端点的 KV 实现.
type PeerServer interface {
	PeerHandler() http.Handler
	PeerPath() string
}

// GroupcacheKV 本节点写入的数据存在 data 中，读不到时经 groupcache 向持有者节点取.
// groupcache 自身的缓存不能失效，所以本地数据优先，Delete 只对本节点生效.
type GroupcacheKV struct {
	group *groupcache.Group
	pool  *groupcache.HTTPPool

	mu   sync.RWMutex
	data map[string][]byte
}

var (
	groupsMu sync.Mutex
	groups   = map[string]*GroupcacheKV{}
)

// NewGroupcacheKV 创建 Groupcache KV. 同名 group 在进程内只创建一次，重复创建返回已有实例.
func NewGroupcacheKV(ctx context.Context, config any) (KVStore, error) {
	cfg, ok := config.(*configs.GroupcacheKVConfig)
	if !ok {
		return nil, fmt.Errorf("invalid Groupcache config")
	}

	groupsMu.Lock()
	defer groupsMu.Unlock()

	if existing, ok := groups[cfg.Name]; ok {
		return existing, nil
	}

	g := &GroupcacheKV{data: make(map[string][]byte)}
	g.group = groupcache.NewGroup(cfg.Name, cfg.CacheBytes, groupcache.GetterFunc(g.fill))

	if len(cfg.Peers) > 0 {
		g.pool = groupcache.NewHTTPPoolOpts(cfg.Self, &groupcache.HTTPPoolOptions{BasePath: GroupcachePeerPath})
		g.pool.Set(cfg.Peers...)
	}

	groups[cfg.Name] = g

	return g, nil
}

// fill 作为持有者节点时回答其他节点的读取.
func (g *GroupcacheKV) fill(_ context.Context, key string, dest groupcache.Sink) error {
	raw, ok := g.local(key)
	if !ok {
		return notFound(key)
	}

	return dest.SetBytes(raw)
}

func (g *GroupcacheKV) local(key string) ([]byte, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	raw, ok := g.data[key]

	return raw, ok
}

// Get 先读本地，单节点时不走 group，避免读到已删除的旧值.
func (g *GroupcacheKV) Get(ctx context.Context, key string) ([]byte, error) {
	raw, ok := g.local(key)
	if !ok {
		if g.pool == nil {
			return nil, notFound(key)
		}

		if err := g.group.Get(ctx, key, groupcache.AllocatingByteSliceSink(&raw)); err != nil {
			if strings.Contains(err.Error(), ErrKeyNotFound.Error()) {
				return nil, notFound(key)
			}

			return nil, fmt.Errorf("groupcache get %s: %w", key, err)
		}
	}

	value, expired, err := decodeWithTTL(raw, time.Now())
	if err != nil {
		return nil, err
	}

	if expired {
		_ = g.Delete(ctx, key)
		return nil, notFound(key)
	}

	return append([]byte(nil), value...), nil
}

// Set 写入本节点. 值与 TTL 一起编码，读取时惰性判断过期.
func (g *GroupcacheKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	encoded := encodeWithTTL(value, ttl, time.Now())

	g.mu.Lock()
	g.data[key] = encoded
	g.mu.Unlock()

	return nil
}

// Delete 删除本节点数据.
func (g *GroupcacheKV) Delete(_ context.Context, key string) error {
	g.mu.Lock()
	delete(g.data, key)
	g.mu.Unlock()

	return nil
}

// Exists 检查键是否存在且未过期.
func (g *GroupcacheKV) Exists(ctx context.Context, key string) (bool, error) {
	_, err := g.Get(ctx, key)
	if IsNotFound(err) {
		return false, nil
	}

	return err == nil, err
}

// Keys 只列出本节点的未过期键.
func (g *GroupcacheKV) Keys(_ context.Context, pattern string) ([]string, error) {
	now := time.Now()

	g.mu.RLock()
	defer g.mu.RUnlock()

	keys := make([]string, 0, len(g.data))

	for key, raw := range g.data {
		if !matchPattern(pattern, key) {
			continue
		}

		if _, expired, err := decodeWithTTL(raw, now); err != nil || expired {
			continue
		}

		keys = append(keys, key)
	}

	return keys, nil
}

// PeerHandler 返回节点间通信的 handler，单节点时为 nil.
func (g *GroupcacheKV) PeerHandler() http.Handler {
	if g.pool == nil {
		return nil
	}

	return g.pool
}

// PeerPath 返回节点间通信的路由前缀.
func (g *GroupcacheKV) PeerPath() string { return GroupcachePeerPath }

// Close 清空本节点数据，group 注册在进程内保留.
func (g *GroupcacheKV) Close() error {
	g.mu.Lock()
	g.data = make(map[string][]byte)
	g.mu.Unlock()

	return nil
}

func init() {
	RegisterKVFactory(KVTypeGroupcache, NewGroupcacheKV)
}

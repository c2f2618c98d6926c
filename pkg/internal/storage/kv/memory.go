package kv

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"
)

// memorySweepEvery 两次清理过期键之间的最小间隔.
const memorySweepEvery = time.Minute

type memoryEntry struct {
	value   []byte
	expires time.Time // 零值表示不过期
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

// MemoryKV 进程内 KV，单实例部署与测试使用. 过期键在读取时或 Set 顺带清理.
type MemoryKV struct {
	mu    sync.RWMutex
	data  map[string]memoryEntry
	sweep time.Time
	now   func() time.Time
}

// NewMemoryKV 创建内存 KV 实例，config 忽略.
func NewMemoryKV(_ context.Context, _ any) (KVStore, error) {
	return &MemoryKV{data: make(map[string]memoryEntry), now: time.Now}, nil
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	now := m.now()

	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()

	if !ok {
		return nil, notFound(key)
	}

	if e.expired(now) {
		m.mu.Lock()
		if cur, ok := m.data[key]; ok && cur.expired(now) {
			delete(m.data, key)
		}
		m.mu.Unlock()

		return nil, notFound(key)
	}

	return bytes.Clone(e.value), nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	now := m.now()

	e := memoryEntry{value: bytes.Clone(value)}
	if e.value == nil {
		e.value = []byte{}
	}

	if ttl > 0 {
		e.expires = now.Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if now.Sub(m.sweep) > memorySweepEvery {
		for k, v := range m.data {
			if v.expired(now) {
				delete(m.data, k)
			}
		}

		m.sweep = now
	}

	m.data[key] = e

	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()

	return nil
}

func (m *MemoryKV) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()

	return ok && !e.expired(m.now()), nil
}

// Keys 列出匹配 glob 的未过期键，按字典序.
func (m *MemoryKV) Keys(_ context.Context, pattern string) ([]string, error) {
	now := m.now()
	keys := make([]string, 0)

	m.mu.RLock()
	for k, e := range m.data {
		if !e.expired(now) && matchPattern(pattern, k) {
			keys = append(keys, k)
		}
	}
	m.mu.RUnlock()

	sort.Strings(keys)

	return keys, nil
}

// Close 清空数据.
func (m *MemoryKV) Close() error {
	m.mu.Lock()
	clear(m.data)
	m.mu.Unlock()

	return nil
}

func init() {
	RegisterKVFactory(KVTypeMemory, NewMemoryKV)
}

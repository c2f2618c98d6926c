package kv

import (
	"bytes"
	"encoding/binary"
	"errors"
	"path"
	"time"
)

// NATS KV 与 groupcache 没有逐键过期，值前加上过期时间头:
//
//	"FVTTL3" | expires unix 毫秒 (8 字节大端) | 原值
//
// ttl<=0 时原样保存，读取时没有头的值视为永不过期.
var ttlMagic = []byte("FVTTL3")

const ttlHeaderLen = 6 + 8

var errShortTTLValue = errors.New("kv: truncated ttl header")

func encodeWithTTL(value []byte, ttl time.Duration, now time.Time) []byte {
	if ttl <= 0 {
		return bytes.Clone(value)
	}

	out := make([]byte, ttlHeaderLen, ttlHeaderLen+len(value))
	copy(out, ttlMagic)
	binary.BigEndian.PutUint64(out[len(ttlMagic):], uint64(now.Add(ttl).UnixMilli()))

	return append(out, value...)
}

// decodeWithTTL 返回原值与是否过期.
func decodeWithTTL(b []byte, now time.Time) ([]byte, bool, error) {
	if !bytes.HasPrefix(b, ttlMagic) {
		return b, false, nil
	}

	if len(b) < ttlHeaderLen {
		return nil, false, errShortTTLValue
	}

	exp := int64(binary.BigEndian.Uint64(b[len(ttlMagic):ttlHeaderLen]))
	if now.UnixMilli() >= exp {
		return nil, true, nil
	}

	return b[ttlHeaderLen:], false, nil
}

// matchPattern "" 与 "*" 匹配全部，其余按 path.Match.
func matchPattern(pattern, key string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}

	ok, err := path.Match(pattern, key)

	return err == nil && ok
}

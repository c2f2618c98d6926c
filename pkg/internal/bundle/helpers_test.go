package bundle_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/flowvault/pkg/internal/model"
)

// zipEntry 测试用压缩包条目.
type zipEntry struct {
	name   string
	body   string
	stored bool
}

func buildZip(t *testing.T, entries ...zipEntry) []byte {
	t.Helper()

	var buf bytes.Buffer

	zw := zip.NewWriter(&buf)

	for _, e := range entries {
		method := zip.Deflate
		if e.stored {
			method = zip.Store
		}

		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: method})
		require.NoError(t, err)

		_, err = w.Write([]byte(e.body))
		require.NoError(t, err)
	}

	require.NoError(t, zw.Close())

	return buf.Bytes()
}

// corrupt 翻转 payload 中的一个字节，使 CRC 校验失败.
func corrupt(t *testing.T, data []byte, payload string) []byte {
	t.Helper()

	i := bytes.Index(data, []byte(payload))
	require.GreaterOrEqual(t, i, 0, "payload not found in archive")

	out := append([]byte(nil), data...)
	out[i] ^= 0xff

	return out
}

// fakeGateway 内存对象存储.
type fakeGateway struct {
	mu      sync.Mutex
	objects map[string][]byte
	mimes   map[string]string
	deleted []string

	uploadErr func(key string) error
	signErr   func(key string) error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		objects: map[string][]byte{},
		mimes:   map[string]string{},
	}
}

func (g *fakeGateway) Upload(_ context.Context, key string, data []byte, mimeType string) (string, error) {
	if g.uploadErr != nil {
		if err := g.uploadErr(key); err != nil {
			return "", err
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.objects[key] = append([]byte(nil), data...)
	g.mimes[key] = mimeType

	return key, nil
}

func (g *fakeGateway) Sign(_ context.Context, key string, expiry time.Duration) (string, error) {
	if g.signErr != nil {
		if err := g.signErr(key); err != nil {
			return "", err
		}
	}

	return fmt.Sprintf("https://cdn.test/signed/%s?token=t&exp=%d", key, int(expiry.Seconds())), nil
}

func (g *fakeGateway) Fetch(_ context.Context, url string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := strings.TrimPrefix(url, "https://cdn.test/signed/")
	if i := strings.IndexByte(key, '?'); i >= 0 {
		key = key[:i]
	}

	data, ok := g.objects[key]
	if !ok {
		return nil, errors.New("no such object")
	}

	return data, nil
}

func (g *fakeGateway) Delete(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.objects, key)
	g.deleted = append(g.deleted, key)

	return nil
}

// memRecorder 内存 FileRecorder.
type memRecorder struct {
	files  []model.File
	nextID uint
	fail   func(f *model.File) error
}

func (r *memRecorder) RecordFile(_ context.Context, f *model.File) error {
	if r.fail != nil {
		if err := r.fail(f); err != nil {
			return err
		}
	}

	r.nextID++
	f.ID = r.nextID
	r.files = append(r.files, *f)

	return nil
}

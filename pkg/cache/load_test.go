package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yeisme/flowvault/pkg/cache"
	"github.com/yeisme/flowvault/pkg/internal/storage/kv"
)

func newMemoryCache(t *testing.T) *cache.Cache {
	t.Helper()

	store, err := kv.NewMemoryKV(context.Background(), nil)
	if err != nil {
		t.Fatalf("memory kv: %v", err)
	}

	return cache.NewCache(store)
}

func TestGetOrLoad_CollapsesConcurrentLoads(t *testing.T) {
	c := newMemoryCache(t)
	ctx := context.Background()

	var calls atomic.Int32

	release := make(chan struct{})
	loader := func(context.Context) (map[string]string, error) {
		calls.Add(1)
		<-release

		return map[string]string{"libs/app.css": "https://s/app.css"}, nil
	}

	const n = 8

	var wg sync.WaitGroup

	results := make([]map[string]string, n)

	for i := range n {
		wg.Add(1)

		go func() {
			defer wg.Done()

			v, _, err := cache.GetOrLoad(ctx, c, "urlmap.1.abc", loader, time.Minute)
			if err != nil {
				t.Errorf("GetOrLoad: %v", err)
			}

			results[i] = v
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got < 1 || got > 2 {
		t.Errorf("loader called %d times, want collapsed", got)
	}

	for i, r := range results {
		if r["libs/app.css"] != "https://s/app.css" {
			t.Errorf("result %d = %v", i, r)
		}
	}

	_, hit, err := cache.GetOrLoad(ctx, c, "urlmap.1.abc", loader, time.Minute)
	if err != nil || !hit {
		t.Errorf("second lookup hit=%v err=%v, want cache hit", hit, err)
	}
}

func TestGetOrLoad_ErrorNotCached(t *testing.T) {
	c := newMemoryCache(t)
	ctx := context.Background()

	boom := errors.New("boom")

	_, _, err := cache.GetOrLoad(ctx, c, "k", func(context.Context) (int, error) { return 0, boom }, time.Minute)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	v, hit, err := cache.GetOrLoad(ctx, c, "k", func(context.Context) (int, error) { return 42, nil }, time.Minute)
	if err != nil || hit || v != 42 {
		t.Fatalf("v=%d hit=%v err=%v", v, hit, err)
	}
}

func TestDeleteMatching(t *testing.T) {
	c := newMemoryCache(t)
	ctx := context.Background()

	for _, k := range []string{"urlmap.7.a", "urlmap.7.b", "urlmap.8.a"} {
		if err := cache.Set(ctx, c, k, k, time.Minute); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}

	n, err := c.DeleteMatching(ctx, "urlmap.7.*")
	if err != nil {
		t.Fatalf("DeleteMatching: %v", err)
	}

	if n != 2 {
		t.Errorf("deleted %d keys, want 2", n)
	}

	if ok, _ := c.Exists(ctx, "urlmap.8.a"); !ok {
		t.Error("urlmap.8.a should survive")
	}
}

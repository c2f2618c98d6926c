package supabase_test

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/flowvault/pkg/configs"
	"github.com/yeisme/flowvault/pkg/internal/bundle"
	"github.com/yeisme/flowvault/pkg/internal/storage/supabase"
	"github.com/yeisme/flowvault/pkg/internal/storage/supabase/supabasetest"
)

func newClient(t *testing.T, opts ...supabase.Option) (*supabase.Client, *supabasetest.Server) {
	t.Helper()

	srv := supabasetest.NewServer("service-key")
	t.Cleanup(srv.Close)

	cfg := &configs.StorageConfig{
		Type:     configs.StorageTypeSupabase,
		Bucket:   "flows",
		Timeout:  5,
		Supabase: configs.SupabaseConfig{URL: srv.URL + "/", ServiceRoleKey: "service-key"},
	}

	c, err := supabase.New(cfg, opts...)
	require.NoError(t, err)

	return c, srv
}

func TestUploadSignFetchDelete(t *testing.T) {
	ctx := context.Background()
	c, srv := newClient(t)

	key, err := c.Upload(ctx, "flowvault/flows/TI-001/v1/app_01h.css", []byte("body{}"), "text/css")
	require.NoError(t, err)
	assert.Equal(t, "flowvault/flows/TI-001/v1/app_01h.css", key)

	data, mime, ok := srv.Object("flows/" + key)
	require.True(t, ok)
	assert.Equal(t, "body{}", string(data))
	assert.Equal(t, "text/css", mime)

	u, err := c.Sign(ctx, key, time.Hour)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, srv.URL+"/storage/v1/object/sign/flows/"), u)
	assert.Contains(t, u, "token=tok-3600")

	got, err := c.Fetch(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(got))

	require.NoError(t, c.Delete(ctx, key))
	assert.Equal(t, 0, srv.Len())

	// 已删除的对象再次删除视为成功.
	require.NoError(t, c.Delete(ctx, key))
}

func TestKeyWithSpaces(t *testing.T) {
	ctx := context.Background()
	c, srv := newClient(t)

	key, err := c.Upload(ctx, "p/my file_01.html", []byte("<p>x</p>"), "text/html")
	require.NoError(t, err)

	_, _, ok := srv.Object("flows/p/my file_01.html")
	require.True(t, ok)

	u, err := c.Sign(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Contains(t, u, "my%20file_01.html")

	got, err := c.Fetch(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, "<p>x</p>", string(got))
}

func TestErrorsAreClassified(t *testing.T) {
	ctx := context.Background()
	c, srv := newClient(t)

	srv.FailNext("upload", http.StatusInternalServerError)
	_, err := c.Upload(ctx, "a.css", []byte("x"), "text/css")
	require.ErrorIs(t, err, bundle.ErrUploadFailed)

	_, err = c.Sign(ctx, "missing.css", time.Hour)
	require.ErrorIs(t, err, bundle.ErrSigningFailed)

	_, err = c.Fetch(ctx, srv.URL+"/storage/v1/object/sign/flows/missing.css?token=tok-1")
	require.ErrorIs(t, err, bundle.ErrFetchFailed)

	srv.FailNext("delete", http.StatusForbidden)
	err = c.Delete(ctx, "a.css")
	require.ErrorIs(t, err, bundle.ErrDeleteFailed)
}

func TestUnauthorized(t *testing.T) {
	srv := supabasetest.NewServer("right-key")
	t.Cleanup(srv.Close)

	c, err := supabase.New(&configs.StorageConfig{
		Bucket:   "flows",
		Supabase: configs.SupabaseConfig{URL: srv.URL, ServiceRoleKey: "wrong-key"},
	})
	require.NoError(t, err)

	_, err = c.Upload(context.Background(), "a.css", []byte("x"), "text/css")
	require.ErrorIs(t, err, bundle.ErrUploadFailed)
	assert.Contains(t, err.Error(), "401")
}

func TestBreakerOpens(t *testing.T) {
	ctx := context.Background()
	c, srv := newClient(t, supabase.WithBreaker(configs.CircuitBreakerConfig{
		Enabled:           true,
		FailureRate:       0.5,
		MinRequests:       2,
		IntervalSeconds:   60,
		TimeoutSeconds:    60,
		MaxRequestsInHalf: 1,
	}))

	for range 2 {
		srv.FailNext("upload", http.StatusBadGateway)
		_, err := c.Upload(ctx, "a.css", []byte("x"), "text/css")
		require.Error(t, err)
	}

	_, err := c.Upload(ctx, "a.css", []byte("x"), "text/css")
	require.ErrorIs(t, err, bundle.ErrUploadFailed)
	assert.Contains(t, err.Error(), "circuit breaker is open")
	assert.Equal(t, 0, srv.Len())
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := supabase.New(&configs.StorageConfig{Bucket: "b"})
	require.Error(t, err)

	_, err = supabase.New(&configs.StorageConfig{Bucket: "b", Supabase: configs.SupabaseConfig{URL: "http://x"}})
	require.Error(t, err)
}

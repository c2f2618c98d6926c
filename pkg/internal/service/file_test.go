package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/flowvault/pkg/internal/bundle"
	"github.com/yeisme/flowvault/pkg/internal/model"
	"github.com/yeisme/flowvault/pkg/internal/service"
)

func TestSignedURL_Expiry(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	resp := e.publish(t, "site", siteArchive(t))
	css := e.fileByPath(t, resp.Version.ID, "css/app.css")

	got, err := e.files().SignedURL(ctx, css.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 3600, got.ExpiresIn)
	assert.Contains(t, got.URL, "token=tok-3600")

	got, err = e.files().SignedURL(ctx, css.ID, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 604800, got.ExpiresIn)

	_, err = e.files().SignedURL(ctx, 777, 0)
	require.ErrorIs(t, err, bundle.ErrFileNotFound)

	e.srv.FailNext("sign", 500)

	_, err = e.files().SignedURL(ctx, css.ID, 0)
	require.ErrorIs(t, err, bundle.ErrSigningFailed)
}

func TestDownload(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	resp := e.publish(t, "site", siteArchive(t))
	logo := e.fileByPath(t, resp.Version.ID, "img/logo.png")

	url, f, err := e.files().Download(ctx, logo.ID)
	require.NoError(t, err)
	assert.Equal(t, "logo.png", f.Name)

	data, err := e.deps.Gateway.Fetch(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG logo", string(data))
}

func TestListVersionFiles(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	resp := e.publish(t, "site", siteArchive(t))

	files, err := e.files().ListVersionFiles(ctx, resp.Flow.ID, 1)
	require.NoError(t, err)
	require.Len(t, files, 4)

	for _, f := range files {
		assert.NotEmpty(t, f.URL, f.OriginalPath)
	}

	_, err = e.files().ListVersionFiles(ctx, resp.Flow.ID, 2)
	require.ErrorIs(t, err, bundle.ErrVersionNotFound)
}

func TestServeByPath(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	resp := e.publish(t, "site", buildZip(t, map[string]string{
		"index.html":        "<p>x</p>",
		"site/css/app.css":  "body{}",
		"site/img/logo.png": "png-bytes",
	}))

	tests := []struct {
		name string
		rel  string
		want string
	}{
		{"exact", "site/css/app.css", "site/css/app.css"},
		{"dot slash and query", "./site/css/app.css?v=3", "site/css/app.css"},
		{"suffix", "css/app.css", "site/css/app.css"},
		{"contains", "logo", "site/img/logo.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asset, err := e.files().ServeByPath(ctx, resp.Flow.ID, 1, tt.rel)
			require.NoError(t, err)
			assert.Equal(t, tt.want, asset.File.OriginalPath)
			assert.NotEmpty(t, asset.Data)
			assert.Empty(t, asset.RedirectURL)
		})
	}

	_, err := e.files().ServeByPath(ctx, resp.Flow.ID, 1, "missing.js")
	require.ErrorIs(t, err, bundle.ErrFileNotFound)

	// 超过代理上限的文件改为重定向.
	e.deps.Bundle.ProxyMaxBytes = 4

	asset, err := e.files().ServeByPath(ctx, resp.Flow.ID, 1, "img/logo.png")
	require.NoError(t, err)
	assert.Nil(t, asset.Data)
	assert.Contains(t, asset.RedirectURL, "/storage/v1/object/sign/flows/")
}

func TestPurgeDeleted(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	keep := e.publish(t, "keep", buildZip(t, map[string]string{"index.html": "<p>keep</p>"}))
	gone := e.publish(t, "gone", siteArchive(t))
	require.Equal(t, 5, e.srv.Len())

	require.NoError(t, e.flows().Delete(ctx, gone.Flow.ID, service.Actor{Email: owner}))

	// 宽限期内不清理.
	report, err := e.files().PurgeDeleted(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, report.Objects)
	assert.Equal(t, 5, e.srv.Len())

	e.srv.FailNext("delete", 500)

	report, err = e.files().PurgeDeleted(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Objects)
	assert.Equal(t, 1, report.Failed)
	assert.Zero(t, report.Versions, "version still has a file pending purge")
	assert.Equal(t, 2, e.srv.Len())

	report, err = e.files().PurgeDeleted(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Objects)
	assert.Zero(t, report.Failed)
	assert.EqualValues(t, 1, report.Versions)
	assert.EqualValues(t, 1, report.Flows)
	assert.Equal(t, 1, e.srv.Len())

	var flows, files int64
	require.NoError(t, e.db.Unscoped().Model(&model.Flow{}).Count(&flows).Error)
	require.NoError(t, e.db.Unscoped().Model(&model.File{}).Count(&files).Error)
	assert.EqualValues(t, 1, flows)
	assert.EqualValues(t, 1, files)

	out, err := e.renders().RenderPrimary(ctx, keep.Flow.ID, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "keep")
}

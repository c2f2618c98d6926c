package service_test

import (
	"bytes"
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeisme/flowvault/pkg/configs"
	"github.com/yeisme/flowvault/pkg/internal/model"
	"github.com/yeisme/flowvault/pkg/internal/service"
	"github.com/yeisme/flowvault/pkg/internal/storage/supabase"
	"github.com/yeisme/flowvault/pkg/internal/storage/supabase/supabasetest"
	"github.com/yeisme/flowvault/pkg/internal/types"
)

const (
	owner = "ana@example.com"
	other = "bruno@example.com"
)

var dbSeq atomic.Int64

// env 内存 SQLite + 内存 Supabase Storage.
type env struct {
	deps service.Deps
	srv  *supabasetest.Server
	db   *gorm.DB
}

func newEnv(t *testing.T) *env {
	t.Helper()

	srv := supabasetest.NewServer("test-key")
	t.Cleanup(srv.Close)

	gw, err := supabase.New(&configs.StorageConfig{
		Type:     configs.StorageTypeSupabase,
		Bucket:   "flows",
		Timeout:  5,
		Supabase: configs.SupabaseConfig{URL: srv.URL, ServiceRoleKey: "test-key"},
	})
	require.NoError(t, err)

	dsn := fmt.Sprintf("file:service_%d?mode=memory&cache=shared", dbSeq.Add(1))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.Models()...))

	nop := zerolog.Nop()
	e := &env{
		deps: service.Deps{
			DB:      db,
			Gateway: gw,
			Bundle:  configs.DefaultBundleConfig(),
			Logger:  &nop,
		},
		srv: srv,
		db:  db,
	}

	_, err = service.NewSectorServiceWith(e.deps).Seed(context.Background(), []configs.SectorSeed{
		{Code: "TI", Name: "Tecnologia da Informação"},
		{Code: "RH", Name: "Recursos Humanos"},
	})
	require.NoError(t, err)

	return e
}

func (e *env) flows() *service.FlowService   { return service.NewFlowServiceWith(e.deps) }
func (e *env) renders() *service.RenderService { return service.NewRenderServiceWith(e.deps) }
func (e *env) files() *service.FileService   { return service.NewFileServiceWith(e.deps) }

// publish 以 owner 身份发布压缩包.
func (e *env) publish(t *testing.T, title string, archive []byte) *types.PublishResponse {
	t.Helper()

	resp, err := e.flows().Publish(context.Background(),
		&types.PublishFlowRequest{Title: title, SectorCode: "TI"},
		service.Upload{Name: "bundle.zip", Data: archive},
		service.Actor{Email: owner},
	)
	require.NoError(t, err)

	return resp
}

func (e *env) fileByPath(t *testing.T, versionID uint, p string) model.File {
	t.Helper()

	var f model.File
	require.NoError(t, e.db.Where("version_id = ? AND original_path = ?", versionID, p).First(&f).Error)

	return f
}

func buildZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer

	zw := zip.NewWriter(&buf)

	for name, body := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)

		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}

	require.NoError(t, zw.Close())

	return buf.Bytes()
}

const indexHTML = `<!DOCTYPE html>
<html><head>
<link rel="stylesheet" href="css/app.css">
<style>body { background: url("img/bg.png"); }</style>
</head><body>
<img src="./img/logo.png">
<a href="https://example.com/ext">external</a>
<a href="#top">top</a>
</body></html>`

func siteArchive(t *testing.T) []byte {
	t.Helper()

	return buildZip(t, map[string]string{
		"index.html":           indexHTML,
		"css/app.css":          `.logo { background: url(../img/logo.png) }`,
		"img/logo.png":         "\x89PNG logo",
		"img/bg.png":           "\x89PNG bg",
		"__MACOSX/._index.html": "junk",
		".DS_Store":            "junk",
	})
}

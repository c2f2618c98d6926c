package handle_test

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeisme/flowvault/pkg/api"
	"github.com/yeisme/flowvault/pkg/configs"
	"github.com/yeisme/flowvault/pkg/internal/model"
	"github.com/yeisme/flowvault/pkg/internal/service"
	"github.com/yeisme/flowvault/pkg/internal/storage"
	"github.com/yeisme/flowvault/pkg/internal/storage/db"
	"github.com/yeisme/flowvault/pkg/internal/storage/supabase"
	"github.com/yeisme/flowvault/pkg/internal/storage/supabase/supabasetest"
	"github.com/yeisme/flowvault/pkg/internal/types"
	"github.com/yeisme/flowvault/pkg/middleware"
)

const owner = "ana@example.com"

var dbSeq atomic.Int64

type server struct {
	engine *gin.Engine
	srv    *supabasetest.Server
}

func newServer(t *testing.T) *server {
	t.Helper()

	gin.SetMode(gin.TestMode)
	require.NoError(t, configs.InitConfig(t.TempDir()))

	srv := supabasetest.NewServer("test-key")
	t.Cleanup(srv.Close)

	gw, err := supabase.New(&configs.StorageConfig{
		Type:     configs.StorageTypeSupabase,
		Bucket:   "flows",
		Timeout:  5,
		Supabase: configs.SupabaseConfig{URL: srv.URL, ServiceRoleKey: "test-key"},
	})
	require.NoError(t, err)

	dsn := fmt.Sprintf("file:handle_%d?mode=memory&cache=shared", dbSeq.Add(1))

	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	client := db.Wrap(gdb)
	require.NoError(t, client.Migrate(context.Background(), model.Models()...))

	mgr := &storage.Manager{DB: client, Gateway: gw}

	_, err = service.NewSectorServiceWith(service.Deps{DB: gdb}).Seed(context.Background(), configs.GetConfig().Bundle.Sectors)
	require.NoError(t, err)

	auth := configs.GetConfig().Auth
	auth.Enabled = false
	auth.AdminEmails = []string{"root@example.com"}

	engine := gin.New()
	engine.Use(middleware.StorageMiddleware(mgr), middleware.AuthMiddleware(auth))
	api.RegisterGroup(engine)

	return &server{engine: engine, srv: srv}
}

func (s *server) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	return w
}

func (s *server) get(path string) *httptest.ResponseRecorder {
	return s.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func uploadRequest(t *testing.T, target string, fields map[string]string, name string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer

	mw := multipart.NewWriter(&body)

	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}

	if name != "" {
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)

		_, err = fw.Write(data)
		require.NoError(t, err)
	}

	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Auth-Request-Email", owner)

	return req
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

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &v), w.Body.String())

	return v
}

func (s *server) publish(t *testing.T) types.PublishResponse {
	t.Helper()

	archive := buildZip(t, map[string]string{
		"site/index.html":   `<link href="css/app.css"><img src="img/logo.png"><a href="#top">top</a>`,
		"site/css/app.css":  "body{}",
		"site/img/logo.png": "png",
	})

	w := s.do(uploadRequest(t, "/api/v1/flows",
		map[string]string{"title": "Onboarding", "sector_code": "ti", "tags": "rh, onboarding"},
		"site.zip", archive))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	return decode[types.PublishResponse](t, w)
}

func TestPublishAndRender(t *testing.T) {
	s := newServer(t)
	resp := s.publish(t)

	assert.Equal(t, "TI-001", resp.Flow.Code)
	assert.Equal(t, 1, resp.Version.Number)
	assert.Equal(t, 3, resp.Report.Succeeded)

	w := s.get(fmt.Sprintf("/api/v1/flows/%d/render", resp.Flow.ID))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), `href="`+s.srv.URL+"/storage/v1/object/sign/flows/")
	assert.Contains(t, w.Body.String(), `href="#top"`)

	w = s.get(fmt.Sprintf("/api/v1/flows/%d/render?version=1", resp.Flow.ID))
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.get(fmt.Sprintf("/api/v1/flows/%d/render?version=x", resp.Flow.ID))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.get(fmt.Sprintf("/api/v1/flows/%d/render?version=5", resp.Flow.ID))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFlowQueries(t *testing.T) {
	s := newServer(t)
	resp := s.publish(t)

	w := s.get("/api/v1/flows?sector=TI&q=onboarding")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	list := decode[types.FlowListResponse](t, w)
	assert.EqualValues(t, 1, list.Total)

	w = s.get("/api/v1/flows?status=bogus")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.get(fmt.Sprintf("/api/v1/flows/%d", resp.Flow.ID))
	require.Equal(t, http.StatusOK, w.Code)

	detail := decode[types.FlowDetail](t, w)
	require.NotNil(t, detail.Primary)
	assert.Equal(t, "site/index.html", detail.Primary.OriginalPath)
	assert.NotEmpty(t, detail.Primary.URL)
	assert.Len(t, detail.Files, 3)

	w = s.get("/api/v1/flows/999")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.get("/api/v1/flows/abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.get("/api/v1/sectors")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"TI"`)
}

func TestPublishErrors(t *testing.T) {
	s := newServer(t)

	tests := []struct {
		name   string
		fields map[string]string
		file   string
		data   []byte
		want   int
	}{
		{"missing file", map[string]string{"title": "x", "sector_code": "TI"}, "", nil, http.StatusBadRequest},
		{"missing title", map[string]string{"sector_code": "TI"}, "a.pdf", []byte("%PDF"), http.StatusBadRequest},
		{"unknown sector", map[string]string{"title": "x", "sector_code": "ZZ"}, "a.pdf", []byte("%PDF"), http.StatusNotFound},
		{"broken archive", map[string]string{"title": "x", "sector_code": "TI"}, "a.zip", []byte("not a zip"), http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(uploadRequest(t, "/api/v1/flows", tt.fields, tt.file, tt.data))
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestVersionAndOwnership(t *testing.T) {
	s := newServer(t)
	resp := s.publish(t)
	base := fmt.Sprintf("/api/v1/flows/%d", resp.Flow.ID)

	w := s.do(uploadRequest(t, base+"/versions", map[string]string{"notes": "v2"},
		"index.html", []byte("<p>second</p>")))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 2, decode[types.PublishResponse](t, w).Version.Number)

	w = s.get(base + "/render")
	assert.Contains(t, w.Body.String(), "second")

	req := httptest.NewRequest(http.MethodPatch, base+"/status?status=published", nil)
	req.Header.Set("X-Auth-Request-Email", "bruno@example.com")
	w = s.do(req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodPatch, base+"/status?status=published", nil)
	req.Header.Set("X-Auth-Request-Email", "bruno@example.com")
	req.Header.Set("X-Role", "admin")
	w = s.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"published"`)

	// 管理员名单中的邮箱无需 X-Role.
	req = httptest.NewRequest(http.MethodPatch, base+"/status?status=archived", nil)
	req.Header.Set("X-Auth-Request-Email", "Root@Example.com")
	w = s.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	req = httptest.NewRequest(http.MethodDelete, base, nil)
	req.Header.Set("X-Auth-Request-Email", owner)
	w = s.do(req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.get(base)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFileRoutes(t *testing.T) {
	s := newServer(t)
	resp := s.publish(t)

	w := s.get(fmt.Sprintf("/api/v1/flows/%d/versions/1/files", resp.Flow.ID))
	require.Equal(t, http.StatusOK, w.Code)

	files := decode[map[string][]types.FileInfo](t, w)["files"]
	require.Len(t, files, 3)

	var cssID, indexID uint

	for _, f := range files {
		switch f.OriginalPath {
		case "site/css/app.css":
			cssID = f.ID
		case "site/index.html":
			indexID = f.ID
		}
	}

	w = s.get(fmt.Sprintf("/api/v1/flows/%d/versions/1/assets/css/app.css", resp.Flow.ID))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "body{}", w.Body.String())
	assert.Equal(t, "public, max-age=3600", w.Header().Get("Cache-Control"))

	w = s.get(fmt.Sprintf("/api/v1/flows/%d/versions/1/assets/nope.js", resp.Flow.ID))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.get(fmt.Sprintf("/api/v1/files/%d/url?expires_in=120", cssID))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 120, decode[types.SignedURLResponse](t, w).ExpiresIn)

	w = s.get(fmt.Sprintf("/api/v1/files/%d/url?expires_in=9999999", cssID))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.get(fmt.Sprintf("/api/v1/files/%d/download", cssID))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), s.srv.URL))

	w = s.get(fmt.Sprintf("/api/v1/files/%d/render", cssID))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.get(fmt.Sprintf("/api/v1/files/%d/preview", indexID))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `href="css/app.css"`)

	s.srv.FailNext("sign", http.StatusInternalServerError)

	w = s.get(fmt.Sprintf("/api/v1/files/%d/url", cssID))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHealth(t *testing.T) {
	s := newServer(t)

	// events 默认关闭，mq 视为健康
	for _, p := range []string{"/api/v1/health", "/api/v1/health/db", "/api/v1/health/storage", "/api/v1/health/mq"} {
		w := s.get(p)
		assert.Equal(t, http.StatusOK, w.Code, p)
	}

	w := s.get("/api/v1/health/kv")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = s.get("/api/v1/health/etcd")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// kv 可选，缺失不影响就绪
	w = s.get("/api/v1/health/ready")
	require.Equal(t, http.StatusOK, w.Code)

	var ready struct {
		Status     string `json:"status"`
		Components []struct {
			Component string `json:"component"`
			Status    string `json:"status"`
		} `json:"components"`
	}
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &ready))
	assert.Equal(t, "ok", ready.Status)
	require.Len(t, ready.Components, 4)
	assert.Equal(t, "db", ready.Components[0].Component)
	assert.Equal(t, "unhealthy", ready.Components[1].Status, "kv")
}

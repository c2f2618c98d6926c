package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/yeisme/flowvault/pkg/configs"
	"github.com/yeisme/flowvault/pkg/middleware"
)

func identityEngine(conf configs.AuthConfig, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)

	e := gin.New()
	e.Use(middleware.AuthMiddleware(conf))

	h := append(append([]gin.HandlerFunc{}, extra...), func(c *gin.Context) {
		id := middleware.GetIdentity(c)
		c.String(http.StatusOK, id.Email+"|"+id.Role.String())
	})
	e.GET("/api/v1/flows", h...)
	e.GET("/api/v1/health", h...)

	return e
}

func call(e *gin.Engine, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	return w
}

func TestAuthMiddleware(t *testing.T) {
	conf := configs.AuthConfig{
		Enabled:         true,
		SkipPaths:       []string{"/api/v1/health"},
		AdminEmails:     []string{"root@example.com"},
		TrustRoleHeader: true,
	}

	tests := []struct {
		name     string
		conf     func(c configs.AuthConfig) configs.AuthConfig
		path     string
		headers  map[string]string
		wantCode int
		wantBody string
	}{
		{"missing identity", nil, "/api/v1/flows", nil, http.StatusUnauthorized, ""},
		{"skipped path", nil, "/api/v1/health", nil, http.StatusOK, "|viewer"},
		{"proxy header", nil, "/api/v1/flows", map[string]string{"X-Auth-Request-Email": "ana@example.com"},
			http.StatusOK, "ana@example.com|publisher"},
		{"forwarded header", nil, "/api/v1/flows", map[string]string{"X-Forwarded-Email": "ana@example.com"},
			http.StatusOK, "ana@example.com|publisher"},
		{"admin list", nil, "/api/v1/flows", map[string]string{"X-Auth-Request-Email": "ROOT@example.com"},
			http.StatusOK, "ROOT@example.com|admin"},
		{"trusted role header", nil, "/api/v1/flows",
			map[string]string{"X-Auth-Request-Email": "ana@example.com", "X-Role": "admin"},
			http.StatusOK, "ana@example.com|admin"},
		{"untrusted role header",
			func(c configs.AuthConfig) configs.AuthConfig { c.TrustRoleHeader = false; return c },
			"/api/v1/flows", map[string]string{"X-Auth-Request-Email": "ana@example.com", "X-Role": "admin"},
			http.StatusOK, "ana@example.com|publisher"},
		{"dev query user",
			func(c configs.AuthConfig) configs.AuthConfig { c.DevAllowQuery = true; return c },
			"/api/v1/flows?user=dev@example.com", nil, http.StatusOK, "dev@example.com|publisher"},
		{"query ignored without dev mode", nil, "/api/v1/flows?user=dev@example.com", nil,
			http.StatusUnauthorized, ""},
		{"anonymous when disabled",
			func(c configs.AuthConfig) configs.AuthConfig { c.Enabled = false; return c },
			"/api/v1/flows", nil, http.StatusOK, "|viewer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := conf
			if tt.conf != nil {
				c = tt.conf(conf)
			}

			w := call(identityEngine(c), tt.path, tt.headers)
			assert.Equal(t, tt.wantCode, w.Code)

			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
			}
		})
	}
}

func TestRequireMinRole(t *testing.T) {
	conf := configs.AuthConfig{Enabled: true, TrustRoleHeader: true}
	e := identityEngine(conf, middleware.RequireMinRole(middleware.RoleAdmin))

	w := call(e, "/api/v1/flows", map[string]string{"X-Auth-Request-Email": "ana@example.com"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(e, "/api/v1/flows", map[string]string{"X-Auth-Request-Email": "ana@example.com", "X-Role": "Admin"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, middleware.RoleAdmin, middleware.ParseRole(" ADMIN "))
	assert.Equal(t, middleware.RolePublisher, middleware.ParseRole("editor"))
	assert.Equal(t, middleware.RoleViewer, middleware.ParseRole("root"))
	assert.Equal(t, "viewer", middleware.Role(0).String())
}

func TestRateLimitMiddleware(t *testing.T) {
	conf := configs.AuthConfig{Enabled: true}

	e := identityEngine(conf, middleware.RateLimitMiddleware(configs.RateLimitConfig{
		Enabled: true, RPS: 0.001, Burst: 1, Key: "email", ExemptPaths: []string{"/api/v1/health"},
	}))

	ana := map[string]string{"X-Auth-Request-Email": "ana@example.com"}
	bruno := map[string]string{"X-Auth-Request-Email": "bruno@example.com"}

	assert.Equal(t, http.StatusOK, call(e, "/api/v1/flows", ana).Code)

	w := call(e, "/api/v1/flows", ana)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1000", w.Header().Get("Retry-After"))

	// 不同邮箱各自计数.
	assert.Equal(t, http.StatusOK, call(e, "/api/v1/flows", bruno).Code)

	// 豁免路径不计数.
	for range 3 {
		assert.Equal(t, http.StatusOK, call(e, "/api/v1/health", ana).Code)
	}

	disabled := identityEngine(conf, middleware.RateLimitMiddleware(configs.RateLimitConfig{Enabled: false}))
	for range 3 {
		assert.Equal(t, http.StatusOK, call(disabled, "/api/v1/flows", ana).Code)
	}
}

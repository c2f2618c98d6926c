package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	ctxPkg "github.com/yeisme/flowvault/pkg/context"
	"github.com/yeisme/flowvault/pkg/middleware"
)

func TestGinLoggerMiddleware_RequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var seen string

	e := gin.New()
	e.Use(middleware.GinLoggerMiddleware())
	e.GET("/x", func(c *gin.Context) {
		seen = ctxPkg.RequestID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	generated := w.Header().Get(middleware.RequestIDHeader)
	assert.Len(t, generated, 26)
	assert.Equal(t, generated, seen)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(middleware.RequestIDHeader, "client-42")

	w = httptest.NewRecorder()
	e.ServeHTTP(w, req)

	assert.Equal(t, "client-42", w.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, "client-42", seen)
}

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

func TestCircuitBreaker_PerRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)

	e := gin.New()
	e.Use(middleware.CircuitBreakerMiddleware(configs.CircuitBreakerConfig{
		Enabled:           true,
		FailureRate:       0.5,
		MinRequests:       2,
		TimeoutSeconds:    60,
		MaxRequestsInHalf: 1,
		FailureStatuses:   []int{http.StatusBadGateway},
	}))
	e.GET("/api/v1/flows/:id/render", func(c *gin.Context) {
		c.JSON(http.StatusBadGateway, gin.H{"error": "storage unavailable"})
	})
	e.GET("/api/v1/flows", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{}) })

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

		return w
	}

	assert.Equal(t, http.StatusBadGateway, get("/api/v1/flows/1/render").Code)
	assert.Equal(t, http.StatusBadGateway, get("/api/v1/flows/2/render").Code)

	// 同一路由模板共享熔断器.
	w := get("/api/v1/flows/3/render")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, get("/api/v1/flows").Code)
}

func TestCircuitBreakerConfig(t *testing.T) {
	cfg := configs.CircuitBreakerConfig{FailureRate: 0.5, MinRequests: 4}

	assert.False(t, cfg.ShouldTrip(3, 3))
	assert.True(t, cfg.ShouldTrip(4, 2))
	assert.False(t, cfg.ShouldTrip(4, 1))

	assert.True(t, cfg.IsFailureStatus(http.StatusInternalServerError))
	assert.False(t, cfg.IsFailureStatus(http.StatusNotFound))

	cfg.FailureStatuses = []int{http.StatusBadGateway}
	assert.False(t, cfg.IsFailureStatus(http.StatusInternalServerError))
}

package middleware

import (
	"crypto/rand"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid"
	"github.com/rs/zerolog"

	ctxPkg "github.com/yeisme/flowvault/pkg/context"
	"github.com/yeisme/flowvault/pkg/log"
)

// RequestIDHeader 请求 ID 头，客户端未提供时生成 ULID.
const RequestIDHeader = "X-Request-Id"

// GinLoggerMiddleware 每个请求一条访问日志. 5xx 记为 error，4xx 记为 warn，
// 健康检查只在失败时记录.
func GinLoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = ulid.MustNew(ulid.Timestamp(start), rand.Reader).String()
		}

		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(ctxPkg.WithRequestID(c.Request.Context(), id))

		c.Next()

		status := c.Writer.Status()
		path := c.Request.URL.Path

		if isHealthPath(path) && status < 400 {
			return
		}

		level := zerolog.InfoLevel

		switch {
		case status >= 500:
			level = zerolog.ErrorLevel
		case status >= 400:
			level = zerolog.WarnLevel
		}

		l := ctxPkg.WithTraceContext(c.Request.Context(), log.Component("http"))

		event := l.WithLevel(level).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("method", c.Request.Method).
			Str("route", c.FullPath()).
			Str("path", path).
			Str("client_ip", c.ClientIP()).
			Int("bytes", c.Writer.Size())

		if q := c.Request.URL.RawQuery; q != "" {
			event = event.Str("query", q)
		}

		if id := GetIdentity(c); id.Email != "" {
			event = event.Str("user", id.Email)
		}

		if v := c.Writer.Header().Get("X-Cache"); v != "" {
			event = event.Str("cache", v)
		}

		if len(c.Errors) > 0 {
			event = event.Str("error", c.Errors.String())
		}

		event.Msg("http request")
	}
}

package middleware

import (
	"bytes"
	"context"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gin-gonic/gin"

	appcache "github.com/yeisme/flowvault/pkg/cache"
	"github.com/yeisme/flowvault/pkg/log"
	"github.com/yeisme/flowvault/pkg/metrics"
)

// BypassHeader 请求带该头时不读也不写渲染缓存.
const BypassHeader = "X-Cache-Bypass"

// RenderCacheConfig 渲染响应缓存配置.
type RenderCacheConfig struct {
	Cache        *appcache.Cache
	TTL          time.Duration
	VaryHeaders  []string // 参与缓存键的请求头
	MaxBodyBytes int      // 超过该大小的响应不缓存，0 表示不限
}

// renderEntry 缓存的渲染响应.
type renderEntry struct {
	Status       int    `json:"s"`
	ContentType  string `json:"ct"`
	CacheControl string `json:"cc,omitempty"`
	Body         []byte `json:"b"`
	ETag         string `json:"e"`
	StoredAt     int64  `json:"t"`
}

// RenderCacheMiddleware 缓存 GET/HEAD 的 200 响应，用于渲染与资源代理路由.
// 命中时返回 X-Cache: HIT 与 Age，If-None-Match 匹配时返回 304.
// 302 重定向与错误响应不缓存，签名 URL 会过期，TTL 需小于签名有效期.
func RenderCacheMiddleware(cfg RenderCacheConfig) gin.HandlerFunc {
	vary := append([]string(nil), cfg.VaryHeaders...)
	sort.Strings(vary)

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.Next()
			return
		}

		if c.GetHeader(BypassHeader) != "" {
			c.Header("X-Cache", "BYPASS")
			c.Next()

			return
		}

		ctx := c.Request.Context()
		key := renderKey(c, vary)

		if entry, err := appcache.Get[renderEntry](ctx, cfg.Cache, key); err == nil {
			metrics.RenderCache.WithLabelValues("hit").Inc()
			writeEntry(c, &entry, "HIT")

			return
		}

		buf := &bufferedWriter{ResponseWriter: c.Writer, status: http.StatusOK}
		origin := c.Writer
		c.Writer = buf

		c.Next()

		c.Writer = origin

		if buf.status != http.StatusOK || (cfg.MaxBodyBytes > 0 && buf.body.Len() > cfg.MaxBodyBytes) ||
			strings.Contains(strings.ToLower(buf.Header().Get("Cache-Control")), "no-store") {
			buf.flush()
			return
		}

		metrics.RenderCache.WithLabelValues("miss").Inc()

		entry := renderEntry{
			Status:       buf.status,
			ContentType:  buf.Header().Get("Content-Type"),
			CacheControl: buf.Header().Get("Cache-Control"),
			Body:         bytes.Clone(buf.body.Bytes()),
			ETag:         `"` + strconv.FormatUint(xxhash.Sum64(buf.body.Bytes()), 16) + `"`,
			StoredAt:     time.Now().UnixNano(),
		}

		go func(ctx context.Context) {
			if err := appcache.Set(ctx, cfg.Cache, key, entry, cfg.TTL); err != nil {
				l := log.Logger()
				l.Debug().Err(err).Str("key", key).Msg("render cache store failed")
			}
		}(context.WithoutCancel(ctx))

		writeEntry(c, &entry, "MISS")
	}
}

// renderKey render.<flowID>.<hash(method 路由 参数 query vary)>，按流程分组以便发布或删除时失效.
func renderKey(c *gin.Context, vary []string) string {
	h := xxhash.New()
	_, _ = h.WriteString(c.Request.Method)
	_, _ = h.WriteString(" ")
	_, _ = h.WriteString(c.Request.URL.Path)

	if q := c.Request.URL.Query(); len(q) > 0 {
		_, _ = h.WriteString("?")
		_, _ = h.WriteString(q.Encode()) // Encode 按键排序
	}

	for _, name := range vary {
		_, _ = h.WriteString("|" + name + "=" + c.GetHeader(name))
	}

	scope := c.Param("id")
	if _, err := strconv.ParseUint(scope, 10, 64); err != nil {
		scope = ""
	}

	return appcache.RenderKey(scope, strconv.FormatUint(h.Sum64(), 16))
}

func writeEntry(c *gin.Context, e *renderEntry, state string) {
	h := c.Writer.Header()
	h.Set("ETag", e.ETag)
	h.Set("X-Cache", state)

	if e.CacheControl != "" {
		h.Set("Cache-Control", e.CacheControl)
	}

	if state == "HIT" {
		h.Set("Age", strconv.FormatInt(int64(time.Since(time.Unix(0, e.StoredAt)).Seconds()), 10))
	}

	c.Abort()

	if match := c.GetHeader("If-None-Match"); match != "" && match == e.ETag {
		c.Status(http.StatusNotModified)
		c.Writer.WriteHeaderNow()

		return
	}

	if c.Request.Method == http.MethodHead {
		h.Set("Content-Type", e.ContentType)
		c.Status(e.Status)
		c.Writer.WriteHeaderNow()

		return
	}

	c.Data(e.Status, e.ContentType, e.Body)
}

// bufferedWriter 暂存下游响应，决定是否缓存后再写出.
type bufferedWriter struct {
	gin.ResponseWriter

	status  int
	body    bytes.Buffer
	written bool
}

func (w *bufferedWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
	}
}

func (w *bufferedWriter) WriteHeaderNow() { w.written = true }

func (w *bufferedWriter) Write(b []byte) (int, error) {
	w.written = true
	return w.body.Write(b)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	w.written = true
	return w.body.WriteString(s)
}

func (w *bufferedWriter) Status() int   { return w.status }
func (w *bufferedWriter) Size() int     { return w.body.Len() }
func (w *bufferedWriter) Written() bool { return w.written }

// flush 原样写出暂存的响应.
func (w *bufferedWriter) flush() {
	w.ResponseWriter.WriteHeader(w.status)
	w.ResponseWriter.WriteHeaderNow()
	_, _ = w.ResponseWriter.Write(w.body.Bytes())
}

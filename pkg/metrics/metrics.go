// Package metrics 定义服务的 Prometheus 指标并在主路由上暴露.
//
//	metrics.IngestEntries.WithLabelValues(metrics.ResultSucceeded).Add(12)
//	metrics.RenderTotal.WithLabelValues("primary", "ok").Inc()
package metrics

import (
	"net/http"
	_ "net/http/pprof" // 注册到 http.DefaultServeMux
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yeisme/flowvault/pkg/configs"
)

var (
	// RequestCounter HTTP 请求数，endpoint 为路由模板.
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration HTTP 请求耗时.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// InFlight 正在处理的请求数.
	InFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "HTTP requests currently being served",
		},
	)

	// IngestEntries 压缩包条目处理结果计数，result 取 succeeded/failed/skipped/ignored.
	IngestEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowvault_ingest_entries_total",
			Help: "Archive entries processed by result",
		},
		[]string{"result"},
	)

	// IngestDuration 单个压缩包导入耗时.
	IngestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flowvault_ingest_duration_seconds",
			Help:    "Archive ingestion duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	// RenderTotal 渲染次数，kind 取 primary/file，result 取 ok/error.
	RenderTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowvault_render_total",
			Help: "Markup renders by kind and result",
		},
		[]string{"kind", "result"},
	)

	// SignFailures 生成签名 URL 失败次数.
	SignFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flowvault_sign_failures_total",
			Help: "Signed URL generation failures",
		},
	)

	// URLMapCache 路径->URL 映射缓存命中情况，result 取 hit/miss.
	URLMapCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowvault_url_map_cache_total",
			Help: "Path to signed URL map cache lookups",
		},
		[]string{"result"},
	)

	// RenderCache 渲染响应缓存命中情况，result 取 hit/miss.
	RenderCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowvault_render_cache_total",
			Help: "Rendered response cache lookups",
		},
		[]string{"result"},
	)

	registry = prometheus.NewRegistry()
	initOnce sync.Once
)

// 导入结果标签.
const (
	ResultSucceeded = "succeeded"
	ResultFailed    = "failed"
	ResultSkipped   = "skipped"
	ResultIgnored   = "ignored"
)

// InitMetrics 注册全部指标，config.Labels 作为常量标签附加.
func InitMetrics(config configs.MetricsConfig) error {
	if !config.Enabled {
		return nil
	}

	var err error

	initOnce.Do(func() {
		reg := prometheus.WrapRegistererWith(prometheus.Labels(config.Labels), registry)

		cs := []prometheus.Collector{
			RequestCounter, RequestDuration, InFlight,
			IngestEntries, IngestDuration, RenderTotal, SignFailures, URLMapCache, RenderCache,
		}
		if config.RuntimeMetrics {
			cs = append(cs, collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		}

		for _, c := range cs {
			if err = reg.Register(c); err != nil {
				return
			}
		}
	})

	return err
}

// StartMetricsServer 在 engine 上挂载指标端点. gorm 插件注册在默认注册表，一并输出.
func StartMetricsServer(config configs.MetricsConfig, engine *gin.Engine) error {
	if !config.Enabled {
		return nil
	}

	path := config.Path
	if path == "" {
		path = "/metrics"
	}

	gatherers := prometheus.Gatherers{registry, prometheus.DefaultGatherer}
	engine.GET(path, gin.WrapH(promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{})))

	if config.Pprof {
		engine.GET("/debug/pprof/*any", gin.WrapH(http.DefaultServeMux))
	}

	return nil
}

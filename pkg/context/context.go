// Package context 拓展上下文功能，将日志、服务等集成到上下文中，方便在应用程序各处传递和使用.
package context

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeisme/flowvault/pkg/internal/bundle"
	"github.com/yeisme/flowvault/pkg/internal/storage"
	dbc "github.com/yeisme/flowvault/pkg/internal/storage/db"
	kvc "github.com/yeisme/flowvault/pkg/internal/storage/kv"
	mqc "github.com/yeisme/flowvault/pkg/internal/storage/mq"
)

type (
	managerKey   struct{}
	requestIDKey struct{}
)

// WithStorageManager 将 Manager 存储到 context 中.
func WithStorageManager(ctx context.Context, mgr *storage.Manager) context.Context {
	return context.WithValue(ctx, managerKey{}, mgr)
}

// WithRequestID 记录请求 ID，日志与事件负载会带上它.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID 取请求 ID，没有时返回空串.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// GetManager 从 context 中获取 Manager.
func GetManager(ctx context.Context) *storage.Manager {
	if mgr, ok := ctx.Value(managerKey{}).(*storage.Manager); ok {
		return mgr
	}

	return nil
}

// GetGateway 从 context 中获取对象存储网关.
func GetGateway(ctx context.Context) bundle.Gateway {
	if mgr := GetManager(ctx); mgr != nil {
		return mgr.GetGateway()
	}

	return nil
}

// GetDBClient 从 context 中获取 DB 客户端.
func GetDBClient(ctx context.Context) *dbc.Client {
	if mgr := GetManager(ctx); mgr != nil {
		return mgr.GetDBClient()
	}

	return nil
}

// GetMQClient 从 context 中获取 MQ 客户端.
func GetMQClient(ctx context.Context) *mqc.Client {
	if mgr := GetManager(ctx); mgr != nil {
		return mgr.GetMQClient()
	}

	return nil
}

// GetKVClient 从 context 中获取 KV 客户端.
func GetKVClient(ctx context.Context) *kvc.Client {
	if mgr := GetManager(ctx); mgr != nil {
		return mgr.GetKVClient()
	}

	return nil
}

// WithTraceContext 给 logger 附加 request_id 与 trace_id/span_id.
// span 结束后 SpanContext 仍然有效，访问日志在 span 结束后写入.
func WithTraceContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	id := RequestID(ctx)
	sc := trace.SpanContextFromContext(ctx)

	if id == "" && !sc.IsValid() {
		return logger
	}

	lc := logger.With()
	if id != "" {
		lc = lc.Str("request_id", id)
	}

	if sc.IsValid() {
		lc = lc.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
	}

	return lc.Logger()
}

// Package tracing 初始化 OpenTelemetry 导出器，并提供流程相关的 span 辅助函数.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeisme/flowvault/pkg/configs"
)

const tracerName = "github.com/yeisme/flowvault"

// span 属性键.
const (
	AttrFlowID    = attribute.Key("flowvault.flow.id")
	AttrFlowCode  = attribute.Key("flowvault.flow.code")
	AttrVersion   = attribute.Key("flowvault.version.number")
	AttrFileID    = attribute.Key("flowvault.file.id")
	AttrEntries   = attribute.Key("flowvault.ingest.entries")
	AttrSucceeded = attribute.Key("flowvault.ingest.succeeded")
)

var tracerProvider *sdktrace.TracerProvider

// InitTracer 按配置创建导出器与 TracerProvider，未启用时什么也不做.
func InitTracer(config configs.TracingConfig) error {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	if !config.Enabled {
		return nil
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(config.ServiceName),
		semconv.ServiceVersionKey.String(config.ServiceVersion),
	}
	for k, v := range config.ResourceLabels {
		attrs = append(attrs, attribute.String(k, v))
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(attrs...))
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := newExporter(config)
	if err != nil {
		return err
	}

	var batchOpts []sdktrace.BatchSpanProcessorOption
	if config.BatchTimeout > 0 {
		batchOpts = append(batchOpts, sdktrace.WithBatchTimeout(config.BatchTimeout))
	}

	if config.MaxBatchSize > 0 {
		batchOpts = append(batchOpts, sdktrace.WithMaxExportBatchSize(config.MaxBatchSize))
	}

	if config.MaxQueueSize > 0 {
		batchOpts = append(batchOpts, sdktrace.WithMaxQueueSize(config.MaxQueueSize))
	}

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, batchOpts...),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.SampleRate))),
	)

	otel.SetTracerProvider(tracerProvider)

	return nil
}

func newExporter(config configs.TracingConfig) (sdktrace.SpanExporter, error) {
	ctx := context.Background()

	var (
		exp sdktrace.SpanExporter
		err error
	)

	switch config.ExporterType {
	case "otlp-http":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(config.Endpoint)}
		if len(config.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(config.Headers))
		}

		if config.ExportTimeout > 0 {
			opts = append(opts, otlptracehttp.WithTimeout(config.ExportTimeout))
		}

		exp, err = otlptracehttp.New(ctx, opts...)
	case "otlp-grpc":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(config.Endpoint)}
		if config.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}

		if len(config.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(config.Headers))
		}

		if config.ExportTimeout > 0 {
			opts = append(opts, otlptracegrpc.WithTimeout(config.ExportTimeout))
		}

		exp, err = otlptracegrpc.New(ctx, opts...)
	case "zipkin":
		exp, err = zipkin.New(config.Endpoint)
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", config.ExporterType)
	}

	if err != nil {
		return nil, fmt.Errorf("create %s exporter: %w", config.ExporterType, err)
	}

	return exp, nil
}

// ShutdownTracer 刷出未导出的 span.
func ShutdownTracer(ctx context.Context) error {
	if tracerProvider != nil {
		return tracerProvider.Shutdown(ctx)
	}

	return nil
}

// StartSpan 开始一个 span，调用方负责 span.End().
func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, opts...)
}

// StartFlowSpan 开始一个带流程属性的 span，flowID 或 version 为 0 时省略对应属性.
func StartFlowSpan(ctx context.Context, op string, flowID uint, version int) (context.Context, trace.Span) {
	var attrs []attribute.KeyValue
	if flowID > 0 {
		attrs = append(attrs, AttrFlowID.Int64(int64(flowID)))
	}

	if version > 0 {
		attrs = append(attrs, AttrVersion.Int(version))
	}

	return StartSpan(ctx, "flowvault."+op, trace.WithAttributes(attrs...))
}

// End 按 err 设置状态后结束 span，便于 defer 调用.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.End()
}

// Package queue 定义业务事件的信封与发布器. 事件在流程发布、导入、删除与对象清理后发出，
// 消费方订阅 topics.go 中的主题.
//
// 信封为 JSON，header 之外的 payload 结构取决于主题:
//
//	{
//	  "header": {"topic": "fv.bundle.ingested", "trace_id": "...", "request_id": "...",
//	             "producer": "flowvault", "occurred_at": "2025-01-02T03:04:05.123456Z", "version": "v1"},
//	  "payload": {"flow": {"flow_id": 1, "code": "TI-001", "version": 2}, "succeeded": 42}
//	}
//
// 发布:
//
//	events := queue.NewPublisher(mqClient.Publisher(), cfg.Events)
//	_ = events.BundleIngested(payload, queue.WithSpan(ctx))
//
// occurred_at 为 UTC. 消费者应忽略未知字段，负载不兼容变更时提升 version.
package queue

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const (
	PayloadVersionV1 string = "v1"

	// DefaultProducer 未指定 WithProducer 时的生产者名.
	DefaultProducer = "flowvault"
)

// dedupNamespace 派生确定性消息 ID 的命名空间.
var dedupNamespace = uuid.MustParse("6f1c3e0a-4b7d-5a92-9c1e-f10a7a017e55")

// Option 调整事件头.
type Option func(*EventHeader)

// WithTraceID 显式设置 TraceID.
func WithTraceID(id string) Option { return func(h *EventHeader) { h.TraceID = id } }

// WithProducer 设置生产者名.
func WithProducer(p string) Option { return func(h *EventHeader) { h.Producer = p } }

// WithRequestID 关联触发事件的请求.
func WithRequestID(id string) Option { return func(h *EventHeader) { h.RequestID = id } }

// WithSpan 从 ctx 中的 span 取 TraceID，没有有效 span 时不改动.
func WithSpan(ctx context.Context) Option {
	return func(h *EventHeader) {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			h.TraceID = sc.TraceID().String()
		}
	}
}

// WithDedupKey 同一业务事件重复发布时消息 ID 相同，开启 track_msg_id 的 JetStream 只保留一条.
func WithDedupKey(key string) Option { return func(h *EventHeader) { h.dedupKey = key } }

// NewEventHeader 生成事件头，OccurredAt 取当前 UTC 时间.
func NewEventHeader(topic string, opts ...Option) EventHeader {
	h := EventHeader{
		Topic:      topic,
		Producer:   DefaultProducer,
		OccurredAt: time.Now().UTC(),
		Version:    PayloadVersionV1,
	}

	for _, opt := range opts {
		opt(&h)
	}

	return h
}

// Encode 信封编码为 JSON.
func Encode[T any](msg Message[T]) ([]byte, error) { return sonic.Marshal(msg) }

// Decode 从 JSON 解出信封.
func Decode[T any](b []byte) (Message[T], error) {
	var m Message[T]

	err := sonic.Unmarshal(b, &m)

	return m, err
}

// NewWatermillMessage 封装信封并把头部字段同步到元数据，消费方无需解码即可路由.
func NewWatermillMessage[T any](topic string, payload T, opts ...Option) (*message.Message, error) {
	header := NewEventHeader(topic, opts...)

	data, err := Encode(Message[T]{Header: header, Payload: payload})
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	if header.dedupKey != "" {
		id = uuid.NewSHA1(dedupNamespace, []byte(topic+"|"+header.dedupKey)).String()
	}

	msg := message.NewMessage(id, data)

	meta := map[string]string{
		"topic":       topic,
		"trace_id":    header.TraceID,
		"request_id":  header.RequestID,
		"producer":    header.Producer,
		"occurred_at": header.OccurredAt.Format(time.RFC3339Nano),
		"version":     header.Version,
	}
	for k, v := range meta {
		if v != "" {
			msg.Metadata.Set(k, v)
		}
	}

	return msg, nil
}

// ParseWatermillMessage 解出泛型负载.
func ParseWatermillMessage[T any](msg *message.Message) (Message[T], error) {
	return Decode[T](msg.Payload)
}

package queue

import "time"

// EventHeader 所有事件共用的头部.
type EventHeader struct {
	// Topic 不含前缀的主题名，消息转储后仍可定位来源.
	Topic string `json:"topic"`
	// TraceID 取自发布时的 span.
	TraceID string `json:"trace_id,omitempty"`
	// RequestID 触发事件的 HTTP 请求.
	RequestID string `json:"request_id,omitempty"`
	// Producer 生产者服务名或节点标识.
	Producer string `json:"producer,omitempty"`
	// OccurredAt 事件发生时间（UTC，RFC3339）.
	OccurredAt time.Time `json:"occurred_at"`
	Version    string    `json:"version,omitempty"`

	// dedupKey 非空时消息 ID 由它派生，JetStream 据此去重.
	dedupKey string
}

// Message 是统一的消息封装，Header + Payload.
// T 即不同主题对应的负载结构体.
type Message[T any] struct {
	Header  EventHeader `json:"header"`
	Payload T           `json:"payload"`
}

// -------------------------- 流程领域 --------------------------

// FlowRef 标识一个流程版本.
type FlowRef struct {
	FlowID  uint   `json:"flow_id"`
	Code    string `json:"code"`
	Version int    `json:"version,omitempty"`
}

// FlowPublishedPayload 流程或新版本发布.
type FlowPublishedPayload struct {
	Flow        FlowRef `json:"flow"`
	Title       string  `json:"title"`
	Sector      string  `json:"sector"`
	PublishedBy string  `json:"published_by,omitempty"`
	Files       int     `json:"files"`
}

// FlowStatusChangedPayload 流程状态变更.
type FlowStatusChangedPayload struct {
	Flow FlowRef `json:"flow"`
	From string  `json:"from"`
	To   string  `json:"to"`
	By   string  `json:"by,omitempty"`
}

// FlowDeletedPayload 流程被删除.
type FlowDeletedPayload struct {
	Flow      FlowRef `json:"flow"`
	DeletedBy string  `json:"deleted_by,omitempty"`
	Versions  int     `json:"versions"`
}

// -------------------------- 导入领域 --------------------------

// BundleIngestedPayload 压缩包导入结果.
type BundleIngestedPayload struct {
	Flow      FlowRef `json:"flow"`
	VersionID uint    `json:"version_id"`
	Succeeded int     `json:"succeeded"`
	Failed    int     `json:"failed"`
	Skipped   int     `json:"skipped"`
}

// -------------------------- 对象存储领域 --------------------------

// ObjectRef 标识对象在对象存储中的位置.
type ObjectRef struct {
	Bucket      string `json:"bucket,omitempty"`
	ObjectKey   string `json:"object_key"`
	Size        int64  `json:"size,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// ObjectPurgedPayload 存储对象已清理.
type ObjectPurgedPayload struct {
	Objects []ObjectRef `json:"objects"`
	Failed  int         `json:"failed,omitempty"`
}

// ObjectAccessedPayload 对象被访问.
type ObjectAccessedPayload struct {
	Object ObjectRef `json:"object"`
	FileID uint      `json:"file_id"`
	Via    string    `json:"via"` // url/download/asset
}

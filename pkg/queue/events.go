package queue

import (
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/yeisme/flowvault/pkg/configs"
)


// Publisher 按事件开关发布业务事件. 底层 Publisher 为 nil 时所有发布都是空操作.
type Publisher struct {
	pub message.Publisher
	cfg configs.EventsConfig
}

// NewPublisher 创建事件发布器.
func NewPublisher(pub message.Publisher, cfg configs.EventsConfig) *Publisher {
	return &Publisher{pub: pub, cfg: cfg}
}

// Enabled 是否会真正发送事件.
func (p *Publisher) Enabled() bool {
	return p != nil && p.pub != nil && p.cfg.Enabled
}

// FlowPublished 发布 fv.flow.published 事件.
func (p *Publisher) FlowPublished(payload FlowPublishedPayload, opts ...Option) error {
	if !p.Enabled() || !p.cfg.Flow.Published {
		return nil
	}

	return publish(p.pub, TopicFlowPublished, payload, opts...)
}

// VersionPublished 发布 fv.version.published 事件.
func (p *Publisher) VersionPublished(payload FlowPublishedPayload, opts ...Option) error {
	if !p.Enabled() || !p.cfg.Flow.VersionPublished {
		return nil
	}

	return publish(p.pub, TopicVersionPublished, payload, opts...)
}

// FlowStatusChanged 发布 fv.flow.status_changed 事件.
func (p *Publisher) FlowStatusChanged(payload FlowStatusChangedPayload, opts ...Option) error {
	if !p.Enabled() || !p.cfg.Flow.StatusChanged {
		return nil
	}

	return publish(p.pub, TopicFlowStatusChanged, payload, opts...)
}

// FlowDeleted 发布 fv.flow.deleted 事件.
func (p *Publisher) FlowDeleted(payload FlowDeletedPayload, opts ...Option) error {
	if !p.Enabled() || !p.cfg.Flow.Deleted {
		return nil
	}

	return publish(p.pub, TopicFlowDeleted, payload, opts...)
}

// BundleIngested 发布 fv.bundle.ingested 事件.
func (p *Publisher) BundleIngested(payload BundleIngestedPayload, opts ...Option) error {
	if !p.Enabled() || !p.cfg.Flow.Ingested {
		return nil
	}

	return publish(p.pub, TopicBundleIngested, payload, opts...)
}

// ObjectPurged 发布 fv.object.purged 事件.
func (p *Publisher) ObjectPurged(payload ObjectPurgedPayload, opts ...Option) error {
	if !p.Enabled() || !p.cfg.Object.Purged {
		return nil
	}

	return publish(p.pub, TopicObjectPurged, payload, opts...)
}

// ObjectAccessed 发布 fv.object.accessed 事件.
func (p *Publisher) ObjectAccessed(payload ObjectAccessedPayload, opts ...Option) error {
	if !p.Enabled() || !p.cfg.Object.Accessed {
		return nil
	}

	return publish(p.pub, TopicObjectAccessed, payload, opts...)
}

func publish[T any](pub message.Publisher, topic string, payload T, opts ...Option) error {
	msg, err := NewWatermillMessage(topic, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(topic, msg)
}

// ParseFlowPublished 将 Watermill 消息解析为强类型 Envelope.
func ParseFlowPublished(msg *message.Message) (Message[FlowPublishedPayload], error) {
	return ParseWatermillMessage[FlowPublishedPayload](msg)
}

// ParseBundleIngested 将 Watermill 消息解析为强类型 Envelope.
func ParseBundleIngested(msg *message.Message) (Message[BundleIngestedPayload], error) {
	return ParseWatermillMessage[BundleIngestedPayload](msg)
}

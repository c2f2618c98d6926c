// Package mq 基于 watermill 封装业务事件使用的消息队列，支持 NATS（可选 JetStream）与 Redis Pub/Sub.
//
// 业务事件由 pkg/queue 构造，经 Client.Publisher() 发布:
//
//	client, err := mq.New(ctx, &configs.GetConfig().MQ)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	events := queue.NewPublisher(client.Publisher(), cfg.Events)
//	_ = events.BundleIngested(payload)
package mq

import (
	"context"
	"fmt"
	"sort"
	"sync"

	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/yeisme/flowvault/pkg/configs"
	nlog "github.com/yeisme/flowvault/pkg/log"
)

// Factory 创建 Publisher 与 Subscriber.
type Factory func(ctx context.Context, cfg *configs.MQConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error)

var factories = map[configs.MQType]Factory{}

// RegisterFactory 注册指定 MQType 的工厂.
func RegisterFactory(t configs.MQType, f Factory) {
	factories[t] = f
}

// GetRegisteredMQTypes 返回已注册的 MQ 类型列表（有序）.
func GetRegisteredMQTypes() []configs.MQType {
	types := make([]configs.MQType, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}

// Client 封装 watermill Publisher 与 Subscriber，主题统一加上 topic_prefix.
type Client struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	prefix     string
	closeFunc  func()
}

// NewClient 用现成的 Publisher/Subscriber 组装 Client，测试中配合 gochannel 使用.
func NewClient(pub message.Publisher, sub message.Subscriber, topicPrefix string) *Client {
	return &Client{publisher: pub, subscriber: sub, prefix: topicPrefix}
}

// Publisher 返回加了主题前缀的 Publisher.
func (c *Client) Publisher() message.Publisher {
	if c == nil || c.publisher == nil {
		return nil
	}

	if c.prefix == "" {
		return c.publisher
	}

	return prefixedPublisher{Publisher: c.publisher, prefix: c.prefix}
}

// Publish 发布消息到 topic.
func (c *Client) Publish(_ context.Context, topic string, msgs ...*message.Message) error {
	pub := c.Publisher()
	if pub == nil {
		return fmt.Errorf("mq publisher not initialized")
	}

	return pub.Publish(topic, msgs...)
}

// Subscribe 订阅 topic，ctx 取消后通道关闭.
func (c *Client) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if c == nil || c.subscriber == nil {
		return nil, fmt.Errorf("mq subscriber not initialized")
	}

	return c.subscriber.Subscribe(ctx, c.prefix+topic)
}

// Handler 处理一条消息，返回错误时消息被 Nack.
type Handler func(topic string, msg *message.Message) error

// Consume 同时订阅多个主题并串行调用 h，直到 ctx 取消或所有通道关闭.
func (c *Client) Consume(ctx context.Context, topics []string, h Handler) error {
	type delivery struct {
		topic string
		msg   *message.Message
	}

	out := make(chan delivery)

	var wg sync.WaitGroup

	for _, topic := range topics {
		ch, err := c.Subscribe(ctx, topic)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}

		wg.Add(1)

		go func() {
			defer wg.Done()

			for m := range ch {
				select {
				case out <- delivery{topic: topic, msg: m}:
				case <-ctx.Done():
					m.Nack()
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	for d := range out {
		if err := h(d.topic, d.msg); err != nil {
			d.msg.Nack()
			continue
		}

		d.msg.Ack()
	}

	return ctx.Err()
}

// Close 关闭 Publisher、Subscriber 与指标服务.
func (c *Client) Close() error {
	var err error

	if c.publisher != nil {
		if e := c.publisher.Close(); e != nil {
			err = e
		}
	}

	if c.subscriber != nil {
		if e := c.subscriber.Close(); e != nil {
			err = e
		}
	}

	if c.closeFunc != nil {
		c.closeFunc()
	}

	return err
}

type prefixedPublisher struct {
	message.Publisher

	prefix string
}

func (p prefixedPublisher) Publish(topic string, msgs ...*message.Message) error {
	return p.Publisher.Publish(p.prefix+topic, msgs...)
}

var (
	mqOnce sync.Once
	mqInst *Client
	mqErr  error
)

// New 初始化消息队列（单例）.
func New(ctx context.Context, cfg *configs.MQConfig) (*Client, error) {
	mqOnce.Do(func() {
		factory, ok := factories[cfg.Type]
		if !ok {
			mqErr = fmt.Errorf("unsupported mq type: %s", cfg.Type)
			return
		}

		logger := newLoggerAdapter()

		pub, sub, err := factory(ctx, cfg, logger)
		if err != nil {
			mqErr = fmt.Errorf("init mq (%s): %w", cfg.Type, err)
			return
		}

		client := NewClient(pub, sub, cfg.TopicPrefix)

		if cfg.Metrics.Enabled {
			registry, closeServer := metrics.CreateRegistryAndServeHTTP(cfg.Metrics.Endpoint)
			builder := metrics.NewPrometheusMetricsBuilder(registry, "flowvault", "mq")

			if client.publisher, err = builder.DecoratePublisher(pub); err != nil {
				closeServer()
				mqErr = fmt.Errorf("decorate publisher: %w", err)

				return
			}

			if client.subscriber, err = builder.DecorateSubscriber(sub); err != nil {
				closeServer()
				mqErr = fmt.Errorf("decorate subscriber: %w", err)

				return
			}

			client.closeFunc = closeServer
		}

		mqInst = client

		l := nlog.Component("mq")
		l.Info().Str("type", string(cfg.Type)).Str("topic_prefix", cfg.TopicPrefix).
			Bool("metrics", cfg.Metrics.Enabled).Msg("mq client initialized")
	})

	return mqInst, mqErr
}

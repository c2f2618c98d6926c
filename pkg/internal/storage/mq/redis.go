package mq

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/yeisme/flowvault/pkg/configs"
)

// stream 条目字段.
const (
	fieldUUID     = "uuid"
	fieldMetadata = "metadata"
	fieldPayload  = "payload"
)

// redisEnvelope pubsub 模式下频道上的消息体.
type redisEnvelope struct {
	UUID     string            `json:"uuid"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Payload  []byte            `json:"payload"`
}

// RedisPublisher 按模式写 stream 或频道.
type RedisPublisher struct {
	client *redis.Client
	cfg    configs.MQRedisConfig
}

// RedisSubscriber 每次 Subscribe 起一个读循环，投递后等待 Ack/Nack 再读下一条.
type RedisSubscriber struct {
	client   *redis.Client
	cfg      configs.MQRedisConfig
	group    string
	consumer string
	logger   watermill.LoggerAdapter

	mu      sync.Mutex
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

func init() {
	RegisterFactory(configs.MQTypeRedis, redisFactory)
}

func redisFactory(ctx context.Context, cfg *configs.MQConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
	}

	pub, sub := newRedisPubSub(rdb, cfg.Redis, cfg.QueueGroup, logger)

	return pub, sub, nil
}

func newRedisPubSub(rdb *redis.Client, cfg configs.MQRedisConfig, group string, logger watermill.LoggerAdapter) (*RedisPublisher, *RedisSubscriber) {
	if cfg.Mode == "" {
		cfg.Mode = "stream"
	}

	if cfg.Block <= 0 {
		cfg.Block = 2 * time.Second
	}

	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}

	host, _ := os.Hostname()

	return &RedisPublisher{client: rdb, cfg: cfg}, &RedisSubscriber{
		client:   rdb,
		cfg:      cfg,
		group:    group,
		consumer: host + "-" + uuid.NewString()[:8],
		logger:   logger,
		closeCh:  make(chan struct{}),
	}
}

func (p *RedisPublisher) Publish(topic string, msgs ...*message.Message) error {
	for _, msg := range msgs {
		if err := p.publish(msg.Context(), topic, msg); err != nil {
			return fmt.Errorf("publish %s to %s: %w", msg.UUID, topic, err)
		}
	}

	return nil
}

func (p *RedisPublisher) publish(ctx context.Context, topic string, msg *message.Message) error {
	if p.cfg.Mode == "pubsub" {
		data, err := sonic.Marshal(redisEnvelope{UUID: msg.UUID, Metadata: msg.Metadata, Payload: msg.Payload})
		if err != nil {
			return err
		}

		return p.client.Publish(ctx, topic, data).Err()
	}

	meta, err := sonic.MarshalString(msg.Metadata)
	if err != nil {
		return err
	}

	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		MaxLen: p.cfg.MaxLen,
		Approx: p.cfg.MaxLen > 0,
		Values: map[string]any{fieldUUID: msg.UUID, fieldMetadata: meta, fieldPayload: msg.Payload},
	}).Err()
}

// Close 客户端由 Subscriber 关闭.
func (p *RedisPublisher) Close() error {
	return nil
}

// Subscribe stream 模式下配置了 queue_group 时用消费组分摊，否则从订阅时刻起读全部新消息.
func (s *RedisSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("redis subscriber closed")
	}

	ch := make(chan *message.Message, s.cfg.BufferSize)

	var loop func(context.Context, string, chan<- *message.Message)

	switch {
	case s.cfg.Mode == "pubsub":
		ps := s.client.Subscribe(ctx, topic)
		loop = func(ctx context.Context, topic string, out chan<- *message.Message) {
			defer ps.Close()
			s.readChannel(ctx, ps, topic, out)
		}
	case s.group != "":
		err := s.client.XGroupCreateMkStream(ctx, topic, s.group, "$").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			return nil, fmt.Errorf("create consumer group %s on %s: %w", s.group, topic, err)
		}

		loop = s.readGroup
	default:
		loop = s.readStream
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer close(ch)

		loop(ctx, topic, ch)
	}()

	return ch, nil
}

// staleClaimIdle 其他消费者未确认超过该时长的条目会被认领重投.
const staleClaimIdle = time.Minute

// readGroup 先认领并处理挂起的条目，再读新条目.
func (s *RedisSubscriber) readGroup(ctx context.Context, topic string, out chan<- *message.Message) {
	cursor := "0"

	claimed, _, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   topic,
		Group:    s.group,
		Consumer: s.consumer,
		MinIdle:  staleClaimIdle,
		Start:    "0-0",
		Count:    100,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		s.logger.Error("xautoclaim failed", err, watermill.LogFields{"topic": topic})
	} else if len(claimed) > 0 {
		s.logger.Info("claimed stale entries", watermill.LogFields{"topic": topic, "count": len(claimed)})
	}

	for !s.done(ctx) {
		streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    s.group,
			Consumer: s.consumer,
			Streams:  []string{topic, cursor},
			Count:    16,
			Block:    s.cfg.Block,
		}).Result()
		if err != nil {
			if !s.retryable(ctx, err, topic) {
				return
			}

			continue
		}

		n := 0

		for _, st := range streams {
			for _, xm := range st.Messages {
				n++

				if !s.deliver(ctx, topic, xm, out) {
					return
				}

				if err := s.client.XAck(ctx, topic, s.group, xm.ID).Err(); err != nil {
					s.logger.Error("xack failed", err, watermill.LogFields{"topic": topic, "id": xm.ID})
				}
			}
		}

		if cursor == "0" && n == 0 {
			cursor = ">"
		}
	}
}

// readStream 无消费组时从订阅时刻起顺序读取.
func (s *RedisSubscriber) readStream(ctx context.Context, topic string, out chan<- *message.Message) {
	last := "$"

	for !s.done(ctx) {
		streams, err := s.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{topic, last},
			Count:   16,
			Block:   s.cfg.Block,
		}).Result()
		if err != nil {
			if !s.retryable(ctx, err, topic) {
				return
			}

			continue
		}

		for _, st := range streams {
			for _, xm := range st.Messages {
				if !s.deliver(ctx, topic, xm, out) {
					return
				}

				last = xm.ID
			}
		}
	}
}

func (s *RedisSubscriber) readChannel(ctx context.Context, ps *redis.PubSub, topic string, out chan<- *message.Message) {
	ch := ps.Channel()

	for {
		select {
		case raw, ok := <-ch:
			if !ok {
				return
			}

			var env redisEnvelope
			if err := sonic.UnmarshalString(raw.Payload, &env); err != nil {
				s.logger.Error("drop undecodable redis message", err, watermill.LogFields{"topic": topic})
				continue
			}

			if !s.send(ctx, func() *message.Message { return newMessage(env.UUID, env.Metadata, env.Payload) }, out) {
				return
			}
		case <-s.closeCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// deliver 解析 stream 条目并投递，格式错误的条目记录后跳过.
func (s *RedisSubscriber) deliver(ctx context.Context, topic string, xm redis.XMessage, out chan<- *message.Message) bool {
	id, _ := xm.Values[fieldUUID].(string)
	payload, _ := xm.Values[fieldPayload].(string)

	meta := map[string]string{}
	if raw, _ := xm.Values[fieldMetadata].(string); raw != "" {
		if err := sonic.UnmarshalString(raw, &meta); err != nil {
			s.logger.Error("drop stream entry with bad metadata", err, watermill.LogFields{"topic": topic, "id": xm.ID})
			return true
		}
	}

	if id == "" {
		id = xm.ID
	}

	return s.send(ctx, func() *message.Message { return newMessage(id, meta, []byte(payload)) }, out)
}

// send 投递直到被 Ack，Nack 后等待 NackDelay 重投同一条. 返回 false 表示应退出.
func (s *RedisSubscriber) send(ctx context.Context, build func() *message.Message, out chan<- *message.Message) bool {
	for {
		msg := build()

		msgCtx, cancel := context.WithCancel(ctx)
		msg.SetContext(msgCtx)

		select {
		case out <- msg:
		case <-s.closeCh:
			cancel()
			return false
		case <-ctx.Done():
			cancel()
			return false
		}

		select {
		case <-msg.Acked():
			cancel()
			return true
		case <-msg.Nacked():
			cancel()
		case <-s.closeCh:
			cancel()
			return false
		case <-ctx.Done():
			cancel()
			return false
		}

		select {
		case <-time.After(s.cfg.NackDelay):
		case <-s.closeCh:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

func (s *RedisSubscriber) done(ctx context.Context) bool {
	select {
	case <-s.closeCh:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// retryable redis.Nil 为阻塞超时，其他错误稍后重试，关闭时返回 false.
func (s *RedisSubscriber) retryable(ctx context.Context, err error, topic string) bool {
	if errors.Is(err, redis.Nil) {
		return true
	}

	if s.done(ctx) || errors.Is(err, redis.ErrClosed) {
		return false
	}

	s.logger.Error("redis read failed", err, watermill.LogFields{"topic": topic})

	select {
	case <-time.After(time.Second):
		return true
	case <-s.closeCh:
		return false
	case <-ctx.Done():
		return false
	}
}

func newMessage(id string, meta map[string]string, payload []byte) *message.Message {
	msg := message.NewMessage(id, payload)
	for k, v := range meta {
		msg.Metadata.Set(k, v)
	}

	return msg
}

// Close 停止全部读循环并关闭共享客户端.
func (s *RedisSubscriber) Close() error {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return nil
	}

	s.closed = true
	close(s.closeCh)
	s.mu.Unlock()

	err := s.client.Close()
	s.wg.Wait()

	return err
}

package mq

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/flowvault/pkg/configs"
)

func redisPubSub(t *testing.T, mode, group string) (*RedisPublisher, *RedisSubscriber) {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, rdb.Ping(context.Background()).Err())

	pub, sub := newRedisPubSub(rdb, configs.MQRedisConfig{
		Mode: mode, MaxLen: 100, Block: 100 * time.Millisecond, NackDelay: 10 * time.Millisecond,
	}, group, watermill.NopLogger{})
	t.Cleanup(func() { _ = sub.Close() })

	return pub, sub
}

func TestRedisStream_NackRedelivers(t *testing.T) {
	for _, group := range []string{"", "flowvault-test"} {
		t.Run("group="+group, func(t *testing.T) {
			pub, sub := redisPubSub(t, "stream", group)
			topic := "fvtest." + uuid.NewString()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			ch, err := sub.Subscribe(ctx, topic)
			require.NoError(t, err)

			// 等读循环进入阻塞读，"$" 之后的消息才可见.
			time.Sleep(50 * time.Millisecond)

			sent := message.NewMessage("m-1", []byte(`{"a":1}`))
			sent.Metadata.Set("topic", topic)
			require.NoError(t, pub.Publish(topic, sent))

			first := <-ch
			assert.Equal(t, "m-1", first.UUID)
			assert.Equal(t, topic, first.Metadata.Get("topic"))
			first.Nack()

			second := <-ch
			assert.Equal(t, "m-1", second.UUID)
			assert.JSONEq(t, `{"a":1}`, string(second.Payload))
			second.Ack()
		})
	}
}

func TestRedisPubSub_Mode(t *testing.T) {
	pub, sub := redisPubSub(t, "pubsub", "")
	topic := "fvtest." + uuid.NewString()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := sub.Subscribe(ctx, topic)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	require.NoError(t, pub.Publish(topic, message.NewMessage("p-1", []byte("x"))))

	got := <-ch
	assert.Equal(t, "p-1", got.UUID)
	got.Ack()
}

func TestRedisSubscriber_ClosedRejectsSubscribe(t *testing.T) {
	sub := &RedisSubscriber{closed: true, closeCh: make(chan struct{})}

	_, err := sub.Subscribe(context.Background(), "x")
	assert.Error(t, err)
}

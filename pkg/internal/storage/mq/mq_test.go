package mq_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/flowvault/pkg/configs"
	"github.com/yeisme/flowvault/pkg/internal/storage/mq"
	"github.com/yeisme/flowvault/pkg/queue"
)

func newClient(t *testing.T, prefix string) (*mq.Client, *gochannel.GoChannel) {
	t.Helper()

	ps := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 8}, watermill.NopLogger{})
	client := mq.NewClient(ps, ps, prefix)
	t.Cleanup(func() { _ = client.Close() })

	return client, ps
}

func TestClient_TopicPrefix(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, ps := newClient(t, "staging.")

	raw, err := ps.Subscribe(ctx, "staging."+queue.TopicFlowDeleted)
	require.NoError(t, err)

	viaClient, err := client.Subscribe(ctx, queue.TopicFlowDeleted)
	require.NoError(t, err)

	require.NoError(t, client.Publisher().Publish(queue.TopicFlowDeleted, message.NewMessage(watermill.NewUUID(), []byte(`{}`))))

	for _, ch := range []<-chan *message.Message{raw, viaClient} {
		select {
		case m := <-ch:
			m.Ack()
		case <-ctx.Done():
			t.Fatal("message not delivered on prefixed topic")
		}
	}
}

func TestClient_Consume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, _ := newClient(t, "")

	var (
		mu   sync.Mutex
		seen = map[string]int{}
		done = make(chan error, 1)
	)

	go func() {
		done <- client.Consume(ctx, queue.ObjectTopics, func(topic string, _ *message.Message) error {
			mu.Lock()
			seen[topic]++
			mu.Unlock()

			return nil
		})
	}()

	// gochannel 在订阅之后才投递
	require.Eventually(t, func() bool {
		_ = client.Publish(ctx, queue.TopicBundleIngested, message.NewMessage(watermill.NewUUID(), nil))
		_ = client.Publish(ctx, queue.TopicObjectPurged, message.NewMessage(watermill.NewUUID(), nil))

		mu.Lock()
		defer mu.Unlock()

		return seen[queue.TopicBundleIngested] > 0 && seen[queue.TopicObjectPurged] > 0
	}, 3*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("consume did not stop after cancel")
	}
}

func TestClient_Nil(t *testing.T) {
	var c *mq.Client

	assert.Nil(t, c.Publisher())
	assert.Error(t, c.Publish(context.Background(), queue.TopicFlowDeleted))

	_, err := c.Subscribe(context.Background(), queue.TopicFlowDeleted)
	assert.Error(t, err)
}

func TestMQConfigTopic(t *testing.T) {
	cfg := configs.MQConfig{TopicPrefix: "dev."}
	assert.Equal(t, "dev.fv.flow.published", cfg.Topic(queue.TopicFlowPublished))
	assert.Contains(t, mq.GetRegisteredMQTypes(), configs.MQTypeNATS)
	assert.Contains(t, mq.GetRegisteredMQTypes(), configs.MQTypeRedis)
}

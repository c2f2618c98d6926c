package mq

import (
	"context"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"

	"github.com/yeisme/flowvault/pkg/configs"
)

const (
	drainTimeout   = 30 * time.Second
	flusherTimeout = 10 * time.Second
)

func init() {
	RegisterFactory(configs.MQTypeNATS, natsFactory)
}

// natsOptions 连接选项，认证方式按 JWT、NKey、用户名密码的优先级取第一个.
func natsOptions(cfg *configs.MQNATSConfig) []nc.Option {
	opts := []nc.Option{
		nc.Name(cfg.ClientName),
		nc.MaxReconnects(cfg.MaxReconnects),
		nc.ReconnectWait(cfg.ReconnectWait),
		nc.PingInterval(cfg.PingInterval),
		nc.ReconnectBufSize(cfg.ReconnectBufSize),
		nc.DrainTimeout(drainTimeout),
		nc.FlusherTimeout(flusherTimeout),
		nc.RetryOnFailedConnect(true),
	}

	switch {
	case cfg.JWT != "":
		opts = append(opts, nc.UserJWTAndSeed(cfg.JWT, cfg.NKey))
	case cfg.NKey != "":
		opts = append(opts, nc.Nkey(cfg.NKey, nil))
	case cfg.User != "":
		opts = append(opts, nc.UserInfo(cfg.User, cfg.Password))
	}

	return opts
}

// jetStreamConfig 关闭 JetStream 时退化为 core NATS，消息不持久.
func jetStreamConfig(cfg *configs.MQNATSConfig) nats.JetStreamConfig {
	if !cfg.JetStream {
		return nats.JetStreamConfig{Disabled: true}
	}

	var subOpts []nc.SubOpt
	if cfg.AckWait > 0 {
		subOpts = append(subOpts, nc.AckWait(cfg.AckWait))
	}

	if cfg.MaxDeliver > 0 {
		subOpts = append(subOpts, nc.MaxDeliver(cfg.MaxDeliver))
	}

	if cfg.MaxAckPending > 0 {
		subOpts = append(subOpts, nc.MaxAckPending(cfg.MaxAckPending))
	}

	return nats.JetStreamConfig{
		AutoProvision:    cfg.AutoProvision,
		TrackMsgId:       cfg.TrackMsgID,
		AckAsync:         cfg.AckAsync,
		DurablePrefix:    cfg.DurablePrefix,
		SubscribeOptions: subOpts,
	}
}

func natsURL(cfg *configs.MQNATSConfig) string {
	if len(cfg.ClusterURLs) > 0 {
		return strings.Join(cfg.ClusterURLs, ",")
	}

	return cfg.URL
}

// natsFactory 创建 watermill NATS Publisher 与 Subscriber，两者各自持有连接.
func natsFactory(_ context.Context, cfg *configs.MQConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error) {
	opts := natsOptions(&cfg.NATS)
	js := jetStreamConfig(&cfg.NATS)
	marshaler := &nats.JSONMarshaler{}
	url := natsURL(&cfg.NATS)

	logger.Info("nats mq configured", watermill.LogFields{
		"url":         url,
		"jetstream":   cfg.NATS.JetStream,
		"queue_group": cfg.QueueGroup,
	})

	pub, err := nats.NewPublisher(nats.PublisherConfig{
		URL:         url,
		NatsOptions: opts,
		JetStream:   js,
		Marshaler:   marshaler,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	sub, err := nats.NewSubscriber(nats.SubscriberConfig{
		URL:              url,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: cfg.NATS.Subscribers,
		AckWaitTimeout:   cfg.NATS.AckWait,
		NatsOptions:      opts,
		JetStream:        js,
		Unmarshaler:      marshaler,
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, nil, err
	}

	return pub, sub, nil
}

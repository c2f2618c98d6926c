package configs

import (
	"time"

	"github.com/spf13/viper"
)

// MQType 消息队列类型.
type MQType string

const (
	MQTypeNATS  MQType = "nats"
	MQTypeRedis MQType = "redis"
)

// MQConfig 业务事件使用的消息队列配置，events.enabled 为 false 时不会连接.
type MQConfig struct {
	Type MQType `mapstructure:"type" rule:"oneof=nats redis"`
	// TopicPrefix 加在 fv.* 主题前，多个环境共用一套 broker 时区分.
	TopicPrefix string `mapstructure:"topic_prefix" rule:"omitempty,excludesall=*> "`
	// QueueGroup 同组订阅者分摊消息，为空时每个订阅者收到全部消息.
	QueueGroup string `mapstructure:"queue_group"`

	Metrics MQMetricsConfig `mapstructure:"metrics"`
	NATS    MQNATSConfig    `mapstructure:"nats"`
	Redis   MQRedisConfig   `mapstructure:"redis"`
}

// MQMetricsConfig watermill 指标单独监听一个端口.
type MQMetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint" rule:"required_if=Enabled true"`
}

// MQNATSConfig NATS 连接与 JetStream 消费配置.
type MQNATSConfig struct {
	URL         string   `mapstructure:"url"          rule:"required"`
	ClusterURLs []string `mapstructure:"cluster_urls"`
	ClientName  string   `mapstructure:"client_name"`
	User        string   `mapstructure:"user"`
	Password    string   `mapstructure:"password"`
	JWT         string   `mapstructure:"jwt"`
	NKey        string   `mapstructure:"nkey"`

	MaxReconnects    int           `mapstructure:"max_reconnects"     rule:"min=-1"`
	ReconnectWait    time.Duration `mapstructure:"reconnect_wait"`
	PingInterval     time.Duration `mapstructure:"ping_interval"`
	ReconnectBufSize int           `mapstructure:"reconnect_buf_size" rule:"min=0"`

	JetStream     bool          `mapstructure:"jetstream"`
	AutoProvision bool          `mapstructure:"auto_provision"`
	TrackMsgID    bool          `mapstructure:"track_msg_id"`
	AckAsync      bool          `mapstructure:"ack_async"`
	DurablePrefix string        `mapstructure:"durable_prefix"`
	AckWait       time.Duration `mapstructure:"ack_wait"`
	MaxDeliver    int           `mapstructure:"max_deliver"     rule:"min=0"`
	MaxAckPending int           `mapstructure:"max_ack_pending" rule:"min=0"`
	Subscribers   int           `mapstructure:"subscribers"     rule:"min=1,max=64"`
}

// MQRedisConfig Redis 传输. stream 模式用消费组实现 queue_group 与重投，
// pubsub 模式只投递给在线订阅者.
type MQRedisConfig struct {
	Addr     string `mapstructure:"addr"     rule:"hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"       rule:"min=0,max=15"`
	Mode     string `mapstructure:"mode"     rule:"oneof=stream pubsub"`
	// MaxLen 每个 stream 近似保留的条数，0 表示不裁剪.
	MaxLen int64 `mapstructure:"max_len" rule:"min=0"`
	// Block XREAD 单次阻塞时长.
	Block time.Duration `mapstructure:"block"`
	// NackDelay 消息被 Nack 后重投前的等待.
	NackDelay  time.Duration `mapstructure:"nack_delay"`
	BufferSize int           `mapstructure:"buffer_size" rule:"min=1"`
}

// Topic 返回加上前缀后的实际主题.
func (c *MQConfig) Topic(topic string) string {
	return c.TopicPrefix + topic
}

func (c *MQConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("mq.type", MQTypeNATS)
	v.SetDefault("mq.topic_prefix", "")
	v.SetDefault("mq.queue_group", "flowvault")

	v.SetDefault("mq.metrics.enabled", false)
	v.SetDefault("mq.metrics.endpoint", ":9092")

	v.SetDefault("mq.nats.url", "nats://localhost:4222")
	v.SetDefault("mq.nats.cluster_urls", []string{})
	v.SetDefault("mq.nats.client_name", "flowvault")
	v.SetDefault("mq.nats.max_reconnects", 10)
	v.SetDefault("mq.nats.reconnect_wait", 2*time.Second)
	v.SetDefault("mq.nats.ping_interval", 20*time.Second)
	v.SetDefault("mq.nats.reconnect_buf_size", 8<<20)
	v.SetDefault("mq.nats.jetstream", true)
	v.SetDefault("mq.nats.auto_provision", true)
	v.SetDefault("mq.nats.track_msg_id", true)
	v.SetDefault("mq.nats.ack_async", false)
	v.SetDefault("mq.nats.durable_prefix", "flowvault")
	v.SetDefault("mq.nats.ack_wait", 30*time.Second)
	v.SetDefault("mq.nats.max_deliver", 5)
	v.SetDefault("mq.nats.max_ack_pending", 256)
	v.SetDefault("mq.nats.subscribers", 1)

	v.SetDefault("mq.redis.addr", "localhost:6379")
	v.SetDefault("mq.redis.db", 0)
	v.SetDefault("mq.redis.mode", "stream")
	v.SetDefault("mq.redis.max_len", 10000)
	v.SetDefault("mq.redis.block", 2*time.Second)
	v.SetDefault("mq.redis.nack_delay", time.Second)
	v.SetDefault("mq.redis.buffer_size", 64)
}

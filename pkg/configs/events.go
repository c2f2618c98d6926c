package configs

import "github.com/spf13/viper"

// EventsConfig 控制事件发布的开关（全局与分主题）。
type EventsConfig struct {
	Enabled bool               `mapstructure:"enabled"` // 总开关
	Flow    FlowEventsConfig   `mapstructure:"flow"`
	Object  ObjectEventsConfig `mapstructure:"object"`
}

// FlowEventsConfig 流程与版本领域的事件开关。
type FlowEventsConfig struct {
	Published        bool `mapstructure:"published"`
	VersionPublished bool `mapstructure:"version_published"`
	Ingested         bool `mapstructure:"ingested"`
	Deleted          bool `mapstructure:"deleted"`
	StatusChanged    bool `mapstructure:"status_changed"`
}

// ObjectEventsConfig 针对对象存储领域的事件开关。
type ObjectEventsConfig struct {
	Purged   bool `mapstructure:"purged"`
	Accessed bool `mapstructure:"accessed"`
}

func (c *EventsConfig) setDefaults(v *viper.Viper) {
	// 总开关：默认关闭，需要配置 MQ 后再开启
	v.SetDefault("events.enabled", false)

	v.SetDefault("events.flow.published", true)
	v.SetDefault("events.flow.version_published", true)
	v.SetDefault("events.flow.ingested", true)
	v.SetDefault("events.flow.deleted", true)
	v.SetDefault("events.flow.status_changed", false)

	v.SetDefault("events.object.purged", true)
	v.SetDefault("events.object.accessed", false) // 访问事件量可能很大，默认关闭
}

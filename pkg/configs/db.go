package configs

import (
	"time"

	"github.com/spf13/viper"
)

// DBType 数据库类型.
type DBType string

const (
	PostgreSQL DBType = "postgresql"
	Postgres   DBType = "postgre"
	Pg         DBType = "pg"

	MySQL   DBType = "mysql"
	MariaDB DBType = "mariadb"

	SQLite DBType = "sqlite"
)

// DBConfig 数据库配置. DSN 由各驱动按自己的格式拼接，Params 追加到 DSN 末尾.
type DBConfig struct {
	Type     DBType `mapstructure:"type"     rule:"oneof=postgresql postgre pg mysql mariadb sqlite"`
	Host     string `mapstructure:"host"     rule:"omitempty,hostname|ip"`
	Port     int    `mapstructure:"port"     rule:"min=0,max=65535"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	// Database sqlite 下为文件名（不含 .db），":memory:" 为共享内存库.
	Database string            `mapstructure:"database" rule:"required"`
	SSLMode  string            `mapstructure:"sslmode"  rule:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
	Params   map[string]string `mapstructure:"params"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"     rule:"min=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"     rule:"min=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	SlowThreshold   time.Duration `mapstructure:"slow_threshold"`

	// SimpleProtocol 经 pgbouncer 事务池连接 PostgreSQL 时开启.
	SimpleProtocol bool `mapstructure:"simple_protocol"`
	// BusyTimeout sqlite 写锁等待时间.
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
}

// GetDBType 返回数据库的显示名称.
func (c *DBConfig) GetDBType() string {
	switch c.Type {
	case PostgreSQL, Postgres, Pg:
		return "PostgreSQL"
	case MySQL, MariaDB:
		return "MySQL"
	case SQLite:
		return "SQLite"
	default:
		return "Unknown"
	}
}

// PortOr 未配置端口时返回 def.
func (c *DBConfig) PortOr(def int) int {
	if c.Port == 0 {
		return def
	}

	return c.Port
}

func (c *DBConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("db.type", SQLite)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 0)
	v.SetDefault("db.user", "flowvault")
	v.SetDefault("db.database", "flowvault")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.params", map[string]string{})
	v.SetDefault("db.max_open_conns", 0)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", time.Hour)
	v.SetDefault("db.conn_max_idle_time", 10*time.Minute)
	v.SetDefault("db.slow_threshold", 200*time.Millisecond)
	v.SetDefault("db.busy_timeout", 5*time.Second)
}

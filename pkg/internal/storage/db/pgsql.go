//go:build !no_postgres

package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/yeisme/flowvault/pkg/configs"
)

// postgresDialector 使用 key=value 形式的 DSN，时区固定为 UTC.
func postgresDialector(cfg *configs.DBConfig) gorm.Dialector {
	params := map[string]string{
		"sslmode":          cfg.SSLMode,
		"TimeZone":         "UTC",
		"application_name": "flowvault",
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s %s",
		cfg.Host, cfg.PortOr(5432), cfg.User, cfg.Password, cfg.Database, joinParams(params, cfg.Params, " "))

	return postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: cfg.SimpleProtocol,
	})
}

func init() {
	for _, t := range []configs.DBType{configs.PostgreSQL, configs.Postgres, configs.Pg} {
		RegisterDialectorFactory(t, postgresDialector)
	}
}

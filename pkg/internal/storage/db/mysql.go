//go:build !no_mysql

package db

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/yeisme/flowvault/pkg/configs"
)

// mysqlDialector 文件名与路径可能较长，字符串列默认 512. 路径按字节比较，使用 utf8mb4_bin.
func mysqlDialector(cfg *configs.DBConfig) gorm.Dialector {
	params := map[string]string{
		"charset":   "utf8mb4",
		"collation": "utf8mb4_bin",
		"parseTime": "True",
		"loc":       "UTC",
		"timeout":   "5s",
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		cfg.User, cfg.Password, cfg.Host, cfg.PortOr(3306), cfg.Database, joinParams(params, cfg.Params, "&"))

	return mysql.New(mysql.Config{
		DSN:                     dsn,
		DefaultStringSize:       512,
		DontSupportRenameColumn: cfg.Type == configs.MariaDB,
	})
}

// MariaDB 复用同一驱动.
func init() {
	RegisterDialectorFactory(configs.MySQL, mysqlDialector)
	RegisterDialectorFactory(configs.MariaDB, mysqlDialector)
}

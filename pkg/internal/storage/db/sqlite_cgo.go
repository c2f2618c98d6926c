//go:build !no_sqlite && cgo

package db

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yeisme/flowvault/pkg/configs"
)

// sqliteDialector mattn/go-sqlite3 使用 _journal_mode 这类下划线参数.
func sqliteDialector(cfg *configs.DBConfig) gorm.Dialector {
	params := map[string]string{
		"_busy_timeout": fmt.Sprint(cfg.BusyTimeout.Milliseconds()),
	}

	path := "file::memory:"
	if cfg.Database == ":memory:" {
		params["cache"] = "shared"
	} else {
		path = "file:" + cfg.Database + ".db"
		params["_journal_mode"] = "WAL"
	}

	return sqlite.Open(path + "?" + joinParams(params, cfg.Params, "&"))
}

func init() {
	RegisterDialectorFactory(configs.SQLite, sqliteDialector)
}

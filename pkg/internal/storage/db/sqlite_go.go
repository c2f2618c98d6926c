//go:build !no_sqlite && !cgo

package db

import (
	"fmt"
	"net/url"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/yeisme/flowvault/pkg/configs"
)

// sqliteDialector 纯 Go 驱动通过重复的 _pragma 参数设置 PRAGMA.
func sqliteDialector(cfg *configs.DBConfig) gorm.Dialector {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.BusyTimeout.Milliseconds()))

	path := "file::memory:"
	if cfg.Database == ":memory:" {
		q.Set("cache", "shared")
	} else {
		path = "file:" + cfg.Database + ".db"
		q.Add("_pragma", "journal_mode(WAL)")
	}

	for k, v := range cfg.Params {
		q.Add(k, v)
	}

	return sqlite.Open(path + "?" + q.Encode())
}

func init() {
	RegisterDialectorFactory(configs.SQLite, sqliteDialector)
}

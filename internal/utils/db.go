package utils

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"regiokaart/internal/config"
	"regiokaart/internal/logger"
)

// OpenDB：按配置打开边界数据库
// 约束：DB_DRIVER 为 none 时返回 nil, nil，调用方据此退回目录数据源
func OpenDB(c config.DatabaseConfig) (*sql.DB, error) {
	switch c.Driver {
	case "postgres":
		return OpenPostgres(c.PostgresDSN(), c.MaxOpenConns, c.MaxIdleConns)
	case "sqlite":
		return OpenSQLite(c.SQLitePath)
	case "none", "":
		return nil, nil
	}
	return nil, fmt.Errorf("open db: unknown driver %q", c.Driver)
}

func OpenPostgres(dsn string, maxOpen, maxIdle int) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	logger.L().Debug("db_open", "driver", "postgres")
	return db, nil
}

// OpenSQLite：打开纯 Go 的 SQLite 驱动；":memory:" 为私有内存库
// 约束：只用一个连接，避免内存库在连接池中被拆成多个
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	logger.L().Debug("db_open", "driver", "sqlite", "path", path)
	return db, nil
}

package migrate

import (
	"context"
	"database/sql"

	"regiokaart/internal/logger"
)

// EnsureSchema：首次运行时创建边界表及其 (level, municipality) 索引
// 约束：语句需同时兼容 Postgres 与 SQLite；使用 IF NOT EXISTS，可重复执行
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS region_shapes (
            level TEXT NOT NULL,
            code TEXT NOT NULL,
            name TEXT NOT NULL,
            municipality TEXT NOT NULL,
            geometry TEXT NOT NULL,
            PRIMARY KEY (level, code)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_region_shapes_level_muni ON region_shapes(level, municipality)`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}

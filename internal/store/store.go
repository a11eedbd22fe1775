// 包 store：区域边界的 SQL 数据源（Postgres 经 lib/pq，SQLite 经 modernc），供导入工具与服务读取
package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/bytedance/sonic"
	"github.com/paulmach/orb/geojson"

	"regiokaart/internal/logger"
	"regiokaart/internal/region"
	"regiokaart/internal/shapes"
)

const tableShapes = "region_shapes"

// BatchSize：ImportShapes 每个事务写入的行数
const BatchSize = 5000

// Store：region_shapes 表的访问入口，实现 shapes.Source
type Store struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// AttachDB：包装已打开的连接
// 约束：driver 决定占位符格式，postgres 为 $n，sqlite 为 ?
func AttachDB(db *sql.DB, driver string) *Store {
	ph := sq.PlaceholderFormat(sq.Dollar)
	if driver == "sqlite" {
		ph = sq.Question
	}
	return &Store{db: db, sb: sq.StatementBuilder.PlaceholderFormat(ph)}
}

var _ shapes.Source = (*Store)(nil)

// LoadShapes：按编码顺序读取某一层级的边界
// 约束：municipality 为 shapes.AllMunicipalities 时不按市过滤
func (s *Store) LoadShapes(ctx context.Context, municipality string, level region.Level) ([]shapes.Shape, error) {
	q := s.sb.Select("code", "name", "municipality", "geometry").
		From(tableShapes).
		Where(sq.Eq{"level": string(level)}).
		OrderBy("code")
	if municipality != shapes.AllMunicipalities {
		q = q.Where(sq.Eq{"municipality": municipality})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build shape query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query shapes: %w", err)
	}
	defer rows.Close()
	var out []shapes.Shape
	for rows.Next() {
		var sh shapes.Shape
		var geom string
		if err := rows.Scan(&sh.Code, &sh.Name, &sh.Municipality, &geom); err != nil {
			return nil, fmt.Errorf("scan shape: %w", err)
		}
		g, err := geojson.UnmarshalGeometry([]byte(geom))
		if err != nil {
			return nil, fmt.Errorf("decode geometry of %s: %w", sh.Code, err)
		}
		sh.Geometry = g.Geometry()
		sh.Bound = sh.Geometry.Bound()
		out = append(out, sh)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	logger.L().Debug("db_shapes_loaded", "level", level, "municipality", municipality, "shapes", len(out))
	return out, nil
}

// ImportShapes：按 BatchSize 分批事务写入（存在则覆盖），返回已写入行数
// 约束：失败的批次只回滚自身，之前的批次保持提交
func (s *Store) ImportShapes(ctx context.Context, level region.Level, list []shapes.Shape) (int, error) {
	count := 0
	for start := 0; start < len(list); start += BatchSize {
		end := start + BatchSize
		if end > len(list) {
			end = len(list)
		}
		if err := s.importBatch(ctx, level, list[start:end]); err != nil {
			return count, err
		}
		count += end - start
		logger.L().Info("shape_import_progress", "level", level, "count", count)
	}
	return count, nil
}

func (s *Store) importBatch(ctx context.Context, level region.Level, batch []shapes.Shape) error {
	q := s.sb.Insert(tableShapes).
		Columns("level", "code", "name", "municipality", "geometry").
		Suffix("ON CONFLICT (level, code) DO UPDATE SET name=EXCLUDED.name, municipality=EXCLUDED.municipality, geometry=EXCLUDED.geometry")
	for _, sh := range batch {
		b, err := sonic.ConfigStd.Marshal(geojson.NewGeometry(sh.Geometry))
		if err != nil {
			return fmt.Errorf("encode geometry of %s: %w", sh.Code, err)
		}
		q = q.Values(string(level), sh.Code, sh.Name, sh.Municipality, string(b))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build shape insert: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert shapes: %w", err)
	}
	return tx.Commit()
}

// CountShapes：统计某一层级已入库的边界数量
func (s *Store) CountShapes(ctx context.Context, level region.Level) (int64, error) {
	query, args, err := s.sb.Select("COUNT(1)").From(tableShapes).Where(sq.Eq{"level": string(level)}).ToSql()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count shapes: %w", err)
	}
	return n, nil
}

// Municipalities：列出某一层级已入库的市名（去重）
func (s *Store) Municipalities(ctx context.Context, level region.Level) ([]string, error) {
	query, args, err := s.sb.Select("DISTINCT municipality").From(tableShapes).
		Where(sq.Eq{"level": string(level)}).OrderBy("municipality").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query municipalities: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

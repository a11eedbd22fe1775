// 边界导入工具：读取 SHAPES_DIR 下的 buurt/wijk/gemeente GeoJSON，分批写入 region_shapes
// 约束：需要 DB_DRIVER 为 postgres 或 sqlite；缺失的层级文件跳过，其余失败以退出码 1 结束
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"regiokaart/internal/apperr"
	"regiokaart/internal/config"
	"regiokaart/internal/logger"
	"regiokaart/internal/migrate"
	"regiokaart/internal/region"
	"regiokaart/internal/shapes"
	"regiokaart/internal/store"
	"regiokaart/internal/utils"
)

// 导入层级取自命令行参数（Buurt Wijk Gemeente），未给出时导入全部
func main() {
	l := logger.Setup()
	cfg, err := config.Load()
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	if cfg.Database.Driver == "none" {
		l.Error("db_required", "hint", "set DB_DRIVER=postgres or DB_DRIVER=sqlite")
		os.Exit(1)
	}
	levels := region.Levels
	if len(os.Args) > 1 {
		levels = nil
		for _, a := range os.Args[1:] {
			lv, err := region.ParseLevel(a)
			if err != nil {
				l.Error("bad_level", "arg", a, "err", err)
				os.Exit(2)
			}
			levels = append(levels, lv)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := utils.OpenDB(cfg.Database)
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := migrate.EnsureSchema(ctx, db); err != nil {
		l.Error("schema_error", "err", err)
		os.Exit(1)
	}
	st := store.AttachDB(db, cfg.Database.Driver)
	src := shapes.NewDirSource(cfg.Shapes.Dir)

	failed := false
	for _, lv := range levels {
		start := time.Now()
		list, err := src.LoadShapes(ctx, shapes.AllMunicipalities, lv)
		if err != nil {
			if apperr.KindOf(err) == apperr.NotFound {
				l.Info("shape_import_skip", "level", lv, "reason", err)
				continue
			}
			l.Error("shape_read_error", "level", lv, "err", err)
			failed = true
			continue
		}
		n, err := st.ImportShapes(ctx, lv, list)
		if err != nil {
			l.Error("shape_import_error", "level", lv, "written", n, "err", err)
			failed = true
			continue
		}
		total, _ := st.CountShapes(ctx, lv)
		munis, _ := st.Municipalities(ctx, lv)
		l.Info("shape_import_done", "level", lv, "written", n, "total", total, "municipalities", len(munis), "duration_ms", time.Since(start).Milliseconds())
	}
	if failed {
		os.Exit(1)
	}
}

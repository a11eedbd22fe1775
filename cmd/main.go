// 服务入口：加载配置，装配边界仓库、会话与外部数据源，启动 API
// 约束：数据库与 Redis 均为可选；收到 SIGINT/SIGTERM 时在 10 秒内优雅退出
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"regiokaart/internal/api"
	"regiokaart/internal/apperr"
	"regiokaart/internal/config"
	"regiokaart/internal/dataplatform"
	"regiokaart/internal/figure"
	"regiokaart/internal/logger"
	"regiokaart/internal/meetjestad"
	"regiokaart/internal/migrate"
	"regiokaart/internal/revgeo"
	"regiokaart/internal/session"
	"regiokaart/internal/shapes"
	"regiokaart/internal/store"
	"regiokaart/internal/utils"
	"regiokaart/internal/version"
)

func main() {
	l := logger.Setup()
	l.Debug("log_init_ok")
	cfg, err := config.Load()
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	l.Info("starting", "commit", version.Commit, "municipality", cfg.Shapes.Municipality, "shapes_source", cfg.Shapes.Source)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := utils.OpenDB(cfg.Database)
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	var src shapes.Source = shapes.NewDirSource(cfg.Shapes.Dir)
	if db != nil {
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			l.Error("db_ping_error", "err", err)
		} else {
			l.Info("db_ping_ok", "driver", cfg.Database.Driver)
		}
		if err := migrate.EnsureSchema(ctx, db); err != nil {
			l.Error("schema_error", "err", err)
			os.Exit(1)
		}
		if cfg.Shapes.Source == "sql" {
			src = store.AttachDB(db, cfg.Database.Driver)
		}
	}

	rc := utils.OpenRedisFromConfig(cfg.Redis)
	var repoOpts []shapes.Option
	if rc == nil {
		l.Info("redis_disabled")
	} else {
		if err := rc.Ping(ctx).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok")
		}
		repoOpts = append(repoOpts, shapes.WithRedis(rc, cfg.Shapes.CacheTTL))
	}
	repo := shapes.NewRepository(src, repoOpts...)
	go func() {
		if err := repo.Warm(ctx, cfg.Shapes.Municipality); err != nil {
			l.Error("shapes_warm_error", "err", err)
			return
		}
		l.Info("shapes_warm_ok", "municipality", cfg.Shapes.Municipality)
	}()
	view := repo.For(cfg.Shapes.Municipality)

	composerOpts := []figure.Option{figure.WithView(figure.View{
		Center: figure.LatLon{Lat: cfg.Map.CenterLat, Lon: cfg.Map.CenterLon},
		Zoom:   cfg.Map.Zoom,
	})}
	overlays, err := figure.LoadOverlays(cfg.Map.OverlayPath)
	switch {
	case err == nil:
		composerOpts = append(composerOpts, figure.WithOverlays(overlays))
		l.Info("overlays_loaded", "count", len(overlays))
	case apperr.KindOf(err) == apperr.NotFound:
		l.Info("overlays_skipped", "path", cfg.Map.OverlayPath)
	default:
		l.Error("overlays_error", "err", err)
	}

	engine := revgeo.NewEngine()
	sessions := session.NewManager(cfg.Session.IdleTTL)
	go sessions.Run(ctx, time.Minute)

	mjs := &meetjestad.Loader{
		Client: meetjestad.NewClient(cfg.MeetJeStad.BaseURL,
			meetjestad.WithHTTPClient(&http.Client{Timeout: cfg.MeetJeStad.Timeout}),
			meetjestad.WithRetries(cfg.MeetJeStad.Retries)),
		Shapes: view,
		Engine: engine,
		Window: cfg.MeetJeStad.Window,
	}

	rateLimit := 0
	if cfg.Server.RateLimitEnabled {
		rateLimit = cfg.Server.RateLimitQPS
	}
	srv := api.New(cfg.Server.APIBase, api.Deps{
		Sessions:     sessions,
		Shapes:       view,
		Engine:       engine,
		Composer:     figure.NewComposer(view, composerOpts...),
		Dataplatform: dataplatform.NewClient(),
		MeetJeStad:   mjs,
		Redis:        rc,
		LookupTTL:    cfg.Shapes.CacheTTL,
		RateLimitQPS: rateLimit,
	})

	go func() {
		l.Info("listening", "addr", cfg.Server.Addr, "api_base", cfg.Server.APIBase)
		if err := srv.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("listen_error", "err", err)
			stop()
		}
	}()
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error("shutdown_error", "err", err)
	}
	l.Info("stopped")
}

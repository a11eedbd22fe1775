// Package api exposes the session operations over an echo JSON API.
package api

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"

	"regiokaart/internal/dataplatform"
	"regiokaart/internal/figure"
	"regiokaart/internal/geobind"
	"regiokaart/internal/logger"
	"regiokaart/internal/meetjestad"
	"regiokaart/internal/metrics"
	"regiokaart/internal/region"
	"regiokaart/internal/revgeo"
	"regiokaart/internal/session"
)

// Deps are the collaborators of the API. MeetJeStad and Redis are optional.
type Deps struct {
	Sessions     *session.Manager
	Shapes       geobind.ShapeSource
	Engine       *revgeo.Engine
	Composer     *figure.Composer
	Dataplatform *dataplatform.Client
	MeetJeStad   *meetjestad.Loader
	// StandardLevel is the level the standard dataset is built at for new sessions.
	StandardLevel region.Level
	Redis         *redis.Client
	LookupTTL     time.Duration
	// BodyLimit caps uploads, e.g. "50M".
	BodyLimit string
	// RateLimitQPS drops requests above this many per second with 429; 0 disables it.
	RateLimitQPS int
}

type Server struct {
	router *echo.Echo
	deps   Deps
	lookup *RegionLookup
}

// New builds the router; base is the API prefix, e.g. "/api".
func New(base string, deps Deps) *Server {
	if deps.StandardLevel == "" {
		deps.StandardLevel = region.Buurt
	}
	if deps.BodyLimit == "" {
		deps.BodyLimit = "50M"
	}
	s := &Server{
		router: echo.New(),
		deps:   deps,
		lookup: NewRegionLookup(deps.Shapes, deps.Engine, deps.Redis, deps.LookupTTL),
	}
	e := s.router
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(log.OFF)
	e.Validator = NewValidator()
	e.JSONSerializer = SonicSerializer{}
	e.HTTPErrorHandler = httpErrorHandler
	e.Use(middleware.Recover())
	e.Use(echo.WrapMiddleware(logger.AccessMiddleware(logger.L())))
	e.Use(requestDuration)
	if deps.RateLimitQPS > 0 {
		e.Use(rateLimit(newTokenBucket(deps.RateLimitQPS, time.Now)))
	}
	e.Use(middleware.BodyLimit(deps.BodyLimit))

	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	e.GET("/healthz", s.Health)

	api := e.Group(base)
	api.POST("/preview", s.Preview)
	api.GET("/regions/lookup", s.LookupRegion)

	api.POST("/sessions", s.CreateSession)
	sess := api.Group("/sessions/:sid")
	sess.DELETE("", s.DeleteSession)

	sess.GET("/datasets", s.ListDatasets)
	sess.POST("/datasets", s.LoadDataset)
	sess.GET("/datasets/:name", s.GetDataset)
	sess.DELETE("/datasets/:name", s.DeleteDataset)
	sess.POST("/datasets/:name/aggregate", s.AggregateDataset)
	sess.POST("/dataplatform", s.LoadDataplatform)
	sess.POST("/meetjestad", s.RefreshMeetJeStad)

	sess.GET("/layers", s.ListLayers)
	sess.PUT("/layers/:slot", s.CommitLayer)
	sess.DELETE("/layers/:slot/:name", s.DeleteLayer)

	sess.GET("/figures/charts", s.RenderCharts)
	sess.GET("/figures/charts/:slot/png", s.RenderChartPNG)
	sess.GET("/figures/map", s.RenderMap)
	return s
}

// Handler is the router as a plain http.Handler.
func (s *Server) Handler() *echo.Echo { return s.router }

func (s *Server) Start(addr string) error { return s.router.Start(addr) }

func (s *Server) Shutdown(ctx context.Context) error { return s.router.Shutdown(ctx) }

// requestDuration records RequestDurationMs under the route pattern.
func requestDuration(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		metrics.RequestDurationMs.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
		return err
	}
}

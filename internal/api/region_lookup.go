package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/paulmach/orb"
	"github.com/redis/go-redis/v9"

	"regiokaart/internal/apperr"
	"regiokaart/internal/geobind"
	"regiokaart/internal/logger"
	"regiokaart/internal/metrics"
	"regiokaart/internal/region"
	"regiokaart/internal/revgeo"
	"regiokaart/internal/shapes"
	"regiokaart/internal/table"
)

// LookupResult is the region holding one point. Code and Name are region.Unknown outside every region.
type LookupResult struct {
	Level     region.Level `json:"level"`
	Code      string       `json:"code"`
	Name      string       `json:"name"`
	Latitude  float64      `json:"latitude"`
	Longitude float64      `json:"longitude"`
}

// RegionLookup：单点区域查询，复用空间连接引擎
// 约束：配置 Redis 时按 市、层级、坐标（保留五位小数）缓存结果
type RegionLookup struct {
	shapes       geobind.ShapeSource
	municipality string
	engine       *revgeo.Engine
	rdb          *redis.Client
	ttl          time.Duration
}

func NewRegionLookup(src geobind.ShapeSource, engine *revgeo.Engine, rdb *redis.Client, ttl time.Duration) *RegionLookup {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if engine == nil {
		engine = revgeo.NewEngine()
	}
	return &RegionLookup{shapes: src, municipality: municipalityOf(src), engine: engine, rdb: rdb, ttl: ttl}
}

// municipalityOf：取数据源的市过滤条件；没有过滤条件的数据源视为全部
func municipalityOf(src geobind.ShapeSource) string {
	if m, ok := src.(interface{ Municipality() string }); ok && m.Municipality() != "" {
		return m.Municipality()
	}
	return shapes.AllMunicipalities
}

func lookupKey(municipality string, level region.Level, lat, lon float64) string {
	return fmt.Sprintf("revgeo:%s:%s:%.5f:%.5f", municipality, level, lat, lon)
}

func (r *RegionLookup) Lookup(ctx context.Context, level region.Level, lat, lon float64) (*LookupResult, error) {
	start := time.Now()
	defer func() { metrics.RegionLookupDurationMs.Observe(float64(time.Since(start).Milliseconds())) }()
	key := lookupKey(r.municipality, level, lat, lon)
	if r.rdb != nil {
		if s, _ := r.rdb.Get(ctx, key).Result(); s != "" {
			var out LookupResult
			if err := sonic.ConfigStd.UnmarshalFromString(s, &out); err == nil {
				metrics.RegionLookupsTotal.WithLabelValues("cache").Inc()
				return &out, nil
			}
		}
	}
	set, err := r.shapes.Get(ctx, level)
	if err != nil {
		return nil, err
	}
	pt := table.New()
	pt.CRS = table.CRS84
	pt.Geometry = []orb.Geometry{}
	pt.Append([]any{}, orb.Point{lon, lat})
	joined, _ := r.engine.Assign(pt, set)
	out := &LookupResult{
		Level:     level,
		Code:      fmt.Sprint(joined.Value(0, level.CodeColumn())),
		Name:      fmt.Sprint(joined.Value(0, level.NameColumn())),
		Latitude:  lat,
		Longitude: lon,
	}
	metrics.RegionLookupsTotal.WithLabelValues("join").Inc()
	logger.L().Debug("region_lookup", "level", level, "lat", lat, "lon", lon, "code", out.Code)
	if r.rdb != nil {
		if s, err := sonic.ConfigStd.MarshalToString(out); err == nil {
			_ = r.rdb.Set(ctx, key, s, r.ttl).Err()
		}
	}
	return out, nil
}

// LookupRegion：GET /regions/lookup?lat=..&lon=..&level=Buurt
// 约束：level 缺省为 Buurt；经纬度越界返回 422
func (s *Server) LookupRegion(c echo.Context) error {
	lat, err := strconv.ParseFloat(c.QueryParam("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		return apperr.New(apperr.Invalid, "lat must be a number between -90 and 90")
	}
	lon, err := strconv.ParseFloat(c.QueryParam("lon"), 64)
	if err != nil || lon < -180 || lon > 180 {
		return apperr.New(apperr.Invalid, "lon must be a number between -180 and 180")
	}
	level := region.Buurt
	if v := c.QueryParam("level"); v != "" {
		if level, err = region.ParseLevel(v); err != nil {
			return apperr.Wrap(apperr.Invalid, err.Error(), err)
		}
	}
	out, err := s.lookup.Lookup(c.Request().Context(), level, lat, lon)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

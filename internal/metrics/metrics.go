package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var msBuckets = []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000}

var (
	RequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "regiokaart_request_duration_ms",
		Help:    "API request duration in milliseconds",
		Buckets: msBuckets,
	}, []string{"route"})
	IngestFilesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regiokaart_ingest_files_total",
		Help: "Parsed upload files by kind (xlsx, csv, txt)",
	}, []string{"kind"})
	IngestRowsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "regiokaart_ingest_rows_total",
		Help: "Data rows produced by the tabular ingestor",
	})
	IngestFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regiokaart_ingest_fail_total",
		Help: "Failed dataset loads by error kind",
	}, []string{"kind"})
	JoinPointsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "regiokaart_join_points_total",
		Help: "Points assigned by the spatial join",
	})
	JoinSentinelTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "regiokaart_join_sentinel_total",
		Help: "Points that matched no region",
	})
	JoinMemoHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "regiokaart_join_memo_hits_total",
		Help: "Spatial join lookups answered from the coordinate memo",
	})
	ShapeCacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regiokaart_shape_cache_hits_total",
		Help: "Shape set cache hits by tier (memory, redis)",
	}, []string{"tier"})
	ShapeCacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regiokaart_shape_cache_misses_total",
		Help: "Shape set cache misses by tier (memory, redis)",
	}, []string{"tier"})
	ShapeLoadDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "regiokaart_shape_load_duration_ms",
		Help:    "Shape set load duration from the backing source in milliseconds",
		Buckets: msBuckets,
	})
	RenderErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regiokaart_render_errors_total",
		Help: "Blocking diagnostics raised while rendering, by figure slot",
	}, []string{"figure"})
	UpstreamRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regiokaart_upstream_requests_total",
		Help: "Requests to external dataset sources",
	}, []string{"source"})
	UpstreamFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regiokaart_upstream_fail_total",
		Help: "Failed requests to external dataset sources",
	}, []string{"source"})
	UpstreamDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "regiokaart_upstream_duration_ms",
		Help:    "External dataset source call duration in milliseconds",
		Buckets: msBuckets,
	}, []string{"source"})
	RegionLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regiokaart_region_lookups_total",
		Help: "Single point region lookups by answer source (cache, join)",
	}, []string{"source"})
	RegionLookupDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "regiokaart_region_lookup_duration_ms",
		Help:    "Single point region lookup duration in milliseconds",
		Buckets: msBuckets,
	})
	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "regiokaart_sessions_active",
		Help: "Live operator sessions",
	})
)

func init() {
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(IngestFilesTotal)
	prometheus.MustRegister(IngestRowsTotal)
	prometheus.MustRegister(IngestFailTotal)
	prometheus.MustRegister(JoinPointsTotal)
	prometheus.MustRegister(JoinSentinelTotal)
	prometheus.MustRegister(JoinMemoHitsTotal)
	prometheus.MustRegister(ShapeCacheHitsTotal)
	prometheus.MustRegister(ShapeCacheMissesTotal)
	prometheus.MustRegister(ShapeLoadDurationMs)
	prometheus.MustRegister(RenderErrorsTotal)
	prometheus.MustRegister(UpstreamRequestsTotal)
	prometheus.MustRegister(UpstreamFailTotal)
	prometheus.MustRegister(UpstreamDurationMs)
	prometheus.MustRegister(RegionLookupsTotal)
	prometheus.MustRegister(RegionLookupDurationMs)
	prometheus.MustRegister(SessionsActive)
}

// Handler：暴露已注册指标，供 Prometheus 抓取
func Handler() http.Handler { return promhttp.Handler() }

package shapes

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"regiokaart/internal/apperr"
	"regiokaart/internal/logger"
	"regiokaart/internal/metrics"
	"regiokaart/internal/region"
)

type cacheKey struct {
	municipality string
	level        region.Level
}

// Repository caches shape sets for the process lifetime; sets are shared read-only across sessions.
// A Redis client, when configured, is a second cache tier holding serialized sets.
// Constraint: concurrent first loads of one key may both hit the source; the first stored set wins.
type Repository struct {
	src Source

	mu   sync.RWMutex
	sets map[cacheKey]*Set

	rdb *redis.Client
	ttl time.Duration
}

type Option func(*Repository)

// WithRedis enables the Redis tier; ttl <= 0 means 24h.
func WithRedis(rdb *redis.Client, ttl time.Duration) Option {
	return func(r *Repository) {
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		r.rdb, r.ttl = rdb, ttl
	}
}

func NewRepository(src Source, opts ...Option) *Repository {
	r := &Repository{src: src, sets: map[cacheKey]*Set{}}
	for _, o := range opts {
		o(r)
	}
	return r
}

func redisKey(k cacheKey) string { return "shapes:" + k.municipality + ":" + string(k.level) }

// Get returns the set of (municipality, level), loading it on first use.
func (r *Repository) Get(ctx context.Context, municipality string, level region.Level) (*Set, error) {
	if !level.Valid() {
		return nil, apperr.New(apperr.Invalid, fmt.Sprintf("unknown level %q", level))
	}
	k := cacheKey{municipality, level}
	r.mu.RLock()
	s := r.sets[k]
	r.mu.RUnlock()
	if s != nil {
		metrics.ShapeCacheHitsTotal.WithLabelValues("memory").Inc()
		return s, nil
	}
	metrics.ShapeCacheMissesTotal.WithLabelValues("memory").Inc()

	if s = r.fromRedis(ctx, k); s == nil {
		begin := time.Now()
		shapes, err := r.src.LoadShapes(ctx, municipality, level)
		if err != nil {
			return nil, fmt.Errorf("load shapes %s/%s: %w", municipality, level, err)
		}
		metrics.ShapeLoadDurationMs.Observe(float64(time.Since(begin).Milliseconds()))
		s = NewSet(municipality, level, shapes)
		r.toRedis(ctx, k, s)
		logger.L().Info("shapes_loaded", "municipality", municipality, "level", level, "shapes", s.Len(), "ms", time.Since(begin).Milliseconds())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing := r.sets[k]; existing != nil {
		return existing, nil
	}
	r.sets[k] = s
	return s, nil
}

func (r *Repository) fromRedis(ctx context.Context, k cacheKey) *Set {
	if r.rdb == nil {
		return nil
	}
	b, err := r.rdb.Get(ctx, redisKey(k)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.L().Warn("shapes_redis_get", "key", redisKey(k), "err", err)
		}
		metrics.ShapeCacheMissesTotal.WithLabelValues("redis").Inc()
		return nil
	}
	s, err := UnmarshalSet(b)
	if err != nil {
		logger.L().Warn("shapes_redis_decode", "key", redisKey(k), "err", err)
		metrics.ShapeCacheMissesTotal.WithLabelValues("redis").Inc()
		return nil
	}
	metrics.ShapeCacheHitsTotal.WithLabelValues("redis").Inc()
	return s
}

func (r *Repository) toRedis(ctx context.Context, k cacheKey, s *Set) {
	if r.rdb == nil {
		return
	}
	b, err := MarshalSet(s)
	if err != nil {
		logger.L().Warn("shapes_redis_encode", "key", redisKey(k), "err", err)
		return
	}
	if err := r.rdb.Set(ctx, redisKey(k), b, r.ttl).Err(); err != nil {
		logger.L().Warn("shapes_redis_set", "key", redisKey(k), "err", err)
	}
}

// Warm loads every level of municipality concurrently.
func (r *Repository) Warm(ctx context.Context, municipality string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, l := range region.Levels {
		l := l
		g.Go(func() error {
			_, err := r.Get(ctx, municipality, l)
			return err
		})
	}
	return g.Wait()
}

// View is a Repository bound to one municipality.
type View struct {
	repo         *Repository
	municipality string
}

// For returns the view of municipality used by binding and rendering.
func (r *Repository) For(municipality string) *View {
	return &View{repo: r, municipality: municipality}
}

func (v *View) Municipality() string { return v.municipality }

func (v *View) Get(ctx context.Context, level region.Level) (*Set, error) {
	return v.repo.Get(ctx, v.municipality, level)
}

// 包 revgeo：把点位观测归属到包含它的行政区域（buurt / wijk / gemeente）
package revgeo

import (
	"github.com/paulmach/orb"

	"regiokaart/internal/logger"
	"regiokaart/internal/metrics"
	"regiokaart/internal/region"
	"regiokaart/internal/shapes"
	"regiokaart/internal/table"
)

// DefaultMemoSize is the coordinate memo capacity of NewEngine.
const DefaultMemoSize = 4096

// Engine：先做外包框预筛，再做严格的点在多边形内判定
// 约束：并发安全；坐标缓存在集合与会话之间共享
type Engine struct {
	cache *LRU
}

type Option func(*Engine)

// WithMemo sets the memo capacity; 0 disables memoization.
func WithMemo(capacity int) Option {
	return func(e *Engine) {
		if capacity <= 0 {
			e.cache = nil
			return
		}
		e.cache = NewLRU(capacity)
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{cache: NewLRU(DefaultMemoSize)}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Assign：返回 t 的副本，并追加该层级的编码与名称列（如 BU_CODE、BU_NAAM）
// 约束：点位取集合顺序中第一个严格包含它的边界；未命中、缺失或非点几何的行两列均为 region.Unknown
func (e *Engine) Assign(t *table.Table, set *shapes.Set) (*table.Table, Stats) {
	out := t.Clone()
	codes := make([]any, out.Len())
	names := make([]any, out.Len())
	var st Stats
	for i := range codes {
		codes[i], names[i] = region.Unknown, region.Unknown
		pt, ok := out.GeometryAt(i).(orb.Point)
		if !ok {
			st.Sentinel++
			continue
		}
		st.Points++
		idx := e.locate(set, pt, &st)
		if idx < 0 {
			st.Sentinel++
			continue
		}
		st.Matched++
		codes[i], names[i] = set.Shapes[idx].Code, set.Shapes[idx].Name
	}
	_ = out.SetColumn(set.Level.CodeColumn(), codes)
	_ = out.SetColumn(set.Level.NameColumn(), names)

	metrics.JoinPointsTotal.Add(float64(st.Points))
	metrics.JoinSentinelTotal.Add(float64(st.Sentinel))
	metrics.JoinMemoHitsTotal.Add(float64(st.MemoHits))
	logger.L().Debug("join_done", "level", set.Level, "rows", out.Len(), "matched", st.Matched, "sentinel", st.Sentinel, "memo_hits", st.MemoHits)
	return out, st
}

func (e *Engine) locate(set *shapes.Set, pt orb.Point, st *Stats) int {
	key := memoKey{set: set, pt: pt}
	if e.cache != nil {
		if idx, ok := e.cache.Get(key); ok {
			st.MemoHits++
			return idx
		}
	}
	idx := -1
	for i := range set.Shapes {
		sh := &set.Shapes[i]
		if !sh.Bound.Contains(pt) {
			continue
		}
		if containsStrict(sh.Geometry, pt) {
			idx = i
			break
		}
	}
	if e.cache != nil {
		e.cache.Set(key, idx)
	}
	return idx
}

// DropSentinel：去掉编码列为 region.Unknown 的行
func DropSentinel(t *table.Table, codeCol string) *table.Table {
	j := t.Index(codeCol)
	if j < 0 {
		return t.Clone()
	}
	return t.Filter(func(i int) bool { return t.Rows[i][j] != region.Unknown })
}

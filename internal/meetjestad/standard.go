package meetjestad

import (
	"context"
	"sort"
	"time"

	"github.com/paulmach/orb"

	"regiokaart/internal/aggregate"
	"regiokaart/internal/apperr"
	"regiokaart/internal/dataset"
	"regiokaart/internal/geobind"
	"regiokaart/internal/logger"
	"regiokaart/internal/region"
	"regiokaart/internal/revgeo"
	"regiokaart/internal/shapes"
	"regiokaart/internal/table"
)

// Name is the name of the standard dataset.
const Name = "meet je stad"

// Latest keeps the most recent reading of every sensor id, ordered by time.
func Latest(rs []Reading) []Reading {
	byID := map[int]Reading{}
	for _, r := range rs {
		if old, ok := byID[r.ID]; !ok || !r.Time().Before(old.Time()) {
			byID[r.ID] = r
		}
	}
	out := make([]Reading, 0, len(byID))
	for _, r := range byID {
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].Time(), out[j].Time()
		if ti.Equal(tj) {
			return out[i].ID < out[j].ID
		}
		return ti.Before(tj)
	})
	return out
}

func ptr(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

// Points turns readings with a location into a point table (id, timestamp, temperature, humidity).
func Points(rs []Reading) *table.Table {
	t := table.New("id", "timestamp", "temperature", "humidity")
	t.CRS = table.CRS84
	t.Geometry = []orb.Geometry{}
	for _, r := range rs {
		if r.Longitude == nil || r.Latitude == nil {
			continue
		}
		t.Append([]any{float64(r.ID), r.Timestamp, ptr(r.Temperature), ptr(r.Humidity)}, orb.Point{*r.Longitude, *r.Latitude})
	}
	return t
}

// PerRegion joins the latest readings to set and averages temperature and humidity per region.
// Every region keeps the location of its last sensor.
func PerRegion(rs []Reading, set *shapes.Set, eng *revgeo.Engine) (*table.Table, error) {
	codeCol, nameCol := set.Level.CodeColumn(), set.Level.NameColumn()
	joined, _ := eng.Assign(Points(Latest(rs)), set)
	joined = revgeo.DropSentinel(joined, codeCol)
	if joined.Len() == 0 {
		return nil, apperr.New(apperr.EmptyAfterMerge, "no Meet je Stad sensor lies inside "+set.Municipality)
	}
	sel, err := joined.Select(codeCol, nameCol, "temperature", "humidity")
	if err != nil {
		return nil, err
	}
	res, err := aggregate.Reduce(sel, []string{codeCol, nameCol}, string(aggregate.Mean), "temperature", "humidity")
	if err != nil {
		return nil, err
	}
	return res.Table, nil
}

// Loader builds the standard dataset from the readings of the last Window.
type Loader struct {
	Client *Client
	Shapes geobind.ShapeSource
	Engine *revgeo.Engine
	Window time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Load fetches and aggregates the readings at level. The result is an aggregated latlong dataset.
func (l *Loader) Load(ctx context.Context, level region.Level) (*dataset.Dataset, error) {
	if !level.Valid() {
		return nil, apperr.New(apperr.Invalid, "level must be one of Buurt, Wijk, Gemeente")
	}
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	window := l.Window
	if window <= 0 {
		window = time.Hour
	}
	end := now()
	rs, err := l.Client.Fetch(ctx, end.Add(-window), end)
	if err != nil {
		return nil, err
	}
	set, err := l.Shapes.Get(ctx, level)
	if err != nil {
		return nil, err
	}
	t, err := PerRegion(rs, set, l.Engine)
	if err != nil {
		return nil, err
	}
	d, err := dataset.New(Name, t, geobind.ModeLatLong)
	if err != nil {
		return nil, err
	}
	d.Aggregated = true
	d.Source.URL = l.Client.BaseURL()
	logger.L().Info("meetjestad_loaded", "level", level, "readings", len(rs), "regions", t.Len())
	return d, nil
}

// Refresh loads the dataset and stores it as the protected standard dataset of s.
func (l *Loader) Refresh(ctx context.Context, s *dataset.Store, level region.Level) (*dataset.Dataset, error) {
	d, err := l.Load(ctx, level)
	if err != nil {
		return nil, err
	}
	s.PutStandard(d)
	return d, nil
}

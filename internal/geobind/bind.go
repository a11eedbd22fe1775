// Package geobind attaches geometry to a plain table: points from coordinates, region polygons
// through a code column, or an existing geometry column.
package geobind

import (
	"context"
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"regiokaart/internal/apperr"
	"regiokaart/internal/logger"
	"regiokaart/internal/region"
	"regiokaart/internal/shapes"
	"regiokaart/internal/table"
)

// Mode is the read type of a dataset.
type Mode string

const (
	ModeLatLong  Mode = "latlong"
	ModeBuurt    Mode = Mode(region.Buurt)
	ModeWijk     Mode = Mode(region.Wijk)
	ModeGemeente Mode = Mode(region.Gemeente)
	ModeGeometry Mode = "geometry"
	// ModeUnknown marks datasets of mixed geometry from external sources; they cannot be bound or aggregated.
	ModeUnknown Mode = "onbekend"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeLatLong, ModeBuurt, ModeWijk, ModeGemeente, ModeGeometry:
		return m, nil
	}
	return "", apperr.New(apperr.Invalid, fmt.Sprintf("read type %q is not one of latlong, Buurt, Wijk, Gemeente, geometry", s))
}

// Level returns the region level of a region-code mode.
func (m Mode) Level() (region.Level, bool) {
	l := region.Level(m)
	return l, l.Valid()
}

// Columns names the table columns a mode reads.
type Columns struct {
	Latitude  string
	Longitude string
	Code      string
	Geometry  string
}

// ShapeSource yields the shape set of a level for the active municipality (shapes.View).
type ShapeSource interface {
	Get(ctx context.Context, level region.Level) (*shapes.Set, error)
}

// Bind returns a new geometry table in EPSG:4326; t is not modified.
func Bind(ctx context.Context, t *table.Table, mode Mode, cols Columns, src ShapeSource) (*table.Table, error) {
	var (
		out *table.Table
		err error
	)
	switch mode {
	case ModeLatLong:
		out, err = bindLatLong(t, cols.Latitude, cols.Longitude)
	case ModeGeometry:
		out, err = bindGeometry(t, cols.Geometry)
	case ModeBuurt, ModeWijk, ModeGemeente:
		level, _ := mode.Level()
		out, err = bindRegionCode(ctx, t, level, cols.Code, src)
	default:
		return nil, apperr.New(apperr.Invalid, fmt.Sprintf("cannot bind read type %q", mode))
	}
	if err != nil {
		return nil, err
	}
	out.CRS = table.CRS84
	logger.L().Debug("geobind_done", "mode", mode, "rows_in", t.Len(), "rows_out", out.Len())
	return out, nil
}

// bindLatLong builds one point per row; rows with a missing coordinate get no geometry.
func bindLatLong(t *table.Table, latCol, lonCol string) (*table.Table, error) {
	if !t.Has(latCol) || !t.Has(lonCol) {
		return nil, apperr.New(apperr.MissingColumns, "latitude or longitude column names are not in table headers")
	}
	lats, _ := t.Column(latCol)
	lons, _ := t.Column(lonCol)
	latF, err := table.Floats(latCol, lats)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidGeometry, "getting points from the given longitude and latitude columns failed", err)
	}
	lonF, err := table.Floats(lonCol, lons)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidGeometry, "getting points from the given longitude and latitude columns failed", err)
	}
	out := t.Clone()
	out.Geometry = make([]orb.Geometry, out.Len())
	for i := range out.Rows {
		if math.IsNaN(latF[i]) || math.IsNaN(lonF[i]) {
			continue
		}
		out.Geometry[i] = orb.Point{lonF[i], latF[i]}
	}
	return out, nil
}

// bindRegionCode inner-joins t on codeCol against the level's shapes, adding the level's code and name
// columns (when absent) and the region polygon. Row order of t is kept.
func bindRegionCode(ctx context.Context, t *table.Table, level region.Level, codeCol string, src ShapeSource) (*table.Table, error) {
	if !t.Has(codeCol) {
		return nil, apperr.New(apperr.MissingColumns, fmt.Sprintf("code column %q is not in table headers", codeCol))
	}
	if src == nil {
		return nil, apperr.New(apperr.Invalid, "no shape source configured")
	}
	set, err := src.Get(ctx, level)
	if err != nil {
		return nil, fmt.Errorf("bind %s codes: %w", level, err)
	}

	extra := make([]string, 0, 2)
	for _, c := range []string{level.CodeColumn(), level.NameColumn()} {
		if !t.Has(c) {
			extra = append(extra, c)
		}
	}
	out := table.New(append(append([]string(nil), t.Columns...), extra...)...)
	out.Geometry = []orb.Geometry{}
	codes, _ := t.Column(codeCol)
	for i, v := range codes {
		sh, ok := set.Lookup(table.Text(v))
		if !ok {
			continue
		}
		row := append([]any(nil), t.Rows[i]...)
		for _, c := range extra {
			if c == level.CodeColumn() {
				row = append(row, sh.Code)
			} else {
				row = append(row, sh.Name)
			}
		}
		out.Rows = append(out.Rows, row)
		out.Geometry = append(out.Geometry, sh.Geometry)
	}
	if out.Len() == 0 {
		return nil, apperr.New(apperr.EmptyAfterMerge, "result dataframe is empty after merging location shape data and given dataset")
	}
	return out, nil
}

// bindGeometry parses a WKT or GeoJSON geometry column into row geometry and drops the text column.
func bindGeometry(t *table.Table, geomCol string) (*table.Table, error) {
	j := t.Index(geomCol)
	if j < 0 {
		return nil, apperr.New(apperr.MissingGeometryColumn, fmt.Sprintf("geometry column %q is not in table headers", geomCol))
	}
	keep := make([]string, 0, len(t.Columns)-1)
	for _, c := range t.Columns {
		if c != geomCol {
			keep = append(keep, c)
		}
	}
	out, err := t.Select(keep...)
	if err != nil {
		return nil, err
	}
	out.Geometry = make([]orb.Geometry, t.Len())
	for i, r := range t.Rows {
		if r[j] == nil {
			continue
		}
		s, ok := r[j].(string)
		if !ok {
			return nil, apperr.New(apperr.InvalidGeometry, fmt.Sprintf("row %d: geometry value %v is not text", i+1, r[j]))
		}
		g, err := ParseGeometry(s)
		if err != nil {
			return nil, apperr.Wrap(apperr.InvalidGeometry, fmt.Sprintf("row %d: invalid geometry", i+1), err)
		}
		out.Geometry[i] = g
	}
	return out, nil
}

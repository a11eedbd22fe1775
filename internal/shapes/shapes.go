// Package shapes loads and caches region polygons per (municipality, level).
package shapes

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"regiokaart/internal/region"
	"regiokaart/internal/table"
)

// AllMunicipalities disables the municipality filter.
const AllMunicipalities = "All"

// Shape is one region polygon. Geometry is a Polygon or MultiPolygon in EPSG:4326.
type Shape struct {
	Code         string
	Name         string
	Municipality string
	Geometry     orb.Geometry
	Bound        orb.Bound
}

// Source is a backing store of region polygons.
type Source interface {
	LoadShapes(ctx context.Context, municipality string, level region.Level) ([]Shape, error)
}

// Set is the ordered shape collection of one (municipality, level). Immutable once built.
type Set struct {
	Municipality string
	Level        region.Level
	Shapes       []Shape
	byCode       map[string]int
}

// NewSet indexes shapes by code and fills missing bounds.
func NewSet(municipality string, level region.Level, shapes []Shape) *Set {
	s := &Set{Municipality: municipality, Level: level, Shapes: shapes, byCode: make(map[string]int, len(shapes))}
	for i := range s.Shapes {
		sh := &s.Shapes[i]
		if sh.Bound.IsZero() && sh.Geometry != nil {
			sh.Bound = sh.Geometry.Bound()
		}
		if _, dup := s.byCode[sh.Code]; !dup {
			s.byCode[sh.Code] = i
		}
	}
	return s
}

func (s *Set) Len() int { return len(s.Shapes) }

// Lookup returns the first shape with code.
func (s *Set) Lookup(code string) (Shape, bool) {
	i, ok := s.byCode[code]
	if !ok {
		return Shape{}, false
	}
	return s.Shapes[i], true
}

// Table returns the set as a geometry table with the level's code and name columns (BU_CODE, BU_NAAM).
func (s *Set) Table() *table.Table {
	t := table.New(s.Level.CodeColumn(), s.Level.NameColumn())
	t.CRS = table.CRS84
	t.Geometry = make([]orb.Geometry, 0, len(s.Shapes))
	for _, sh := range s.Shapes {
		t.Rows = append(t.Rows, []any{sh.Code, sh.Name})
		t.Geometry = append(t.Geometry, sh.Geometry)
	}
	return t
}

// MarshalSet serializes a set as a GeoJSON FeatureCollection with code, name and municipality properties.
func MarshalSet(s *Set) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	fc.ExtraMembers = geojson.Properties{"municipality": s.Municipality, "level": string(s.Level)}
	for _, sh := range s.Shapes {
		f := geojson.NewFeature(sh.Geometry)
		f.Properties["code"] = sh.Code
		f.Properties["name"] = sh.Name
		f.Properties["municipality"] = sh.Municipality
		fc.Append(f)
	}
	return sonic.ConfigStd.Marshal(fc)
}

// UnmarshalSet is the inverse of MarshalSet.
func UnmarshalSet(b []byte) (*Set, error) {
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, fmt.Errorf("unmarshal shape set: %w", err)
	}
	level, err := region.ParseLevel(propString(fc.ExtraMembers, "level"))
	if err != nil {
		return nil, fmt.Errorf("unmarshal shape set: %w", err)
	}
	out := make([]Shape, 0, len(fc.Features))
	for _, f := range fc.Features {
		out = append(out, Shape{
			Code:         propString(f.Properties, "code"),
			Name:         propString(f.Properties, "name"),
			Municipality: propString(f.Properties, "municipality"),
			Geometry:     f.Geometry,
		})
	}
	return NewSet(propString(fc.ExtraMembers, "municipality"), level, out), nil
}

func propString(p map[string]interface{}, key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// polygonal reports whether g can be used as a region polygon.
func polygonal(g orb.Geometry) bool {
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return true
	}
	return false
}

package geobind

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// ParseGeometry reads a GeoJSON geometry object or WKT text.
func ParseGeometry(s string) (orb.Geometry, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		g, err := geojson.UnmarshalGeometry([]byte(s))
		if err != nil {
			return nil, err
		}
		return g.Geometry(), nil
	}
	t, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, err
	}
	return toOrb(t)
}

// toOrb converts a go-geom geometry to its orb equivalent, keeping only X and Y.
func toOrb(t geom.T) (orb.Geometry, error) {
	switch g := t.(type) {
	case *geom.Point:
		if g.Empty() {
			return nil, nil
		}
		return orb.Point{g.X(), g.Y()}, nil
	case *geom.LineString:
		return orb.LineString(points(g.Coords())), nil
	case *geom.Polygon:
		return polygon(g), nil
	case *geom.MultiPoint:
		out := make(orb.MultiPoint, 0, g.NumPoints())
		for i := 0; i < g.NumPoints(); i++ {
			p := g.Point(i)
			out = append(out, orb.Point{p.X(), p.Y()})
		}
		return out, nil
	case *geom.MultiLineString:
		out := make(orb.MultiLineString, 0, g.NumLineStrings())
		for i := 0; i < g.NumLineStrings(); i++ {
			out = append(out, orb.LineString(points(g.LineString(i).Coords())))
		}
		return out, nil
	case *geom.MultiPolygon:
		out := make(orb.MultiPolygon, 0, g.NumPolygons())
		for i := 0; i < g.NumPolygons(); i++ {
			out = append(out, polygon(g.Polygon(i)))
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported geometry type %T", t)
}

func polygon(p *geom.Polygon) orb.Polygon {
	out := make(orb.Polygon, 0, p.NumLinearRings())
	for i := 0; i < p.NumLinearRings(); i++ {
		out = append(out, orb.Ring(points(p.LinearRing(i).Coords())))
	}
	return out
}

func points(cs []geom.Coord) []orb.Point {
	out := make([]orb.Point, len(cs))
	for i, c := range cs {
		out[i] = orb.Point{c.X(), c.Y()}
	}
	return out
}

package table

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Feature and FeatureCollection are the wire form of a table. Geometry is null for plain rows.
type Feature struct {
	Type       string            `json:"type"`
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties map[string]any    `json:"properties"`
}

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// ToFeatureCollection serializes every row as a feature; properties carry all columns.
func (t *Table) ToFeatureCollection() *FeatureCollection {
	fc := &FeatureCollection{Type: "FeatureCollection", Features: make([]Feature, len(t.Rows))}
	for i, r := range t.Rows {
		props := make(map[string]any, len(t.Columns))
		for j, c := range t.Columns {
			props[c] = r[j]
		}
		f := Feature{Type: "Feature", Properties: props}
		if g := t.GeometryAt(i); g != nil {
			f.Geometry = geojson.NewGeometry(g)
		}
		fc.Features[i] = f
	}
	return fc
}

// FromFeatureCollection rebuilds a table. columns fixes the column order; when empty, the sorted
// property keys of all features are used.
func FromFeatureCollection(fc *FeatureCollection, columns []string) *Table {
	if len(columns) == 0 {
		columns = PropertyKeys(fc)
	}
	t := New(columns...)
	anyGeom := false
	for _, f := range fc.Features {
		if f.Geometry != nil && f.Geometry.Coordinates != nil {
			anyGeom = true
			break
		}
	}
	if anyGeom {
		t.CRS = CRS84
		t.Geometry = []orb.Geometry{}
	}
	for _, f := range fc.Features {
		row := make([]any, len(columns))
		for j, c := range columns {
			row[j] = normalize(f.Properties[c])
		}
		t.Rows = append(t.Rows, row)
		if anyGeom {
			var g orb.Geometry
			if f.Geometry != nil {
				g = f.Geometry.Geometry()
			}
			t.Geometry = append(t.Geometry, g)
		}
	}
	return t
}

// normalize maps decoded JSON values onto the cell types of a table.
func normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return x.String()
		}
		return f
	case nil, float64, string, bool:
		return x
	}
	return fmt.Sprint(v)
}

// PropertyKeys returns the union of property names across features, sorted.
func PropertyKeys(fc *FeatureCollection) []string {
	seen := map[string]bool{}
	var keys []string
	for _, f := range fc.Features {
		for k := range f.Properties {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

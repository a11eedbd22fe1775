package figure

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"regiokaart/internal/aggregate"
	"regiokaart/internal/apperr"
	"regiokaart/internal/dataset"
	"regiokaart/internal/diag"
	"regiokaart/internal/layer"
	"regiokaart/internal/logger"
	"regiokaart/internal/metrics"
	"regiokaart/internal/region"
	"regiokaart/internal/revgeo"
	"regiokaart/internal/shapes"
	"regiokaart/internal/table"
)

// MapResult is the composite map. Figure is nil when Diagnostics holds an error.
type MapResult struct {
	Figure      *Figure          `json:"figure"`
	Level       region.Level     `json:"level"`
	Diagnostics diag.Diagnostics `json:"diagnostics"`
}

// mapPass carries the per-render counters: colour bars shift right per shown scale, categorical
// layers draw consecutive palette colours.
type mapPass struct {
	set        *shapes.Set
	label      string
	scales     int
	categories int
	palette    []string
	d          diag.Diagnostics
}

// RenderMap draws the region background, the overlays and every map layer at the level of the first
// committed map layer (Buurt when there is none). Shape loading failures are returned as errors; every
// layer problem is collected in the diagnostics.
func (c *Composer) RenderMap(ctx context.Context, layers *layer.Store, datasets *dataset.Store) (MapResult, error) {
	level, ok := layers.MapLevel()
	if !ok || !level.Valid() {
		level = region.Buurt
	}
	set, err := c.shapes.Get(ctx, level)
	if err != nil {
		return MapResult{}, fmt.Errorf("render map: %w", err)
	}
	p := &mapPass{set: set, label: layer.Map.Label(), palette: c.palette, d: diag.New()}
	fig := &Figure{Regions: regionFeatures(set)}
	fig.Data = append(fig.Data, backgroundTrace(set))
	fig.Data = append(fig.Data, overlayTraces(c.overlays)...)

	ls := layers.Layers(layer.Map)
	for _, l := range ls {
		fig.Data = append(fig.Data, p.layerTraces(l, ls[0], level, datasets)...)
	}

	fig.Layout = Layout{
		Mapbox:            &Mapbox{Style: "open-street-map", Zoom: c.view.Zoom, Center: c.view.Center},
		LegendOrientation: "v",
		Legend:            &Legend{X: 0, Y: 0},
		Margin:            Margin{L: 0, R: 2, T: 0, B: 0},
	}
	if len(ls) > 0 {
		fig.Layout.Title = &Title{Text: ls[0].Figure, X: 0.5, Y: 0.99, XAnchor: "center", Font: &Font{Size: 28}}
	}

	res := MapResult{Level: level, Diagnostics: p.d}
	if p.d.HasErrors() {
		metrics.RenderErrorsTotal.WithLabelValues(string(layer.Map)).Add(float64(len(p.d.Errors)))
	} else {
		res.Figure = fig
	}
	logger.L().Debug("map_rendered", "level", level, "layers", len(ls), "traces", len(fig.Data), "errors", len(p.d.Errors))
	return res, nil
}

// FeatureIDKey is the path map traces use to match locations to Regions.
func FeatureIDKey(level region.Level) string { return "properties." + level.CodeColumn() }

func regionFeatures(set *shapes.Set) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, sh := range set.Shapes {
		f := geojson.NewFeature(sh.Geometry)
		f.Properties[set.Level.CodeColumn()] = sh.Code
		f.Properties[set.Level.NameColumn()] = sh.Name
		fc.Append(f)
	}
	return fc
}

func backgroundTrace(set *shapes.Set) Trace {
	locs := make([]string, len(set.Shapes))
	z := make([]any, len(set.Shapes))
	for i, sh := range set.Shapes {
		locs[i] = sh.Code
		z[i] = 0.0
	}
	return Trace{
		Type:          "choroplethmapbox",
		Name:          "background shapes",
		LegendGroup:   "background shapes",
		Locations:     locs,
		Z:             z,
		FeatureIDKey:  FeatureIDKey(set.Level),
		MarkerOpacity: 0.35,
		ShowScale:     boolPtr(false),
		ShowLegend:    boolPtr(false),
		HoverInfo:     "skip",
	}
}

func (p *mapPass) layerTraces(l, first layer.Layer, level region.Level, datasets *dataset.Store) []Trace {
	mv, ok := l.Spec.(layer.MapVariant)
	if !ok {
		p.d.Errorf(apperr.Invalid, "%s: Laag '%s' heeft geen kaart visualisatie type.", p.label, l.Name)
		return nil
	}
	f := mv.Fields()
	if f.Level != level {
		p.d.Errorf(apperr.LevelMismatch, "%s: Regio van dataset %s (%s) komt niet overeen met de regio van dataset %s (%s), die het niveau van de kaart bepaalt.",
			p.label, l.Dataset, f.Level, first.Dataset, level)
		return nil
	}
	t, ok, d := source(p.label, l, datasets, f.Codes, f.Data)
	p.d.Merge(d)
	if !ok {
		return nil
	}
	t = revgeo.DropSentinel(t, f.Codes)
	codes, _ := t.Column(f.Codes)
	if !ValidCodeColumn(codes, level) {
		p.d.Errorf(apperr.InvalidCodes, "%s: De kolom %s in %s bevat geen (correcte) %s codes", p.label, f.Codes, l.Dataset, level)
		return nil
	}

	switch s := l.Spec.(type) {
	case layer.Choropleth:
		return p.choropleth(l, s, t)
	case layer.Categorical:
		return p.categorical(l, s, t)
	case layer.Bubble:
		return p.bubble(l, s, t)
	}
	return nil
}

// ValidCodeColumn reports whether every value is a string with the level prefix and all values share
// one valid code length.
func ValidCodeColumn(vals []any, level region.Level) bool {
	if len(vals) == 0 {
		return false
	}
	n := -1
	for _, v := range vals {
		s, ok := v.(string)
		if !ok || !strings.HasPrefix(s, level.Prefix()) {
			return false
		}
		switch {
		case n < 0:
			n = len(s)
		case len(s) != n:
			return false
		}
	}
	return region.ValidLength(n)
}

// reduced is a layer's data reduced to one value per region.
type reduced struct {
	codes     []string
	names     []string
	values    []any
	colorName string
	hover     string
}

// reduceLayer groups t by the code column (and its name column when present) with the layer reducer.
func (p *mapPass) reduceLayer(l layer.Layer, f layer.MapFields, reducer, chart, hoverValue string, t *table.Table) (*reduced, bool) {
	keys := []string{f.Codes}
	nameCol := region.NameColumnFor(f.Codes)
	hasNames := t.Has(nameCol) && nameCol != f.Codes && nameCol != f.Data
	if hasNames {
		keys = append(keys, nameCol)
	}
	res, err := aggregate.Reduce(t, keys, reducer, f.Data)
	if err != nil {
		if apperr.KindOf(err) == apperr.TypeMismatch {
			p.d.Errorf(apperr.TypeMismatch, "%s", numericError(p.label, "visualisatie", chart, l.Name, f.Data, castTypes(err)))
		} else {
			p.d.Errorf(apperr.KindOf(err), "%s: %s", p.label, apperr.Message(err))
		}
		return nil, false
	}
	for _, w := range res.Diagnostics.Warnings {
		p.d.Warnf("%s: %s", p.label, w)
	}
	valueCol := f.Data
	for _, k := range keys {
		if k == f.Data {
			valueCol = aggregate.CountColumn
		}
	}
	out := &reduced{colorName: f.Data, hover: "%{location}<br>%{customdata}: " + hoverValue}
	if res.Reducer == aggregate.Frequency {
		out.colorName = "Aantal"
	}
	if hasNames {
		out.hover = "%{text}<br>%{customdata}: " + hoverValue
	}
	rt := res.Table
	for i := range rt.Rows {
		out.codes = append(out.codes, table.Text(rt.Value(i, f.Codes)))
		if hasNames {
			out.names = append(out.names, table.Text(rt.Value(i, nameCol)))
		}
		out.values = append(out.values, rt.Value(i, valueCol))
	}
	return out, true
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func (p *mapPass) choropleth(l layer.Layer, s layer.Choropleth, t *table.Table) []Trace {
	r, ok := p.reduceLayer(l, s.MapFields, s.Reducer, "Numerieke kaart", "%{z}", t)
	if !ok {
		return nil
	}
	tr := Trace{
		Type:          "choroplethmapbox",
		Name:          l.Name,
		Locations:     r.codes,
		Z:             r.values,
		FeatureIDKey:  FeatureIDKey(p.set.Level),
		MarkerOpacity: 0.5,
		ShowScale:     boolPtr(true),
		ShowLegend:    boolPtr(true),
		ColorBar:      &ColorBar{Title: r.colorName, X: 1.02 + 0.2*float64(p.scales)},
		ColorScale:    Colormap(s.Colormap),
		HoverTemplate: r.hover,
		Text:          r.names,
		CustomData:    repeat(s.Data, len(r.codes)),
	}
	p.scales++
	return []Trace{tr}
}

// categorical colours each region by its most frequent category, ties broken by the smallest text.
// Regions missing from the shape set are left out.
func (p *mapPass) categorical(l layer.Layer, s layer.Categorical, t *table.Table) []Trace {
	counts := map[string]map[string]int{}
	var regionOrder []string
	for i := range t.Rows {
		v := t.Value(i, s.Data)
		if v == nil {
			continue
		}
		code := table.Text(t.Value(i, s.Codes))
		if counts[code] == nil {
			counts[code] = map[string]int{}
			regionOrder = append(regionOrder, code)
		}
		counts[code][table.Text(v)]++
	}

	mixed := false
	byCategory := map[string][]string{}
	for _, code := range regionOrder {
		cs := counts[code]
		if len(cs) > 1 {
			mixed = true
		}
		if _, ok := p.set.Lookup(code); !ok {
			continue
		}
		best, bestN := "", 0
		for cat, n := range cs {
			if n > bestN || (n == bestN && cat < best) {
				best, bestN = cat, n
			}
		}
		byCategory[best] = append(byCategory[best], code)
	}
	if mixed {
		p.d.Warnf("%s: Categorische kaart %s heeft per %s meer dan 1 categorie. Het is niet mogelijk om per gebied "+
			"meerdere categorieën te visualiseren. Daarom is de categorie in de kaart de meest voorkomende categorie.",
			p.label, l.Name, s.Codes)
	}

	cats := make([]string, 0, len(byCategory))
	for c := range byCategory {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	if p.categories+len(cats) > len(p.palette) {
		p.d.Errorf(apperr.PaletteExhausted, "%s: De categorische kaart kan maximaal %d categorieën visualiseren. Deze visualisatie heeft %d unieke categorieën.",
			p.label, len(p.palette), len(cats))
		return nil
	}

	out := make([]Trace, 0, len(cats))
	for _, cat := range cats {
		codes := byCategory[cat]
		names := make([]string, len(codes))
		z := make([]any, len(codes))
		for i, code := range codes {
			sh, _ := p.set.Lookup(code)
			names[i] = sh.Name
			z[i] = 0.0
		}
		out = append(out, Trace{
			Type:          "choroplethmapbox",
			Name:          l.Name + ": " + cat,
			LegendGroup:   l.Name,
			Locations:     codes,
			Z:             z,
			FeatureIDKey:  FeatureIDKey(p.set.Level),
			MarkerOpacity: 0.5,
			ShowScale:     boolPtr(false),
			ShowLegend:    boolPtr(true),
			ColorScale:    Solid(p.palette[p.categories]),
			HoverTemplate: "%{text}<br>%{customdata}",
			Text:          names,
			CustomData:    repeat(cat, len(codes)),
		})
		p.categories++
	}
	return out
}

// bubble places one bubble per region at the polygon centroid, largest first so small bubbles stay on
// top. Member point locations are never drawn.
func (p *mapPass) bubble(l layer.Layer, s layer.Bubble, t *table.Table) []Trace {
	r, ok := p.reduceLayer(l, s.MapFields, s.Reducer, "bubbelkaart", "%{marker.color}", t)
	if !ok {
		return nil
	}
	idx := order(r.values, true)

	var lat, lon, sizes, border []float64
	var colors []any
	var text []string
	maxSize := 0.0
	for _, i := range idx {
		v, ok := r.values[i].(float64)
		if !ok {
			continue
		}
		sh, found := p.set.Lookup(r.codes[i])
		if !found {
			continue
		}
		c := Centroid(sh.Geometry)
		lat = append(lat, c.Lat())
		lon = append(lon, c.Lon())
		sizes = append(sizes, v)
		border = append(border, min(v*1.2, v+2))
		colors = append(colors, v)
		if r.names != nil {
			text = append(text, r.names[i])
		}
		if v > maxSize {
			maxSize = v
		}
	}
	sizeRef := maxSize / 20
	if sizeRef <= 0 {
		sizeRef = 1
	}
	const minSize = 3.0
	borderTrace := Trace{
		Type:       "scattermapbox",
		Lat:        lat,
		Lon:        lon,
		ShowLegend: boolPtr(false),
		HoverInfo:  "skip",
		Opacity:    1,
		Marker: &Marker{
			Size:    border,
			SizeRef: sizeRef,
			SizeMin: min(minSize*1.2, minSize+2),
			Color:   "rgb(10, 10, 10)",
		},
	}
	bubbleTrace := Trace{
		Type:          "scattermapbox",
		Name:          l.Name,
		Lat:           lat,
		Lon:           lon,
		ShowLegend:    boolPtr(true),
		HoverTemplate: r.hover,
		HoverInfo:     "text",
		Text:          text,
		CustomData:    repeat(s.Data, len(lat)),
		Opacity:       1,
		Marker: &Marker{
			Size:       sizes,
			SizeRef:    sizeRef,
			SizeMin:    minSize,
			Color:      colors,
			ColorScale: Colormap(s.Colormap),
			ColorBar:   &ColorBar{Title: r.colorName, X: 1.02 + 0.2*float64(p.scales)},
			ShowScale:  true,
		},
	}
	p.scales++
	return []Trace{borderTrace, bubbleTrace}
}

// Centroid is the area centroid of a region polygon.
func Centroid(g orb.Geometry) orb.Point {
	c, _ := planar.CentroidArea(g)
	return c
}

package figure

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/paulmach/orb"

	"regiokaart/internal/apperr"
	"regiokaart/internal/dataset"
	"regiokaart/internal/geobind"
	"regiokaart/internal/layer"
	"regiokaart/internal/region"
	"regiokaart/internal/shapes"
	"regiokaart/internal/table"
)

type staticShapes map[region.Level]*shapes.Set

func (s staticShapes) Get(_ context.Context, l region.Level) (*shapes.Set, error) {
	if set, ok := s[l]; ok {
		return set, nil
	}
	return nil, apperr.New(apperr.NotFound, "no shapes")
}

func square(x, y, d float64) orb.Polygon {
	return orb.Polygon{orb.Ring{{x, y}, {x + d, y}, {x + d, y + d}, {x, y + d}, {x, y}}}
}

// buurten returns n adjacent squares BU08550001..n named B1..Bn.
func buurten(n int) staticShapes {
	var sh []shapes.Shape
	for i := 0; i < n; i++ {
		sh = append(sh, shapes.Shape{
			Code:     fmt.Sprintf("BU0855%04d", i+1),
			Name:     fmt.Sprintf("B%d", i+1),
			Geometry: square(5.0+0.1*float64(i), 51.5, 0.1),
		})
	}
	return staticShapes{region.Buurt: shapes.NewSet("Tilburg", region.Buurt, sh)}
}

func put(t *testing.T, s *dataset.Store, name string, tbl *table.Table) {
	t.Helper()
	d, err := dataset.New(name, tbl, geobind.ModeUnknown)
	if err != nil {
		t.Fatalf("dataset.New: %v", err)
	}
	if err := s.Put(d); err != nil {
		t.Fatalf("Put: %v", err)
	}
}

func rows(cols []string, data ...[]any) *table.Table {
	tbl := table.New(cols...)
	for _, r := range data {
		tbl.Append(r, nil)
	}
	return tbl
}

func commit(t *testing.T, s *layer.Store, slot layer.Slot, l layer.Layer) {
	t.Helper()
	if _, d := s.Commit(slot, l, ""); d.HasErrors() {
		t.Fatalf("Commit: %v", d.Errors)
	}
}

func TestScatterSortsByX(t *testing.T) {
	ds := dataset.NewStore()
	put(t, ds, "metingen", rows([]string{"x", "y"}, []any{3.0, 30.0}, []any{1.0, 10.0}, []any{2.0, 20.0}))
	ls := layer.NewStore()
	commit(t, ls, layer.Chart1, layer.Layer{Name: "lijn", Figure: "Metingen", Dataset: "metingen",
		Spec: layer.Scatter{X: "x", XAxis: "tijd", Y: "y", YAxis: "waarde"}})

	res := NewComposer(buurten(1)).RenderCharts(ls, ds)
	if res.Diagnostics.HasErrors() {
		t.Fatalf("errors: %v", res.Diagnostics.Errors)
	}
	fig := res.Figures[layer.Chart1]
	if fig == nil || len(fig.Data) != 1 {
		t.Fatalf("figure = %+v", fig)
	}
	tr := fig.Data[0]
	for i, want := range []float64{1, 2, 3} {
		if tr.X[i] != want || tr.Y[i] != want*10 {
			t.Errorf("point %d = (%v, %v)", i, tr.X[i], tr.Y[i])
		}
	}
	if fig.Layout.Title.Text != "Metingen" || fig.Layout.XAxis.Title != "tijd" || fig.Layout.YAxis.Title != "waarde" {
		t.Errorf("layout = %+v %+v %+v", fig.Layout.Title, fig.Layout.XAxis, fig.Layout.YAxis)
	}
	if empty := res.Figures[layer.Chart2]; empty == nil || len(empty.Data) != 0 {
		t.Errorf("empty slot figure = %+v", empty)
	}
}

func TestScatterNonNumericY(t *testing.T) {
	ds := dataset.NewStore()
	put(t, ds, "metingen", rows([]string{"x", "y"}, []any{1.0, 10.0}, []any{2.0, "hoog"}))
	ls := layer.NewStore()
	commit(t, ls, layer.Chart1, layer.Layer{Name: "lijn", Dataset: "metingen",
		Spec: layer.Scatter{X: "x", XAxis: "x", Y: "y", YAxis: "y"}})
	commit(t, ls, layer.Chart2, layer.Layer{Name: "staaf", Dataset: "metingen",
		Spec: layer.Histogram{X: "x", XAxis: "x"}})

	res := NewComposer(buurten(1)).RenderCharts(ls, ds)
	if res.Figures[layer.Chart1] != nil {
		t.Error("chart 1 rendered despite the type error")
	}
	if res.Figures[layer.Chart2] == nil {
		t.Error("chart 2 not rendered")
	}
	if len(res.Diagnostics.Errors) != 1 {
		t.Fatalf("errors = %v", res.Diagnostics.Errors)
	}
	if !res.Diagnostics.Has(apperr.TypeMismatch) {
		t.Errorf("kinds = %v, want type_mismatch", res.Diagnostics.Kinds)
	}
	msg := res.Diagnostics.Errors[0]
	for _, want := range []string{"Grafiek 1", "kolom 'y'", "getal", "tekst/categorisch"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not mention %q", msg, want)
		}
	}
}

func TestBarDuplicateXWarns(t *testing.T) {
	ds := dataset.NewStore()
	put(t, ds, "d", rows([]string{"wijk", "n"}, []any{"b", 1.0}, []any{"a", 2.0}, []any{"b", 3.0}))
	ls := layer.NewStore()
	commit(t, ls, layer.Chart1, layer.Layer{Name: "staaf", Dataset: "d",
		Spec: layer.Bar{X: "wijk", XAxis: "wijk", Y: "n", YAxis: "aantal"}})

	res := NewComposer(buurten(1)).RenderCharts(ls, ds)
	if len(res.Diagnostics.Warnings) != 1 || !strings.Contains(res.Diagnostics.Warnings[0], "meerdere y waardes") {
		t.Errorf("warnings = %v", res.Diagnostics.Warnings)
	}
	tr := res.Figures[layer.Chart1].Data[0]
	if tr.X[0] != "a" || tr.Y[0] != 2.0 {
		t.Errorf("first bar = (%v, %v)", tr.X[0], tr.Y[0])
	}
}

func TestChartKinds(t *testing.T) {
	ds := dataset.NewStore()
	put(t, ds, "d", rows([]string{"soort", "a", "b"},
		[]any{"x", 3.0, 1.0}, []any{"y", 1.0, 2.0}, []any{"z", 2.0, 3.0}))
	tests := []struct {
		name    string
		spec    layer.Variant
		traces  int
		barmode string
		yTitle  string
	}{
		{"grouped", layer.GroupedBar{X: "soort", XAxis: "s", Y: []string{"a", "b"}, YAxis: "n"}, 2, "group", "n"},
		{"stacked", layer.GroupedBar{X: "soort", XAxis: "s", Y: []string{"a"}, YAxis: "n", Mode: "stack"}, 1, "stack", "n"},
		{"pie", layer.Pie{Labels: "soort", Values: "a"}, 1, "", ""},
		{"histogram", layer.Histogram{X: "a", XAxis: "a"}, 1, "", "frequentie"},
		{"multi histogram", layer.MultiHistogram{X: []string{"a", "b"}, XAxis: "ab"}, 2, "overlay", "frequentie"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ls := layer.NewStore()
			commit(t, ls, layer.Chart2, layer.Layer{Name: "l", Dataset: "d", Spec: tt.spec})
			res := NewComposer(buurten(1)).RenderCharts(ls, ds)
			fig := res.Figures[layer.Chart2]
			if fig == nil {
				t.Fatalf("no figure: %v", res.Diagnostics.Errors)
			}
			if len(fig.Data) != tt.traces {
				t.Errorf("traces = %d, want %d", len(fig.Data), tt.traces)
			}
			if fig.Layout.BarMode != tt.barmode {
				t.Errorf("barmode = %q, want %q", fig.Layout.BarMode, tt.barmode)
			}
			if fig.Layout.YAxis.Title != tt.yTitle {
				t.Errorf("y title = %q, want %q", fig.Layout.YAxis.Title, tt.yTitle)
			}
		})
	}
}

func TestPieSortedByValue(t *testing.T) {
	ds := dataset.NewStore()
	put(t, ds, "d", rows([]string{"soort", "n"}, []any{"x", 3.0}, []any{"y", 1.0}, []any{"z", 2.0}))
	ls := layer.NewStore()
	commit(t, ls, layer.Chart1, layer.Layer{Name: "taart", Dataset: "d", Spec: layer.Pie{Labels: "soort", Values: "n"}})
	tr := NewComposer(buurten(1)).RenderCharts(ls, ds).Figures[layer.Chart1].Data[0]
	if got := fmt.Sprint(tr.Labels); got != "[y z x]" {
		t.Errorf("labels = %s", got)
	}
}

func categorical(name string) layer.Layer {
	return layer.Layer{Name: name, Figure: "Soorten", Dataset: "soorten",
		Spec: layer.Categorical{MapFields: layer.MapFields{Level: region.Buurt, Codes: "BU_CODE", Data: "soort"}}}
}

func TestCategoricalPaletteExhausted(t *testing.T) {
	ds := dataset.NewStore()
	tbl := table.New("BU_CODE", "soort")
	for i, s := range []string{"eik", "beuk", "den", "berk", "linde"} {
		tbl.Append([]any{fmt.Sprintf("BU0855%04d", i+1), s}, nil)
	}
	put(t, ds, "soorten", tbl)
	ls := layer.NewStore()
	commit(t, ls, layer.Map, categorical("bomen"))

	c := NewComposer(buurten(5), WithPalette([]string{"#111111", "#222222", "#333333"}))
	res, err := c.RenderMap(context.Background(), ls, ds)
	if err != nil {
		t.Fatalf("RenderMap: %v", err)
	}
	if res.Figure != nil {
		t.Error("figure rendered despite the palette error")
	}
	if len(res.Diagnostics.Errors) != 1 {
		t.Fatalf("errors = %v", res.Diagnostics.Errors)
	}
	if got := res.Diagnostics.Kinds; len(got) != 1 || got[0] != apperr.PaletteExhausted {
		t.Errorf("kinds = %v, want [palette_exhausted]", got)
	}
	msg := res.Diagnostics.Errors[0]
	if !strings.Contains(msg, "5") || !strings.Contains(msg, "3") {
		t.Errorf("error %q does not cite 5 and 3", msg)
	}
}

func TestCategoricalMostFrequent(t *testing.T) {
	ds := dataset.NewStore()
	put(t, ds, "soorten", rows([]string{"BU_CODE", "soort"},
		[]any{"BU08550001", "eik"}, []any{"BU08550001", "beuk"}, []any{"BU08550001", "beuk"},
		[]any{"BU08550002", "eik"}, []any{"onbekend", "den"}))
	ls := layer.NewStore()
	commit(t, ls, layer.Map, categorical("bomen"))

	res, err := NewComposer(buurten(2)).RenderMap(context.Background(), ls, ds)
	if err != nil || res.Figure == nil {
		t.Fatalf("RenderMap: %v %v", err, res.Diagnostics.Errors)
	}
	if len(res.Diagnostics.Warnings) != 1 {
		t.Errorf("warnings = %v", res.Diagnostics.Warnings)
	}
	got := map[string][]string{}
	for _, tr := range res.Figure.Data {
		if tr.LegendGroup == "bomen" {
			got[tr.Name] = tr.Locations
		}
	}
	if len(got) != 2 || fmt.Sprint(got["bomen: beuk"]) != "[BU08550001]" || fmt.Sprint(got["bomen: eik"]) != "[BU08550002]" {
		t.Errorf("category traces = %v", got)
	}
}

func TestChoroplethMeanPerRegion(t *testing.T) {
	ds := dataset.NewStore()
	put(t, ds, "metingen", rows([]string{"BU_CODE", "BU_NAAM", "temperature"},
		[]any{"BU08550001", "B1", 10.0}, []any{"BU08550002", "B2", 20.0}, []any{"BU08550002", "B2", 40.0},
		[]any{region.Unknown, region.Unknown, 99.0}))
	ls := layer.NewStore()
	commit(t, ls, layer.Map, layer.Layer{Name: "temp", Figure: "Temperatuur", Dataset: "metingen",
		Spec: layer.Choropleth{MapFields: layer.MapFields{Level: region.Buurt, Codes: "BU_CODE", Data: "temperature"}, Reducer: "mean", Colormap: "Reds"}})

	res, err := NewComposer(buurten(2)).RenderMap(context.Background(), ls, ds)
	if err != nil || res.Figure == nil {
		t.Fatalf("RenderMap: %v %v", err, res.Diagnostics.Errors)
	}
	tr := res.Figure.Data[len(res.Figure.Data)-1]
	if fmt.Sprint(tr.Locations) != "[BU08550001 BU08550002]" || fmt.Sprint(tr.Z) != "[10 30]" {
		t.Errorf("locations/z = %v / %v", tr.Locations, tr.Z)
	}
	if fmt.Sprint(tr.Text) != "[B1 B2]" || tr.HoverTemplate != "%{text}<br>%{customdata}: %{z}" {
		t.Errorf("text/hover = %v / %q", tr.Text, tr.HoverTemplate)
	}
	if tr.ColorBar.Title != "temperature" || tr.ColorBar.X != 1.02 {
		t.Errorf("colorbar = %+v", tr.ColorBar)
	}
	if res.Figure.Layout.Title.Text != "Temperatuur" || res.Figure.Layout.Mapbox.Zoom != 11.5 {
		t.Errorf("layout = %+v", res.Figure.Layout)
	}
}

func TestMapLevelMismatch(t *testing.T) {
	ds := dataset.NewStore()
	put(t, ds, "buurtdata", rows([]string{"BU_CODE", "v"}, []any{"BU08550001", 1.0}))
	put(t, ds, "wijkdata", rows([]string{"WK_CODE", "v"}, []any{"WK085501", 1.0}))
	ls := layer.NewStore()
	err := ls.UnmarshalJSON([]byte(`{"map_vis":{
		"a":{"figure_name":"k","layer_name":"a","visualisation_type":"choroplethmapbox","selected_dataset":"buurtdata",
			"map_level":"Buurt","map_labels":"BU_CODE","map_data":"v","aggregate_method":"mean","colormap":"Blues"},
		"b":{"figure_name":"k","layer_name":"b","visualisation_type":"choroplethmapbox","selected_dataset":"wijkdata",
			"map_level":"Wijk","map_labels":"WK_CODE","map_data":"v","aggregate_method":"mean","colormap":"Blues"}}}`))
	if err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	res, err := NewComposer(buurten(1)).RenderMap(context.Background(), ls, ds)
	if err != nil {
		t.Fatalf("RenderMap: %v", err)
	}
	if res.Figure != nil || len(res.Diagnostics.Errors) != 1 {
		t.Fatalf("figure = %v, errors = %v", res.Figure != nil, res.Diagnostics.Errors)
	}
	if !res.Diagnostics.Has(apperr.LevelMismatch) {
		t.Errorf("kinds = %v, want level_mismatch", res.Diagnostics.Kinds)
	}
	msg := res.Diagnostics.Errors[0]
	for _, want := range []string{"buurtdata", "wijkdata", "Buurt", "Wijk"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not mention %q", msg, want)
		}
	}
}

func TestMapRejectsBadCodeColumn(t *testing.T) {
	ds := dataset.NewStore()
	put(t, ds, "gemeenten", rows([]string{"BU_CODE", "v"}, []any{"GM0855", 1.0}))
	ls := layer.NewStore()
	commit(t, ls, layer.Map, layer.Layer{Name: "g", Dataset: "gemeenten",
		Spec: layer.Choropleth{MapFields: layer.MapFields{Level: region.Buurt, Codes: "BU_CODE", Data: "v"}, Reducer: "mean"}})
	res, _ := NewComposer(buurten(1)).RenderMap(context.Background(), ls, ds)
	if len(res.Diagnostics.Errors) != 1 || !strings.Contains(res.Diagnostics.Errors[0], "bevat geen (correcte) Buurt codes") {
		t.Errorf("errors = %v", res.Diagnostics.Errors)
	}
}

func TestValidCodeColumn(t *testing.T) {
	tests := []struct {
		name string
		vals []any
		want bool
	}{
		{"buurt codes", []any{"BU08550001", "BU08550002"}, true},
		{"wrong prefix", []any{"BU08550001", "WK08550002"}, false},
		{"mixed lengths", []any{"BU08550001", "BU085501"}, false},
		{"shared short length", []any{"BU0855", "BU0855"}, true},
		{"bad length", []any{"BU08550", "BU08551"}, false},
		{"number", []any{"BU08550001", 3.0}, false},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidCodeColumn(tt.vals, region.Buurt); got != tt.want {
				t.Errorf("ValidCodeColumn(%v) = %v, want %v", tt.vals, got, tt.want)
			}
		})
	}
}

func TestBubbleAtCentroid(t *testing.T) {
	ds := dataset.NewStore()
	put(t, ds, "metingen", rows([]string{"BU_CODE", "n"},
		[]any{"BU08550001", 1.0}, []any{"BU08550002", 4.0}, []any{"BU08550002", 6.0}))
	ls := layer.NewStore()
	commit(t, ls, layer.Map, layer.Layer{Name: "bel", Dataset: "metingen",
		Spec: layer.Bubble{MapFields: layer.MapFields{Level: region.Buurt, Codes: "BU_CODE", Data: "n"}, Reducer: "sum"}})

	res, err := NewComposer(buurten(2)).RenderMap(context.Background(), ls, ds)
	if err != nil || res.Figure == nil {
		t.Fatalf("RenderMap: %v %v", err, res.Diagnostics.Errors)
	}
	n := len(res.Figure.Data)
	border, bubble := res.Figure.Data[n-2], res.Figure.Data[n-1]
	if border.HoverInfo != "skip" || border.Marker.SizeMin != 3.6 {
		t.Errorf("border = %+v", border.Marker)
	}
	// Largest first: BU08550002 (sum 10) sits at the centre of the second square.
	if math.Abs(bubble.Lon[0]-5.15) > 1e-9 || math.Abs(bubble.Lat[0]-51.55) > 1e-9 {
		t.Errorf("first bubble at (%v, %v)", bubble.Lon[0], bubble.Lat[0])
	}
	if bubble.Marker.Size[0] != 10 || bubble.Marker.SizeRef != 0.5 {
		t.Errorf("size = %v, sizeref = %v", bubble.Marker.Size, bubble.Marker.SizeRef)
	}
}

func TestEmptyMapShowsBackground(t *testing.T) {
	res, err := NewComposer(buurten(3)).RenderMap(context.Background(), layer.NewStore(), dataset.NewStore())
	if err != nil || res.Figure == nil {
		t.Fatalf("RenderMap: %v", err)
	}
	if res.Level != region.Buurt || res.Figure.Layout.Title != nil {
		t.Errorf("level = %s, title = %+v", res.Level, res.Figure.Layout.Title)
	}
	bg := res.Figure.Data[0]
	if len(bg.Locations) != 3 || bg.FeatureIDKey != "properties.BU_CODE" || len(res.Figure.Regions.Features) != 3 {
		t.Errorf("background = %+v", bg)
	}
}

func TestMapMissingShapes(t *testing.T) {
	if _, err := NewComposer(staticShapes{}).RenderMap(context.Background(), layer.NewStore(), dataset.NewStore()); apperr.KindOf(err) != apperr.NotFound {
		t.Errorf("err = %v", err)
	}
}

func TestOverlayTraces(t *testing.T) {
	overlays, err := ParseOverlays([]byte(`{
		"Ringbaan Noord": {"Type": "Ringbaan", "Latitude": [51.5, 51.6], "Longitude": [5.0, 5.1]},
		"Ringbaan Oost": {"Type": "Ringbaan", "Latitude": [51.5, 51.6], "Longitude": [5.1, 5.1]},
		"Spoorlijn": {"Type": "Spoor", "Latitude": [51.55, 51.56], "Longitude": [5.0, 5.2]}}`))
	if err != nil {
		t.Fatalf("ParseOverlays: %v", err)
	}
	traces := overlayTraces(overlays)
	if len(traces) != 6 {
		t.Fatalf("traces = %d", len(traces))
	}
	var legend []string
	for _, tr := range traces {
		if *tr.ShowLegend {
			legend = append(legend, tr.LegendGroup)
		}
	}
	if fmt.Sprint(legend) != "[ringbaan spoor]" {
		t.Errorf("legend entries = %v", legend)
	}
	if traces[0].Line.Width != 4 || traces[1].Line.Color != "#FCD6A4" {
		t.Errorf("ring road style = %+v %+v", traces[0].Line, traces[1].Line)
	}
}

func TestColorScaleJSON(t *testing.T) {
	b, err := sonic.ConfigStd.Marshal(Solid("#AA0DFE"))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `[[0,"#AA0DFE"],[1,"#AA0DFE"]]` {
		t.Errorf("json = %s", b)
	}
	if cs := Colormap(""); cs[0].Color != "rgb(247,251,255)" || cs[len(cs)-1].Pos != 1 {
		t.Errorf("default colormap = %v", cs)
	}
}

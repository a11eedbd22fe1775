package figure

import (
	"regiokaart/internal/apperr"
	"regiokaart/internal/dataset"
	"regiokaart/internal/diag"
	"regiokaart/internal/layer"
	"regiokaart/internal/logger"
	"regiokaart/internal/metrics"
	"regiokaart/internal/table"
)

// ChartSlots are the chart figures RenderCharts draws.
var ChartSlots = []layer.Slot{layer.Chart1, layer.Chart2}

// ChartsResult holds one figure per chart slot. A slot whose layers raised an error maps to nil and the
// caller keeps the figure it showed before. A slot without layers gets an empty figure.
type ChartsResult struct {
	Figures     map[layer.Slot]*Figure `json:"figures"`
	Diagnostics diag.Diagnostics       `json:"diagnostics"`
}

// RenderCharts draws every chart slot, one trace (or trace group) per layer in insertion order.
// The titles of the last layer of a slot become the figure and axis titles.
func (c *Composer) RenderCharts(layers *layer.Store, datasets *dataset.Store) ChartsResult {
	res := ChartsResult{Figures: map[layer.Slot]*Figure{}, Diagnostics: diag.New()}
	for _, slot := range ChartSlots {
		fig, d := renderChart(slot, layers.Layers(slot), datasets)
		res.Diagnostics.Merge(d)
		if d.HasErrors() {
			metrics.RenderErrorsTotal.WithLabelValues(string(slot)).Add(float64(len(d.Errors)))
			res.Figures[slot] = nil
			continue
		}
		res.Figures[slot] = fig
	}
	logger.L().Debug("charts_rendered", "errors", len(res.Diagnostics.Errors), "warnings", len(res.Diagnostics.Warnings))
	return res
}

func renderChart(slot layer.Slot, ls []layer.Layer, datasets *dataset.Store) (*Figure, diag.Diagnostics) {
	d := diag.New()
	fig := &Figure{Data: []Trace{}, Layout: Layout{Margin: Margin{L: 20, R: 20, T: 30, B: 20}}}
	label := slot.Label()
	for _, l := range ls {
		traces, ld := chartTraces(label, l, datasets, &fig.Layout)
		d.Merge(ld)
		fig.Data = append(fig.Data, traces...)

		xTitle, yTitle := axisTitles(l.Spec)
		fig.Layout.Title = &Title{Text: l.Figure}
		fig.Layout.XAxis = &Axis{Title: xTitle}
		fig.Layout.YAxis = &Axis{Title: yTitle}
	}
	return fig, d
}

func axisTitles(v layer.Variant) (x, y string) {
	switch s := v.(type) {
	case layer.Scatter:
		return s.XAxis, s.YAxis
	case layer.Bar:
		return s.XAxis, s.YAxis
	case layer.GroupedBar:
		return s.XAxis, s.YAxis
	case layer.Histogram:
		return s.XAxis, "frequentie"
	case layer.MultiHistogram:
		return s.XAxis, "frequentie"
	}
	return "", ""
}

func chartTraces(label string, l layer.Layer, datasets *dataset.Store, layout *Layout) ([]Trace, diag.Diagnostics) {
	switch s := l.Spec.(type) {
	case layer.Scatter:
		return xyTrace(label, l, datasets, s.X, s.Y, "scatter", "scatter")
	case layer.Bar:
		return xyTrace(label, l, datasets, s.X, s.Y, "bar", "barchart")
	case layer.GroupedBar:
		return groupedBarTraces(label, l, s, datasets, layout)
	case layer.Pie:
		return pieTrace(label, l, s, datasets)
	case layer.Histogram:
		return histogramTraces(label, l, datasets, []string{s.X}, false)
	case layer.MultiHistogram:
		mode := s.Mode
		if mode == "" {
			mode = "overlay"
		}
		layout.BarMode = mode
		return histogramTraces(label, l, datasets, s.X, true)
	}
	d := diag.New()
	d.Errorf(apperr.Invalid, "%s: Laag '%s' heeft geen grafiek visualisatie type.", label, l.Name)
	return nil, d
}

// xyTrace draws scatter and bar layers: sorted ascending by x with y reordered in lock-step.
func xyTrace(label string, l layer.Layer, datasets *dataset.Store, xCol, yCol, traceType, chart string) ([]Trace, diag.Diagnostics) {
	t, ok, d := source(label, l, datasets, xCol, yCol)
	if !ok {
		return nil, d
	}
	xraw, _ := t.Column(xCol)
	yraw, _ := t.Column(yCol)
	ys, err := table.Floats(yCol, yraw)
	if err != nil {
		d.Errorf(apperr.TypeMismatch, "%s", numericError(label, "y", chart, l.Name, yCol, castTypes(err)))
		return nil, d
	}
	x, idx := axisValues(xCol, xraw)
	if traceType == "bar" && hasDuplicates(x) {
		d.Warnf("%s: Let op: Er zijn x waardes die meerdere y waardes hebben. De barchart wordt opgedeeld door de y "+
			"waardes op elkaar te leggen. Dit kan verwarring veroorzaken bij de interpretatie.", label)
	}
	tr := Trace{Type: traceType, Name: l.Name, X: permute(x, idx), Y: permute(numbers(ys), idx)}
	if traceType == "scatter" {
		tr.Mode = "markers"
	}
	return []Trace{tr}, d
}

func hasDuplicates(vals []any) bool {
	seen := make(map[string]bool, len(vals))
	for _, v := range vals {
		k := table.TypeLabel(v) + ":" + table.Text(v)
		if seen[k] {
			return true
		}
		seen[k] = true
	}
	return false
}

func groupedBarTraces(label string, l layer.Layer, s layer.GroupedBar, datasets *dataset.Store, layout *Layout) ([]Trace, diag.Diagnostics) {
	t, ok, d := source(label, l, datasets, append([]string{s.X}, s.Y...)...)
	if !ok {
		return nil, d
	}
	xraw, _ := t.Column(s.X)
	x, idx := axisValues(s.X, xraw)
	x = permute(x, idx)
	var out []Trace
	for _, yCol := range s.Y {
		yraw, _ := t.Column(yCol)
		ys, err := table.Floats(yCol, yraw)
		if err != nil {
			d.Errorf(apperr.TypeMismatch, "%s", numericError(label, "y", "gegroepeerde barchart", l.Name, yCol, castTypes(err)))
			continue
		}
		out = append(out, Trace{Type: "bar", Name: yCol, X: x, Y: permute(numbers(ys), idx)})
	}
	mode := s.Mode
	if mode == "" {
		mode = "group"
	}
	layout.BarMode = mode
	return out, d
}

// pieTrace orders slices by value, ascending.
func pieTrace(label string, l layer.Layer, s layer.Pie, datasets *dataset.Store) ([]Trace, diag.Diagnostics) {
	t, ok, d := source(label, l, datasets, s.Labels, s.Values)
	if !ok {
		return nil, d
	}
	labels, _ := t.Column(s.Labels)
	vraw, _ := t.Column(s.Values)
	vs, err := table.Floats(s.Values, vraw)
	if err != nil {
		d.Errorf(apperr.TypeMismatch, "%s", numericError(label, "waarde", "piechart", l.Name, s.Values, castTypes(err)))
		return nil, d
	}
	values := numbers(vs)
	idx := order(values, false)
	return []Trace{{Type: "pie", Name: l.Name, Labels: permute(labels, idx), Values: permute(values, idx)}}, d
}

// histogramTraces draws one histogram per column; numeric columns are binned as numbers, others as
// categories.
func histogramTraces(label string, l layer.Layer, datasets *dataset.Store, cols []string, multi bool) ([]Trace, diag.Diagnostics) {
	t, ok, d := source(label, l, datasets, cols...)
	if !ok {
		return nil, d
	}
	out := make([]Trace, 0, len(cols))
	for _, c := range cols {
		raw, _ := t.Column(c)
		x, idx := axisValues(c, raw)
		tr := Trace{Type: "histogram", Name: l.Name, X: permute(x, idx)}
		if multi {
			tr.Name = c
			tr.Opacity = 0.75
		}
		out = append(out, tr)
	}
	return out, d
}

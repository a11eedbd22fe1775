// Package chartpng draws chart figures as PNG images for download.
package chartpng

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"regiokaart/internal/apperr"
	"regiokaart/internal/figure"
	"regiokaart/internal/table"
)

const (
	DefaultWidth  = 1024
	DefaultHeight = 512
	maxBins       = 20
)

// Render writes fig as a PNG of the default size.
func Render(fig *figure.Figure, w io.Writer) error {
	return RenderSize(fig, w, DefaultWidth, DefaultHeight)
}

// RenderSize draws the traces of a chart figure. Grouped bars are drawn stacked; map traces are not
// supported.
func RenderSize(fig *figure.Figure, w io.Writer, width, height int) error {
	if fig == nil || len(fig.Data) == 0 {
		return apperr.New(apperr.Invalid, "figure has no traces to draw")
	}
	title := ""
	if fig.Layout.Title != nil {
		title = fig.Layout.Title.Text
	}
	var r renderable
	switch kind := fig.Data[0].Type; kind {
	case "scatter":
		r = scatterChart(fig, title)
	case "bar":
		r = barChart(fig, title)
	case "pie":
		r = pieChart(fig.Data[0], title)
	case "histogram":
		r = histogramChart(fig, title)
	default:
		return apperr.New(apperr.Invalid, fmt.Sprintf("trace type %q cannot be exported as PNG", kind))
	}
	if err := r.render(w, width, height); err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	return nil
}

// renderable is the common face of the go-chart chart kinds.
type renderable interface {
	render(w io.Writer, width, height int) error
}

type lineChart struct{ c chart.Chart }

func (l lineChart) render(w io.Writer, width, height int) error {
	l.c.Width, l.c.Height = width, height
	l.c.Elements = []chart.Renderable{chart.Legend(&l.c)}
	return l.c.Render(chart.PNG, w)
}

type barsChart struct{ c chart.BarChart }

func (b barsChart) render(w io.Writer, width, height int) error {
	b.c.Width, b.c.Height = width, height
	return b.c.Render(chart.PNG, w)
}

type stackedChart struct{ c chart.StackedBarChart }

func (s stackedChart) render(w io.Writer, width, height int) error {
	s.c.Width, s.c.Height = width, height
	return s.c.Render(chart.PNG, w)
}

type roundChart struct{ c chart.PieChart }

func (p roundChart) render(w io.Writer, width, height int) error {
	p.c.Width, p.c.Height = width, height
	return p.c.Render(chart.PNG, w)
}

func color(i int) drawing.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(figure.Alphabet[i%len(figure.Alphabet)], "#"))
}

func axisName(a *figure.Axis) string {
	if a == nil {
		return ""
	}
	return a.Title
}

// floats returns the numeric values of vals and whether all of them were numbers.
func floats(vals []any) ([]float64, bool) {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		f, ok := v.(float64)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}

func scatterChart(fig *figure.Figure, title string) renderable {
	c := chart.Chart{
		Title:      title,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		XAxis:      chart.XAxis{Name: axisName(fig.Layout.XAxis)},
		YAxis:      chart.YAxis{Name: axisName(fig.Layout.YAxis)},
	}
	for i, tr := range fig.Data {
		xs, numeric := floats(tr.X)
		if !numeric {
			xs = make([]float64, len(tr.X))
			c.XAxis.Ticks = nil
			for j, v := range tr.X {
				xs[j] = float64(j)
				c.XAxis.Ticks = append(c.XAxis.Ticks, chart.Tick{Value: float64(j), Label: table.Text(v)})
			}
		}
		// Missing y values are left out.
		var px, py []float64
		for j, v := range tr.Y {
			if f, ok := v.(float64); ok {
				px, py = append(px, xs[j]), append(py, f)
			}
		}
		c.Series = append(c.Series, chart.ContinuousSeries{
			Name:    tr.Name,
			XValues: px,
			YValues: py,
			Style:   chart.Style{StrokeWidth: 0, DotWidth: 4, DotColor: color(i)},
		})
	}
	return lineChart{c}
}

func barChart(fig *figure.Figure, title string) renderable {
	if len(fig.Data) == 1 {
		tr := fig.Data[0]
		c := chart.BarChart{Title: title, BarWidth: 40, YAxis: chart.YAxis{Name: axisName(fig.Layout.YAxis)}}
		for i, x := range tr.X {
			v, _ := tr.Y[i].(float64)
			c.Bars = append(c.Bars, chart.Value{Label: table.Text(x), Value: v})
		}
		return barsChart{c}
	}
	labels, sums := stackValues(fig.Data)
	return stackedChart{stacked(title, labels, sums, fig.Data)}
}

// stackValues lines the bar traces up per x label, in first-seen order.
func stackValues(traces []figure.Trace) ([]string, map[string][]float64) {
	var labels []string
	sums := map[string][]float64{}
	for ti, tr := range traces {
		for i, x := range tr.X {
			l := table.Text(x)
			if _, ok := sums[l]; !ok {
				labels = append(labels, l)
				sums[l] = make([]float64, len(traces))
			}
			if v, ok := tr.Y[i].(float64); ok {
				sums[l][ti] += v
			}
		}
	}
	return labels, sums
}

func stacked(title string, labels []string, sums map[string][]float64, traces []figure.Trace) chart.StackedBarChart {
	c := chart.StackedBarChart{Title: title}
	for _, l := range labels {
		bar := chart.StackedBar{Name: l}
		for ti, v := range sums[l] {
			bar.Values = append(bar.Values, chart.Value{
				Label: traces[ti].Name,
				Value: v,
				Style: chart.Style{FillColor: color(ti), StrokeColor: color(ti)},
			})
		}
		c.Bars = append(c.Bars, bar)
	}
	return c
}

func pieChart(tr figure.Trace, title string) renderable {
	c := chart.PieChart{Title: title}
	for i, l := range tr.Labels {
		v, _ := tr.Values[i].(float64)
		c.Values = append(c.Values, chart.Value{Label: table.Text(l), Value: v})
	}
	return roundChart{c}
}

// histogramChart bins numeric traces into equal-width bins shared by all traces and counts
// categorical traces per value.
func histogramChart(fig *figure.Figure, title string) renderable {
	counts := make([]map[string]float64, len(fig.Data))
	var labels []string
	if lo, hi, ok := numericRange(fig.Data); ok {
		n := bins(fig.Data)
		width := (hi - lo) / float64(n)
		if width == 0 {
			width = 1
		}
		for b := 0; b < n; b++ {
			labels = append(labels, table.Text(math.Round((lo+float64(b)*width)*100)/100))
		}
		for ti, tr := range fig.Data {
			counts[ti] = map[string]float64{}
			for _, v := range tr.X {
				f, ok := v.(float64)
				if !ok {
					continue
				}
				b := int((f - lo) / width)
				if b >= n {
					b = n - 1
				}
				counts[ti][labels[b]]++
			}
		}
	} else {
		seen := map[string]bool{}
		for ti, tr := range fig.Data {
			counts[ti] = map[string]float64{}
			for _, v := range tr.X {
				if v == nil {
					continue
				}
				l := table.Text(v)
				counts[ti][l]++
				if !seen[l] {
					seen[l] = true
					labels = append(labels, l)
				}
			}
		}
		sort.Strings(labels)
	}

	if len(fig.Data) == 1 {
		c := chart.BarChart{Title: title, BarWidth: 30, YAxis: chart.YAxis{Name: axisName(fig.Layout.YAxis)}}
		for _, l := range labels {
			c.Bars = append(c.Bars, chart.Value{Label: l, Value: counts[0][l]})
		}
		return barsChart{c}
	}
	sums := map[string][]float64{}
	for _, l := range labels {
		sums[l] = make([]float64, len(fig.Data))
		for ti := range fig.Data {
			sums[l][ti] = counts[ti][l]
		}
	}
	return stackedChart{stacked(title, labels, sums, fig.Data)}
}

func numericRange(traces []figure.Trace) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, tr := range traces {
		for _, v := range tr.X {
			if v == nil {
				continue
			}
			f, isNum := v.(float64)
			if !isNum {
				return 0, 0, false
			}
			lo, hi = math.Min(lo, f), math.Max(hi, f)
		}
	}
	return lo, hi, !math.IsInf(lo, 1)
}

// bins is the square-root rule over the longest trace, at most maxBins.
func bins(traces []figure.Trace) int {
	n := 0
	for _, tr := range traces {
		n = max(n, len(tr.X))
	}
	return max(1, min(maxBins, int(math.Ceil(math.Sqrt(float64(n))))))
}

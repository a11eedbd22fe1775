package figure

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"regiokaart/internal/apperr"
	"regiokaart/internal/dataset"
	"regiokaart/internal/diag"
	"regiokaart/internal/geobind"
	"regiokaart/internal/layer"
	"regiokaart/internal/table"
)

// View is the initial map viewport.
type View struct {
	Center LatLon
	Zoom   float64
}

// DefaultView frames Tilburg.
var DefaultView = View{Center: LatLon{Lat: 51.57, Lon: 5.07}, Zoom: 11.5}

// Composer renders the layers of one session. The shape source and overlays may be shared between
// sessions; a Composer holds no per-render state.
type Composer struct {
	shapes   geobind.ShapeSource
	palette  []string
	overlays []Overlay
	view     View
}

type Option func(*Composer)

// WithPalette replaces Alphabet as the categorical palette.
func WithPalette(colors []string) Option {
	return func(c *Composer) { c.palette = append([]string(nil), colors...) }
}

func WithOverlays(o []Overlay) Option {
	return func(c *Composer) { c.overlays = o }
}

func WithView(v View) Option {
	return func(c *Composer) { c.view = v }
}

func NewComposer(shapes geobind.ShapeSource, opts ...Option) *Composer {
	c := &Composer{shapes: shapes, palette: Alphabet, view: DefaultView}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Palette returns the categorical palette in use.
func (c *Composer) Palette() []string { return c.palette }

// source resolves the dataset of l and checks that cols exist in it.
func source(label string, l layer.Layer, datasets *dataset.Store, cols ...string) (*table.Table, bool, diag.Diagnostics) {
	d := diag.New()
	ds, err := datasets.Get(l.Dataset)
	if err != nil {
		d.Errorf(apperr.NotFound, "%s: De dataset '%s' van laag '%s' bestaat niet meer.", label, l.Dataset, l.Name)
		return nil, false, d
	}
	if !ds.Usable() {
		d.Errorf(apperr.DecodeFailed, "%s: De dataset '%s' van laag '%s' is niet goed ingeladen: %s", label, l.Dataset, l.Name, ds.Error)
		return nil, false, d
	}
	for _, c := range cols {
		if !ds.Table.Has(c) {
			d.Errorf(apperr.MissingColumns, "%s: De kolom '%s' van laag '%s' komt niet voor in dataset '%s'.", label, c, l.Name, l.Dataset)
		}
	}
	return ds.Table, !d.HasErrors(), d
}

func numericError(label, input, chart, name, column string, types []string) string {
	return fmt.Sprintf("%s: De %s-data van de %s '%s' moet numeriek zijn. De volgende data types komen voor in kolom '%s': %s",
		label, input, chart, name, column, strings.Join(types, ", "))
}

// castTypes recovers the observed types of a failed numeric cast.
func castTypes(err error) []string {
	var ce *table.CastError
	if errors.As(err, &ce) {
		return ce.Types
	}
	return nil
}

// numbers turns floats into trace values; NaN (missing) becomes null.
func numbers(fs []float64) []any {
	out := make([]any, len(fs))
	for i, f := range fs {
		if !math.IsNaN(f) {
			out[i] = f
		}
	}
	return out
}

// axisValues returns vals as numbers when every value casts, otherwise unchanged, plus the ascending
// order of the result.
func axisValues(column string, vals []any) ([]any, []int) {
	out := vals
	if fs, err := table.Floats(column, vals); err == nil {
		out = numbers(fs)
	}
	return out, order(out, false)
}

// order returns the stable sort permutation of vals; nil values go first ascending, last descending.
func order(vals []any, desc bool) []int {
	idx := make([]int, len(vals))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		va, vb := vals[idx[a]], vals[idx[b]]
		if desc {
			if va == nil || vb == nil {
				return vb == nil && va != nil
			}
			return table.Compare(va, vb) > 0
		}
		return table.Compare(va, vb) < 0
	})
	return idx
}

func permute(vals []any, idx []int) []any {
	out := make([]any, len(idx))
	for i, j := range idx {
		out[i] = vals[j]
	}
	return out
}

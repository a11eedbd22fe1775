// Package layer is the declarative visualization state of a session: per figure slot, an ordered set of
// named layers, each one tagged variant per visualization kind.
package layer

import (
	"fmt"

	"regiokaart/internal/apperr"
	"regiokaart/internal/region"
)

// Slot is a figure a layer draws into.
type Slot string

const (
	Chart1 Slot = "extra_vis_1"
	Chart2 Slot = "extra_vis_2"
	Map    Slot = "map_vis"
)

var Slots = []Slot{Chart1, Chart2, Map}

func ParseSlot(s string) (Slot, error) {
	for _, sl := range Slots {
		if string(sl) == s {
			return sl, nil
		}
	}
	return "", apperr.New(apperr.Invalid, fmt.Sprintf("figure %q is not one of extra_vis_1, extra_vis_2, map_vis", s))
}

// Label is the operator-facing figure name used in diagnostics.
func (s Slot) Label() string {
	switch s {
	case Chart1:
		return "Grafiek 1"
	case Chart2:
		return "Grafiek 2"
	case Map:
		return "Kaart visualisatie"
	}
	return string(s)
}

func (s Slot) IsMap() bool { return s == Map }

// Kind is the visualization type of a layer.
type Kind string

const (
	KindScatter        Kind = "scatter"
	KindBar            Kind = "barchart"
	KindGroupedBar     Kind = "grouped_barchart"
	KindPie            Kind = "piechart"
	KindHistogram      Kind = "histogram"
	KindMultiHistogram Kind = "multi_histogram"
	KindChoropleth     Kind = "choroplethmapbox"
	KindCategorical    Kind = "categorical_choroplethmapbox"
	KindBubble         Kind = "bubble_mapbox"
)

func (k Kind) IsMap() bool {
	return k == KindChoropleth || k == KindCategorical || k == KindBubble
}

// DefaultName is given to layers committed without a name; repeats in a slot get " 2", " 3", ...
const DefaultName = "Laag zonder naam"

// Layer is one trace of a figure. Spec carries the kind-specific fields.
type Layer struct {
	Name string
	// Figure is the figure title.
	Figure  string
	Dataset string
	Spec    Variant
}

func (l Layer) Kind() Kind {
	if l.Spec == nil {
		return ""
	}
	return l.Spec.Kind()
}

// Variant is implemented by the value types below, one per Kind.
type Variant interface {
	Kind() Kind
}

// MapVariant is a variant drawn on the map slot.
type MapVariant interface {
	Variant
	Fields() MapFields
}

type Scatter struct {
	X     string `validate:"required"`
	XAxis string `warn:"required"`
	Y     string `validate:"required"`
	YAxis string `warn:"required"`
}

type Bar struct {
	X     string `validate:"required"`
	XAxis string `warn:"required"`
	Y     string `validate:"required"`
	YAxis string `warn:"required"`
}

// GroupedBar draws one bar series per Y column; Mode is group or stack.
type GroupedBar struct {
	X     string   `validate:"required"`
	XAxis string   `warn:"required"`
	Y     []string `validate:"min=1,dive,required"`
	YAxis string   `warn:"required"`
	Mode  string   `validate:"omitempty,oneof=group stack"`
}

type Pie struct {
	Labels string `validate:"required"`
	Values string `validate:"required"`
}

type Histogram struct {
	X     string `validate:"required"`
	XAxis string `warn:"required"`
}

// MultiHistogram draws one histogram per X column; Mode is overlay or stack.
type MultiHistogram struct {
	X     []string `validate:"min=1,dive,required"`
	XAxis string   `warn:"required"`
	Mode  string   `validate:"omitempty,oneof=overlay stack"`
}

// MapFields are shared by every map variant. Codes names the region-code column, Data the plotted column.
type MapFields struct {
	Level region.Level `validate:"required,oneof=Buurt Wijk Gemeente"`
	Codes string       `validate:"required"`
	Data  string       `validate:"required"`
}

type Choropleth struct {
	MapFields
	Reducer  string `warn:"required,oneof=mean max min sum frequency"`
	Colormap string `validate:"omitempty,oneof=Blues Reds Greens Purples Bluered Viridis"`
}

// Categorical colours each region by its most frequent Data category.
type Categorical struct {
	MapFields
}

// Bubble places one bubble per region at the region centroid, sized and coloured by the reduced Data.
type Bubble struct {
	MapFields
	Reducer  string `warn:"required,oneof=mean max min sum frequency"`
	Colormap string `validate:"omitempty,oneof=Blues Reds Greens Purples Bluered Viridis"`
}

func (Scatter) Kind() Kind        { return KindScatter }
func (Bar) Kind() Kind            { return KindBar }
func (GroupedBar) Kind() Kind     { return KindGroupedBar }
func (Pie) Kind() Kind            { return KindPie }
func (Histogram) Kind() Kind      { return KindHistogram }
func (MultiHistogram) Kind() Kind { return KindMultiHistogram }
func (Choropleth) Kind() Kind     { return KindChoropleth }
func (Categorical) Kind() Kind    { return KindCategorical }
func (Bubble) Kind() Kind         { return KindBubble }

func (v Choropleth) Fields() MapFields  { return v.MapFields }
func (v Categorical) Fields() MapFields { return v.MapFields }
func (v Bubble) Fields() MapFields      { return v.MapFields }

// MapLevel returns the level of a map layer.
func (l Layer) MapLevel() (region.Level, bool) {
	mv, ok := l.Spec.(MapVariant)
	if !ok {
		return "", false
	}
	return mv.Fields().Level, true
}

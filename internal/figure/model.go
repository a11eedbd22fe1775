// Package figure composes chart and map figures from the layer and dataset stores. Figures are plain
// data in the plotly figure JSON shape, ready to be sent to a browser or drawn by chartpng.
package figure

import "github.com/paulmach/orb/geojson"

type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
	// Regions holds the region polygons map traces refer to through FeatureIDKey.
	Regions *geojson.FeatureCollection `json:"geojson,omitempty"`
}

type Trace struct {
	Type          string     `json:"type"`
	Name          string     `json:"name,omitempty"`
	Mode          string     `json:"mode,omitempty"`
	X             []any      `json:"x,omitempty"`
	Y             []any      `json:"y,omitempty"`
	Labels        []any      `json:"labels,omitempty"`
	Values        []any      `json:"values,omitempty"`
	Locations     []string   `json:"locations,omitempty"`
	Z             []any      `json:"z,omitempty"`
	Lat           []float64  `json:"lat,omitempty"`
	Lon           []float64  `json:"lon,omitempty"`
	Text          []string   `json:"text,omitempty"`
	CustomData    []string   `json:"customdata,omitempty"`
	FeatureIDKey  string     `json:"featureidkey,omitempty"`
	ColorScale    ColorScale `json:"colorscale,omitempty"`
	ColorBar      *ColorBar  `json:"colorbar,omitempty"`
	ShowScale     *bool      `json:"showscale,omitempty"`
	ShowLegend    *bool      `json:"showlegend,omitempty"`
	LegendGroup   string     `json:"legendgroup,omitempty"`
	MarkerOpacity float64    `json:"marker_opacity,omitempty"`
	Opacity       float64    `json:"opacity,omitempty"`
	HoverTemplate string     `json:"hovertemplate,omitempty"`
	HoverInfo     string     `json:"hoverinfo,omitempty"`
	Marker        *Marker    `json:"marker,omitempty"`
	Line          *Line      `json:"line,omitempty"`
}

type ColorBar struct {
	Title string  `json:"title,omitempty"`
	X     float64 `json:"x"`
}

type Marker struct {
	Size       []float64  `json:"size,omitempty"`
	SizeRef    float64    `json:"sizeref,omitempty"`
	SizeMin    float64    `json:"sizemin,omitempty"`
	Color      any        `json:"color,omitempty"`
	ColorScale ColorScale `json:"colorscale,omitempty"`
	ColorBar   *ColorBar  `json:"colorbar,omitempty"`
	ShowScale  bool       `json:"showscale"`
}

type Line struct {
	Width float64 `json:"width"`
	Color string  `json:"color"`
}

type Layout struct {
	Title             *Title  `json:"title,omitempty"`
	XAxis             *Axis   `json:"xaxis,omitempty"`
	YAxis             *Axis   `json:"yaxis,omitempty"`
	BarMode           string  `json:"barmode,omitempty"`
	Margin            Margin  `json:"margin"`
	Mapbox            *Mapbox `json:"mapbox,omitempty"`
	LegendOrientation string  `json:"legend_orientation,omitempty"`
	Legend            *Legend `json:"legend,omitempty"`
}

type Title struct {
	Text    string  `json:"text"`
	X       float64 `json:"x,omitempty"`
	Y       float64 `json:"y,omitempty"`
	XAnchor string  `json:"xanchor,omitempty"`
	Font    *Font   `json:"font,omitempty"`
}

type Font struct {
	Size int `json:"size"`
}

type Axis struct {
	Title string `json:"title_text"`
}

type Margin struct {
	L int `json:"l"`
	R int `json:"r"`
	T int `json:"t"`
	B int `json:"b"`
}

type Mapbox struct {
	Style  string  `json:"style"`
	Zoom   float64 `json:"zoom"`
	Center LatLon  `json:"center"`
}

type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type Legend struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func boolPtr(b bool) *bool { return &b }

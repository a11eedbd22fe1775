package figure

import (
	"github.com/bytedance/sonic"
)

// Alphabet is the categorical palette: one colour per category, 26 in total.
var Alphabet = []string{
	"#AA0DFE", "#3283FE", "#85660D", "#782AB6", "#565656", "#1C8356", "#16FF32", "#F7E1A0", "#E2E2E2",
	"#1CBE4F", "#C4451C", "#DEA0FD", "#FE00FA", "#325A9B", "#FEAF16", "#F8A19F", "#90AD1C", "#F6222E",
	"#1CFFCE", "#2ED9FF", "#B10DA1", "#C075A6", "#FC1CBF", "#B00068", "#FBE426", "#FA0087",
}

// ColorStop places Color at Pos in [0, 1].
type ColorStop struct {
	Pos   float64
	Color string
}

// ColorScale marshals as [[pos, color], ...].
type ColorScale []ColorStop

func (c ColorScale) MarshalJSON() ([]byte, error) {
	out := make([][2]any, len(c))
	for i, s := range c {
		out[i] = [2]any{s.Pos, s.Color}
	}
	return sonic.ConfigStd.Marshal(out)
}

// DefaultColormap is used by numeric map layers without a colormap.
const DefaultColormap = "Blues"

var colormaps = map[string][]string{
	"Blues": {"rgb(247,251,255)", "rgb(222,235,247)", "rgb(198,219,239)", "rgb(158,202,225)", "rgb(107,174,214)",
		"rgb(66,146,198)", "rgb(33,113,181)", "rgb(8,81,156)", "rgb(8,48,107)"},
	"Reds": {"rgb(255,245,240)", "rgb(254,224,210)", "rgb(252,187,161)", "rgb(252,146,114)", "rgb(251,106,74)",
		"rgb(239,59,44)", "rgb(203,24,29)", "rgb(165,15,21)", "rgb(103,0,13)"},
	"Greens": {"rgb(247,252,245)", "rgb(229,245,224)", "rgb(199,233,192)", "rgb(161,217,155)", "rgb(116,196,118)",
		"rgb(65,171,93)", "rgb(35,139,69)", "rgb(0,109,44)", "rgb(0,68,27)"},
	"Purples": {"rgb(252,251,253)", "rgb(239,237,245)", "rgb(218,218,235)", "rgb(188,189,220)", "rgb(158,154,200)",
		"rgb(128,125,186)", "rgb(106,81,163)", "rgb(84,39,143)", "rgb(63,0,125)"},
	"Bluered": {"rgb(0,0,255)", "rgb(255,0,0)"},
	"Viridis": {"#440154", "#482878", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"},
}

// Colormap returns the evenly spaced scale of name; unknown or blank names give DefaultColormap.
func Colormap(name string) ColorScale {
	colors, ok := colormaps[name]
	if !ok {
		colors = colormaps[DefaultColormap]
	}
	out := make(ColorScale, len(colors))
	for i, c := range colors {
		out[i] = ColorStop{Pos: float64(i) / float64(len(colors)-1), Color: c}
	}
	return out
}

// Solid is a scale of a single colour.
func Solid(color string) ColorScale {
	return ColorScale{{0, color}, {1, color}}
}

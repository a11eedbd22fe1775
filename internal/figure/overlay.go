package figure

import (
	"errors"
	"io/fs"
	"os"
	"sort"

	"github.com/bytedance/sonic"

	"regiokaart/internal/apperr"
)

// Overlay types drawn on the map.
const (
	OverlayRingRoad = "Ringbaan"
	OverlayRailway  = "Spoor"
)

// Overlay is one polyline drawn over the region background.
type Overlay struct {
	Name      string
	Type      string    `json:"Type"`
	Latitude  []float64 `json:"Latitude"`
	Longitude []float64 `json:"Longitude"`
}

// LoadOverlays reads {name: {Type, Latitude, Longitude}} from path, sorted by name.
func LoadOverlays(path string) ([]Overlay, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.Wrap(apperr.NotFound, "overlay file "+path+" not found", err)
	}
	if err != nil {
		return nil, err
	}
	return ParseOverlays(b)
}

func ParseOverlays(b []byte) ([]Overlay, error) {
	var byName map[string]Overlay
	if err := sonic.ConfigStd.Unmarshal(b, &byName); err != nil {
		return nil, apperr.Wrap(apperr.DecodeFailed, "overlay file is not valid JSON", err)
	}
	out := make([]Overlay, 0, len(byName))
	for name, o := range byName {
		o.Name = name
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type overlayStyle struct {
	group  string
	colors [2]string
}

var overlayStyles = map[string]overlayStyle{
	OverlayRingRoad: {group: "ringbaan", colors: [2]string{"#444444", "#FCD6A4"}},
	OverlayRailway:  {group: "spoor", colors: [2]string{"#555555", "#777777"}},
}

// overlayTraces draws every overlay as a wide dark line under a narrow coloured one. Only the second
// trace of each type shows in the legend.
func overlayTraces(overlays []Overlay) []Trace {
	var ring, rail []Trace
	for _, o := range overlays {
		st, ok := overlayStyles[o.Type]
		if !ok {
			continue
		}
		dst := &ring
		text := o.Name
		if o.Type == OverlayRailway {
			dst = &rail
			text = OverlayRailway
		}
		for i, width := range []float64{4, 2} {
			*dst = append(*dst, Trace{
				Type:        "scattermapbox",
				Mode:        "lines",
				Name:        o.Type,
				Lat:         o.Latitude,
				Lon:         o.Longitude,
				Line:        &Line{Width: width, Color: st.colors[i]},
				ShowLegend:  boolPtr(len(*dst) == 1),
				LegendGroup: st.group,
				Text:        []string{text},
			})
		}
	}
	return append(ring, rail...)
}

package layer

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"

	"regiokaart/internal/apperr"
	"regiokaart/internal/region"
)

// ColumnRef is a column selection that is a single name or, for multi-column kinds, a list.
type ColumnRef struct {
	Names []string
	List  bool
}

func One(name string) *ColumnRef { return &ColumnRef{Names: []string{name}} }

func Many(names []string) *ColumnRef {
	return &ColumnRef{Names: append([]string{}, names...), List: true}
}

func (c ColumnRef) MarshalJSON() ([]byte, error) {
	if c.List {
		return sonic.ConfigStd.Marshal(c.Names)
	}
	if len(c.Names) == 0 {
		return []byte(`""`), nil
	}
	return sonic.ConfigStd.Marshal(c.Names[0])
}

func (c *ColumnRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		c.List = true
		c.Names = []string{}
		return sonic.ConfigStd.Unmarshal(b, &c.Names)
	}
	var s string
	if err := sonic.ConfigStd.Unmarshal(b, &s); err != nil {
		return err
	}
	c.List = false
	c.Names = []string{s}
	return nil
}

func (c *ColumnRef) first() string {
	if c == nil || len(c.Names) == 0 {
		return ""
	}
	return c.Names[0]
}

func (c *ColumnRef) all() []string {
	if c == nil {
		return nil
	}
	return c.Names
}

// Record is the wire form of a layer. Fields that do not apply to the visualization kind are null.
type Record struct {
	FigureName        string     `json:"figure_name"`
	LayerName         string     `json:"layer_name"`
	VisualisationType Kind       `json:"visualisation_type"`
	SelectedDataset   string     `json:"selected_dataset"`
	XData             *ColumnRef `json:"x_data"`
	XAxis             *string    `json:"x_axis"`
	YData             *ColumnRef `json:"y_data"`
	YAxis             *string    `json:"y_axis"`
	Mode              *string    `json:"mode"`
	MapLevel          *string    `json:"map_level"`
	MapData           *string    `json:"map_data"`
	MapLabels         *string    `json:"map_labels"`
	AggregateMethod   *string    `json:"aggregate_method"`
	Colormap          *string    `json:"colormap"`
}

func str(s string) *string { return &s }

func val(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func ToRecord(l Layer) Record {
	r := Record{FigureName: l.Figure, LayerName: l.Name, VisualisationType: l.Kind(), SelectedDataset: l.Dataset}
	switch v := l.Spec.(type) {
	case Scatter:
		r.XData, r.XAxis, r.YData, r.YAxis = One(v.X), str(v.XAxis), One(v.Y), str(v.YAxis)
	case Bar:
		r.XData, r.XAxis, r.YData, r.YAxis = One(v.X), str(v.XAxis), One(v.Y), str(v.YAxis)
	case GroupedBar:
		r.XData, r.XAxis, r.YData, r.YAxis, r.Mode = One(v.X), str(v.XAxis), Many(v.Y), str(v.YAxis), str(v.Mode)
	case Pie:
		r.XData, r.YData = One(v.Labels), One(v.Values)
	case Histogram:
		r.XData, r.XAxis = One(v.X), str(v.XAxis)
	case MultiHistogram:
		r.XData, r.XAxis, r.Mode = Many(v.X), str(v.XAxis), str(v.Mode)
	case Choropleth:
		setMap(&r, v.MapFields)
		r.AggregateMethod, r.Colormap = str(v.Reducer), str(v.Colormap)
	case Categorical:
		setMap(&r, v.MapFields)
	case Bubble:
		setMap(&r, v.MapFields)
		r.AggregateMethod, r.Colormap = str(v.Reducer), str(v.Colormap)
	}
	return r
}

func setMap(r *Record, f MapFields) {
	r.MapLevel, r.MapLabels, r.MapData = str(string(f.Level)), str(f.Codes), str(f.Data)
}

func mapFields(r Record) MapFields {
	return MapFields{Level: region.Level(val(r.MapLevel)), Codes: val(r.MapLabels), Data: val(r.MapData)}
}

// FromRecord rebuilds the layer variant named by VisualisationType.
func FromRecord(r Record) (Layer, error) {
	l := Layer{Name: r.LayerName, Figure: r.FigureName, Dataset: r.SelectedDataset}
	switch r.VisualisationType {
	case KindScatter:
		l.Spec = Scatter{X: r.XData.first(), XAxis: val(r.XAxis), Y: r.YData.first(), YAxis: val(r.YAxis)}
	case KindBar:
		l.Spec = Bar{X: r.XData.first(), XAxis: val(r.XAxis), Y: r.YData.first(), YAxis: val(r.YAxis)}
	case KindGroupedBar:
		l.Spec = GroupedBar{X: r.XData.first(), XAxis: val(r.XAxis), Y: r.YData.all(), YAxis: val(r.YAxis), Mode: val(r.Mode)}
	case KindPie:
		l.Spec = Pie{Labels: r.XData.first(), Values: r.YData.first()}
	case KindHistogram:
		l.Spec = Histogram{X: r.XData.first(), XAxis: val(r.XAxis)}
	case KindMultiHistogram:
		l.Spec = MultiHistogram{X: r.XData.all(), XAxis: val(r.XAxis), Mode: val(r.Mode)}
	case KindChoropleth:
		l.Spec = Choropleth{MapFields: mapFields(r), Reducer: val(r.AggregateMethod), Colormap: val(r.Colormap)}
	case KindCategorical:
		l.Spec = Categorical{MapFields: mapFields(r)}
	case KindBubble:
		l.Spec = Bubble{MapFields: mapFields(r), Reducer: val(r.AggregateMethod), Colormap: val(r.Colormap)}
	default:
		return Layer{}, apperr.New(apperr.Invalid, fmt.Sprintf("visualisation type %q is not supported", r.VisualisationType))
	}
	return l, nil
}

// MarshalJSON writes {slot: {layer_name: record}} with slots and layers in insertion order.
func (s *Store) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, sl := range Slots {
		ls := s.slots[sl]
		if ls == nil {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		writeKey(&buf, string(sl))
		buf.WriteByte('{')
		for i, n := range ls.order {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeKey(&buf, n)
			b, err := sonic.ConfigStd.Marshal(ToRecord(ls.byName[n]))
			if err != nil {
				return nil, fmt.Errorf("encode layer %s: %w", n, err)
			}
			buf.Write(b)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeKey(buf *bytes.Buffer, k string) {
	b, _ := sonic.ConfigStd.Marshal(k)
	buf.Write(b)
	buf.WriteByte(':')
}

// UnmarshalJSON reads the MarshalJSON form, keeping the layer order of the input. Records are restored
// as stored; they are not re-validated.
func (s *Store) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	slots := map[Slot]*slotLayers{}
	for dec.More() {
		key, err := dec.Token()
		if err != nil {
			return apperr.Wrap(apperr.DecodeFailed, "layer store", err)
		}
		sl, err := ParseSlot(fmt.Sprint(key))
		if err != nil {
			return err
		}
		if err := expectDelim(dec, '{'); err != nil {
			return err
		}
		ls := &slotLayers{byName: map[string]Layer{}}
		for dec.More() {
			nameTok, err := dec.Token()
			if err != nil {
				return apperr.Wrap(apperr.DecodeFailed, "layer store", err)
			}
			name := fmt.Sprint(nameTok)
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return apperr.Wrap(apperr.DecodeFailed, "layer "+name, err)
			}
			var r Record
			if err := sonic.ConfigStd.Unmarshal(raw, &r); err != nil {
				return apperr.Wrap(apperr.DecodeFailed, "layer "+name, err)
			}
			l, err := FromRecord(r)
			if err != nil {
				return err
			}
			if _, dup := ls.byName[name]; !dup {
				ls.order = append(ls.order, name)
			}
			l.Name = name
			ls.byName[name] = l
		}
		if err := expectDelim(dec, '}'); err != nil {
			return err
		}
		slots[sl] = ls
	}
	if err := expectDelim(dec, '}'); err != nil {
		return err
	}
	s.slots = slots
	return nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return apperr.Wrap(apperr.DecodeFailed, "layer store", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return apperr.New(apperr.DecodeFailed, fmt.Sprintf("layer store: expected %q, got %v", want, tok))
	}
	return nil
}

package layer

import (
	"reflect"
	"strings"
	"testing"

	"github.com/bytedance/sonic"

	"regiokaart/internal/apperr"
	"regiokaart/internal/region"
)

func scatter(name string) Layer {
	return Layer{Name: name, Figure: "Temperatuur", Dataset: "meet je stad",
		Spec: Scatter{X: "humidity", XAxis: "vochtigheid", Y: "temperature", YAxis: "graden"}}
}

func choropleth(name string, level region.Level) Layer {
	return Layer{Name: name, Figure: "Kaart", Dataset: "meet je stad",
		Spec: Choropleth{MapFields: MapFields{Level: level, Codes: level.CodeColumn(), Data: "temperature"}, Reducer: "mean", Colormap: "Blues"}}
}

func TestCommitBlankNameDefaults(t *testing.T) {
	s := NewStore()
	l, d := s.Commit(Chart1, scatter(""), "")
	if d.HasErrors() {
		t.Fatalf("errors: %v", d.Errors)
	}
	if l.Name != DefaultName {
		t.Errorf("name = %q", l.Name)
	}
	if len(d.Warnings) != 1 || !strings.Contains(d.Warnings[0], DefaultName) {
		t.Errorf("warnings = %v", d.Warnings)
	}
	if _, err := s.Get(Chart1, DefaultName); err != nil {
		t.Errorf("Get: %v", err)
	}
}

func TestCommitBlankNamesNeverCollide(t *testing.T) {
	s := NewStore()
	want := []string{DefaultName, DefaultName + " 2", DefaultName + " 3"}
	for _, w := range want {
		l, d := s.Commit(Chart1, scatter(""), "")
		if d.HasErrors() {
			t.Fatalf("blank commit rejected: %v", d.Errors)
		}
		if l.Name != w || len(d.Warnings) != 1 || !strings.Contains(d.Warnings[0], w) {
			t.Errorf("name = %q, warnings = %v; want %q", l.Name, d.Warnings, w)
		}
	}

	// blanking the name while editing keeps the edited layer's own default name
	l, d := s.Commit(Chart1, scatter(""), DefaultName+" 2")
	if d.HasErrors() || l.Name != DefaultName+" 2" {
		t.Errorf("edit: name = %q, errors = %v", l.Name, d.Errors)
	}
	if n := len(s.Layers(Chart1)); n != 3 {
		t.Errorf("layers = %d, want 3", n)
	}
}

func TestCommitDuplicateRejected(t *testing.T) {
	s := NewStore()
	if _, d := s.Commit(Chart1, scatter("temp"), ""); d.HasErrors() {
		t.Fatalf("first commit: %v", d.Errors)
	}
	before, _ := s.MarshalJSON()

	other := scatter("temp")
	other.Figure = "Anders"
	_, d := s.Commit(Chart1, other, "")
	if len(d.Errors) != 1 || !strings.Contains(d.Errors[0], "temp") {
		t.Fatalf("errors = %v", d.Errors)
	}
	if d.Kinds[0] != apperr.DuplicateName {
		t.Errorf("kind = %v, want duplicate_name", d.Kinds[0])
	}
	after, _ := s.MarshalJSON()
	if string(before) != string(after) {
		t.Errorf("store changed:\n%s\n%s", before, after)
	}

	// the same name in another slot is fine
	if _, d := s.Commit(Chart2, scatter("temp"), ""); d.HasErrors() {
		t.Errorf("other slot: %v", d.Errors)
	}
}

func TestCommitEditOverwritesAndRenames(t *testing.T) {
	s := NewStore()
	s.Commit(Chart1, scatter("a"), "")
	s.Commit(Chart1, scatter("b"), "")

	edited := scatter("a")
	edited.Figure = "Nieuw"
	if _, d := s.Commit(Chart1, edited, "a"); d.HasErrors() {
		t.Fatalf("overwrite: %v", d.Errors)
	}
	if l, _ := s.Get(Chart1, "a"); l.Figure != "Nieuw" {
		t.Errorf("figure = %q", l.Figure)
	}

	if _, d := s.Commit(Chart1, scatter("c"), "a"); d.HasErrors() {
		t.Fatalf("rename: %v", d.Errors)
	}
	var names []string
	for _, l := range s.Layers(Chart1) {
		names = append(names, l.Name)
	}
	if !reflect.DeepEqual(names, []string{"c", "b"}) {
		t.Errorf("order = %v", names)
	}
}

func TestCommitValidation(t *testing.T) {
	tests := []struct {
		name         string
		slot         Slot
		layer        Layer
		wantErrors   int
		wantWarnings int
	}{
		{"scatter complete", Chart1, scatter("s"), 0, 0},
		{"scatter no x", Chart1, Layer{Name: "s", Dataset: "d", Spec: Scatter{Y: "y", XAxis: "x", YAxis: "y"}}, 1, 0},
		{"scatter no titles", Chart1, Layer{Name: "s", Dataset: "d", Spec: Scatter{X: "x", Y: "y"}}, 0, 2},
		{"bar no y", Chart1, Layer{Name: "s", Dataset: "d", Spec: Bar{X: "x", XAxis: "x"}}, 1, 1},
		{"histogram needs only x", Chart2, Layer{Name: "h", Dataset: "d", Spec: Histogram{X: "x", XAxis: "x"}}, 0, 0},
		{"pie needs both", Chart1, Layer{Name: "p", Dataset: "d", Spec: Pie{}}, 2, 0},
		{"grouped bar empty y", Chart1, Layer{Name: "g", Dataset: "d", Spec: GroupedBar{X: "x", XAxis: "x", YAxis: "y"}}, 1, 0},
		{"grouped bar bad mode", Chart1, Layer{Name: "g", Dataset: "d", Spec: GroupedBar{X: "x", XAxis: "x", Y: []string{"a"}, YAxis: "y", Mode: "overlay"}}, 1, 0},
		{"multi histogram", Chart1, Layer{Name: "m", Dataset: "d", Spec: MultiHistogram{X: []string{"a", "b"}, XAxis: "x", Mode: "stack"}}, 0, 0},
		{"no dataset", Chart1, Layer{Name: "s", Spec: Scatter{X: "x", XAxis: "x", Y: "y", YAxis: "y"}}, 1, 0},
		{"no kind", Chart1, Layer{Name: "s", Dataset: "d"}, 1, 0},
		{"map layer on chart", Chart1, choropleth("k", region.Buurt), 1, 0},
		{"chart layer on map", Map, scatter("s"), 1, 0},
		{"map no code column", Map, Layer{Name: "k", Dataset: "d", Spec: Categorical{MapFields{Level: region.Wijk, Data: "soort"}}}, 1, 0},
		{"map unknown reducer", Map, Layer{Name: "k", Dataset: "d", Spec: Bubble{MapFields: MapFields{Level: region.Wijk, Codes: "WK_CODE", Data: "v"}, Reducer: "median"}}, 0, 1},
		{"map bad colormap", Map, Layer{Name: "k", Dataset: "d", Spec: Choropleth{MapFields: MapFields{Level: region.Wijk, Codes: "WK_CODE", Data: "v"}, Reducer: "sum", Colormap: "Rainbow"}}, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			_, d := s.Commit(tt.slot, tt.layer, "")
			if len(d.Errors) != tt.wantErrors || len(d.Warnings) != tt.wantWarnings {
				t.Errorf("errors=%v warnings=%v", d.Errors, d.Warnings)
			}
			if committed := s.Len() == 1; committed == (tt.wantErrors > 0) {
				t.Errorf("committed=%v with %d errors", committed, tt.wantErrors)
			}
		})
	}
}

func TestCommitMapLevelMismatch(t *testing.T) {
	s := NewStore()
	if _, d := s.Commit(Map, choropleth("wijken", region.Wijk), ""); d.HasErrors() {
		t.Fatalf("first: %v", d.Errors)
	}
	_, d := s.Commit(Map, choropleth("buurten", region.Buurt), "")
	if len(d.Errors) != 1 {
		t.Fatalf("errors = %v", d.Errors)
	}
	if lvl, _ := s.MapLevel(); lvl != region.Wijk {
		t.Errorf("MapLevel = %v", lvl)
	}
	// the only layer may change level while edited
	if _, d := s.Commit(Map, choropleth("wijken", region.Buurt), "wijken"); d.HasErrors() {
		t.Errorf("edit: %v", d.Errors)
	}
}

func TestDelete(t *testing.T) {
	s := NewStore()
	s.Commit(Chart1, scatter("a"), "")
	if err := s.Delete(Chart1, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(Chart1, "a"); apperr.KindOf(err) != apperr.NotFound {
		t.Errorf("second Delete = %v", err)
	}
	if len(s.Layers(Chart1)) != 0 {
		t.Error("layer still listed")
	}
}

func TestRecordRoundTrip(t *testing.T) {
	layers := []Layer{
		scatter("s"),
		{Name: "b", Figure: "f", Dataset: "d", Spec: Bar{X: "x", XAxis: "xa", Y: "y", YAxis: "ya"}},
		{Name: "g", Figure: "f", Dataset: "d", Spec: GroupedBar{X: "x", XAxis: "xa", Y: []string{"a", "b"}, YAxis: "ya", Mode: "stack"}},
		{Name: "p", Figure: "f", Dataset: "d", Spec: Pie{Labels: "l", Values: "v"}},
		{Name: "h", Figure: "f", Dataset: "d", Spec: Histogram{X: "x", XAxis: "xa"}},
		{Name: "m", Figure: "f", Dataset: "d", Spec: MultiHistogram{X: []string{"a"}, XAxis: "xa", Mode: "overlay"}},
		choropleth("c", region.Gemeente),
		{Name: "k", Figure: "f", Dataset: "d", Spec: Categorical{MapFields{Level: region.Wijk, Codes: "WK_CODE", Data: "soort"}}},
		{Name: "u", Figure: "f", Dataset: "d", Spec: Bubble{MapFields: MapFields{Level: region.Buurt, Codes: "BU_CODE", Data: "v"}, Reducer: "frequency", Colormap: "Reds"}},
	}
	for _, l := range layers {
		b, err := sonic.ConfigStd.Marshal(ToRecord(l))
		if err != nil {
			t.Fatalf("marshal %s: %v", l.Name, err)
		}
		var r Record
		if err := sonic.ConfigStd.Unmarshal(b, &r); err != nil {
			t.Fatalf("unmarshal %s: %v", l.Name, err)
		}
		got, err := FromRecord(r)
		if err != nil {
			t.Fatalf("FromRecord %s: %v", l.Name, err)
		}
		if !reflect.DeepEqual(got, l) {
			t.Errorf("round trip %s:\n got %#v\nwant %#v", l.Name, got, l)
		}
	}
}

func TestRecordNullsForOtherKinds(t *testing.T) {
	b, _ := sonic.ConfigStd.Marshal(ToRecord(Layer{Name: "p", Dataset: "d", Spec: Pie{Labels: "l", Values: "v"}}))
	for _, field := range []string{`"x_axis":null`, `"map_level":null`, `"colormap":null`} {
		if !strings.Contains(string(b), field) {
			t.Errorf("%s missing in %s", field, b)
		}
	}
	m, _ := sonic.ConfigStd.Marshal(ToRecord(Layer{Name: "m", Dataset: "d", Spec: MultiHistogram{X: []string{"a", "b"}}}))
	if !strings.Contains(string(m), `"x_data":["a","b"]`) {
		t.Errorf("x_data not a list: %s", m)
	}
}

func TestStoreJSONKeepsOrder(t *testing.T) {
	s := NewStore()
	for _, n := range []string{"zeta", "alpha", "mid"} {
		s.Commit(Chart2, scatter(n), "")
	}
	s.Commit(Map, choropleth("kaart", region.Buurt), "")
	b, err := s.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	got := NewStore()
	if err := got.UnmarshalJSON(b); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if !reflect.DeepEqual(got.Layers(Chart2), s.Layers(Chart2)) || !reflect.DeepEqual(got.Layers(Map), s.Layers(Map)) {
		t.Errorf("layers differ after round trip")
	}
	if err := got.UnmarshalJSON([]byte(`{"extra_vis_3":{}}`)); apperr.KindOf(err) != apperr.Invalid {
		t.Errorf("unknown slot err = %v", err)
	}
}

package dataset

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"regiokaart/internal/aggregate"
	"regiokaart/internal/apperr"
	"regiokaart/internal/geobind"
	"regiokaart/internal/region"
	"regiokaart/internal/revgeo"
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

func buurten() staticShapes {
	return staticShapes{region.Buurt: shapes.NewSet("Tilburg", region.Buurt, []shapes.Shape{
		{Code: "BU08550001", Name: "A", Geometry: square(5.0, 51.5, 0.1)},
		{Code: "BU08550002", Name: "B", Geometry: square(5.0, 51.6, 0.1)},
	})}
}

func plain(name string) *Dataset {
	t := table.New("x")
	t.Append([]any{1.0}, nil)
	d, _ := New(name, t, geobind.ModeLatLong)
	return d
}

func TestUniqueName(t *testing.T) {
	s := NewStore()
	for _, want := range []string{DefaultName, DefaultName + " 2", DefaultName + " 3"} {
		d := plain("")
		if err := s.Put(d); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if d.Name != want {
			t.Errorf("name = %q, want %q", d.Name, want)
		}
	}
	if got := s.Names(); len(got) != 3 || got[0] != DefaultName {
		t.Errorf("Names() = %v", got)
	}
}

func TestStandardDatasetProtected(t *testing.T) {
	s := NewStore()
	s.PutStandard(plain("meet je stad"))

	if err := s.Delete("meet je stad"); apperr.KindOf(err) != apperr.Protected {
		t.Errorf("Delete err = %v, want Protected", err)
	}
	if err := s.Put(plain("meet je stad")); apperr.KindOf(err) != apperr.Protected {
		t.Errorf("Put err = %v, want Protected", err)
	}
	s.PutStandard(plain("meet je stad"))
	if s.Len() != 1 {
		t.Errorf("Len() = %d", s.Len())
	}
}

func TestDelete(t *testing.T) {
	s := NewStore()
	_ = s.Put(plain("a"))
	_ = s.Put(plain("b"))
	if err := s.Delete("a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get("a"); apperr.KindOf(err) != apperr.NotFound {
		t.Errorf("Get after delete: %v", err)
	}
	if err := s.Delete("a"); apperr.KindOf(err) != apperr.NotFound {
		t.Errorf("second Delete: %v", err)
	}
	if got := s.Names(); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("Names() = %v", got)
	}
}

func TestLoadFailureBecomesRecord(t *testing.T) {
	tests := []struct {
		name     string
		req      LoadRequest
		wantText string
	}{
		{
			name:     "unsupported extension",
			req:      LoadRequest{Name: "pdf", Filename: "x.pdf", Data: []byte("a"), Mode: geobind.ModeLatLong},
			wantText: "Er is iets fout gegaan bij het inladen",
		},
		{
			name: "code not matching",
			req: LoadRequest{Name: "codes", Filename: "x.csv", Data: []byte("code,v\nBU09990000,1\n"), Mode: geobind.ModeBuurt,
				Columns: geobind.Columns{Code: "code"}},
			wantText: "De locatie data kon niet gekoppeld worden",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			d, _, err := Load(context.Background(), s, tt.req, buurten())
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if d.Usable() || !strings.HasPrefix(d.Error, tt.wantText) {
				t.Errorf("Error = %q", d.Error)
			}
			if got, _ := s.Get(tt.req.Name); got != d {
				t.Error("failed dataset not stored")
			}
		})
	}
}

func TestAggregateInPlaceRequiresLatLong(t *testing.T) {
	s := NewStore()
	d := plain("codes")
	d.ReadType = geobind.ModeBuurt
	_ = s.Put(d)
	err := s.AggregateInPlace(context.Background(), "codes", region.Buurt, buurten(), revgeo.NewEngine())
	if apperr.KindOf(err) != apperr.Invalid {
		t.Errorf("err = %v, want Invalid", err)
	}
}

func TestEndToEndMeanPerRegion(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	csv := "lat,long,value\n51.55,5.05,10\n51.65,5.05,20\n51.66,5.06,40\n"
	d, diags, err := Load(ctx, s, LoadRequest{
		Name:      "metingen",
		Filename:  "metingen.csv",
		Data:      []byte(csv),
		Mode:      geobind.ModeLatLong,
		Columns:   geobind.Columns{Latitude: "lat", Longitude: "long"},
		HeaderRow: 1,
	}, buurten())
	if err != nil || !d.Usable() {
		t.Fatalf("Load: %v %q", err, d.Error)
	}
	if diags.HasErrors() {
		t.Fatalf("diagnostics: %+v", diags)
	}
	if err := s.AggregateInPlace(ctx, "metingen", region.Buurt, buurten(), revgeo.NewEngine()); err != nil {
		t.Fatalf("AggregateInPlace: %v", err)
	}
	if !d.Aggregated || !d.Table.Has("BU_CODE") {
		t.Fatalf("columns = %v", d.Columns)
	}
	res, err := aggregate.Reduce(d.Table, []string{"BU_CODE"}, "mean", "value")
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	want := [][]any{{"BU08550001", 10.0}, {"BU08550002", 30.0}}
	if !reflect.DeepEqual(res.Table.Rows, want) {
		t.Errorf("rows = %v, want %v", res.Table.Rows, want)
	}
}

func TestRecordRoundTrip(t *testing.T) {
	tb := table.New("naam", "waarde", "actief")
	tb.CRS = table.CRS84
	tb.Append([]any{"a", 1.5, true}, orb.Point{5.1, 51.5})
	tb.Append([]any{"b", nil, false}, orb.Point{5.2, 51.6})
	d, _ := New("meting", tb, geobind.ModeLatLong)
	d.Aggregated = true
	d.Source = Source{File: "m.csv", Latitude: "lat", Longitude: "lon", HeaderRow: 2, Delimiter: ";"}

	failed := Failed("kapot", "Er is iets fout gegaan")
	failed.ReadType = geobind.ModeWijk

	for _, in := range []*Dataset{d, failed} {
		b, err := MarshalRecord(in)
		if err != nil {
			t.Fatalf("MarshalRecord: %v", err)
		}
		out, err := UnmarshalRecord(in.Name, b)
		if err != nil {
			t.Fatalf("UnmarshalRecord: %v", err)
		}
		if !reflect.DeepEqual(in, out) {
			t.Errorf("round trip of %s:\n got %+v\nwant %+v", in.Name, out, in)
		}
	}
}

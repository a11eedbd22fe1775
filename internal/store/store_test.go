package store

import (
	"context"
	"testing"

	"github.com/paulmach/orb"

	"regiokaart/internal/migrate"
	"regiokaart/internal/region"
	"regiokaart/internal/shapes"
	"regiokaart/internal/utils"
)

func square(x, y, d float64) orb.Polygon {
	return orb.Polygon{orb.Ring{{x, y}, {x + d, y}, {x + d, y + d}, {x, y + d}, {x, y}}}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := utils.OpenSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := migrate.EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return AttachDB(db, "sqlite")
}

func TestImportAndLoad(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	in := []shapes.Shape{
		{Code: "WK085502", Name: "Noord", Municipality: "Tilburg", Geometry: square(5.0, 51.6, 0.1)},
		{Code: "WK085501", Name: "Centrum", Municipality: "Tilburg", Geometry: square(5.0, 51.5, 0.1)},
		{Code: "WK077201", Name: "Binnenstad", Municipality: "Eindhoven", Geometry: orb.MultiPolygon{square(5.4, 51.4, 0.1)}},
	}
	n, err := s.ImportShapes(ctx, region.Wijk, in)
	if err != nil || n != 3 {
		t.Fatalf("ImportShapes = %d, %v", n, err)
	}

	tests := []struct {
		municipality string
		codes        []string
	}{
		{"Tilburg", []string{"WK085501", "WK085502"}},
		{shapes.AllMunicipalities, []string{"WK077201", "WK085501", "WK085502"}},
		{"Breda", nil},
	}
	for _, tt := range tests {
		t.Run(tt.municipality, func(t *testing.T) {
			got, err := s.LoadShapes(ctx, tt.municipality, region.Wijk)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.codes) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.codes))
			}
			for i, c := range tt.codes {
				if got[i].Code != c {
					t.Errorf("code[%d] = %s, want %s", i, got[i].Code, c)
				}
				if got[i].Geometry == nil || got[i].Bound.IsEmpty() {
					t.Errorf("shape %s has no geometry", c)
				}
			}
		})
	}

	got, _ := s.LoadShapes(ctx, "Eindhoven", region.Wijk)
	if _, ok := got[0].Geometry.(orb.MultiPolygon); !ok {
		t.Errorf("geometry type = %T, want MultiPolygon", got[0].Geometry)
	}
}

func TestImportUpserts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	sh := shapes.Shape{Code: "GM0855", Name: "Tilburg", Municipality: "Tilburg", Geometry: square(5.0, 51.5, 0.2)}
	if _, err := s.ImportShapes(ctx, region.Gemeente, []shapes.Shape{sh}); err != nil {
		t.Fatal(err)
	}
	sh.Name = "Gemeente Tilburg"
	if _, err := s.ImportShapes(ctx, region.Gemeente, []shapes.Shape{sh}); err != nil {
		t.Fatal(err)
	}
	n, err := s.CountShapes(ctx, region.Gemeente)
	if err != nil || n != 1 {
		t.Fatalf("CountShapes = %d, %v", n, err)
	}
	got, _ := s.LoadShapes(ctx, "Tilburg", region.Gemeente)
	if got[0].Name != "Gemeente Tilburg" {
		t.Errorf("name = %q", got[0].Name)
	}
	munis, err := s.Municipalities(ctx, region.Gemeente)
	if err != nil || len(munis) != 1 || munis[0] != "Tilburg" {
		t.Errorf("Municipalities = %v, %v", munis, err)
	}
}

func TestRepositoryOverStore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.ImportShapes(ctx, region.Buurt, []shapes.Shape{
		{Code: "BU08550001", Name: "A", Municipality: "Tilburg", Geometry: square(5, 51.5, 0.1)},
	}); err != nil {
		t.Fatal(err)
	}
	set, err := shapes.NewRepository(s).Get(ctx, "Tilburg", region.Buurt)
	if err != nil {
		t.Fatal(err)
	}
	if set.Len() != 1 || set.Shapes[0].Name != "A" {
		t.Errorf("set = %+v", set.Shapes)
	}
}

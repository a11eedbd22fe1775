package diag

import (
	"testing"

	"github.com/bytedance/sonic"

	"regiokaart/internal/apperr"
)

func TestErrorKinds(t *testing.T) {
	d := New()
	d.Errorf(apperr.TypeMismatch, "kolom %s is geen getal", "y")
	d.Warnf("let op")

	o := New()
	o.Errorf(apperr.EmptyAfterMerge, "leeg")
	d.Merge(o)

	if len(d.Errors) != 2 || len(d.Kinds) != 2 {
		t.Fatalf("errors = %v, kinds = %v", d.Errors, d.Kinds)
	}
	if !d.Has(apperr.TypeMismatch) || !d.Has(apperr.EmptyAfterMerge) {
		t.Errorf("kinds = %v", d.Kinds)
	}
	if d.Has(apperr.MissingGeometryColumn) {
		t.Error("Has reports a kind that was never raised")
	}
}

func TestKindsWireForm(t *testing.T) {
	d := New()
	d.Errorf(apperr.PaletteExhausted, "te veel categorieën")
	b, err := sonic.ConfigStd.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"errors":["te veel categorieën"],"error_kinds":["palette_exhausted"],"warnings":[]}`
	if string(b) != want {
		t.Errorf("json = %s, want %s", b, want)
	}
	var back Diagnostics
	if err := sonic.ConfigStd.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if len(back.Kinds) != 1 || back.Kinds[0] != apperr.PaletteExhausted {
		t.Errorf("decoded kinds = %v", back.Kinds)
	}
}

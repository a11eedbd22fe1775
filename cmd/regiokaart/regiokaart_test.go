package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

const buurtGeoJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"BU_CODE":"BU08550001","BU_NAAM":"Centrum","GM_NAAM":"Tilburg"},
  "geometry":{"type":"Polygon","coordinates":[[[5.0,51.5],[5.1,51.5],[5.1,51.6],[5.0,51.6],[5.0,51.5]]]}},
 {"type":"Feature","properties":{"BU_CODE":"BU08550002","BU_NAAM":"Noord","GM_NAAM":"Tilburg"},
  "geometry":{"type":"Polygon","coordinates":[[[5.1,51.5],[5.2,51.5],[5.2,51.6],[5.1,51.6],[5.1,51.5]]]}}
]}`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func fixtures(t *testing.T) (dir, csvPath string) {
	t.Helper()
	dir = t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "buurt.geojson"), []byte(buurtGeoJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	csvPath = filepath.Join(dir, "metingen.csv")
	data := "lat,long,waarde\n51.55,5.05,2\n51.56,5.06,4\n51.55,5.15,10\n"
	if err := os.WriteFile(csvPath, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir, csvPath
}

func TestPreview(t *testing.T) {
	_, csvPath := fixtures(t)
	out, err := run(t, "preview", csvPath)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if !strings.Contains(out, "breedtegraad: lat, lengtegraad: long") || !strings.Contains(out, "51.55,5.05,2") {
		t.Errorf("preview output:\n%s", out)
	}
}

func TestJoinThenReduce(t *testing.T) {
	dir, csvPath := fixtures(t)
	joined := filepath.Join(dir, "joined.json")
	if _, err := run(t, "join", csvPath, "--shapes-dir", dir, "--lat", "lat", "--lon", "long", "-o", joined); err != nil {
		t.Fatalf("join: %v", err)
	}
	out, err := run(t, "reduce", joined, "--by", "BU_CODE", "--method", "mean", "--target", "waarde")
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	for _, want := range []string{"BU_CODE,waarde", "BU08550001,3", "BU08550002,10"} {
		if !strings.Contains(out, want) {
			t.Errorf("reduce output lacks %q:\n%s", want, out)
		}
	}

	xlsx := filepath.Join(dir, "per_buurt.xlsx")
	if _, err := run(t, "reduce", joined, "--by", "BU_CODE", "--method", "frequency", "-o", xlsx); err != nil {
		t.Fatalf("reduce xlsx: %v", err)
	}
	f, err := excelize.OpenFile(xlsx)
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 3 || rows[0][0] != "BU_CODE" || rows[0][1] != "aantal" {
		t.Errorf("xlsx rows = %v", rows)
	}
}

func TestCommandErrors(t *testing.T) {
	dir, csvPath := fixtures(t)
	tests := []struct {
		name string
		args []string
	}{
		{"missing coordinate column", []string{"load", csvPath, "--shapes-dir", dir, "--lat", "breedte", "--lon", "long"}},
		{"bad level", []string{"join", csvPath, "--shapes-dir", dir, "--lat", "lat", "--lon", "long", "--level", "Provincie"}},
		{"bad read type", []string{"load", csvPath, "--read-type", "punt"}},
		{"reduce without by", []string{"reduce", csvPath}},
		{"missing shapes", []string{"shapes", "--shapes-dir", t.TempDir()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.args...); err == nil {
				t.Errorf("%v succeeded", tt.args)
			}
		})
	}
}

func TestShapes(t *testing.T) {
	dir, _ := fixtures(t)
	out, err := run(t, "shapes", "--shapes-dir", dir)
	if err != nil {
		t.Fatalf("shapes: %v", err)
	}
	if !strings.Contains(out, "BU08550001,Centrum") || !strings.Contains(out, "BU08550002,Noord") {
		t.Errorf("shapes output:\n%s", out)
	}
}

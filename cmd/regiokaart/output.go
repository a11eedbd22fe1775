package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb/encoding/wkt"
	"github.com/xuri/excelize/v2"

	"regiokaart/internal/dataset"
	"regiokaart/internal/table"
)

// GeometryColumn holds the WKT geometry in table exports.
const GeometryColumn = "geometry"

// writeDataset writes the JSON record to w, or to path by extension (.json record, .csv/.xlsx table).
func writeDataset(w io.Writer, path string, d *dataset.Dataset) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xlsx":
		return writeTable(w, path, d.Table)
	}
	b, err := dataset.MarshalRecord(d)
	if err != nil {
		return err
	}
	if path == "" {
		_, err = w.Write(append(b, '\n'))
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// records renders t as text rows, header first; geometry becomes a trailing WKT column.
func records(t *table.Table) [][]string {
	header := append([]string(nil), t.Columns...)
	if t.HasGeometry() {
		header = append(header, GeometryColumn)
	}
	out := [][]string{header}
	for i, row := range t.Rows {
		rec := make([]string, 0, len(header))
		for _, v := range row {
			rec = append(rec, cellText(v))
		}
		if t.HasGeometry() {
			g := ""
			if geom := t.GeometryAt(i); geom != nil {
				g = wkt.MarshalString(geom)
			}
			rec = append(rec, g)
		}
		out = append(out, rec)
	}
	return out
}

func cellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return x
	}
	return fmt.Sprint(v)
}

// writeTable writes CSV to w when path is empty, else CSV or an xlsx workbook by extension.
func writeTable(w io.Writer, path string, t *table.Table) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case "":
		if path != "" {
			return fmt.Errorf("output %s: add a .csv or .xlsx extension", path)
		}
		return writeCSV(w, t)
	case ".csv":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := writeCSV(f, t); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	case ".xlsx":
		return writeXLSX(path, t)
	}
	return fmt.Errorf("output %s: only .csv and .xlsx tables are supported", path)
}

func writeCSV(w io.Writer, t *table.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(records(t)); err != nil {
		return err
	}
	return cw.Error()
}

// writeXLSX keeps numbers numeric in the sheet.
func writeXLSX(path string, t *table.Table) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	recs := records(t)
	for i, rec := range recs {
		row := make([]any, len(rec))
		for j, s := range rec {
			row[j] = s
			if i > 0 && j < len(t.Columns) {
				if x, ok := t.Rows[i-1][j].(float64); ok {
					row[j] = x
				}
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}

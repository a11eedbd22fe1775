// Package ingest turns uploaded spreadsheet or delimited-text bytes into a table.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"regiokaart/internal/apperr"
	"regiokaart/internal/diag"
	"regiokaart/internal/logger"
	"regiokaart/internal/metrics"
	"regiokaart/internal/table"
)

// PreviewRows bounds how many records a preview reads, header candidates included.
const PreviewRows = 50

// File kinds, keyed by extension.
const (
	KindSpreadsheet = "xlsx"
	KindCSV         = "csv"
	KindText        = "txt"
)

// Options for Parse. HeaderRow is 1-based; 0 means 1. Delimiter empty means infer.
// RowLimit 0 reads every data row.
type Options struct {
	HeaderRow int
	Delimiter string
	RowLimit  int
	// Coordinates, when set on a spreadsheet, triggers the coordinate rescale.
	Coordinates *CoordinateColumns
}

type CoordinateColumns struct {
	Latitude  string
	Longitude string
}

type Result struct {
	Table *table.Table
	Kind  string
	// Delimiter is 0 for spreadsheets.
	Delimiter rune
	// HeaderRow is the header row actually used, after clamping.
	HeaderRow   int
	Diagnostics diag.Diagnostics
	// SuggestedLatitude and SuggestedLongitude are filled by Preview.
	SuggestedLatitude  string
	SuggestedLongitude string
}

// KindOf returns the file kind of filename, or an UnsupportedFormat error.
func KindOf(filename string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	switch ext {
	case KindSpreadsheet, KindCSV, KindText:
		return ext, nil
	}
	return "", apperr.New(apperr.UnsupportedFormat, fmt.Sprintf("file extension %q not recognised, must be one of [xlsx, csv, txt]", ext))
}

// Parse reads the whole file (or RowLimit data rows) into a plain table.
// Constraint: coordinate columns are not required; binding happens later.
func Parse(data []byte, filename string, opts Options) (*Result, error) {
	return parse(data, filename, opts, false)
}

// Preview reads at most PreviewRows records and suggests coordinate columns.
func Preview(data []byte, filename string, opts Options) (*Result, error) {
	opts.RowLimit = 0
	opts.Coordinates = nil
	res, err := parse(data, filename, opts, true)
	if err != nil {
		return nil, err
	}
	res.SuggestedLatitude, res.SuggestedLongitude = SuggestCoordinateColumns(res.Table.Columns)
	return res, nil
}

func parse(data []byte, filename string, opts Options, preview bool) (*Result, error) {
	kind, err := KindOf(filename)
	if err != nil {
		metrics.IngestFailTotal.WithLabelValues(apperr.UnsupportedFormat.String()).Inc()
		return nil, err
	}
	header := opts.HeaderRow
	if header < 0 {
		return nil, apperr.New(apperr.Invalid, "header row must be a positive integer or 0")
	}
	if header == 0 {
		header = 1
	}
	maxRecords := 0
	switch {
	case preview:
		maxRecords = PreviewRows
	case opts.RowLimit > 0:
		maxRecords = header + opts.RowLimit
	}

	res := &Result{Kind: kind, Diagnostics: diag.New()}
	var records [][]string
	if kind == KindSpreadsheet {
		records, err = readSpreadsheet(data, maxRecords)
	} else {
		text := decode(data)
		delim, derr := resolveDelimiter(text, opts.Delimiter, &res.Diagnostics)
		if derr != nil {
			return nil, derr
		}
		res.Delimiter = delim
		records, err = readDelimited(text, delim, maxRecords)
	}
	if err != nil {
		metrics.IngestFailTotal.WithLabelValues(apperr.DecodeFailed.String()).Inc()
		return nil, err
	}
	if len(records) == 0 {
		return nil, apperr.New(apperr.DecodeFailed, "file contains no rows")
	}

	n := len(records)
	if header >= n && header > 1 {
		if preview && n >= PreviewRows {
			res.Diagnostics.Warnf("Om het inladen snel te houden is het alleen mogelijk om de eerste %d rijen als kolomnaam te gebruiken. "+
				"Is dit niet het geval? Pas de dataset aan zodat de kolomnamen bovenaan staan. Datasets langer dan %d rijen zijn wel toegestaan, "+
				"maar de gehele dataset wordt pas ingeladen als op de inlaad knop wordt geklikt.", PreviewRows, PreviewRows)
		} else {
			res.Diagnostics.Warnf("Het rijnummer die je meegeeft is groter dan de dataset. Het nummer wordt gezet op %d", n-1)
		}
		header = n - 1
		if header < 1 {
			header = 1
		}
	}
	res.HeaderRow = header

	t := table.New(columnNames(records[header-1])...)
	for _, rec := range records[header:] {
		row := make([]any, len(t.Columns))
		for j := 0; j < len(row) && j < len(rec); j++ {
			row[j] = table.ParseCell(rec[j])
		}
		t.Append(row, nil)
	}
	if !preview && opts.RowLimit > 0 && t.Len() > opts.RowLimit {
		t = t.Take(firstN(opts.RowLimit))
	}
	res.Table = t

	if kind == KindSpreadsheet && opts.Coordinates != nil {
		lat, lon := opts.Coordinates.Latitude, opts.Coordinates.Longitude
		if !t.Has(lat) || !t.Has(lon) {
			return nil, apperr.New(apperr.MissingColumns, "latitude or longitude column names are not in table headers")
		}
		res.Diagnostics.Warnings = append(res.Diagnostics.Warnings, RescaleCoordinates(t, lat, lon)...)
	}

	metrics.IngestFilesTotal.WithLabelValues(kind).Inc()
	metrics.IngestRowsTotal.Add(float64(t.Len()))
	logger.L().Debug("ingest_parsed", "file", filename, "kind", kind, "rows", t.Len(), "cols", len(t.Columns), "header", header, "preview", preview)
	return res, nil
}

// decode returns data as UTF-8 text, falling back to ISO-8859-1 when data is not valid UTF-8.
func decode(data []byte) string {
	if utf8.Valid(data) {
		return strings.TrimPrefix(string(data), "\ufeff")
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		// ISO-8859-1 maps every byte; this path is unreachable in practice.
		return string(data)
	}
	return string(out)
}

func resolveDelimiter(text, given string, d *diag.Diagnostics) (rune, error) {
	switch given {
	case "":
		r, ok := InferDelimiter(text)
		if !ok {
			d.Warnf("Er is geen scheidingsteken gevonden. Tab wordt gebruikt als scheidingsteken.")
		}
		return r, nil
	case `\t`, "tab":
		return '\t', nil
	}
	if utf8.RuneCountInString(given) != 1 {
		return 0, apperr.New(apperr.Invalid, fmt.Sprintf("delimiter %q must be a single character", given))
	}
	r, _ := utf8.DecodeRuneInString(given)
	return r, nil
}

func readDelimited(text string, delim rune, maxRecords int) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	var out [][]string
	for maxRecords == 0 || len(out) < maxRecords {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.DecodeFailed, "reading delimited text failed", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// readSpreadsheet reads the first sheet of an xlsx workbook.
func readSpreadsheet(data []byte, maxRecords int) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Wrap(apperr.DecodeFailed, "opening spreadsheet failed", err)
	}
	defer f.Close()
	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, apperr.New(apperr.DecodeFailed, "spreadsheet has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperr.Wrap(apperr.DecodeFailed, "reading sheet "+sheet+" failed", err)
	}
	if maxRecords > 0 && len(rows) > maxRecords {
		rows = rows[:maxRecords]
	}
	return rows, nil
}

// columnNames names blank headers "Unnamed: j" and suffixes repeats with ".1", ".2".
func columnNames(rec []string) []string {
	out := make([]string, len(rec))
	seen := map[string]int{}
	for j, c := range rec {
		c = strings.TrimSpace(c)
		if c == "" {
			c = "Unnamed: " + strconv.Itoa(j)
		}
		name := c
		for seen[name] > 0 {
			name = c + "." + strconv.Itoa(seen[c])
			seen[c]++
		}
		seen[name]++
		out[j] = name
	}
	return out
}

func firstN(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// Package table is the in-memory row/column table passed between ingestion, binding, join and aggregation.
// Cells hold nil, float64, string or bool; a table optionally carries one geometry per row.
package table

import (
	"fmt"

	"github.com/paulmach/orb"
)

// CRS84 is the reference system every geometry-bearing table uses.
const CRS84 = "EPSG:4326"

type Table struct {
	Columns []string
	Rows    [][]any
	// Geometry is nil for a plain table, otherwise aligned with Rows.
	Geometry []orb.Geometry
	CRS      string
}

func New(columns ...string) *Table {
	return &Table{Columns: append([]string(nil), columns...), Rows: [][]any{}}
}

func (t *Table) Len() int { return len(t.Rows) }

func (t *Table) HasGeometry() bool { return t.Geometry != nil }

// Index returns the position of col or -1.
func (t *Table) Index(col string) int {
	for i, c := range t.Columns {
		if c == col {
			return i
		}
	}
	return -1
}

func (t *Table) Has(col string) bool { return t.Index(col) >= 0 }

// Append adds a row; short rows are padded with nil. g may be nil for plain tables.
func (t *Table) Append(row []any, g orb.Geometry) {
	if len(row) < len(t.Columns) {
		padded := make([]any, len(t.Columns))
		copy(padded, row)
		row = padded
	}
	if g != nil && t.Geometry == nil {
		t.Geometry = make([]orb.Geometry, len(t.Rows), len(t.Rows)+1)
	}
	t.Rows = append(t.Rows, row)
	if t.Geometry != nil {
		t.Geometry = append(t.Geometry, g)
	}
}

func (t *Table) Value(i int, col string) any {
	j := t.Index(col)
	if j < 0 || i < 0 || i >= len(t.Rows) {
		return nil
	}
	return t.Rows[i][j]
}

func (t *Table) GeometryAt(i int) orb.Geometry {
	if t.Geometry == nil || i < 0 || i >= len(t.Geometry) {
		return nil
	}
	return t.Geometry[i]
}

// Column returns a copy of the values of col.
func (t *Table) Column(col string) ([]any, bool) {
	j := t.Index(col)
	if j < 0 {
		return nil, false
	}
	out := make([]any, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[j]
	}
	return out, true
}

// SetColumn replaces col, or appends it when absent. len(vals) must equal Len().
func (t *Table) SetColumn(col string, vals []any) error {
	if len(vals) != len(t.Rows) {
		return fmt.Errorf("set column %q: %d values for %d rows", col, len(vals), len(t.Rows))
	}
	j := t.Index(col)
	if j < 0 {
		t.Columns = append(t.Columns, col)
		for i := range t.Rows {
			t.Rows[i] = append(t.Rows[i], vals[i])
		}
		return nil
	}
	for i := range t.Rows {
		t.Rows[i][j] = vals[i]
	}
	return nil
}

// Select projects the table onto cols, keeping geometry.
func (t *Table) Select(cols ...string) (*Table, error) {
	idx := make([]int, len(cols))
	for k, c := range cols {
		idx[k] = t.Index(c)
		if idx[k] < 0 {
			return nil, fmt.Errorf("select: column %q not in table", c)
		}
	}
	out := &Table{Columns: append([]string(nil), cols...), Rows: make([][]any, len(t.Rows)), CRS: t.CRS}
	for i, r := range t.Rows {
		row := make([]any, len(idx))
		for k, j := range idx {
			row[k] = r[j]
		}
		out.Rows[i] = row
	}
	if t.Geometry != nil {
		out.Geometry = append([]orb.Geometry(nil), t.Geometry...)
	}
	return out, nil
}

// Take builds a table from the rows at positions idx, in that order.
func (t *Table) Take(idx []int) *Table {
	out := &Table{Columns: append([]string(nil), t.Columns...), Rows: make([][]any, 0, len(idx)), CRS: t.CRS}
	if t.Geometry != nil {
		out.Geometry = make([]orb.Geometry, 0, len(idx))
	}
	for _, i := range idx {
		out.Rows = append(out.Rows, append([]any(nil), t.Rows[i]...))
		if t.Geometry != nil {
			out.Geometry = append(out.Geometry, t.Geometry[i])
		}
	}
	return out
}

// Filter keeps the rows for which keep returns true.
func (t *Table) Filter(keep func(i int) bool) *Table {
	idx := make([]int, 0, len(t.Rows))
	for i := range t.Rows {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	return t.Take(idx)
}

func (t *Table) Clone() *Table {
	idx := make([]int, len(t.Rows))
	for i := range idx {
		idx[i] = i
	}
	return t.Take(idx)
}

// Package aggregate collapses a table to one row per group key combination.
package aggregate

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/shopspring/decimal"

	"regiokaart/internal/apperr"
	"regiokaart/internal/diag"
	"regiokaart/internal/table"
)

type Reducer string

const (
	Mean      Reducer = "mean"
	Max       Reducer = "max"
	Min       Reducer = "min"
	Sum       Reducer = "sum"
	Frequency Reducer = "frequency"
)

// CountColumn names the frequency column when no target is given.
const CountColumn = "aantal"

// ParseReducer falls back to Mean for unknown names; ok reports whether s was known.
func ParseReducer(s string) (r Reducer, ok bool) {
	switch r := Reducer(s); r {
	case Mean, Max, Min, Sum, Frequency:
		return r, true
	}
	return Mean, false
}

func (r Reducer) Numeric() bool { return r != Frequency }

type Result struct {
	Table       *table.Table
	Reducer     Reducer
	Diagnostics diag.Diagnostics
}

type group struct {
	key  []any
	rows []int
}

// Reduce groups t by keys (one or two columns) and reduces each target with reducer.
// Rows with a missing key are dropped. Numeric reducers skip missing values; a group without any value
// yields nil (sum yields 0). Frequency counts rows and ignores target content; without targets it writes
// CountColumn. When t carries geometry, each output row gets the last non-nil geometry of its first key.
// Errors: MissingColumns, TypeMismatch (a target not castable to numbers, checked before reducing).
func Reduce(t *table.Table, keys []string, reducer string, targets ...string) (*Result, error) {
	if len(keys) == 0 || len(keys) > 2 {
		return nil, apperr.New(apperr.Invalid, fmt.Sprintf("group by takes one or two columns, got %d", len(keys)))
	}
	for _, k := range keys {
		if !t.Has(k) {
			return nil, apperr.New(apperr.MissingColumns, fmt.Sprintf("group column %q is not in the dataset", k))
		}
	}
	r, known := ParseReducer(reducer)
	res := &Result{Reducer: r, Diagnostics: diag.New()}
	if !known {
		res.Diagnostics.Warnf("Onbekende aggregatiemethode '%s'. Het gemiddelde (mean) wordt gebruikt.", reducer)
	}
	if r.Numeric() && len(targets) == 0 {
		return nil, apperr.New(apperr.MissingColumns, fmt.Sprintf("aggregation method %s needs a target column", r))
	}

	values := make([][]float64, len(targets))
	for ti, c := range targets {
		vals, ok := t.Column(c)
		if !ok {
			return nil, apperr.New(apperr.MissingColumns, fmt.Sprintf("column %q is not in the dataset", c))
		}
		if !r.Numeric() {
			continue
		}
		fs, err := table.Floats(c, vals)
		if err != nil {
			ce := err.(*table.CastError)
			return nil, apperr.Wrap(apperr.TypeMismatch,
				fmt.Sprintf("De kolom '%s' moet numeriek zijn voor aggregatiemethode %s. De volgende data types komen voor: %s", c, r, strings.Join(ce.Types, ", ")), err)
		}
		values[ti] = fs
	}

	groups := groupRows(t, keys)

	outCols := append([]string(nil), keys...)
	if len(targets) == 0 {
		outCols = append(outCols, CountColumn)
	}
	for _, c := range targets {
		if contains(keys, c) {
			c = CountColumn
		}
		outCols = append(outCols, c)
	}
	out := table.New(outCols...)
	out.CRS = t.CRS

	var geomByKey map[string]orb.Geometry
	if t.HasGeometry() {
		geomByKey = LastGeometry(t, keys[0])
		out.Geometry = make([]orb.Geometry, 0, len(groups))
	}
	for _, g := range groups {
		row := append([]any(nil), g.key...)
		if len(targets) == 0 {
			row = append(row, float64(len(g.rows)))
		}
		for ti := range targets {
			row = append(row, reduce(r, values[ti], g.rows))
		}
		out.Rows = append(out.Rows, row)
		if geomByKey != nil {
			out.Geometry = append(out.Geometry, geomByKey[keyString(g.key[:1])])
		}
	}
	res.Table = out
	return res, nil
}

// LastGeometry maps each value of key to the last non-nil geometry among its rows.
func LastGeometry(t *table.Table, key string) map[string]orb.Geometry {
	out := map[string]orb.Geometry{}
	j := t.Index(key)
	if j < 0 {
		return out
	}
	for i, r := range t.Rows {
		if g := t.GeometryAt(i); g != nil && r[j] != nil {
			out[keyString(r[j:j+1])] = g
		}
	}
	return out
}

func groupRows(t *table.Table, keys []string) []*group {
	idx := make([]int, len(keys))
	for k, c := range keys {
		idx[k] = t.Index(c)
	}
	byKey := map[string]*group{}
	var groups []*group
	for i, r := range t.Rows {
		key := make([]any, len(idx))
		missing := false
		for k, j := range idx {
			key[k] = r[j]
			missing = missing || r[j] == nil
		}
		if missing {
			continue
		}
		ks := keyString(key)
		g, ok := byKey[ks]
		if !ok {
			g = &group{key: key}
			byKey[ks] = g
			groups = append(groups, g)
		}
		g.rows = append(g.rows, i)
	}
	sort.SliceStable(groups, func(a, b int) bool {
		for k := range groups[a].key {
			if c := table.Compare(groups[a].key[k], groups[b].key[k]); c != 0 {
				return c < 0
			}
		}
		return false
	})
	return groups
}

// keyString distinguishes 1 (number) from "1" (text).
func keyString(key []any) string {
	parts := make([]string, len(key))
	for i, v := range key {
		parts[i] = table.TypeLabel(v) + ":" + table.Text(v)
	}
	return strings.Join(parts, "\x1f")
}

func reduce(r Reducer, vals []float64, rows []int) any {
	if r == Frequency {
		return float64(len(rows))
	}
	var (
		sum = decimal.Zero
		n   int64
		lo  = math.Inf(1)
		hi  = math.Inf(-1)
	)
	for _, i := range rows {
		v := vals[i]
		if math.IsNaN(v) {
			continue
		}
		n++
		sum = sum.Add(decimal.NewFromFloat(v))
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if n == 0 {
		if r == Sum {
			return 0.0
		}
		return nil
	}
	switch r {
	case Sum:
		return sum.InexactFloat64()
	case Max:
		return hi
	case Min:
		return lo
	}
	return sum.Div(decimal.NewFromInt(n)).InexactFloat64()
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

var missingTokens = map[string]bool{
	"": true, "NA": true, "N/A": true, "NaN": true, "nan": true, "null": true, "NULL": true, "#N/A": true, "None": true,
}

// ParseCell types a raw text cell: missing tokens become nil, finite numbers float64, anything else string.
func ParseCell(s string) any {
	v := strings.TrimSpace(s)
	if missingTokens[v] {
		return nil
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return f
	}
	return s
}

// Float converts a cell to float64. nil is reported as NaN with ok=true (missing, not wrong).
func Float(v any) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return math.NaN(), true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// CastError reports a column that could not be coerced to numbers, with the cell types it holds.
type CastError struct {
	Column string
	Types  []string
}

func (e *CastError) Error() string {
	return fmt.Sprintf("column %q is not numeric (%s)", e.Column, strings.Join(e.Types, ", "))
}

// Floats coerces every value or fails with a *CastError naming the observed types.
func Floats(column string, vals []any) ([]float64, error) {
	out := make([]float64, len(vals))
	for i, v := range vals {
		f, ok := Float(v)
		if !ok {
			return nil, &CastError{Column: column, Types: TypeLabels(vals)}
		}
		out[i] = f
	}
	return out, nil
}

// TypeLabel is the operator-facing name of a cell type.
func TypeLabel(v any) string {
	switch v.(type) {
	case float64, float32, int, int64:
		return "getal"
	case string:
		return "tekst/categorisch"
	}
	return "onbekend"
}

// TypeLabels lists the distinct type labels of vals in order of first appearance.
func TypeLabels(vals []any) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range vals {
		l := TypeLabel(v)
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

// Text renders a cell as text; integral floats lose their fraction.
func Text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}

// Compare orders cells: nil first, then numbers ascending, then other values by their text.
func Compare(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	fa, aNum := numeric(a)
	fb, bNum := numeric(b)
	switch {
	case aNum && bNum:
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case aNum:
		return -1
	case bNum:
		return 1
	}
	return strings.Compare(Text(a), Text(b))
}

func numeric(v any) (float64, bool) {
	switch v.(type) {
	case float64, float32, int, int64:
		f, _ := Float(v)
		return f, true
	}
	return 0, false
}

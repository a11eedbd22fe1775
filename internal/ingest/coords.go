package ingest

import (
	"math"
	"strings"

	"regiokaart/internal/table"
)

// Band is the plausible coordinate range for the reference municipality. Base is the leading value used to
// find the power of ten a scaled-up coordinate was multiplied by.
type Band struct {
	Min, Max, Base float64
}

var (
	LatitudeBand  = Band{Min: 51, Max: 54, Base: 51}
	LongitudeBand = Band{Min: 3, Max: 8, Base: 3}
)

// RescaleCoordinates repairs spreadsheet coordinates that lost their decimal separator
// (5163576559424015 -> 51.63576559424015). A column is only touched when every value lies outside its band;
// when the rescaled values still all lie outside, the originals are kept. Returns the warnings raised.
func RescaleCoordinates(t *table.Table, latCol, lonCol string) []string {
	var warnings []string
	if w := rescaleColumn(t, latCol, LatitudeBand, "Latitude"); w != "" {
		warnings = append(warnings, w)
	}
	if w := rescaleColumn(t, lonCol, LongitudeBand, "Longitude"); w != "" {
		warnings = append(warnings, w)
	}
	return warnings
}

func rescaleColumn(t *table.Table, col string, b Band, label string) string {
	vals, ok := t.Column(col)
	if !ok || len(vals) == 0 {
		return ""
	}
	xs := make([]float64, len(vals))
	for i, v := range vals {
		f, isNum := v.(float64)
		if !isNum {
			return ""
		}
		xs[i] = f
	}
	if !b.allOutside(xs) {
		return ""
	}
	scaled := make([]float64, len(xs))
	for i, x := range xs {
		scaled[i] = shiftDecimal(x, b.Base)
	}
	if b.allOutside(scaled) {
		return label + " coördinaten wijken af van de verwachte waarden en kunnen niet geschaald worden. Wees voorzichtig met het gebruik van deze coördinaten."
	}
	out := make([]any, len(scaled))
	for i, f := range scaled {
		out[i] = f
	}
	_ = t.SetColumn(col, out)
	return label + " coördinaten wijken af van de verwachte waarden. De waarden worden geschaald."
}

// allOutside: every value below Min, or every value above Max. NaN is never outside.
func (b Band) allOutside(xs []float64) bool {
	below, above := true, true
	for _, x := range xs {
		below = below && x < b.Min
		above = above && x > b.Max
	}
	return below || above
}

// shiftDecimal divides x by 10^floor(log10(floor(x/base))). Values below base cannot be shifted and
// are returned unchanged.
func shiftDecimal(x, base float64) float64 {
	q := math.Floor(x / base)
	if q <= 0 {
		return x
	}
	return x / math.Pow(10, math.Floor(math.Log10(q)))
}

// SuggestCoordinateColumns proposes latitude and longitude columns by name: "lat" anywhere or exactly
// "breedtegraad", "long" anywhere or exactly "lengtegraad" (case-insensitive). The last match wins.
func SuggestCoordinateColumns(cols []string) (lat, lon string) {
	for _, c := range cols {
		lc := strings.ToLower(c)
		if strings.Contains(lc, "lat") || lc == "breedtegraad" {
			lat = c
		}
		if strings.Contains(lc, "long") || lc == "lengtegraad" {
			lon = c
		}
	}
	return lat, lon
}

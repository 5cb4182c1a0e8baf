package analytics

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var numericNoise = strings.NewReplacer(
	",", "",
	"₹", "",
	"$", "",
	"€", "",
	"£", "",
)

// maxMagnitude bounds the decimal exponent of accepted values, keeping sums and
// quantiles finite.
const maxMagnitude = 300

var missingLiterals = map[string]bool{
	"":     true,
	"nan":  true,
	"NaN":  true,
	"None": true,
	"<NA>": true,
}

// CleanNumber parses a currency-formatted string. Thousands separators and currency
// symbols are stripped and whitespace trimmed; empty, "nan" and "None" literals are
// missing. The second return value is false whenever the value is missing, unparsable
// or beyond ±1e300.
func CleanNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(numericNoise.Replace(raw))
	if missingLiterals[s] {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	if d.IsZero() {
		return 0, true
	}
	// order of magnitude from coefficient digits and exponent, checked before
	// Float64 expands the exponent
	magnitude := int64(d.NumDigits()) + int64(d.Exponent())
	if magnitude > maxMagnitude || magnitude < -maxMagnitude {
		return 0, false
	}
	f, _ := d.Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// cleanSeries maps raw values through CleanNumber, keeping missing markers.
func cleanSeries(raw []string) (values []float64, present []bool) {
	values = make([]float64, len(raw))
	present = make([]bool, len(raw))
	for i, r := range raw {
		values[i], present[i] = CleanNumber(r)
	}
	return values, present
}

// quantile uses linear interpolation between closest ranks over sorted values.
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	pos := q * float64(n-1)
	lo := int(pos)
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[lo+1]-sorted[lo])*frac
}

package compare

import (
	"math"

	"dejavu/internal/domain"
)

// constantColumnValue is the scaled value assigned to every entry of an OHLC
// column whose min and max coincide across the window. The midpoint keeps a
// flat column neutral in the similarity computation instead of pinning it to
// either extreme, and avoids the division by zero a naive min-max scaler
// would hit.
const constantColumnValue = 0.5

// ohlc extracts the four price columns of a bar in normalization order.
func ohlc(b domain.Bar) [4]float64 {
	return [4]float64{b.Open, b.High, b.Low, b.Close}
}

// Normalize reduces a window's bars to a scale-invariant shape vector. Each
// OHLC column is min-max scaled to [0,1] against that window's own observed
// min and max, then the scaled table is flattened row-major (O,H,L,C per
// bar). Scaling against the window itself means the vector encodes shape,
// never absolute price level. Empty input yields a zero-length Pattern,
// which ranks as non-comparable rather than failing.
func Normalize(bars []domain.Bar) domain.Pattern {
	if len(bars) == 0 {
		return domain.Pattern{}
	}

	var mins, maxs [4]float64
	for i := range mins {
		mins[i] = math.Inf(1)
		maxs[i] = math.Inf(-1)
	}
	for _, b := range bars {
		for i, v := range ohlc(b) {
			mins[i] = math.Min(mins[i], v)
			maxs[i] = math.Max(maxs[i], v)
		}
	}

	pattern := make(domain.Pattern, 0, len(bars)*4)
	for _, b := range bars {
		for i, v := range ohlc(b) {
			span := maxs[i] - mins[i]
			if span == 0 {
				pattern = append(pattern, constantColumnValue)
				continue
			}
			pattern = append(pattern, (v-mins[i])/span)
		}
	}
	return pattern
}

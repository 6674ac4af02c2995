package service

import "supplies-radar/internal/wbapi"

// Qualifying filters coefficients down to the ones worth notifying about:
// a coefficient qualifies iff -1 < value <= threshold. The value -1 is the
// upstream sentinel for "acceptance not available" and never qualifies.
// Upstream order is preserved.
func Qualifying(coefficients []wbapi.Coefficient, threshold float64) []wbapi.Coefficient {
	var good []wbapi.Coefficient
	for _, c := range coefficients {
		if c.Value > -1 && c.Value <= threshold {
			good = append(good, c)
		}
	}
	return good
}

package stats

import "math"

// LogStirlingRow returns the log-magnitudes of the unsigned Stirling
// numbers of the first kind s(n, 0..n). Zero entries are reported as
// -Inf. Works by the recurrence s(n+1, k) = n*s(n, k) + s(n, k-1)
// carried out in log space, which stays finite far beyond the point
// where the numbers themselves overflow.
func LogStirlingRow(n int) []float64 {
	if n < 0 {
		panic("stats: negative Stirling row length")
	}
	row := []float64{0} // s(0, 0) = 1
	for m := 0; m < n; m++ {
		next := make([]float64, m+2)
		next[0] = math.Inf(-1)
		for k := 1; k <= m+1; k++ {
			carry := math.Inf(-1)
			if k <= m {
				carry = math.Log(float64(m)) + row[k]
			}
			next[k] = logAdd(carry, row[k-1])
		}
		row = next
	}
	return row
}

func logAdd(a, b float64) float64 {
	if math.IsInf(a, -1) {
		return b
	}
	if math.IsInf(b, -1) {
		return a
	}
	if a < b {
		a, b = b, a
	}
	return a + math.Log1p(math.Exp(b-a))
}

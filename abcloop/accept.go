package abcloop

import "gonum.org/v1/gonum/mat"

// Accept reports, row by row, whether d's row satisfies d[i,s] <= eps[s]
// for every summary statistic s (spec.md §4.6).
func Accept(d *mat.Dense, eps []float64) []bool {
	rows, cols := d.Dims()
	out := make([]bool, rows)
	for r := 0; r < rows; r++ {
		ok := true
		for c := 0; c < cols && c < len(eps); c++ {
			if d.At(r, c) > eps[c] {
				ok = false
				break
			}
		}
		out[r] = ok
	}
	return out
}

// SummedDistances returns, per row, the sum over summary-statistic columns,
// used by the adaptive tolerance selector's sort-and-truncate rule.
func SummedDistances(d *mat.Dense) []float64 {
	rows, cols := d.Dims()
	out := make([]float64, rows)
	for r := 0; r < rows; r++ {
		var s float64
		for c := 0; c < cols; c++ {
			s += d.At(r, c)
		}
		out[r] = s
	}
	return out
}

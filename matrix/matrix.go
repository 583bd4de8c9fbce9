package matrix

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// rowSums returns a slice containing m's row sums. It panics if m is nil.
func rowSums(m *mat.Dense) []float64 {
	rows, _ := m.Dims()
	sum := make([]float64, rows)

	for i := 0; i < rows; i++ {
		sum[i] = floats.Sum(m.RawRowView(i))
	}

	return sum
}

// rowMeans returns, for each row of m, its mean across m's cols columns.
func rowMeans(m *mat.Dense, cols int) []float64 {
	mean := rowSums(m)
	floats.Scale(1/float64(cols), mean)
	return mean
}

// Cov calculates the covariance matrix of m's rows (variables), treating
// each column of m as one observation. It returns an error if the result is
// not square and symmetric.
func Cov(m *mat.Dense) (*mat.SymDense, error) {
	// 1. We will calculate zero mean matrix x of the data
	// 2. 1/(n-1)(x * x^T) will give us covariance of the data
	rows, cols := m.Dims()

	mean := rowMeans(m, cols)

	x := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			x.Set(r, c, m.At(r, c)-mean[r])
		}
	}

	cov := new(mat.Dense)
	cov.Mul(x, x.T())
	cov.Scale(1/(float64(cols)-1.0), cov)

	return toSymDense(cov)
}

// toSymDense converts m to SymDense (symmetric Dense matrix) if possible.
// It returns error if the provided Dense matrix is not symmetric.
func toSymDense(m *mat.Dense) (*mat.SymDense, error) {
	r, c := m.Dims()
	if r != c {
		return nil, errors.New("matrix must be square")
	}

	mT := m.T()
	vals := make([]float64, r*c)
	idx := 0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if i != j && !floats.EqualWithinAbsOrRel(mT.At(i, j), m.At(i, j), 1e-6, 1e-2) {
				return nil, fmt.Errorf("matrix not symmetric (%d, %d): %.40f != %.40f", i, j, mT.At(i, j), m.At(i, j))
			}
			vals[idx] = m.At(i, j)
			idx++
		}
	}

	return mat.NewSymDense(r, vals), nil
}

// Sparse is a compact-column sparse matrix of non-negative reals, used for
// the EventTable selector matrix E (compartments x selectors). Columns are
// stored as (row, value) pairs; rows and columns are addressed by integer
// index, with optional row labels carried alongside for validation against
// a companion Int matrix (the shift matrix N).
type Sparse struct {
	rows, cols int
	// colStart[c]:colStart[c+1] indexes into rowIdx/vals for column c.
	colStart []int
	rowIdx   []int
	vals     []float64
	// rowLabels names each row; may be nil if unused.
	rowLabels []string
}

// NewSparse builds a Sparse matrix of the given shape from (row, col, value)
// triplets, which may be given in any order: they are sorted by column then
// row. It returns an error if the triplet slices differ in length, if an
// index is out of bounds, or if any value is negative.
func NewSparse(rows, cols int, rowIdx []int, colIdx []int, vals []float64, rowLabels []string) (*Sparse, error) {
	if len(rowIdx) != len(colIdx) || len(colIdx) != len(vals) {
		return nil, fmt.Errorf("sparse matrix: mismatched triplet lengths")
	}

	colStart := make([]int, cols+1)
	outRowIdx := make([]int, len(vals))
	outVals := make([]float64, len(vals))

	order := make([]int, len(vals))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if colIdx[a] != colIdx[b] {
			return colIdx[a] < colIdx[b]
		}
		return rowIdx[a] < rowIdx[b]
	})

	for pos, i := range order {
		r, c, v := rowIdx[i], colIdx[i], vals[i]
		if r < 0 || r >= rows || c < 0 || c >= cols {
			return nil, fmt.Errorf("sparse matrix: index (%d,%d) out of bounds for %dx%d", r, c, rows, cols)
		}
		if v < 0 {
			return nil, fmt.Errorf("sparse matrix: negative value %g at (%d,%d)", v, r, c)
		}
		outRowIdx[pos] = r
		outVals[pos] = v
		colStart[c+1]++
	}
	for c := 0; c < cols; c++ {
		colStart[c+1] += colStart[c]
	}

	if rowLabels != nil && len(rowLabels) != rows {
		return nil, fmt.Errorf("sparse matrix: row label count %d does not match row count %d", len(rowLabels), rows)
	}

	return &Sparse{
		rows:      rows,
		cols:      cols,
		colStart:  colStart,
		rowIdx:    outRowIdx,
		vals:      outVals,
		rowLabels: rowLabels,
	}, nil
}

// Dims returns the matrix shape.
func (s *Sparse) Dims() (rows, cols int) { return s.rows, s.cols }

// At returns the value at (r, c), or 0 if the entry is not stored.
func (s *Sparse) At(r, c int) float64 {
	for i := s.colStart[c]; i < s.colStart[c+1]; i++ {
		if s.rowIdx[i] == r {
			return s.vals[i]
		}
	}
	return 0
}

// RowLabels returns the row labels, or nil if none were supplied.
func (s *Sparse) RowLabels() []string { return s.rowLabels }

// NNZ returns the number of explicitly stored (non-zero) entries.
func (s *Sparse) NNZ() int { return len(s.vals) }

// Int is a dense integer matrix, used for the EventTable shift matrix N.
type Int struct {
	rows, cols int
	data       []int
	rowLabels  []string
}

// NewInt builds an Int matrix from row-major data.
func NewInt(rows, cols int, data []int, rowLabels []string) (*Int, error) {
	if data != nil && len(data) != rows*cols {
		return nil, fmt.Errorf("int matrix: data length %d does not match %dx%d", len(data), rows, cols)
	}
	if data == nil {
		data = make([]int, rows*cols)
	}
	if rowLabels != nil && len(rowLabels) != rows {
		return nil, fmt.Errorf("int matrix: row label count %d does not match row count %d", len(rowLabels), rows)
	}
	return &Int{rows: rows, cols: cols, data: data, rowLabels: rowLabels}, nil
}

// Dims returns the matrix shape.
func (m *Int) Dims() (rows, cols int) { return m.rows, m.cols }

// At returns the value at (r, c).
func (m *Int) At(r, c int) int { return m.data[r*m.cols+c] }

// RowLabels returns the row labels, or nil if none were supplied.
func (m *Int) RowLabels() []string { return m.rowLabels }

// SameRowLabels reports whether two row-label slices are equal, treating a
// nil/empty slice on either side as "unconstrained" (matches anything).
func SameRowLabels(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return true
	}
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

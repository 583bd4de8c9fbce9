package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestCov(t *testing.T) {
	assert := assert.New(t)

	// two variables (rows), two observations (cols)
	data := []float64{1, 2, 2, 4}
	want := mat.NewDense(2, 2, []float64{0.5, 1.0, 1.0, 2.0})

	m := mat.NewDense(2, 2, data)
	cov, err := Cov(m)
	assert.NoError(err)
	assert.NotNil(cov)

	rows, cols := cov.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			assert.InDelta(want.At(r, c), cov.At(r, c), 0.001)
		}
	}
}

func TestToSymDense(t *testing.T) {
	assert := assert.New(t)

	badMx := mat.NewDense(2, 1, []float64{0.5, 1.0})
	notSymMx := mat.NewDense(2, 2, []float64{0.5, 1.0, 2.0, 2.0})
	symMx := mat.NewDense(2, 2, []float64{0.5, 1.0, 1.0, 2.0})

	sym, err := toSymDense(badMx)
	assert.Nil(sym)
	assert.Error(err)

	sym, err = toSymDense(notSymMx)
	assert.Nil(sym)
	assert.Error(err)

	sym, err = toSymDense(symMx)
	assert.NotNil(sym)
	assert.NoError(err)
}

func TestNewSparseAt(t *testing.T) {
	assert := assert.New(t)

	s, err := NewSparse(3, 2, []int{2, 0, 1}, []int{1, 0, 0}, []float64{5, 1, 2}, nil)
	assert.NoError(err)

	rows, cols := s.Dims()
	assert.Equal(3, rows)
	assert.Equal(2, cols)
	assert.Equal(1.0, s.At(0, 0))
	assert.Equal(2.0, s.At(1, 0))
	assert.Equal(0.0, s.At(2, 0))
	assert.Equal(5.0, s.At(2, 1))
	assert.Equal(3, s.NNZ())
}

func TestNewSparseRejectsNegativeAndOutOfBounds(t *testing.T) {
	assert := assert.New(t)

	_, err := NewSparse(2, 2, []int{0}, []int{0}, []float64{-1}, nil)
	assert.Error(err)

	_, err = NewSparse(2, 2, []int{5}, []int{0}, []float64{1}, nil)
	assert.Error(err)
}

func TestNewSparseRowLabels(t *testing.T) {
	assert := assert.New(t)

	s, err := NewSparse(2, 1, []int{0}, []int{0}, []float64{1}, []string{"S", "I"})
	assert.NoError(err)
	assert.Equal([]string{"S", "I"}, s.RowLabels())

	_, err = NewSparse(2, 1, []int{0}, []int{0}, []float64{1}, []string{"S"})
	assert.Error(err)
}

func TestNewIntAt(t *testing.T) {
	assert := assert.New(t)

	m, err := NewInt(2, 2, []int{1, -1, 0, 2}, nil)
	assert.NoError(err)
	assert.Equal(1, m.At(0, 0))
	assert.Equal(-1, m.At(0, 1))
	assert.Equal(0, m.At(1, 0))
	assert.Equal(2, m.At(1, 1))
}

func TestNewIntRejectsLengthMismatch(t *testing.T) {
	assert := assert.New(t)

	_, err := NewInt(2, 2, []int{1, 2, 3}, nil)
	assert.Error(err)
}

func TestSameRowLabels(t *testing.T) {
	assert := assert.New(t)

	assert.True(SameRowLabels(nil, []string{"S"}))
	assert.True(SameRowLabels([]string{"S"}, nil))
	assert.True(SameRowLabels([]string{"S", "I"}, []string{"S", "I"}))
	assert.False(SameRowLabels([]string{"S", "I"}, []string{"I", "S"}))
	assert.False(SameRowLabels([]string{"S"}, []string{"S", "I"}))
}

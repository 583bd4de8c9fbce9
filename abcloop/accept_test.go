package abcloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestAcceptMask(t *testing.T) {
	assert := assert.New(t)

	d := mat.NewDense(3, 1, []float64{0.1, 0.3, 0.5})
	mask := Accept(d, []float64{0.3})
	assert.Equal([]bool{true, true, false}, mask)
}

func TestSummedDistances(t *testing.T) {
	assert := assert.New(t)

	d := mat.NewDense(2, 2, []float64{0.1, 0.2, 0.3, 0.4})
	sums := SummedDistances(d)
	assert.InDeltaSlice([]float64{0.3, 0.7}, sums, 1e-12)
}

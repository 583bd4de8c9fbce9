package particle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func gen(x [][]float64, w []float64, d [][]float64, eps []float64) *Generation {
	np := len(x)
	k := len(x[0])
	flatX := make([]float64, 0, np*k)
	for _, row := range x {
		flatX = append(flatX, row...)
	}
	s := len(d[0])
	flatD := make([]float64, 0, np*s)
	for _, row := range d {
		flatD = append(flatD, row...)
	}
	return &Generation{
		X:   mat.NewDense(np, k, flatX),
		W:   w,
		D:   mat.NewDense(np, s, flatD),
		Eps: eps,
	}
}

func TestPushValidGeneration(t *testing.T) {
	assert := assert.New(t)

	s := NewStore()
	g1 := gen([][]float64{{0.1}, {0.2}}, []float64{0.5, 0.5}, [][]float64{{0.2}, {0.25}}, []float64{0.3})
	assert.NoError(s.Push(g1))
	assert.Equal(1, s.Len())

	g2 := gen([][]float64{{0.1}, {0.2}}, []float64{0.5, 0.5}, [][]float64{{0.1}, {0.15}}, []float64{0.2})
	assert.NoError(s.Push(g2))
	assert.Equal(2, s.Len())
}

func TestPushRejectsNonDecreasingTolerance(t *testing.T) {
	assert := assert.New(t)

	s := NewStore()
	g1 := gen([][]float64{{0.1}}, []float64{1}, [][]float64{{0.2}}, []float64{0.3})
	assert.NoError(s.Push(g1))

	g2 := gen([][]float64{{0.1}}, []float64{1}, [][]float64{{0.2}}, []float64{0.3})
	assert.Error(s.Push(g2))
}

func TestPushRejectsBadWeights(t *testing.T) {
	assert := assert.New(t)

	s := NewStore()
	bad := gen([][]float64{{0.1}, {0.2}}, []float64{0.5, 0.6}, [][]float64{{0.1}, {0.1}}, []float64{0.3})
	assert.Error(s.Push(bad))
}

func TestPushRejectsToleranceViolation(t *testing.T) {
	assert := assert.New(t)

	s := NewStore()
	bad := gen([][]float64{{0.1}}, []float64{1}, [][]float64{{0.5}}, []float64{0.3})
	assert.Error(s.Push(bad))
}

func TestToleranceHistory(t *testing.T) {
	assert := assert.New(t)

	s := NewStore()
	s.Push(gen([][]float64{{0.1}}, []float64{1}, [][]float64{{0.2}}, []float64{0.3}))
	s.Push(gen([][]float64{{0.1}}, []float64{1}, [][]float64{{0.15}}, []float64{0.2}))

	hist := s.ToleranceHistory()
	r, c := hist.Dims()
	assert.Equal(1, r)
	assert.Equal(2, c)
	assert.Equal(0.3, hist.At(0, 0))
	assert.Equal(0.2, hist.At(0, 1))
}

func TestDegeneratePriorAcceptsAllESS(t *testing.T) {
	assert := assert.New(t)

	s := NewStore()
	g := gen([][]float64{{1}, {1}}, []float64{0.5, 0.5}, [][]float64{{0}, {0}}, []float64{1})
	g.ESS = 2
	g.NProp = 2
	assert.NoError(s.Push(g))

	last, ok := s.Last()
	assert.True(ok)
	assert.Equal(2.0, last.ESS)
	assert.Equal(2, last.NParticles())
}

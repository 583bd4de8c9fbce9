package weight

import (
	"testing"

	"github.com/abcsmc/engine/particle"
	"github.com/abcsmc/engine/prior"
	"github.com/abcsmc/engine/proposal"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestGen0UniformWeights(t *testing.T) {
	assert := assert.New(t)

	set, err := prior.ParseSet(prior.GData, "beta ~ uniform(0,1)")
	assert.NoError(err)
	u := New(set)

	r, err := u.Gen0(4)
	assert.NoError(err)
	assert.Len(r.W, 4)
	for _, w := range r.W {
		assert.InDelta(0.25, w, 1e-12)
	}
	assert.InDelta(4.0, r.ESS, 1e-9)
}

func TestGen0RejectsZeroParticles(t *testing.T) {
	assert := assert.New(t)

	set, _ := prior.ParseSet(prior.GData, "beta ~ uniform(0,1)")
	u := New(set)

	_, err := u.Gen0(0)
	assert.Error(err)
}

func TestUpdateNormalizesAndComputesESS(t *testing.T) {
	assert := assert.New(t)

	set, err := prior.ParseSet(prior.GData, "beta ~ uniform(0,1)")
	assert.NoError(err)
	u := New(set)

	prev := &particle.Generation{
		X: mat.NewDense(4, 1, []float64{0.2, 0.3, 0.4, 0.5}),
		W: []float64{0.25, 0.25, 0.25, 0.25},
	}
	kernel, err := proposal.NewKernel(prev)
	assert.NoError(err)

	x := mat.NewDense(3, 1, []float64{0.25, 0.35, 0.45})

	r, err := u.Update(kernel, prev, x)
	assert.NoError(err)
	assert.Len(r.W, 3)

	sum := 0.0
	for _, w := range r.W {
		assert.True(w >= 0)
		sum += w
	}
	assert.InDelta(1.0, sum, 1e-9)
	assert.True(r.ESS > 0 && r.ESS <= 3.0)
}

func TestUpdateRejectsEmptyBatch(t *testing.T) {
	assert := assert.New(t)

	set, _ := prior.ParseSet(prior.GData, "beta ~ uniform(0,1)")
	u := New(set)

	prev := &particle.Generation{
		X: mat.NewDense(2, 1, []float64{0.2, 0.3}),
		W: []float64{0.5, 0.5},
	}
	kernel, err := proposal.NewKernel(prev)
	assert.NoError(err)

	x := mat.NewDense(0, 1, nil)
	_, err = u.Update(kernel, prev, x)
	assert.Error(err)
}

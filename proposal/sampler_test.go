package proposal

import (
	"testing"

	"github.com/abcsmc/engine/particle"
	"github.com/abcsmc/engine/prior"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestGen0Proposal(t *testing.T) {
	assert := assert.New(t)

	set, err := prior.ParseSet(prior.GData, "beta ~ uniform(0,1)")
	assert.NoError(err)

	s := New(set, nil, 0)

	p, err := s.Propose(nil, nil)
	assert.NoError(err)
	assert.Equal(-1, p.Ancestor)
	assert.Len(p.X, 1)
	assert.True(p.X[0] >= 0 && p.X[0] <= 1)
}

func TestKernelAndPerturbedProposal(t *testing.T) {
	assert := assert.New(t)

	set, err := prior.ParseSet(prior.GData, "beta ~ uniform(0,1)")
	assert.NoError(err)
	s := New(set, nil, 0)

	prev := &particle.Generation{
		X: mat.NewDense(4, 1, []float64{0.2, 0.3, 0.4, 0.5}),
		W: []float64{0.25, 0.25, 0.25, 0.25},
	}

	kernel, err := NewKernel(prev)
	assert.NoError(err)
	assert.NotNil(kernel.Sigma)

	p, err := s.Propose(kernel, prev)
	assert.NoError(err)
	assert.True(p.Ancestor >= 0 && p.Ancestor < 4)
	assert.True(set.InSupport(p.X))
}

func TestProposeNBatch(t *testing.T) {
	assert := assert.New(t)

	set, err := prior.ParseSet(prior.LData, "beta ~ uniform(0,1)")
	assert.NoError(err)
	s := New(set, nil, 0)

	ps, err := s.ProposeN(nil, nil, 5)
	assert.NoError(err)
	assert.Len(ps, 5)

	_, err = s.ProposeN(nil, nil, 0)
	assert.Error(err)
}

func TestKernelRequiresTwoParticles(t *testing.T) {
	assert := assert.New(t)

	prev := &particle.Generation{
		X: mat.NewDense(1, 1, []float64{0.3}),
		W: []float64{1},
	}
	_, err := NewKernel(prev)
	assert.Error(err)
}

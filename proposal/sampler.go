// Package proposal implements ProposalSampler: draws from the priors in
// generation 0, or from a weight-resampled, Gaussian-kernel-perturbed
// previous generation in later generations, rejecting proposals that fall
// outside the prior support.
package proposal

import (
	"fmt"

	"github.com/abcsmc/engine/matrix"
	"github.com/abcsmc/engine/particle"
	"github.com/abcsmc/engine/prior"
	"github.com/abcsmc/engine/rnd"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// zeroVarianceReg is the regularization added to the diagonal of 2*Cov
// before it is used as a sampling covariance, so that a parameter with
// (near-)zero empirical variance in the previous generation does not make
// the kernel singular. Resolves spec.md §9's Open Question on zero-variance
// parameters: add eps*I before factorization, exactly as the teacher's own
// rand.WithCovN already copes with singular covariances via SVD rather than
// Cholesky; the eps*I keeps the variance from being exactly zero in the
// first place.
const zeroVarianceReg = 1e-12

// Proposal is a single drawn parameter vector, carrying the index of its
// ancestor in the previous generation (-1 for generation-0 draws drawn
// directly from the prior).
type Proposal struct {
	X        []float64
	Ancestor int
}

// Kernel is the perturbation kernel covariance Sigma = 2*Cov(x) for a given
// previous generation, computed once per generation and reused across every
// proposal drawn from it (spec.md §4.10 step 2).
type Kernel struct {
	Sigma *mat.SymDense
}

// NewKernel computes the perturbation kernel for prev's particle cloud.
func NewKernel(prev *particle.Generation) (*Kernel, error) {
	k := prev.K()
	np := prev.NParticles()
	if np < 2 {
		return nil, fmt.Errorf("need at least 2 particles to estimate a perturbation covariance, got %d", np)
	}

	xt := mat.NewDense(k, np, nil)
	xt.CloneFrom(prev.X.T())

	cov, err := matrix.Cov(xt)
	if err != nil {
		return nil, fmt.Errorf("failed to compute particle covariance: %w", err)
	}

	sigma := mat.NewSymDense(k, nil)
	for r := 0; r < k; r++ {
		for c := r; c < k; c++ {
			v := 2 * cov.At(r, c)
			if r == c {
				v += zeroVarianceReg
			}
			sigma.SetSym(r, c, v)
		}
	}

	return &Kernel{Sigma: sigma}, nil
}

// Sampler draws proposals against a fixed PriorSet.
type Sampler struct {
	priors     *prior.Set
	src        rand.Source
	maxRejects int
}

// New creates a Sampler over priors. src may be nil to use the default
// source. maxRejects bounds the number of out-of-support perturbations
// rejected before Propose gives up and returns an error (a practical safety
// bound not named by spec.md, which only requires "reject and retry").
func New(priors *prior.Set, src rand.Source, maxRejects int) *Sampler {
	if maxRejects <= 0 {
		maxRejects = 10000
	}
	return &Sampler{priors: priors, src: src, maxRejects: maxRejects}
}

// Propose draws one proposal. When kernel is nil this is a generation-0
// prior draw; otherwise it resamples an ancestor from prev's weights and
// perturbs it by kernel.Sigma, retrying until the result falls within the
// prior support.
func (s *Sampler) Propose(kernel *Kernel, prev *particle.Generation) (*Proposal, error) {
	if kernel == nil {
		return &Proposal{X: s.priors.Sample(s.src), Ancestor: -1}, nil
	}

	for attempt := 0; attempt < s.maxRejects; attempt++ {
		ancestor, err := rnd.Categorical(prev.W)
		if err != nil {
			return nil, err
		}

		perturb, err := rnd.WithCovN(kernel.Sigma, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to draw perturbation: %w", err)
		}

		k := prev.K()
		x := make([]float64, k)
		for i := 0; i < k; i++ {
			x[i] = prev.X.At(ancestor, i) + perturb.At(i, 0)
		}

		if s.priors.InSupport(x) {
			return &Proposal{X: x, Ancestor: ancestor}, nil
		}
	}

	return nil, fmt.Errorf("exceeded %d rejections drawing a perturbed proposal within prior support", s.maxRejects)
}

// ProposeN draws n proposals for the ldata (per-node) parallel-trajectory
// target, one per replicated node column.
func (s *Sampler) ProposeN(kernel *Kernel, prev *particle.Generation, n int) ([]*Proposal, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid proposal batch size: %d", n)
	}
	out := make([]*Proposal, n)
	for i := 0; i < n; i++ {
		p, err := s.Propose(kernel, prev)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

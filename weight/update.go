// Package weight implements WeightUpdater: importance weights for accepted
// particles, computed as the ratio of prior density to kernel-mixture
// density, then normalized so they sum to one.
package weight

import (
	"fmt"
	"math"

	"github.com/abcsmc/engine/particle"
	"github.com/abcsmc/engine/prior"
	"github.com/abcsmc/engine/proposal"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// Updater computes importance weights against a fixed PriorSet.
type Updater struct {
	priors *prior.Set
}

// New creates an Updater over priors.
func New(priors *prior.Set) *Updater {
	return &Updater{priors: priors}
}

// Result is the outcome of a weight update: normalized weights and the
// resulting effective sample size.
type Result struct {
	W   []float64
	ESS float64
}

// Gen0 computes generation-0 weights: w~=1 for every accepted particle,
// normalized uniformly.
func (u *Updater) Gen0(np int) (*Result, error) {
	if np <= 0 {
		return nil, fmt.Errorf("invalid particle count: %d", np)
	}
	w := make([]float64, np)
	for i := range w {
		w[i] = 1.0 / float64(np)
	}
	return &Result{W: w, ESS: ess(w)}, nil
}

// Update computes weights for the accepted particle matrix x (Np x k)
// against the previous generation prev and its perturbation kernel,
// following spec.md §4.7:
//
//	w~_i = pi(x_i) / sum_j w_j^(g-1) * phi(x_i ; x_j^(g-1), Sigma)
func (u *Updater) Update(kernel *proposal.Kernel, prev *particle.Generation, x *mat.Dense) (*Result, error) {
	np, k := x.Dims()
	if np == 0 {
		return nil, fmt.Errorf("no accepted particles to weight")
	}

	prevNP := prev.NParticles()
	components := make([]*distmv.Normal, prevNP)
	for j := 0; j < prevNP; j++ {
		mean := mat.Row(nil, j, prev.X)
		dist, ok := distmv.NewNormal(mean, kernel.Sigma, rand.NewSource(uint64(j)+1))
		if !ok {
			return nil, fmt.Errorf("failed to build kernel density for ancestor %d", j)
		}
		components[j] = dist
	}

	wTilde := make([]float64, np)
	xi := make([]float64, k)
	for i := 0; i < np; i++ {
		mat.Row(xi, i, x)

		mixture := 0.0
		for j := 0; j < prevNP; j++ {
			mixture += prev.W[j] * math.Exp(components[j].LogProb(xi))
		}
		if mixture <= 0 {
			return nil, fmt.Errorf("degenerate kernel-mixture density for particle %d", i)
		}

		wTilde[i] = u.priors.JointPDF(xi) / mixture
	}

	sum := floats.Sum(wTilde)
	if sum <= 0 {
		return nil, fmt.Errorf("unnormalizable weights: all particles have zero importance weight")
	}
	floats.Scale(1/sum, wTilde)

	return &Result{W: wTilde, ESS: ess(wTilde)}, nil
}

// ess computes the effective sample size 1/sum(w_i^2).
func ess(w []float64) float64 {
	var sumSq float64
	for _, wi := range w {
		sumSq += wi * wi
	}
	return 1 / sumSq
}

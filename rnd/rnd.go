// Package rnd collects the sampling primitives used by the proposal
// sampler: drawing from a perturbation kernel's covariance, resampling an
// ancestor index from a weight vector, and drawing a batch of categorical
// ancestor indices.
package rnd

import (
	"fmt"
	"math"
	rnd "math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// WithCovN draws n random samples from a zero-mean Normal (aka Gaussian)
// distribution with covariance cov. It returns a matrix which holds the
// samples in its columns. It fails if n is non-positive or if the SVD
// factorization of cov fails.
func WithCovN(cov mat.Symmetric, n int) (*mat.Dense, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid number of samples requested: %d", n)
	}

	// Use SVD instead of Cholesky: Cholesky can be numerically unstable if
	// cov is (near-)singular, which happens routinely for degenerate or
	// point-mass priors in generation 0.
	var svd mat.SVD
	ok := svd.Factorize(cov, mat.SVDFull)
	if !ok {
		return nil, fmt.Errorf("SVD factorization failed")
	}

	U := new(mat.Dense)
	svd.UTo(U)
	vals := svd.Values(nil)
	for i := range vals {
		vals[i] = math.Sqrt(vals[i])
	}
	diag := mat.NewDiagDense(len(vals), vals)
	U.Mul(U, diag)

	rows, _ := cov.Dims()
	data := make([]float64, rows*n)
	for i := range data {
		data[i] = rnd.NormFloat64()
	}
	samples := mat.NewDense(rows, n, data)
	samples.Mul(U, samples)

	return samples, nil
}

// RouletteDrawN draws n numbers randomly from a probability mass function
// (PMF) defined by weights p, implementing Roulette Wheel a.k.a. Fitness
// Proportionate Selection. It returns a slice of n indices into p. It fails
// if p is empty.
func RouletteDrawN(p []float64, n int) ([]int, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("invalid probability weights: %v", p)
	}

	cdf := make([]float64, len(p))
	floats.CumSum(cdf, p)

	var val float64
	indices := make([]int, n)
	for i := range indices {
		val = distuv.UnitUniform.Rand() * cdf[len(cdf)-1]
		indices[i] = sort.Search(len(cdf), func(i int) bool { return cdf[i] > val })
	}

	return indices, nil
}

// Categorical draws a single index from the PMF defined by weights p,
// using the same roulette-wheel construction as RouletteDrawN. It is the
// per-proposal ancestor draw described by the perturbation kernel: sample
// ancestor i from Categorical(w).
func Categorical(p []float64) (int, error) {
	idx, err := RouletteDrawN(p, 1)
	if err != nil {
		return 0, err
	}
	return idx[0], nil
}

// Package kliep implements KLIEPEstimator: a Gaussian-kernel
// Kullback-Leibler Importance Estimation Procedure density-ratio estimator,
// used by the tolerance selector to compare two particle clouds and to
// judge convergence via the supremum of the estimated ratio.
package kliep

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// maxCenters bounds the number of kernel basis centers drawn from the
// numerator sample, keeping the per-iteration cost of the density-ratio fit
// bounded as generations grow large.
const maxCenters = 100

// sigmaGrid is the bandwidth candidate grid swept by k-fold
// cross-validation (see selectBandwidth).
var sigmaGrid = []float64{0.1, 0.25, 0.5, 0.75, 1, 1.5, 2, 3, 5}

const (
	maxIter      = 100
	convergeTol  = 1e-5
	lineSearchC  = 0.5
	lineSearchIt = 20
)

// Estimator is a fitted density-ratio model r(x) = p_nu(x)/p_de(x), built
// from Gaussian kernels centered on (a subsample of) the numerator points.
type Estimator struct {
	centers *mat.Dense
	alpha   []float64
	sigma   float64
	// xnu is the full numerator sample Fit was called with, retained so
	// Supremum can bracket/seed its search against it directly.
	xnu *mat.Dense
}

// Fit estimates the density ratio of xnu over xde, each an N x k sample
// matrix over the same k parameters. Bandwidth is chosen by k-fold (at most
// 5 folds) cross-validation over sigmaGrid; centers are the first min(N_nu,100) rows
// of xnu, per the standard KLIEP recipe.
func Fit(xnu, xde *mat.Dense) (*Estimator, error) {
	nNu, k := xnu.Dims()
	nDe, kde := xde.Dims()
	if nNu == 0 || nDe == 0 {
		return nil, fmt.Errorf("kliep: both samples must be non-empty")
	}
	if k != kde {
		return nil, fmt.Errorf("kliep: dimension mismatch: %d vs %d", k, kde)
	}

	nc := nNu
	if nc > maxCenters {
		nc = maxCenters
	}
	centers := mat.NewDense(nc, k, nil)
	for i := 0; i < nc; i++ {
		centers.SetRow(i, mat.Row(nil, i, xnu))
	}

	bestSigma, err := selectBandwidth(xnu, centers)
	if err != nil {
		return nil, err
	}

	knu := kernelMatrix(xnu, centers, bestSigma)
	kde := kernelMatrix(xde, centers, bestSigma)
	alpha, err := fitAlpha(knu, kde)
	if err != nil {
		return nil, err
	}

	return &Estimator{centers: centers, alpha: alpha, sigma: bestSigma, xnu: xnu}, nil
}

// selectBandwidth runs k-fold cross-validation over sigmaGrid with 5 folds
// (fewer when xnu has fewer than 5 rows), assigning rows to folds by index
// modulo the fold count; it is not leave-one-out. Each fold fits alpha with
// the training fold as both numerator and reference sample, and the sigma
// with the highest mean held-out log ratio is picked.
func selectBandwidth(xnu, centers *mat.Dense) (float64, error) {
	nNu, _ := xnu.Dims()
	folds := 5
	if nNu < folds {
		folds = nNu
	}

	bestSigma := sigmaGrid[0]
	bestScore := math.Inf(-1)

	for _, sigma := range sigmaGrid {
		var score float64
		var used int
		for f := 0; f < folds; f++ {
			train, held := splitFold(xnu, f, folds)
			if train == nil || held == nil {
				continue
			}
			knuTrain := kernelMatrix(train, centers, sigma)
			kdeTrain := knuTrain // reference distribution approximated by the training fold itself
			alpha, err := fitAlpha(knuTrain, kdeTrain)
			if err != nil {
				continue
			}
			khold := kernelMatrix(held, centers, sigma)
			rows, _ := khold.Dims()
			for r := 0; r < rows; r++ {
				ratio := dot(alpha, mat.Row(nil, r, khold))
				if ratio > 0 {
					score += math.Log(ratio)
					used++
				}
			}
		}
		if used == 0 {
			continue
		}
		score /= float64(used)
		if score > bestScore {
			bestScore = score
			bestSigma = sigma
		}
	}

	return bestSigma, nil
}

// splitFold returns (train, held) for fold f of folds total, partitioning
// x's rows by index modulo folds.
func splitFold(x *mat.Dense, f, folds int) (*mat.Dense, *mat.Dense) {
	n, k := x.Dims()
	var trainRows, heldRows [][]float64
	for i := 0; i < n; i++ {
		row := mat.Row(nil, i, x)
		if i%folds == f {
			heldRows = append(heldRows, row)
		} else {
			trainRows = append(trainRows, row)
		}
	}
	if len(trainRows) == 0 || len(heldRows) == 0 {
		return nil, nil
	}
	train := mat.NewDense(len(trainRows), k, nil)
	for i, row := range trainRows {
		train.SetRow(i, row)
	}
	held := mat.NewDense(len(heldRows), k, nil)
	for i, row := range heldRows {
		held.SetRow(i, row)
	}
	return train, held
}

// kernelMatrix returns the N x m matrix of Gaussian kernel values between
// each row of x and each row of centers, with bandwidth sigma.
func kernelMatrix(x, centers *mat.Dense, sigma float64) *mat.Dense {
	n, _ := x.Dims()
	m, k := centers.Dims()
	out := mat.NewDense(n, m, nil)
	two := 2 * sigma * sigma
	xi := make([]float64, k)
	cl := make([]float64, k)
	for i := 0; i < n; i++ {
		mat.Row(xi, i, x)
		for l := 0; l < m; l++ {
			mat.Row(cl, l, centers)
			var sq float64
			for d := 0; d < k; d++ {
				diff := xi[d] - cl[d]
				sq += diff * diff
			}
			out.Set(i, l, math.Exp(-sq/two))
		}
	}
	return out
}

// fitAlpha solves the KLIEP optimization: maximize mean log(Knu @ alpha)
// subject to mean(Kde @ alpha) == 1 and alpha >= 0, via projected gradient
// ascent with a backtracking line search that halves the step until the
// objective does not decrease.
func fitAlpha(knu, kde *mat.Dense) ([]float64, error) {
	_, m := knu.Dims()
	nNu, _ := knu.Dims()
	nDe, _ := kde.Dims()

	b := make([]float64, m)
	for l := 0; l < m; l++ {
		var s float64
		for i := 0; i < nDe; i++ {
			s += kde.At(i, l)
		}
		b[l] = s / float64(nDe)
	}
	bNormSq := dot(b, b)
	if bNormSq == 0 {
		return nil, fmt.Errorf("kliep: degenerate reference kernel matrix")
	}

	alpha := make([]float64, m)
	for l := range alpha {
		alpha[l] = 1.0 / float64(m)
	}
	projectConstraint(alpha, b, bNormSq)

	objective := func(a []float64) float64 {
		var s float64
		for i := 0; i < nNu; i++ {
			v := dot(a, mat.Row(nil, i, knu))
			if v <= 0 {
				return math.Inf(-1)
			}
			s += math.Log(v)
		}
		return s / float64(nNu)
	}

	prevObj := objective(alpha)
	step := 1.0 / float64(nNu)

	for iter := 0; iter < maxIter; iter++ {
		grad := make([]float64, m)
		for i := 0; i < nNu; i++ {
			row := mat.Row(nil, i, knu)
			denom := dot(alpha, row)
			if denom <= 0 {
				denom = 1e-12
			}
			for l := 0; l < m; l++ {
				grad[l] += row[l] / denom
			}
		}
		for l := range grad {
			grad[l] /= float64(nNu)
		}

		var candidate []float64
		s := step
		var newObj float64
		for ls := 0; ls < lineSearchIt; ls++ {
			candidate = make([]float64, m)
			for l := range candidate {
				candidate[l] = alpha[l] + s*grad[l]
			}
			projectConstraint(candidate, b, bNormSq)
			newObj = objective(candidate)
			if newObj >= prevObj {
				break
			}
			s *= lineSearchC
		}

		improvement := newObj - prevObj
		alpha = candidate
		prevObj = newObj
		if math.Abs(improvement) < convergeTol {
			break
		}
	}

	return alpha, nil
}

// projectConstraint projects alpha onto {alpha >= 0, b.alpha == 1} using the
// standard KLIEP projection: a linear correction along b followed by
// clipping and rescaling.
func projectConstraint(alpha, b []float64, bNormSq float64) {
	adjust := (dot(b, alpha) - 1) / bNormSq
	for l := range alpha {
		alpha[l] -= adjust * b[l]
		if alpha[l] < 0 {
			alpha[l] = 0
		}
	}
	s := dot(b, alpha)
	if s > 0 {
		for l := range alpha {
			alpha[l] /= s
		}
	}
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// DensityRatio evaluates the fitted ratio r(x) at a single point.
func (e *Estimator) DensityRatio(x []float64) float64 {
	m, k := e.centers.Dims()
	var s float64
	two := 2 * e.sigma * e.sigma
	cl := make([]float64, k)
	for l := 0; l < m; l++ {
		mat.Row(cl, l, e.centers)
		var sq float64
		for d := 0; d < k; d++ {
			diff := x[d] - cl[d]
			sq += diff * diff
		}
		s += e.alpha[l] * math.Exp(-sq/two)
	}
	return s
}

// Supremum estimates sup_x r(x) over the support spanned by the numerator
// sample xnu. For k=1 it runs a bounded golden-section search on
// [min(xnu), max(xnu)]; for k>=2 it runs gonum/optimize's Nelder-Mead
// simplex, seeded at xnu's first row, since the ratio surface is smooth but
// non-convex and derivative-free search is the robust default for arbitrary
// k.
func (e *Estimator) Supremum() (float64, error) {
	m, k := e.centers.Dims()
	if m == 0 {
		return 0, fmt.Errorf("kliep: estimator has no kernel centers")
	}
	if e.xnu == nil {
		return 0, fmt.Errorf("kliep: estimator was not built by Fit")
	}

	if k == 1 {
		lo, hi := columnRange(e.xnu, 0)
		_, v := goldenSectionMax(func(v float64) float64 { return e.DensityRatio([]float64{v}) }, lo, hi)
		return v, nil
	}

	x0 := mat.Row(nil, 0, e.xnu)
	negRatio := func(x []float64) float64 { return -e.DensityRatio(x) }
	problem := optimize.Problem{Func: negRatio}
	result, err := optimize.Minimize(problem, x0, &optimize.Settings{MajorIterations: 200}, &optimize.NelderMead{})
	if err != nil {
		return 0, fmt.Errorf("kliep: supremum search failed: %w", err)
	}
	return -result.F, nil
}

// columnRange returns the (min, max) of column c across x's rows.
func columnRange(x *mat.Dense, c int) (float64, float64) {
	n, _ := x.Dims()
	lo, hi := x.At(0, c), x.At(0, c)
	for i := 1; i < n; i++ {
		v := x.At(i, c)
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// goldenSectionMax maximizes a unimodal-ish f over [lo,hi] via golden-section
// search, returning the argmax and the maximum value.
func goldenSectionMax(f func(float64) float64, lo, hi float64) (float64, float64) {
	const gr = 0.6180339887498949
	a, b := lo, hi
	c := b - gr*(b-a)
	d := a + gr*(b-a)
	for i := 0; i < 100 && math.Abs(b-a) > 1e-7; i++ {
		if f(c) > f(d) {
			b = d
		} else {
			a = c
		}
		c = b - gr*(b-a)
		d = a + gr*(b-a)
	}
	x := (a + b) / 2
	return x, f(x)
}

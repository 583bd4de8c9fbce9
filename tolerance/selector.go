// Package tolerance implements AdaptiveToleranceSelector: derives the
// generation-1 tolerance from an oversampled, sorted distance pool, and
// every later tolerance from a KLIEP density-ratio comparison between
// consecutive generations, including the stopping rule.
package tolerance

import (
	"fmt"
	"math"
	"sort"

	abcsmc "github.com/abcsmc/engine"
	"github.com/abcsmc/engine/kliep"
	"gonum.org/v1/gonum/mat"
)

// stopQ is the KLIEP supremum-derived acceptance-probability threshold
// above which, once g>=stopGeneration, the loop is told to terminate.
const (
	stopQ          = 0.99
	stopGeneration = 3
)

// Selector derives tolerances adaptively; it is only used when the caller
// supplied no explicit tolerance schedule (spec.md §4.9).
type Selector struct {
	np int
}

// New creates a Selector targeting np accepted particles per generation.
func New(np int) (*Selector, error) {
	if np <= 0 {
		return nil, abcsmc.NewConstructionError("n_particles", "must be positive")
	}
	return &Selector{np: np}, nil
}

// InitialTolerance derives epsilon^(1) from an oversampled pool of n_init
// candidate distances (n_init x 1, S=1 required). It returns the single
// tolerance value and the indices (into distances' rows) of the np closest
// candidates, sorted by acceptance rank.
func (s *Selector) InitialTolerance(distances *mat.Dense) (eps float64, keep []int, err error) {
	nInit, S := distances.Dims()
	if S != 1 {
		return 0, nil, abcsmc.NewToleranceError("adaptive initial tolerance requires a single summary statistic (S=1)")
	}
	if nInit <= s.np {
		return 0, nil, abcsmc.NewToleranceError(fmt.Sprintf("n_init (%d) must exceed n_particles (%d)", nInit, s.np))
	}

	type ranked struct {
		idx int
		d   float64
	}
	pool := make([]ranked, nInit)
	for i := 0; i < nInit; i++ {
		pool[i] = ranked{idx: i, d: distances.At(i, 0)}
	}
	sort.Slice(pool, func(a, b int) bool { return pool[a].d < pool[b].d })

	eps = pool[s.np-1].d
	keep = make([]int, s.np)
	for i := 0; i < s.np; i++ {
		keep[i] = pool[i].idx
	}
	return eps, keep, nil
}

// Outcome is the result of an adaptive Next computation: either a new
// tolerance, or a signal to stop.
type Outcome struct {
	Eps  float64
	Stop bool
	Q    float64
}

// Next fits KLIEP between the current generation's particles (xnu) and the
// previous generation's particles (xde), and either derives the next
// tolerance from the current generation's summed distances or signals that
// the loop should stop. g is the 1-based generation index of xCur (spec.md
// §4.9's "g"); internally the engine tracks generations 0-based, so callers
// pass len(store)+1-style bookkeeping rather than the store's own index.
func (s *Selector) Next(g int, xCur, xPrev *mat.Dense, distancesCur *mat.Dense) (*Outcome, error) {
	est, err := kliep.Fit(xCur, xPrev)
	if err != nil {
		return nil, fmt.Errorf("tolerance: kliep fit failed: %w", err)
	}
	c, err := est.Supremum()
	if err != nil {
		return nil, fmt.Errorf("tolerance: kliep supremum failed: %w", err)
	}
	if c <= 0 {
		return nil, abcsmc.NewToleranceError("kliep supremum is non-positive")
	}
	q := 1 / c

	if q > stopQ && g >= stopGeneration {
		return &Outcome{Stop: true, Q: q}, nil
	}

	n, S := distancesCur.Dims()
	if S != 1 {
		return nil, abcsmc.NewToleranceError("adaptive tolerance selection requires a single summary statistic (S=1)")
	}
	rank := int(math.Ceil(q * float64(s.np)))
	if rank < 1 {
		rank = 1
	}
	if rank > n {
		rank = n
	}

	sorted := make([]float64, n)
	for i := 0; i < n; i++ {
		sorted[i] = distancesCur.At(i, 0)
	}
	sort.Float64s(sorted)

	return &Outcome{Eps: sorted[rank-1], Q: q}, nil
}

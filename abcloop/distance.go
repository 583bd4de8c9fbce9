// Package abcloop implements ABCLoop: the generation-by-generation
// orchestration of proposal -> simulate -> distance -> accept -> weight ->
// tolerance-update that drives ABCState to a fitted posterior.
package abcloop

import (
	"math"
	"sync"

	abcsmc "github.com/abcsmc/engine"
	"gonum.org/v1/gonum/mat"
)

// DistanceAdapter wraps a user abcsmc.Distance, fixing S on first call and
// enforcing the non-negativity/no-NaN/fixed-shape invariants of spec.md
// §4.5. Safe for concurrent use by multiple trajectory workers.
type DistanceAdapter struct {
	fn       abcsmc.Distance
	adaptive bool

	mu sync.Mutex
	s  int // 0 until fixed by the first call
}

// NewDistanceAdapter wraps fn. adaptive enforces S=1 once S is known, per
// spec.md's "adaptive mode with S != 1 raises ConstructionError" rule,
// applied here as a ConstructionError at the first call, since that is
// where S first becomes known.
func NewDistanceAdapter(fn abcsmc.Distance, adaptive bool) *DistanceAdapter {
	return &DistanceAdapter{fn: fn, adaptive: adaptive}
}

// Evaluate calls the user function and validates its result, returning an
// n x S matrix.
func (a *DistanceAdapter) Evaluate(traj abcsmc.Trajectory, generation int, data interface{}) (*mat.Dense, error) {
	raw, err := a.fn.Compute(traj, generation, data)
	if err != nil {
		return nil, abcsmc.NewDistanceError(err.Error())
	}
	if len(raw) == 0 {
		return nil, abcsmc.NewDistanceError("distance function returned no rows")
	}

	cols := len(raw[0])
	if cols == 0 {
		return nil, abcsmc.NewDistanceError("distance function returned empty rows")
	}
	d := mat.NewDense(len(raw), cols, nil)
	for r, row := range raw {
		if len(row) != cols {
			return nil, abcsmc.NewDistanceError("distance rows have inconsistent width")
		}
		for c, v := range row {
			if math.IsNaN(v) {
				return nil, abcsmc.NewDistanceError("distance contains NaN")
			}
			if v < 0 {
				return nil, abcsmc.NewDistanceError("distance contains a negative entry")
			}
			d.Set(r, c, v)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.s == 0 {
		if a.adaptive && cols != 1 {
			return nil, abcsmc.NewConstructionError("distance", "adaptive tolerance selection requires a single summary statistic (S=1)")
		}
		a.s = cols
	} else if cols != a.s {
		return nil, abcsmc.NewDistanceError("number of summary statistics changed across calls")
	}

	return d, nil
}

// S returns the fixed number of summary statistics, or 0 if not yet known.
func (a *DistanceAdapter) S() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.s
}

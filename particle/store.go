// Package particle implements Generation and ParticleStore: the
// three-dimensional accepted-particle history (values, weights, distances,
// effective sample size, proposal counts, tolerance columns) indexed by
// generation. Per spec.md §9's re-architecture note on slot-matrix
// reshaping, the store is a growable slice of per-generation snapshots
// with an O(1) push, and materializes a 3D view only when a caller asks
// for one.
package particle

import (
	"fmt"

	abcsmc "github.com/abcsmc/engine"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Generation is one committed round of proposal/accept/weight updating.
type Generation struct {
	// X is the Np x k particle matrix.
	X *mat.Dense
	// W is the length-Np weight vector; sums to 1.
	W []float64
	// D is the Np x S distance matrix.
	D *mat.Dense
	// Eps is the length-S tolerance vector used to accept this generation.
	Eps []float64
	// ESS is the effective sample size, 1/sum(w_i^2).
	ESS float64
	// NProp is the number of proposals evaluated to reach Np acceptances.
	NProp int
	// Ancestors records, for each accepted particle, its row index in the
	// previous generation (-1 for generation-0 particles drawn directly
	// from the prior). Never a temporary proposal-batch index.
	Ancestors []int
}

// NParticles returns Np, the number of accepted particles.
func (g *Generation) NParticles() int {
	if g.X == nil {
		return 0
	}
	rows, _ := g.X.Dims()
	return rows
}

// K returns the particle dimensionality.
func (g *Generation) K() int {
	if g.X == nil {
		return 0
	}
	_, cols := g.X.Dims()
	return cols
}

// S returns the number of summary statistics.
func (g *Generation) S() int {
	if g.D == nil {
		return 0
	}
	_, cols := g.D.Dims()
	return cols
}

// Store is an ordered, append-only history of committed Generations.
type Store struct {
	gens []*Generation
}

// NewStore creates an empty particle store.
func NewStore() *Store { return &Store{} }

// Len returns the number of committed generations.
func (s *Store) Len() int { return len(s.gens) }

// Generation returns the (0-based) i-th committed generation.
func (s *Store) Generation(i int) (*Generation, error) {
	if i < 0 || i >= len(s.gens) {
		return nil, fmt.Errorf("generation index %d out of range [0,%d)", i, len(s.gens))
	}
	return s.gens[i], nil
}

// Last returns the most recently committed generation, if any.
func (s *Store) Last() (*Generation, bool) {
	if len(s.gens) == 0 {
		return nil, false
	}
	return s.gens[len(s.gens)-1], true
}

// Push validates g against the invariants of spec.md §3/§8 and appends it
// to the store in O(1). It returns a ConstructionError if any invariant is
// violated; the store is left unmodified on error.
func (s *Store) Push(g *Generation) error {
	if g.X == nil || g.D == nil {
		return abcsmc.NewConstructionError("generation", "X and D matrices are required")
	}
	np := g.NParticles()
	if np == 0 {
		return abcsmc.NewConstructionError("generation", "at least one particle is required")
	}
	if len(g.W) != np {
		return abcsmc.NewConstructionError("generation.w", fmt.Sprintf("weight length %d does not match particle count %d", len(g.W), np))
	}
	for i, w := range g.W {
		if w < 0 {
			return abcsmc.NewConstructionError("generation.w", fmt.Sprintf("weight %d is negative: %v", i, w))
		}
	}
	if sum := floats.Sum(g.W); sum < 1-1e-10 || sum > 1+1e-10 {
		return abcsmc.NewConstructionError("generation.w", fmt.Sprintf("weights must sum to 1, got %v", sum))
	}

	dRows, dCols := g.D.Dims()
	if dRows != np {
		return abcsmc.NewConstructionError("generation.d", fmt.Sprintf("distance matrix has %d rows, expected %d", dRows, np))
	}
	if len(g.Eps) != dCols {
		return abcsmc.NewConstructionError("generation.eps", fmt.Sprintf("tolerance length %d does not match S=%d", len(g.Eps), dCols))
	}
	for r := 0; r < dRows; r++ {
		for c := 0; c < dCols; c++ {
			if g.D.At(r, c) > g.Eps[c] {
				return abcsmc.NewConstructionError("generation.d", fmt.Sprintf("particle %d violates tolerance on statistic %d: %v > %v", r, c, g.D.At(r, c), g.Eps[c]))
			}
		}
	}

	if prev, ok := s.Last(); ok {
		if len(prev.Eps) != len(g.Eps) {
			return abcsmc.NewConstructionError("generation.eps", "tolerance dimension S must stay fixed across generations")
		}
		for c := range g.Eps {
			if g.Eps[c] >= prev.Eps[c] {
				return abcsmc.NewConstructionError("generation.eps", fmt.Sprintf("tolerance for statistic %d must strictly decrease: %v >= %v", c, g.Eps[c], prev.Eps[c]))
			}
		}
	}

	s.gens = append(s.gens, g)
	return nil
}

// ToleranceHistory materializes the S x G tolerance matrix across all
// committed generations.
func (s *Store) ToleranceHistory() *mat.Dense {
	if len(s.gens) == 0 {
		return mat.NewDense(0, 0, nil)
	}
	sDim := len(s.gens[0].Eps)
	out := mat.NewDense(sDim, len(s.gens), nil)
	for g, gen := range s.gens {
		for row := 0; row < sDim; row++ {
			out.Set(row, g, gen.Eps[row])
		}
	}
	return out
}

// StackedX materializes the Np x k x G view as a slice of per-generation
// matrices, for callers that need the full history at once.
func (s *Store) StackedX() []*mat.Dense {
	out := make([]*mat.Dense, len(s.gens))
	for i, gen := range s.gens {
		out[i] = gen.X
	}
	return out
}

// NProps returns the per-generation proposal counts.
func (s *Store) NProps() []int {
	out := make([]int, len(s.gens))
	for i, gen := range s.gens {
		out[i] = gen.NProp
	}
	return out
}

// ESSHistory returns the per-generation effective sample sizes.
func (s *Store) ESSHistory() []float64 {
	out := make([]float64, len(s.gens))
	for i, gen := range s.gens {
		out[i] = gen.ESS
	}
	return out
}

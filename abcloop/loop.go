package abcloop

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	abcsmc "github.com/abcsmc/engine"
	"github.com/abcsmc/engine/particle"
	"github.com/abcsmc/engine/prior"
	"github.com/abcsmc/engine/proposal"
	"github.com/abcsmc/engine/weight"
	"gonum.org/v1/gonum/mat"
)

// maxConcurrentTrajectories bounds the number of independent gdata
// trajectories run in parallel within one generation (spec.md §5's
// "per-generation parallelism" for the gdata target).
const maxConcurrentTrajectories = 8

// Run executes generations until the tolerance schedule is exhausted, the
// adaptive stopping rule fires, the context is cancelled, or an
// unrecoverable error occurs. It returns the committed particle store in
// every case; on cancellation or fatal error, already-committed generations
// remain valid (spec.md §7's propagation policy).
func (l *Loop) Run(ctx context.Context) (*particle.Store, error) {
	g := l.store.Len() + 1
	var nextEps []float64

	for {
		if err := ctx.Err(); err != nil {
			l.cfg.Logger.Warn().Int("generation", g).Msg("run cancelled")
			return l.store, abcsmc.NewCancelledError(g)
		}

		if l.cfg.Schedule != nil {
			_, G := l.cfg.Schedule.Dims()
			if g > G {
				return l.store, nil
			}
		}

		committed, done, err := l.runGeneration(ctx, g, nextEps)
		if err != nil {
			l.cfg.Logger.Error().Err(err).Int("generation", g).Msg("run aborted")
			return l.store, err
		}
		if done {
			return l.store, nil
		}

		if err := l.store.Push(committed); err != nil {
			return l.store, err
		}
		l.cfg.Logger.Info().
			Int("generation", g).
			Int("particles", committed.NParticles()).
			Int("nprop", committed.NProp).
			Float64("ess", committed.ESS).
			Floats64("tolerance", committed.Eps).
			Msg("generation committed")
		if l.cfg.PostGen != nil {
			l.cfg.PostGen.After(abcsmc.GenerationSnapshot{
				Index:      g,
				NParticles: committed.NParticles(),
				NProposals: committed.NProp,
				ESS:        committed.ESS,
				Tolerance:  committed.Eps,
			})
		}

		if l.cfg.Schedule == nil {
			out, err := l.selector.Next(g, committed.X, l.previousX(g), mat.NewDense(committed.NParticles(), 1, SummedDistances(committed.D)))
			if err != nil {
				return l.store, err
			}
			if out.Stop {
				return l.store, nil
			}
			nextEps = []float64{out.Eps}
		}

		g++
	}
}

// previousX returns the particle matrix to compare the just-committed
// generation g against for the adaptive selector's KLIEP fit: the prior
// committed generation if one exists, or the retained generation-0
// oversampled pool when g=1 (spec.md §4.9's "Generation g>=2" rule,
// generalized so that computing epsilon(2) compares generation 1 against
// the oversampled candidate pool that produced it).
func (l *Loop) previousX(g int) *mat.Dense {
	if g == 1 {
		return l.gen0Pool
	}
	prev, _ := l.store.Generation(g - 2)
	return prev.X
}

// ContinueABC resumes a run with an already-populated store and a fresh
// supplied tolerance schedule, validated and appended to the existing
// history (spec.md §4.10's continue_abc contract).
func ContinueABC(ctx context.Context, l *Loop, extraSchedule *mat.Dense) (*particle.Store, error) {
	last, ok := l.store.Last()
	if !ok {
		return nil, abcsmc.NewToleranceError("continue_abc requires at least one already-committed generation")
	}
	rows, cols := extraSchedule.Dims()
	if rows != len(last.Eps) {
		return nil, abcsmc.NewToleranceError(fmt.Sprintf("continued schedule has %d rows, expected %d", rows, len(last.Eps)))
	}
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			v := extraSchedule.At(r, c)
			prevVal := last.Eps[r]
			if c > 0 {
				prevVal = extraSchedule.At(r, c-1)
			}
			if v >= prevVal {
				return nil, abcsmc.NewToleranceError("continued tolerance schedule must strictly decrease from the existing history")
			}
		}
	}
	full := new(mat.Dense)
	full.Augment(l.store.ToleranceHistory(), extraSchedule)
	l.cfg.Schedule = full
	return l.Run(ctx)
}

// runGeneration executes a single generation g and returns the committed
// Generation. Every path that returns a Generation reports done=false.
func (l *Loop) runGeneration(ctx context.Context, g int, adaptiveEps []float64) (*particle.Generation, bool, error) {
	var eps []float64
	var prevGen *particle.Generation
	var kernel *proposal.Kernel

	if g == 1 {
		if l.cfg.Schedule != nil {
			eps = mat.Col(nil, 0, l.cfg.Schedule)
		}
	} else {
		prev, err := l.store.Generation(g - 2)
		if err != nil {
			return nil, false, fmt.Errorf("abcloop: missing previous generation: %w", err)
		}
		prevGen = prev
		k, err := proposal.NewKernel(prev)
		if err != nil {
			return nil, false, err
		}
		kernel = k

		if l.cfg.Schedule != nil {
			eps = mat.Col(nil, g-1, l.cfg.Schedule)
		} else {
			eps = adaptiveEps
		}
	}

	if g == 1 && l.cfg.Schedule == nil {
		return l.runAdaptiveFirstGeneration(ctx)
	}

	var x, d *mat.Dense
	var ancestors []int
	var nprop int
	var err error
	if l.cfg.Priors.Target() == prior.LData {
		x, d, ancestors, nprop, err = l.collectLData(ctx, g, eps, kernel, prevGen)
	} else {
		x, d, ancestors, nprop, err = l.collectGData(ctx, g, eps, kernel, prevGen)
	}
	if err != nil {
		return nil, false, err
	}

	return l.commit(g, x, d, eps, ancestors, nprop, kernel, prevGen)
}

// runAdaptiveFirstGeneration implements spec.md §4.9's generation-1 rule:
// oversample n_init prior draws, sort by distance, keep the top N_p.
func (l *Loop) runAdaptiveFirstGeneration(ctx context.Context) (*particle.Generation, bool, error) {
	nInit := l.cfg.NInit
	k := l.cfg.Priors.Len()

	xPool := mat.NewDense(nInit, k, nil)
	dPool := mat.NewDense(nInit, 1, nil)
	failures := 0

	for i := 0; i < nInit; i++ {
		if err := ctx.Err(); err != nil {
			return nil, false, abcsmc.NewCancelledError(1)
		}
		prop, err := l.sampler.Propose(nil, nil)
		if err != nil {
			return nil, false, err
		}
		d, err := l.runOne(ctx, 1, prop.X)
		if err != nil {
			if _, ok := err.(*abcsmc.SimulationError); ok {
				failures++
				if failures > l.cfg.FailureBudget {
					return nil, false, fmt.Errorf("abcloop: exceeded failure budget of %d in generation %d", l.cfg.FailureBudget, 1)
				}
				i--
				continue
			}
			return nil, false, err
		}
		xPool.SetRow(i, prop.X)
		sum := 0.0
		rows, cols := d.Dims()
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				sum += d.At(r, c)
			}
		}
		dPool.Set(i, 0, sum)
	}
	l.gen0Pool = xPool

	eps, keep, err := l.selector.InitialTolerance(dPool)
	if err != nil {
		return nil, false, err
	}

	x := mat.NewDense(l.cfg.NParticles, k, nil)
	d := mat.NewDense(l.cfg.NParticles, 1, nil)
	for i, idx := range keep {
		x.SetRow(i, mat.Row(nil, idx, xPool))
		d.Set(i, 0, dPool.At(idx, 0))
	}

	return l.commit(1, x, d, []float64{eps}, nil, nInit, nil, nil)
}

// runOne applies particle x to a fresh handle clone, runs one trajectory,
// and evaluates the distance function, returning its n x S result (n=1 for
// the gdata target).
func (l *Loop) runOne(ctx context.Context, g int, x []float64) (*mat.Dense, error) {
	h := l.cfg.Handle.Clone()
	if err := h.ApplyParticle(l.cfg.Priors, x, 0); err != nil {
		return nil, abcsmc.NewConstructionError("particle", err.Error())
	}

	var model abcsmc.Model
	if l.cfg.InitModel != nil {
		m, err := l.cfg.InitModel.Init(model)
		if err != nil {
			return nil, abcsmc.NewSimulationError(err)
		}
		model = m
	}

	traj, err := h.Run(ctx, model)
	if err != nil {
		return nil, abcsmc.NewSimulationError(err)
	}
	return l.distance.Evaluate(traj, g, l.cfg.Data)
}

// collectGData runs independent trajectories, one per particle, concurrently
// across a bounded worker pool, gated by an atomic accepted-particle
// counter stopping all workers once N_p acceptances have been recorded
// (spec.md §5).
func (l *Loop) collectGData(ctx context.Context, g int, eps []float64, kernel *proposal.Kernel, prevGen *particle.Generation) (*mat.Dense, *mat.Dense, []int, int, error) {
	np := l.cfg.NParticles
	k := l.cfg.Priors.Len()

	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		x        []float64
		d        []float64
		ancestor int
	}

	var accepted int64
	var nprop int64
	var failures int64
	results := make(chan result, np)
	errCh := make(chan error, maxConcurrentTrajectories)

	var wg sync.WaitGroup
	for w := 0; w < maxConcurrentTrajectories; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if genCtx.Err() != nil {
					return
				}
				if atomic.LoadInt64(&accepted) >= int64(np) {
					return
				}

				prop, err := l.sampler.Propose(kernel, prevGen)
				if err != nil {
					errCh <- err
					cancel()
					return
				}
				atomic.AddInt64(&nprop, 1)

				d, err := l.runOne(genCtx, g, prop.X)
				if err != nil {
					if _, ok := err.(*abcsmc.SimulationError); ok {
						if atomic.AddInt64(&failures, 1) > int64(l.cfg.FailureBudget) {
							errCh <- fmt.Errorf("abcloop: exceeded failure budget of %d in generation %d", l.cfg.FailureBudget, g)
							cancel()
						}
						continue
					}
					errCh <- err
					cancel()
					return
				}

				mask := Accept(d, eps)
				if !mask[0] {
					continue
				}
				if atomic.AddInt64(&accepted, 1) > int64(np) {
					return
				}
				results <- result{x: prop.X, d: mat.Row(nil, 0, d), ancestor: prop.Ancestor}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
		close(errCh)
	}()

	x := mat.NewDense(np, k, nil)
	s := len(eps)
	d := mat.NewDense(np, s, nil)
	ancestors := make([]int, np)
	collected := 0
	for r := range results {
		if collected >= np {
			continue
		}
		x.SetRow(collected, r.x)
		d.SetRow(collected, r.d)
		ancestors[collected] = r.ancestor
		collected++
	}
	cancel()

	if err, ok := <-errCh; ok && err != nil {
		return nil, nil, nil, 0, err
	}
	if collected < np {
		return nil, nil, nil, 0, abcsmc.NewCancelledError(g)
	}

	return x, d, ancestors, int(atomic.LoadInt64(&nprop)), nil
}

// collectLData implements the per-node replication strategy: pack batches
// of candidate particles into the nodes of a single trajectory via
// ReplicateFirstNode, starting at 10*N_p and doubling (capped at
// MaxBatch) whenever nprop exceeds 2x the current batch size
// (spec.md §5).
func (l *Loop) collectLData(ctx context.Context, g int, eps []float64, kernel *proposal.Kernel, prevGen *particle.Generation) (*mat.Dense, *mat.Dense, []int, int, error) {
	np := l.cfg.NParticles
	k := l.cfg.Priors.Len()

	s := len(eps)
	x := mat.NewDense(np, k, nil)
	d := mat.NewDense(np, s, nil)
	ancestors := make([]int, 0, np)
	collected := 0
	nprop := 0
	failures := 0
	batch := 10 * np
	if batch > l.cfg.MaxBatch {
		batch = l.cfg.MaxBatch
	}

	for collected < np {
		if err := ctx.Err(); err != nil {
			return nil, nil, nil, 0, abcsmc.NewCancelledError(g)
		}

		props, err := l.sampler.ProposeN(kernel, prevGen, batch)
		if err != nil {
			return nil, nil, nil, 0, err
		}

		h := l.cfg.Handle.Clone()
		if err := h.ReplicateFirstNode(batch); err != nil {
			return nil, nil, nil, 0, abcsmc.NewConstructionError("replicate_first_node", err.Error())
		}
		for i, p := range props {
			if err := h.ApplyParticle(l.cfg.Priors, p.X, i); err != nil {
				return nil, nil, nil, 0, abcsmc.NewConstructionError("particle", err.Error())
			}
		}

		traj, err := h.Run(ctx, nil)
		if err != nil {
			failures++
			if failures > l.cfg.FailureBudget {
				return nil, nil, nil, 0, fmt.Errorf("abcloop: exceeded failure budget of %d in generation %d", l.cfg.FailureBudget, g)
			}
			continue
		}
		dBatch, err := l.distance.Evaluate(traj, g, l.cfg.Data)
		if err != nil {
			return nil, nil, nil, 0, err
		}

		mask := Accept(dBatch, eps)
		for i, ok := range mask {
			nprop++
			if !ok {
				continue
			}
			if collected >= np {
				break
			}
			x.SetRow(collected, props[i].X)
			d.SetRow(collected, mat.Row(nil, i, dBatch))
			ancestors = append(ancestors, props[i].Ancestor)
			collected++
		}

		if nprop > 2*batch && batch < l.cfg.MaxBatch {
			batch *= 2
			if batch > l.cfg.MaxBatch {
				batch = l.cfg.MaxBatch
			}
		}
	}

	return x, d, ancestors, nprop, nil
}

// commit builds and validates the generation's weights and wraps its
// accepted particle/distance/tolerance data into a committed Generation.
func (l *Loop) commit(g int, x, d *mat.Dense, eps []float64, ancestors []int, nprop int, kernel *proposal.Kernel, prevGen *particle.Generation) (*particle.Generation, bool, error) {
	var wres *weight.Result
	var err error
	if g == 1 {
		np, _ := x.Dims()
		wres, err = l.weights.Gen0(np)
	} else {
		wres, err = l.weights.Update(kernel, prevGen, x)
	}
	if err != nil {
		return nil, false, err
	}

	if ancestors == nil {
		np, _ := x.Dims()
		ancestors = make([]int, np)
		for i := range ancestors {
			ancestors[i] = -1
		}
	}

	gen := &particle.Generation{
		X:         x,
		W:         wres.W,
		D:         d,
		Eps:       eps,
		ESS:       wres.ESS,
		NProp:     nprop,
		Ancestors: ancestors,
	}
	return gen, false, nil
}


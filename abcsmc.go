// Package abcsmc defines the capability interfaces shared across the ABC-SMC
// engine: the simulator bridge, the user distance function, and the optional
// model/post-generation hooks. Concrete particle, proposal, weight and
// tolerance machinery live in the subpackages that implement this contract.
package abcsmc

import "context"

// Trajectory is the opaque result of one simulator run. The engine never
// inspects its internals; it is only ever passed to Distance.
type Trajectory interface{}

// Model is an opaque handle to a compiled simulator model. Like Trajectory,
// the engine treats it as a capability token to be threaded through
// SimulatorHandle and InitModel, never inspected directly.
type Model interface{}

// SimulatorHandle is the external collaborator that runs one stochastic
// trajectory for the current parameter values. Implementations are not
// owned by the engine: it may hold several handles for parallel proposals.
type SimulatorHandle interface {
	// Run executes one trajectory of model and returns its result.
	Run(ctx context.Context, model Model) (Trajectory, error)
	// SetGdata writes a scalar into the i-th slot of the global parameter
	// vector before a run.
	SetGdata(i int, v float64) error
	// SetLdata writes a scalar into row i, column col of the per-node
	// parameter matrix before a run.
	SetLdata(i, col int, v float64) error
	// ReplicateFirstNode clones node 0's state and event subset n times,
	// offsetting the node field of each replicated event by 0..n-1 while
	// leaving dest untouched (external transfers are disallowed under
	// replication). It returns an error if n is non-positive.
	ReplicateFirstNode(n int) error
}

// Distance adapts a user-supplied summary-statistic function. Implementations
// must return either a length-n vector (S=1) or an n x S matrix, and must
// keep S fixed across calls.
type Distance interface {
	// Compute returns the n x S distance matrix between trajectory and the
	// observed data, for the given generation index.
	Compute(trajectory Trajectory, generation int, data interface{}) ([][]float64, error)
}

// DistanceFunc adapts a plain function to the Distance interface.
type DistanceFunc func(trajectory Trajectory, generation int, data interface{}) ([][]float64, error)

// Compute implements Distance.
func (f DistanceFunc) Compute(trajectory Trajectory, generation int, data interface{}) ([][]float64, error) {
	return f(trajectory, generation, data)
}

// InitModel is applied to a freshly-handled model before each proposal's
// Run. It is forbidden when the PriorSet target is ldata (replication
// would apply the same mutation to every replicated particle).
type InitModel interface {
	Init(model Model) (Model, error)
}

// InitModelFunc adapts a plain function to the InitModel interface.
type InitModelFunc func(model Model) (Model, error)

// Init implements InitModel.
func (f InitModelFunc) Init(model Model) (Model, error) {
	return f(model)
}

// PostGen is invoked once a generation has been committed to ABCState.
type PostGen interface {
	After(snapshot GenerationSnapshot)
}

// PostGenFunc adapts a plain function to the PostGen interface.
type PostGenFunc func(snapshot GenerationSnapshot)

// After implements PostGen.
func (f PostGenFunc) After(snapshot GenerationSnapshot) {
	f(snapshot)
}

// GenerationSnapshot is the read-only view of a committed generation handed
// to PostGen callbacks. It intentionally mirrors only the fields a callback
// is expected to report on, not the full mutable ABCState.
type GenerationSnapshot struct {
	// Index is the 1-based generation number.
	Index int
	// NParticles is the number of accepted particles in this generation.
	NParticles int
	// NProposals is the number of proposals evaluated to reach NParticles acceptances.
	NProposals int
	// ESS is the effective sample size of the generation's weights.
	ESS float64
	// Tolerance is the tolerance vector (length S) used to accept this generation.
	Tolerance []float64
}

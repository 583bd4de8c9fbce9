package abcloop

import (
	"reflect"

	abcsmc "github.com/abcsmc/engine"
	"github.com/abcsmc/engine/particle"
	"github.com/abcsmc/engine/prior"
	"github.com/abcsmc/engine/proposal"
	"github.com/abcsmc/engine/simulator"
	"github.com/abcsmc/engine/tolerance"
	"github.com/abcsmc/engine/weight"
	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// defaultMaxBatch is the ceiling on the per-node replication batch size
// (spec.md §5: "capped at 100 000").
const defaultMaxBatch = 100000

// defaultFailureBudget bounds the number of SimulationErrors tolerated
// within a single generation before the run aborts.
const defaultFailureBudget = 1000

// Config wires together everything one ABCLoop run needs: the priors, the
// simulator bridge, the distance function, and either an explicit tolerance
// schedule or the parameters of the adaptive selector.
type Config struct {
	Priors *prior.Set
	Handle *simulator.Handle

	// InitModel is applied before each proposal's Run. Forbidden when
	// Priors.Target() is LData (spec.md §9).
	InitModel abcsmc.InitModel
	Distance  abcsmc.Distance
	PostGen   abcsmc.PostGen

	NParticles int

	// Schedule is an explicit S x G tolerance matrix. If nil, the adaptive
	// selector is used and NInit must be set.
	Schedule *mat.Dense
	NInit    int

	FailureBudget int
	MaxBatch      int
	Src           rand.Source
	Data          interface{}

	// Logger receives one line per committed generation and one on
	// cancellation/abort. Defaults to zerolog.Nop() (silent).
	Logger zerolog.Logger
}

// Loop orchestrates ABCState across generations.
type Loop struct {
	cfg      Config
	sampler  *proposal.Sampler
	weights  *weight.Updater
	distance *DistanceAdapter
	selector *tolerance.Selector
	store    *particle.Store

	gen0Pool *mat.Dense // the oversampled generation-0 candidate pool, retained for the first adaptive KLIEP comparison
}

// New validates cfg and builds a Loop ready to Run.
func New(cfg Config) (*Loop, error) {
	if cfg.Priors == nil {
		return nil, abcsmc.NewConstructionError("priors", "required")
	}
	if cfg.Handle == nil {
		return nil, abcsmc.NewConstructionError("handle", "required")
	}
	if cfg.Distance == nil {
		return nil, abcsmc.NewConstructionError("distance", "required")
	}
	if cfg.NParticles <= 0 {
		return nil, abcsmc.NewConstructionError("n_particles", "must be positive")
	}
	if cfg.Priors.Target() == prior.LData && cfg.InitModel != nil {
		return nil, abcsmc.NewConstructionError("init_model", "forbidden when the prior target is ldata, since replication would apply the same mutation to every replicated particle")
	}

	adaptive := cfg.Schedule == nil
	var selector *tolerance.Selector
	if adaptive {
		if cfg.NInit <= cfg.NParticles {
			return nil, abcsmc.NewToleranceError("n_init must exceed n_particles under adaptive tolerance selection")
		}
		sel, err := tolerance.New(cfg.NParticles)
		if err != nil {
			return nil, err
		}
		selector = sel
	} else {
		rows, _ := cfg.Schedule.Dims()
		if rows == 0 {
			return nil, abcsmc.NewToleranceError("supplied tolerance schedule has no rows")
		}
	}

	if cfg.FailureBudget <= 0 {
		cfg.FailureBudget = defaultFailureBudget
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = defaultMaxBatch
	}
	if reflect.DeepEqual(cfg.Logger, zerolog.Logger{}) {
		cfg.Logger = zerolog.Nop()
	}

	return &Loop{
		cfg:      cfg,
		sampler:  proposal.New(cfg.Priors, cfg.Src, 0),
		weights:  weight.New(cfg.Priors),
		distance: NewDistanceAdapter(cfg.Distance, adaptive),
		selector: selector,
		store:    particle.NewStore(),
	}, nil
}

// Store returns the loop's particle store, including any generations
// committed so far.
func (l *Loop) Store() *particle.Store { return l.store }

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	abcsmc "github.com/abcsmc/engine"
	"github.com/abcsmc/engine/abcloop"
	"github.com/abcsmc/engine/config"
	"github.com/abcsmc/engine/examples/sir"
	"github.com/abcsmc/engine/prior"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

var fitCmd = &cobra.Command{
	Use:   "fit",
	Args:  cobra.NoArgs,
	Short: "Run an ABC-SMC fit against the bundled SIR example",
	RunE:  runFit,
}

var continueCmd = &cobra.Command{
	Use:   "continue",
	Args:  cobra.NoArgs,
	Short: "Append additional tolerance generations to a prior fit",
	RunE:  runContinue,
}

func init() {
	fitCmd.Flags().Int("seed", 1, "PRNG seed")
	continueCmd.Flags().Int("seed", 1, "PRNG seed")
}

func setupLogger() {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
}

// buildLoop wires the bundled SIR demo: synthetic observed data generated
// from a known true parameter pair, priors over beta and gamma, and a
// PostGen hook that logs each committed generation.
func buildLoop(cfg *config.Config, seed int) (*abcloop.Loop, error) {
	obsTimes := []int{5, 10, 15, 20, 25, 30}
	observed, err := sir.Observe(context.Background(), 990, 10, 0, 0.4, 0.15, 30, obsTimes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate synthetic observed data: %w", err)
	}

	handle, err := sir.NewHandle(990, 10, 0, 30, obsTimes)
	if err != nil {
		return nil, fmt.Errorf("failed to build sir handle: %w", err)
	}

	exprs := cfg.Priors
	if len(exprs) == 0 {
		exprs = []string{"beta ~ uniform(0, 1)", "gamma ~ uniform(0, 1)"}
	}
	set, err := prior.ParseSet(prior.GData, exprs...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse priors: %w", err)
	}

	postGen := abcsmc.PostGenFunc(func(snap abcsmc.GenerationSnapshot) {
		log.Debug().Int("generation", snap.Index).Msg("postgen hook invoked")
	})

	abcCfg := abcloop.Config{
		Priors:        set,
		Handle:        handle,
		Distance:      sir.Distance(observed),
		PostGen:       postGen,
		NParticles:    cfg.Fit.NParticles,
		NInit:         cfg.Fit.NInit,
		FailureBudget: cfg.Fit.FailureBudget,
		MaxBatch:      cfg.Fit.MaxBatch,
		Src:           rand.NewSource(uint64(seed)),
		Logger:        log.Logger,
	}
	if cfg.Schedule != nil {
		rows := len(cfg.Schedule.Rows)
		cols := 0
		if rows > 0 {
			cols = len(cfg.Schedule.Rows[0])
		}
		schedule := mat.NewDense(rows, cols, nil)
		for r, row := range cfg.Schedule.Rows {
			for c, v := range row {
				schedule.Set(r, c, v)
			}
		}
		abcCfg.Schedule = schedule
	}

	return abcloop.New(abcCfg)
}

func runFit(cmd *cobra.Command, args []string) error {
	setupLogger()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	seed, _ := cmd.Flags().GetInt("seed")
	loop, err := buildLoop(cfg, seed)
	if err != nil {
		return err
	}

	log.Info().Msg("starting fit")
	store, err := loop.Run(context.Background())
	if err != nil {
		return fmt.Errorf("fit failed: %w", err)
	}

	log.Info().Int("generations", store.Len()).Msg("fit completed")
	return nil
}

func runContinue(cmd *cobra.Command, args []string) error {
	setupLogger()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if cfg.Schedule == nil {
		return fmt.Errorf("continue requires an explicit base schedule in the config's schedule.rows")
	}
	if cfg.Continuation == nil {
		return fmt.Errorf("continue requires an additional schedule extension in the config's continuation.rows")
	}

	seed, _ := cmd.Flags().GetInt("seed")
	loop, err := buildLoop(cfg, seed)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if _, err := loop.Run(ctx); err != nil {
		return fmt.Errorf("initial fit failed: %w", err)
	}

	rows := len(cfg.Continuation.Rows)
	cols := 0
	if rows > 0 {
		cols = len(cfg.Continuation.Rows[0])
	}
	extra := mat.NewDense(rows, cols, nil)
	for r, row := range cfg.Continuation.Rows {
		for c, v := range row {
			extra.Set(r, c, v)
		}
	}

	store, err := abcloop.ContinueABC(ctx, loop, extra)
	if err != nil {
		return fmt.Errorf("continue failed: %w", err)
	}

	log.Info().Int("generations", store.Len()).Msg("continue completed")
	return nil
}

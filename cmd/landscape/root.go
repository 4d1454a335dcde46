package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/copyleftdev/landscape/internal/config"
	"github.com/copyleftdev/landscape/internal/functions"
	"github.com/copyleftdev/landscape/internal/logging"
	"github.com/copyleftdev/landscape/internal/session"
)

var (
	logLevel  string
	logFormat string
	logOutput string

	cfg    *config.Config
	logger *logging.Logger

	solverFlags struct {
		functions   []string
		dimensions  int
		precision   int
		brute       int
		popSize     int
		generations int
		grace       int
		steps       int
		seed        int64
		forever     bool
		maximize    bool
		runAll      bool
		trailing    bool
	}
)

var rootCmd = &cobra.Command{
	Use:   "landscape",
	Short: "Watch metaheuristics explore benchmark landscapes",
	Long: `landscape runs random search, brute force, hill climbing, particle swarm
and genetic algorithms side by side on classic benchmark functions. Solver
defaults come from SOLVER_* environment variables; flags override them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		applySolverFlags(cmd, &cfg.Solver)
		if err := cfg.Solver.Validate(); err != nil {
			return err
		}

		logger, err = logging.NewLogger(&logging.Config{
			Level:  logLevel,
			Format: logFormat,
			Output: logOutput,
		})
		return err
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "text", "Log format (json, text)")
	pf.StringVar(&logOutput, "log-output", "stderr", "Log output (stdout, stderr, discard or a file path)")

	bindSolverFlags(pf)
}

// bindSolverFlags defines the flags overriding the SOLVER_* settings.
func bindSolverFlags(fs *pflag.FlagSet) {
	fs.StringSliceVar(&solverFlags.functions, "functions", nil, fmt.Sprintf("Benchmarks to run, empty for all of %v", functions.Names()))
	fs.IntVar(&solverFlags.dimensions, "dimensions", 2, "Coordinates per candidate")
	fs.IntVar(&solverFlags.precision, "precision", 20, "Bits per coordinate")
	fs.IntVar(&solverFlags.brute, "brute-precision", 1, "Bits per coordinate for brute force")
	fs.IntVar(&solverFlags.popSize, "pop", 50, "Population size")
	fs.IntVar(&solverFlags.generations, "generations", 1, "Generation budget")
	fs.IntVar(&solverFlags.grace, "grace", 200, "Extra generations granted after a recent improvement")
	fs.IntVar(&solverFlags.steps, "steps", 1, "Steps per frame")
	fs.Int64Var(&solverFlags.seed, "seed", 0, "Random seed, 0 for the clock")
	fs.BoolVar(&solverFlags.forever, "forever", false, "Restart algorithms when their budget runs out")
	fs.BoolVar(&solverFlags.maximize, "maximize", false, "Search for maxima instead of minima")
	fs.BoolVar(&solverFlags.runAll, "all", false, "Drive every algorithm each frame")
	fs.BoolVar(&solverFlags.trailing, "trailing-forever", true, "Close the roster with a forever genetic algorithm on rastrigin")
}

// applySolverFlags overrides s with the flags set on the command line.
func applySolverFlags(cmd *cobra.Command, s *config.Solver) {
	f := cmd.Flags()
	if f.Changed("functions") {
		s.Functions = solverFlags.functions
	}
	if f.Changed("dimensions") {
		s.Dimensions = solverFlags.dimensions
	}
	if f.Changed("precision") {
		s.Precision = solverFlags.precision
	}
	if f.Changed("brute-precision") {
		s.BrutePrecision = solverFlags.brute
	}
	if f.Changed("pop") {
		s.PopSize = solverFlags.popSize
	}
	if f.Changed("generations") {
		s.Generations = solverFlags.generations
	}
	if f.Changed("grace") {
		s.Grace = solverFlags.grace
	}
	if f.Changed("steps") {
		s.Steps = solverFlags.steps
	}
	if f.Changed("seed") {
		s.Seed = solverFlags.seed
	}
	if f.Changed("forever") {
		s.Forever = solverFlags.forever
	}
	if f.Changed("maximize") {
		s.Maximize = solverFlags.maximize
	}
	if f.Changed("all") {
		s.RunAll = solverFlags.runAll
	}
	if f.Changed("trailing-forever") {
		s.TrailingForever = solverFlags.trailing
	}
}

// newSession builds the roster from the solver configuration.
func newSession(id string) (*session.Session, error) {
	problems, err := functions.Select(cfg.Solver.Functions)
	if err != nil {
		return nil, err
	}
	zl := logging.NewZapLogger(logger.WithField("component", "session"))
	entries, err := session.BuildRoster(problems, cfg.Solver, session.WithRosterLogger(zl))
	if err != nil {
		return nil, err
	}
	return session.New(id, entries,
		session.WithLogger(zl),
		session.WithRunAll(cfg.Solver.RunAll),
	)
}

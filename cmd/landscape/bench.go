package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"github.com/copyleftdev/landscape/internal/baseline"
	"github.com/copyleftdev/landscape/internal/functions"
	"github.com/copyleftdev/landscape/internal/optimization"
)

var (
	benchFrames   int
	withBaseline  bool
	baselineIters int
	baselinePop   int
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run the roster headless and print every algorithm's status",
	Long: `Runs frames without a terminal, then prints one status line per algorithm.
With --baseline the mayfly algorithm is run on every selected benchmark for
comparison.`,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().IntVar(&benchFrames, "frames", 1000, "Frames to run")
	benchCmd.Flags().BoolVar(&withBaseline, "baseline", false, "Also run the mayfly baseline")
	benchCmd.Flags().IntVar(&baselineIters, "baseline-iters", 100, "Mayfly iterations")
	benchCmd.Flags().IntVar(&baselinePop, "baseline-pop", baseline.MinPopSize, "Mayfly population size")
	rootCmd.AddCommand(benchCmd)
}

func runBench(cmd *cobra.Command, args []string) error {
	if benchFrames < 1 {
		return fmt.Errorf("--frames must be positive, got %d", benchFrames)
	}

	sess, err := newSession("bench")
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	frames := 0
	for ; frames < benchFrames && ctx.Err() == nil; frames++ {
		sess.Frame()
	}
	elapsed := time.Since(start)

	statuses := sess.Statuses()
	var evals int64
	for _, st := range statuses {
		evals += int64(st.Evals)
	}
	logger.Info("Bench finished", map[string]interface{}{
		"frames":   humanize.Comma(int64(frames)),
		"evals":    humanize.Comma(evals),
		"rate":     humanize.SIWithDigits(float64(evals)/math.Max(elapsed.Seconds(), 1e-9), 1, "evals/s"),
		"duration": elapsed.String(),
	})

	out := cmd.OutOrStdout()
	for _, st := range statuses {
		fmt.Fprintf(out, "%3d %-10s %s\n", st.Index, st.Function, st)
	}

	if !withBaseline {
		return nil
	}
	problems, err := functions.Select(cfg.Solver.Functions)
	if err != nil {
		return err
	}
	bc := baseline.Config{
		Iterations: baselineIters,
		PopSize:    baselinePop,
		Seed:       cfg.Solver.Seed,
		Direction:  optimization.Minimize,
	}
	if cfg.Solver.Maximize {
		bc.Direction = optimization.Maximize
	}
	results := make([]baseline.Result, len(problems))
	errs := make([]error, len(problems))
	wp := pool.New().WithMaxGoroutines(runtime.GOMAXPROCS(0))
	for i, p := range problems {
		wp.Go(func() {
			if ctx.Err() != nil {
				errs[i] = ctx.Err()
				return
			}
			results[i], errs[i] = baseline.Mayfly(p, cfg.Solver.Dimensions, bc)
		})
	}
	wp.Wait()

	for i, res := range results {
		if errs[i] != nil {
			if ctx.Err() != nil {
				break
			}
			return errs[i]
		}
		fmt.Fprintf(out, "    %-10s Mayfly baseline Best: %g at %v\n", res.Function, res.Value, res.Point)
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"

	"github.com/copyleftdev/landscape/internal/logging"
	"github.com/copyleftdev/landscape/internal/view"
)

var frameInterval time.Duration

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Watch the roster explore the landscape in the terminal",
	Long: `Draws a heat map of the active benchmark over its first two coordinates
together with the points each frame explores.

Keys:
  esc, q      quit
  space       pause or resume
  n           run one frame, even when paused
  * /         double or halve the steps per frame
  < > or ← →  previous or next algorithm
  f           toggle forever on the active algorithm
  a           toggle driving every algorithm each frame
  r           restart the active algorithm`,
	RunE: runView,
}

func init() {
	viewCmd.Flags().DurationVar(&frameInterval, "interval", 30*time.Millisecond, "Delay between frames")
	rootCmd.AddCommand(viewCmd)
}

func runView(cmd *cobra.Command, args []string) error {
	// the terminal owns stdout and stderr while drawing
	if logOutput == "stdout" || logOutput == "stderr" {
		logger = logging.New(logger.Level(), io.Discard)
	}

	sess, err := newSession("view")
	if err != nil {
		return err
	}
	defer sess.Close()

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v := view.New(screen, sess, logger, frameInterval)
	v.Run(ctx)
	screen.Fini()

	fmt.Fprintln(cmd.OutOrStdout(), v.Status())
	return nil
}

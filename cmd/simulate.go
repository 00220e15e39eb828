package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/examiz/internal/config"
	"github.com/abhisek/examiz/internal/session"
	"github.com/abhisek/examiz/internal/simulation"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the full five-module simulation with breaks",
	RunE:  runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.StringSlice(config.KeyModules, nil, "Modules to run, in order (default: the five exam modules)")
	f.Duration(config.KeyBreak, 0, "Break length between sessions (default 15m)")
	f.Duration(config.KeyMinBreak, 0, "Minimum break before it can be ended early (default 5m)")
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	o := simulation.New(rt.bank, rt.gen, simulation.Options{
		Modules:  rt.cfg.Simulation.Modules,
		Break:    rt.cfg.Simulation.Break,
		MinBreak: rt.cfg.Simulation.MinBreak,
		Session:  rt.sessionOptions(),
	})
	defer o.Close()

	p := o.Progress()
	fmt.Fprintf(w, "Full simulation: %d timed sessions with a %s break between them.\n", p.Sessions, rt.cfg.Simulation.Break)
	fmt.Fprintln(w, "Press enter to begin.")
	lines := readLines(cmd.InOrStdin())
	if _, ok := <-lines; !ok {
		return nil
	}
	if err := o.Start(ctx); err != nil {
		return err
	}

	if err := driveSimulation(ctx, w, lines, o); err != nil {
		if errors.Is(err, errQuit) {
			fmt.Fprintln(w, "Simulation abandoned.")
			return nil
		}
		return err
	}

	res, _ := o.Result()
	renderSimulation(w, res)
	return nil
}

func driveSimulation(ctx context.Context, w io.Writer, lines <-chan string, o *simulation.Orchestrator) error {
	refresh := time.NewTicker(time.Second)
	defer refresh.Stop()

	var last *session.Controller
	for {
		switch o.Phase() {
		case simulation.PhaseResultsReady:
			return nil
		case simulation.PhaseSessionActive:
			// a finished controller stays current until its hook has run
			c := o.Current()
			if c == nil || c == last {
				break
			}
			last = c
			p := o.Progress()
			fmt.Fprintf(w, "\nSession %d of %d: %s\n", p.Index+1, p.Sessions, p.ModuleID)
			if err := driveSession(ctx, w, lines, c); err != nil {
				return err
			}
			continue
		case simulation.PhaseBreak:
			if err := driveBreak(ctx, w, lines, o, refresh.C); err != nil {
				return err
			}
			continue
		case simulation.PhaseResultsPending:
			fmt.Fprintln(w, "Preparing results...")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.Done():
		case <-refresh.C:
		}
	}
}

func driveBreak(ctx context.Context, w io.Writer, lines <-chan string, o *simulation.Orchestrator, tick <-chan time.Time) error {
	p := o.Progress()
	fmt.Fprintf(w, "\nBreak: %s. Next up: %s. Press enter to continue once the break can end.\n",
		p.BreakRemaining.Round(time.Second), p.ModuleID)
	for o.Phase() == simulation.PhaseBreak {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
		case line, ok := <-lines:
			if !ok || strings.EqualFold(line, "quit") {
				return errQuit
			}
			err := o.EndBreak(ctx)
			switch {
			case errors.Is(err, simulation.ErrBreakTooEarly):
				p := o.Progress()
				fmt.Fprintf(w, "The break can end in %s.\n", (p.MinBreak - p.BreakElapsed).Round(time.Second))
			case errors.Is(err, simulation.ErrWrongPhase):
			case err != nil:
				return err
			}
		}
	}
	return nil
}

func renderSimulation(w io.Writer, r simulation.Result) {
	sep := strings.Repeat("═", 60)
	fmt.Fprintln(w, sep)
	fmt.Fprintln(w, "SIMULATION RESULTS")
	fmt.Fprintln(w, sep)
	for _, s := range r.Sessions {
		fmt.Fprintf(w, "%-28s %3d/%-3d (%.0f%%)\n", s.ModuleName, s.Score.Correct, s.Score.Total, s.Score.Percentage)
	}
	fmt.Fprintln(w, strings.Repeat("─", 60))
	fmt.Fprintf(w, "Total: %d/%d (%.1f%%)\n", r.Total.Correct, r.Total.Total, r.Total.Percentage)
	fmt.Fprintf(w, "Global score: %d/500  Level: %s  Percentile: %d\n", r.Score, r.Level, r.Percentile)
	fmt.Fprintln(w)
	renderEvaluation(w, r.Feedback)
}

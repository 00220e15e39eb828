package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/examiz/internal/progress"
	"github.com/abhisek/examiz/internal/question"
	"github.com/abhisek/examiz/internal/session"
)

var practiceCmd = &cobra.Command{
	Use:   "practice <module>",
	Short: "Run an untimed practice session with feedback after every answer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(cmd, args[0], session.ModePractice)
	},
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <module>",
	Short: "Run a timed evaluation session with consolidated feedback at the end",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(cmd, args[0], session.ModeEvaluation)
	},
}

func init() {
	evaluateCmd.Flags().Bool("force", false, "Skip the practice score requirement")
}

func runSession(cmd *cobra.Command, moduleID string, mode session.Mode) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	if mode == session.ModeEvaluation {
		force, _ := cmd.Flags().GetBool("force")
		ok, err := rt.store.ProgressRepo().Unlocked(ctx, moduleID)
		if err != nil {
			return fmt.Errorf("check unlock: %w", err)
		}
		if !ok && !force {
			return fmt.Errorf("evaluation of %s unlocks at a practice score of %d; run `examiz practice %s` first or pass --force",
				moduleID, progress.UnlockThreshold, moduleID)
		}
	}

	c := session.New(rt.bank, rt.gen, rt.sessionOptions())
	defer c.Close()

	if err := c.Load(ctx, moduleID, mode); err != nil {
		var le *session.LoadError
		if errors.As(err, &le) && errors.Is(err, question.ErrUnknownModule) {
			return fmt.Errorf("%w (import questions with `examiz questions import`)", err)
		}
		return err
	}

	v := c.Snapshot()
	fmt.Fprintf(w, "%s, %s mode: %d questions", rt.names(moduleID), mode, v.Total)
	if mode == session.ModeEvaluation {
		fmt.Fprintf(w, ", %s", v.Budget)
	}
	fmt.Fprintln(w)

	if err := driveSession(ctx, w, readLines(cmd.InOrStdin()), c); err != nil {
		if errors.Is(err, errQuit) {
			fmt.Fprintln(w, "Session abandoned.")
			return nil
		}
		return err
	}

	if res, ok := c.Result(); ok {
		renderEvaluation(w, res)
		return nil
	}
	s := c.RawScore()
	fmt.Fprintf(w, "\nPractice complete: %d/%d correct (%.0f%%)\n", s.Correct, s.Total, s.Percentage)
	if mode == session.ModePractice {
		if ok, _ := rt.store.ProgressRepo().Unlocked(ctx, moduleID); ok {
			fmt.Fprintf(w, "Evaluation mode is unlocked: examiz evaluate %s\n", moduleID)
		}
	}
	return nil
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/examiz/internal/progress"
	"github.com/abhisek/examiz/internal/question"
)

var progressCmd = &cobra.Command{
	Use:   "progress [module]",
	Short: "Show recorded session results and evaluation unlock status",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		var moduleID string
		if len(args) == 1 {
			moduleID = args[0]
		}

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		repo := s.ProgressRepo()
		w := cmd.OutOrStdout()

		recs, err := repo.List(ctx, moduleID, limit)
		if err != nil {
			return fmt.Errorf("list progress: %w", err)
		}
		if len(recs) == 0 {
			fmt.Fprintln(w, "No sessions recorded yet.")
			return nil
		}

		fmt.Fprintf(w, "%-19s  %-20s  %-10s  %5s  %6s\n", "Time", "Module", "Kind", "Score", "%")
		for _, r := range recs {
			fmt.Fprintf(w, "%-19s  %-20s  %-10s  %5d  %5.1f%%\n",
				r.Timestamp.Local().Format("2006-01-02 15:04:05"), r.ModuleID, r.Kind, r.Score, r.Percentage)
		}

		modules := []string{moduleID}
		if moduleID == "" {
			modules = question.DefaultModuleIDs()
		}
		fmt.Fprintln(w)
		for _, m := range modules {
			score, ok, err := repo.LatestScore(ctx, m, question.KindPractice)
			if err != nil {
				return fmt.Errorf("latest score: %w", err)
			}
			status := "locked"
			switch {
			case !ok:
				status = "locked (no practice yet)"
			case progress.Unlocked(score):
				status = "unlocked"
			}
			fmt.Fprintf(w, "%-20s  evaluation %s\n", m, status)
		}
		return nil
	},
}

func init() {
	progressCmd.Flags().IntP("limit", "n", 20, "Number of records to show")
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/examiz/internal/config"
	"github.com/abhisek/examiz/internal/question"
	"github.com/abhisek/examiz/internal/store"
)

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Manage the question bank stored in the database",
}

var questionsImportCmd = &cobra.Command{
	Use:   "import <file.json>...",
	Short: "Import question bank files, replacing the modules they declare",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		for _, path := range args {
			f, err := question.ReadBankFile(path)
			if err != nil {
				return err
			}
			n, err := s.QuestionRepo().Import(cmd.Context(), f.Modules...)
			if err != nil {
				return fmt.Errorf("import %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d questions in %d modules from %s\n", n, len(f.Modules), path)
		}
		return nil
	},
}

var questionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored modules and their question counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		mods, err := s.QuestionRepo().Modules(cmd.Context())
		if err != nil {
			return fmt.Errorf("list modules: %w", err)
		}
		w := cmd.OutOrStdout()
		if len(mods) == 0 {
			fmt.Fprintln(w, "No questions imported yet.")
			return nil
		}
		fmt.Fprintf(w, "%-20s  %-28s  %s\n", "ID", "Name", "Questions")
		for _, m := range mods {
			fmt.Fprintf(w, "%-20s  %-28s  %d\n", m.ID, m.Name, m.Questions)
		}
		return nil
	},
}

func init() {
	questionsCmd.AddCommand(questionsImportCmd)
	questionsCmd.AddCommand(questionsListCmd)
}

// openStore opens the database named by the resolved configuration.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := config.Load(config.NewViper(cmd))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	dbPath, err := resolveDBPath(cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}

package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/abhisek/examiz/internal/config"
	"github.com/abhisek/examiz/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "examiz",
	Short: "Exam practice and simulation in the terminal",
	Long: "examiz runs practice and timed evaluation sessions over a question bank, " +
		"scores them, and gives feedback from an LLM when one is configured.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		var files []string
		if envFile != "" {
			files = append(files, envFile)
		}
		if err := config.LoadDotEnv(files...); err != nil {
			return err
		}
		v := config.NewViper(cmd)
		config.SetupLogging(cmd.ErrOrStderr(), v.GetString(config.KeyLogLevel), v.GetString(config.KeyLogFormat))
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx available to every
// subcommand through cmd.Context().
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	f := rootCmd.PersistentFlags()
	f.String(config.KeyDB, "", "Path to SQLite database file (overrides EXAMIZ_DB env var)")
	f.StringSlice(config.KeyQuestions, nil, "Question bank JSON files to use instead of the database (repeatable)")
	f.String("env-file", "", "Load environment variables from this file instead of ./.env")
	f.String(config.KeyScale, "standard", "Score scale (standard 0-500, premium 0-100)")
	f.String(config.KeyProduct, "examiz", "Product name used in feedback prompts")
	f.String(config.KeyTeacherName, "", "Instructor name woven into feedback")
	f.String(config.KeyTeacherFocus, "", "Instructor focus woven into feedback")
	f.Duration(config.KeyFeedbackTimeout, 0, "Bound on each feedback call (default 15s)")
	f.String(config.KeyLLMProvider, "", "LLM provider (anthropic, openai, gemini, openrouter, mock); empty probes API key env vars")
	f.String(config.KeyLLMModel, "", "Model name or alias for the selected provider")
	f.String(config.KeyLLMKey, "", "API key for the selected provider")
	f.String(config.KeyLLMURL, "", "Base URL for OpenAI-compatible providers")
	f.Duration(config.KeyLLMTimeout, 0, "Bound on each provider call including retries (default 15s)")
	f.String(config.KeyLogLevel, "warn", "Log level (debug, info, warn, error)")
	f.String(config.KeyLogFormat, "text", "Log format (text, json)")

	rootCmd.AddCommand(practiceCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(questionsCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveDBPath returns the database path using --db (highest priority),
// then EXAMIZ_DB, then the default XDG path. The parent directory is
// created.
func resolveDBPath(cfg config.Config) (string, error) {
	p := cfg.DBPath
	if p == "" {
		var err error
		if p, err = store.DefaultDBPath(); err != nil {
			return "", err
		}
	}
	return p, store.EnsureDir(p)
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/examiz/internal/config"
	"github.com/abhisek/examiz/internal/feedback"
	"github.com/abhisek/examiz/internal/llm"
	"github.com/abhisek/examiz/internal/question"
	"github.com/abhisek/examiz/internal/session"
	"github.com/abhisek/examiz/internal/store"
)

// runtime bundles the dependencies shared by the session commands.
type runtime struct {
	cfg   config.Config
	store *store.Store
	bank  question.Bank
	names func(string) string
	gen   *feedback.Generator
}

func (r *runtime) Close() error {
	return r.store.Close()
}

// sessionOptions is the controller template every command starts from.
func (r *runtime) sessionOptions() session.Options {
	return session.Options{
		Sink:       r.store.ProgressRepo(),
		ModuleName: r.names,
	}
}

// openRuntime resolves config, opens the store, picks the question bank
// and builds the feedback generator. LLM setup failures degrade to
// template feedback.
func openRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg, err := config.Load(config.NewViper(cmd))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	dbPath, err := resolveDBPath(cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	r := &runtime{cfg: cfg, store: st}

	if len(cfg.QuestionFiles) > 0 {
		fb, err := question.LoadFiles(cfg.QuestionFiles...)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("load question files: %w", err)
		}
		r.bank, r.names = fb, fb.ModuleName
	} else {
		qr := st.QuestionRepo()
		r.bank, r.names = qr, qr.ModuleName
	}

	var provider llm.Provider
	if cfg.AIEnabled() {
		provider, err = llm.NewProvider(cmd.Context(), cfg.LLM, st.EventRepo())
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "LLM provider not configured:", err)
			fmt.Fprintln(cmd.ErrOrStderr(), "Template feedback will be used.")
			provider = nil
		}
	}
	r.gen = feedback.New(provider, cfg.Feedback)
	return r, nil
}

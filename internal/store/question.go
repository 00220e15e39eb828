package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/abhisek/examiz/internal/question"
)

// QuestionRepo is a question.Bank backed by the modules and questions
// tables.
type QuestionRepo struct {
	db *sql.DB
}

var (
	_ question.Bank  = (*QuestionRepo)(nil)
	_ question.Namer = (*QuestionRepo)(nil)
)

// Import replaces the stored questions of every given module. Modules are
// normalized first; nothing is written if any of them is invalid.
func (r *QuestionRepo) Import(ctx context.Context, modules ...question.BankModule) (int, error) {
	for i := range modules {
		if err := modules[i].Normalize(); err != nil {
			return 0, err
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	n := 0
	for _, m := range modules {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO modules (id, name) VALUES (?, ?)
			 ON CONFLICT(id) DO UPDATE SET name = excluded.name`, m.ID, m.Name); err != nil {
			return 0, fmt.Errorf("upsert module %s: %w", m.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE module_id = ?`, m.ID); err != nil {
			return 0, fmt.Errorf("clear module %s: %w", m.ID, err)
		}
		for pos, q := range m.Questions {
			options, err := json.Marshal(q.Options)
			if err != nil {
				return 0, fmt.Errorf("encode options: %w", err)
			}
			kinds, err := json.Marshal(q.Kinds)
			if err != nil {
				return 0, fmt.Errorf("encode kinds: %w", err)
			}
			_, err = tx.ExecContext(ctx, `INSERT INTO questions
				(module_id, id, position, prompt, context, options, correct, competency,
				 difficulty, explanation, estimated_secs, kinds)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				m.ID, q.ID, pos, q.Prompt, q.Context, string(options), q.Correct, q.Competency,
				string(q.Difficulty), q.Explanation, q.EstimatedSecs, string(kinds))
			if err != nil {
				return 0, fmt.Errorf("insert question %s/%s: %w", m.ID, q.ID, err)
			}
			n++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return n, nil
}

// FetchQuestions returns the module's questions in import order, filtered
// to those allowed for kind.
func (r *QuestionRepo) FetchQuestions(ctx context.Context, moduleID string, kind question.Kind) ([]question.Question, error) {
	var exists int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM modules WHERE id = ?`, moduleID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("lookup module: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", question.ErrUnknownModule, moduleID)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT id, prompt, context, options, correct, competency,
		difficulty, explanation, estimated_secs, kinds
		FROM questions WHERE module_id = ? ORDER BY position`, moduleID)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var out []question.Question
	for rows.Next() {
		var (
			q                  question.Question
			options, kinds, df string
		)
		if err := rows.Scan(&q.ID, &q.Prompt, &q.Context, &options, &q.Correct, &q.Competency,
			&df, &q.Explanation, &q.EstimatedSecs, &kinds); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal([]byte(options), &q.Options); err != nil {
			return nil, fmt.Errorf("decode options of %s: %w", q.ID, err)
		}
		if kinds != "" && kinds != "null" {
			if err := json.Unmarshal([]byte(kinds), &q.Kinds); err != nil {
				return nil, fmt.Errorf("decode kinds of %s: %w", q.ID, err)
			}
		}
		q.Difficulty = question.ParseDifficulty(df)
		if q.Allows(kind) {
			out = append(out, q)
		}
	}
	return out, rows.Err()
}

// ModuleName returns the stored display name, falling back to the default
// catalog.
func (r *QuestionRepo) ModuleName(moduleID string) string {
	var name string
	err := r.db.QueryRow(`SELECT name FROM modules WHERE id = ?`, moduleID).Scan(&name)
	if err != nil || name == "" {
		return question.ModuleName(moduleID)
	}
	return name
}

// Modules lists stored modules with their question counts.
func (r *QuestionRepo) Modules(ctx context.Context) ([]ModuleSummary, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT m.id, m.name, COUNT(q.id)
		FROM modules m LEFT JOIN questions q ON q.module_id = m.id
		GROUP BY m.id, m.name ORDER BY m.id`)
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	defer rows.Close()

	var out []ModuleSummary
	for rows.Next() {
		var s ModuleSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Questions); err != nil {
			return nil, fmt.Errorf("scan module: %w", err)
		}
		if s.Name == "" {
			s.Name = question.ModuleName(s.ID)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ModuleSummary is one row of QuestionRepo.Modules.
type ModuleSummary struct {
	ID        string
	Name      string
	Questions int
}

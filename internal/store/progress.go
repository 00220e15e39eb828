package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/abhisek/examiz/internal/progress"
	"github.com/abhisek/examiz/internal/question"
)

// ProgressRepo is the append-only progress table. It implements
// progress.Sink.
type ProgressRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

var _ progress.Sink = (*ProgressRepo)(nil)

func (r *ProgressRepo) Record(ctx context.Context, rec progress.Record) error {
	if rec.ModuleID == "" {
		return fmt.Errorf("progress record without module id")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO progress_records
		(sequence, module_id, kind, score, percentage, recorded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		seqNum, rec.ModuleID, string(rec.Kind), rec.Score, rec.Percentage, rec.Timestamp.UnixMilli())
	if err != nil {
		return fmt.Errorf("save progress record: %w", err)
	}
	return nil
}

// LatestScore returns the most recent score for a module and kind.
// ok is false when nothing was recorded.
func (r *ProgressRepo) LatestScore(ctx context.Context, moduleID string, kind question.Kind) (score int, ok bool, err error) {
	err = r.db.QueryRowContext(ctx, `SELECT score FROM progress_records
		WHERE module_id = ? AND kind = ? ORDER BY sequence DESC LIMIT 1`,
		moduleID, string(kind)).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("latest score: %w", err)
	}
	return score, true, nil
}

// Unlocked reports whether the module's evaluation mode is available,
// based on its latest practice score.
func (r *ProgressRepo) Unlocked(ctx context.Context, moduleID string) (bool, error) {
	score, ok, err := r.LatestScore(ctx, moduleID, question.KindPractice)
	if err != nil || !ok {
		return false, err
	}
	return progress.Unlocked(score), nil
}

// List returns records oldest first. An empty moduleID lists every module.
func (r *ProgressRepo) List(ctx context.Context, moduleID string, limit int) ([]progress.Record, error) {
	q := `SELECT module_id, kind, score, percentage, recorded_at FROM progress_records`
	var args []any
	if moduleID != "" {
		q += ` WHERE module_id = ?`
		args = append(args, moduleID)
	}
	q += ` ORDER BY sequence`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	defer rows.Close()

	var out []progress.Record
	for rows.Next() {
		var (
			rec  progress.Record
			kind string
			at   int64
		)
		if err := rows.Scan(&rec.ModuleID, &kind, &rec.Score, &rec.Percentage, &at); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		rec.Kind = question.Kind(kind)
		rec.Timestamp = time.UnixMilli(at)
		out = append(out, rec)
	}
	return out, rows.Err()
}

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/examiz/internal/progress"
	"github.com/abhisek/examiz/internal/question"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "examiz.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL
	}
	for _, tt := range tests {
		var got string
		require.NoError(t, s.DB().QueryRow("PRAGMA "+tt.pragma).Scan(&got))
		assert.Equal(t, tt.want, got, "PRAGMA %s", tt.pragma)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "examiz.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.ProgressRepo().Record(ctx, progress.Record{ModuleID: "m", Kind: question.KindPractice, Score: 60}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	score, ok, err := s.ProgressRepo().LatestScore(ctx, "m", question.KindPractice)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 60, score)
}

func TestSequenceMonotonic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	prev := int64(0)
	for range 5 {
		n, err := s.seq.Next(ctx)
		require.NoError(t, err)
		assert.Greater(t, n, prev)
		prev = n
	}
}

func TestLLMEvents(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	events := []LLMRequestEventData{
		{Provider: "openai", Model: "gpt-4o-mini", Purpose: "session-feedback", InputTokens: 100, OutputTokens: 50, LatencyMs: 200, Success: true, RequestBody: "[user]\nhi", ResponseBody: "{}"},
		{Provider: "openai", Model: "gpt-4o-mini", Purpose: "question-feedback", InputTokens: 40, OutputTokens: 10, LatencyMs: 100, Success: true},
		{Provider: "anthropic", Model: "claude-haiku-4-5-20251001", Purpose: "session-feedback", LatencyMs: 400, ErrorMessage: "rate limited"},
	}
	for _, e := range events {
		require.NoError(t, repo.AppendLLMRequest(ctx, e))
	}

	all, err := repo.QueryLLMEvents(ctx, QueryOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "anthropic", all[0].Provider, "newest first")
	assert.False(t, all[0].Success)
	assert.Equal(t, "rate limited", all[0].ErrorMessage)

	filtered, err := repo.QueryLLMEvents(ctx, QueryOpts{Purpose: "session-feedback", Limit: 1})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "anthropic", filtered[0].Provider)

	oldest := all[2]
	got, err := repo.GetLLMEvent(ctx, oldest.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "[user]\nhi", got.RequestBody)
	assert.True(t, got.Success)
	assert.WithinDuration(t, time.Now(), got.Timestamp, time.Minute)

	missing, err := repo.GetLLMEvent(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	byPurpose, err := repo.LLMUsageByPurpose(ctx)
	require.NoError(t, err)
	require.Len(t, byPurpose, 2)
	assert.Equal(t, UsageRow{Purpose: "question-feedback", Calls: 1, InputTokens: 40, OutputTokens: 10, AvgLatencyMs: 100}, byPurpose[0])
	assert.Equal(t, 2, byPurpose[1].Calls)
	assert.Equal(t, 1, byPurpose[1].Failed)
	assert.Equal(t, int64(300), byPurpose[1].AvgLatencyMs)

	byModel, err := repo.LLMUsageByModel(ctx)
	require.NoError(t, err)
	require.Len(t, byModel, 2)
	assert.Equal(t, "gpt-4o-mini", byModel[1].Model)
	assert.Equal(t, 140, byModel[1].InputTokens)
}

func TestProgressRepo(t *testing.T) {
	s := openTestStore(t)
	repo := s.ProgressRepo()
	ctx := context.Background()

	unlocked, err := repo.Unlocked(ctx, question.ModuleMathematics)
	require.NoError(t, err)
	assert.False(t, unlocked, "nothing recorded yet")

	ts := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	recs := []progress.Record{
		{ModuleID: question.ModuleMathematics, Kind: question.KindPractice, Score: 40, Percentage: 40, Timestamp: ts},
		{ModuleID: question.ModuleEnglish, Kind: question.KindPractice, Score: 90, Percentage: 90, Timestamp: ts},
		{ModuleID: question.ModuleMathematics, Kind: question.KindPractice, Score: 50, Percentage: 50, Timestamp: ts.Add(time.Hour)},
		{ModuleID: question.ModuleMathematics, Kind: question.KindEvaluation, Score: 310, Percentage: 62, Timestamp: ts.Add(2 * time.Hour)},
	}
	for _, r := range recs {
		require.NoError(t, repo.Record(ctx, r))
	}

	unlocked, err = repo.Unlocked(ctx, question.ModuleMathematics)
	require.NoError(t, err)
	assert.True(t, unlocked, "latest practice score reached the threshold")

	score, ok, err := repo.LatestScore(ctx, question.ModuleMathematics, question.KindEvaluation)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 310, score)

	list, err := repo.List(ctx, question.ModuleMathematics, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, 40, list[0].Score)
	assert.Equal(t, question.KindEvaluation, list[2].Kind)
	assert.True(t, list[0].Timestamp.Equal(ts))

	all, err := repo.List(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	assert.Error(t, repo.Record(ctx, progress.Record{}))
}

func sampleModule() question.BankModule {
	return question.BankModule{
		ID:   question.ModuleNaturalSciences,
		Name: "Ciencias Naturales",
		Questions: []question.Question{
			{ID: "ns-1", Prompt: "Which organelle produces ATP?", Options: []string{"Nucleus", "Mitochondria", "Ribosome"}, Correct: "b", Competency: "Biology", Difficulty: "easy", EstimatedSecs: 60},
			{ID: "ns-2", Prompt: "What is the SI unit of force?", Options: []string{"Joule", "Newton"}, Correct: "B", Competency: "Physics", Difficulty: "HARD", EstimatedSecs: 90, Kinds: []question.Kind{question.KindEvaluation}},
		},
	}
}

func TestQuestionRepo_ImportAndFetch(t *testing.T) {
	s := openTestStore(t)
	repo := s.QuestionRepo()
	ctx := context.Background()

	n, err := repo.Import(ctx, sampleModule())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	practice, err := repo.FetchQuestions(ctx, question.ModuleNaturalSciences, question.KindPractice)
	require.NoError(t, err)
	require.Len(t, practice, 1)
	assert.Equal(t, "ns-1", practice[0].ID)
	assert.Equal(t, "B", practice[0].Correct)
	assert.Equal(t, question.DifficultyEasy, practice[0].Difficulty)
	assert.Equal(t, []string{"Nucleus", "Mitochondria", "Ribosome"}, practice[0].Options)

	eval, err := repo.FetchQuestions(ctx, question.ModuleNaturalSciences, question.KindEvaluation)
	require.NoError(t, err)
	require.Len(t, eval, 2)
	assert.Equal(t, []question.Kind{question.KindEvaluation}, eval[1].Kinds)

	assert.Equal(t, "Ciencias Naturales", repo.ModuleName(question.ModuleNaturalSciences))
	assert.Equal(t, question.ModuleName(question.ModuleEnglish), repo.ModuleName(question.ModuleEnglish))

	mods, err := repo.Modules(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ModuleSummary{{ID: question.ModuleNaturalSciences, Name: "Ciencias Naturales", Questions: 2}}, mods)
}

func TestQuestionRepo_ReimportReplaces(t *testing.T) {
	s := openTestStore(t)
	repo := s.QuestionRepo()
	ctx := context.Background()

	_, err := repo.Import(ctx, sampleModule())
	require.NoError(t, err)

	m := sampleModule()
	m.Questions = m.Questions[:1]
	_, err = repo.Import(ctx, m)
	require.NoError(t, err)

	qs, err := repo.FetchQuestions(ctx, m.ID, question.KindEvaluation)
	require.NoError(t, err)
	assert.Len(t, qs, 1)
}

func TestQuestionRepo_InvalidImportWritesNothing(t *testing.T) {
	s := openTestStore(t)
	repo := s.QuestionRepo()
	ctx := context.Background()

	bad := sampleModule()
	bad.Questions = append(bad.Questions, question.Question{ID: "ns-3", Prompt: "?", Options: []string{"A", "B"}, Correct: "Z"})
	_, err := repo.Import(ctx, bad)
	require.Error(t, err)

	_, err = repo.FetchQuestions(ctx, bad.ID, question.KindPractice)
	assert.True(t, errors.Is(err, question.ErrUnknownModule))
}

func TestDefaultDBPath(t *testing.T) {
	t.Setenv("EXAMIZ_DB", "/tmp/custom.db")
	p, err := DefaultDBPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.db", p)

	t.Setenv("EXAMIZ_DB", "")
	t.Setenv("XDG_DATA_HOME", "/data")
	p, err = DefaultDBPath()
	require.NoError(t, err)
	assert.Equal(t, "/data/examiz/examiz.db", p)
}

func TestEnsureDir(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a", "b", "examiz.db")
	require.NoError(t, EnsureDir(p))
	assert.DirExists(t, filepath.Join(dir, "a", "b"))
}

package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/abhisek/examiz/internal/llm"
	"github.com/abhisek/examiz/internal/scoring"
)

// Generator produces session and question feedback. A Generator without a
// provider always uses the template path. Safe for concurrent use.
type Generator struct {
	provider llm.Provider
	cfg      Config
}

// New creates a Generator. provider may be nil.
func New(provider llm.Provider, cfg Config) *Generator {
	def := DefaultConfig()
	if cfg.Prompt.Product == "" {
		cfg.Prompt.Product = def.Prompt.Product
	}
	if cfg.Prompt.Scale == "" {
		cfg.Prompt.Scale = def.Prompt.Scale
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.QuestionMaxTokens <= 0 {
		cfg.QuestionMaxTokens = def.QuestionMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Generator{provider: provider, cfg: cfg}
}

// Evaluate produces the one EvaluationResult for a finished session. It
// makes at most one provider call and never fails: any problem with the
// call or its output yields the template result.
func (g *Generator) Evaluate(ctx context.Context, in SessionInput) EvaluationResult {
	scale := in.Scale
	if scale == "" {
		scale = g.cfg.Prompt.Scale
	}

	if g.provider == nil {
		return FallbackEvaluation(in, scale)
	}

	res, err := g.generateEvaluation(ctx, in, scale)
	if err != nil {
		slog.WarnContext(ctx, "session feedback fell back to template",
			"module", in.ModuleID, "reason", err)
		return FallbackEvaluation(in, scale)
	}
	return res
}

// Explain produces immediate feedback for one practice answer.
func (g *Generator) Explain(ctx context.Context, in QuestionInput) QuestionFeedback {
	if g.provider == nil {
		return FallbackQuestion(in)
	}

	fb, err := g.generateQuestion(ctx, in)
	if err != nil {
		slog.DebugContext(ctx, "question feedback fell back to template",
			"question", in.Question.ID, "reason", err)
		return FallbackQuestion(in)
	}
	return fb
}

func (g *Generator) generateEvaluation(ctx context.Context, in SessionInput, scale scoring.Scale) (EvaluationResult, error) {
	res := measure(in, scale)

	purpose := llm.PurposeSessionFeedback
	if len(in.Sections) > 0 {
		purpose = llm.PurposeSimulationFeedback
	}

	pc := g.cfg.Prompt
	pc.Scale = scale
	body := sessionBody{
		EvaluationResult: res,
		Sections:         in.Sections,
		Incorrect:        mostInformative(in.Questions, in.Answers, res.ByCompetency),
		ScaleMax:         scale.Max(),
	}
	req, err := buildPrompt(pc, sessionTask, body, g.cfg.MaxTokens, g.cfg.Temperature)
	if err != nil {
		return EvaluationResult{}, fmt.Errorf("build session prompt: %w", err)
	}

	var out evaluationOutput
	if err := g.call(ctx, purpose, req, evaluationSchema, &out); err != nil {
		return EvaluationResult{}, err
	}
	if out.Score < 0 || out.Score > float64(scale.Max()) || math.IsNaN(out.Score) {
		return EvaluationResult{}, fmt.Errorf("score %v outside 0-%d", out.Score, scale.Max())
	}

	res.Strengths = cleanList(out.Strengths, MaxStrengths)
	res.Weaknesses = cleanList(out.Weaknesses, MaxWeaknesses)
	res.Recommendations = cleanList(out.Recommendations, MaxRecommendations)
	res.Strategies = cleanList(out.Strategies, MaxStrategies)
	res.LevelDescription = strings.TrimSpace(out.Level)
	res.Analysis = strings.TrimSpace(out.Analysis)
	res.Provenance = ProvenanceAI
	return res, nil
}

func (g *Generator) generateQuestion(ctx context.Context, in QuestionInput) (QuestionFeedback, error) {
	body := newQuestionBody(in)
	req, err := buildPrompt(g.cfg.Prompt, questionTask, body, g.cfg.QuestionMaxTokens, g.cfg.Temperature)
	if err != nil {
		return QuestionFeedback{}, fmt.Errorf("build question prompt: %w", err)
	}

	var out questionOutput
	if err := g.call(ctx, llm.PurposeQuestionFeedback, req, questionSchema, &out); err != nil {
		return QuestionFeedback{}, err
	}
	if out.Correct != body.IsCorrect {
		return QuestionFeedback{}, fmt.Errorf("model reported correct=%v for a %v answer", out.Correct, body.IsCorrect)
	}

	// Start from the template so the letter fields match exactly.
	fb := FallbackQuestion(in)
	fb.Title = strings.TrimSpace(out.Title)
	fb.Explanation = strings.TrimSpace(out.Explanation)
	if tip := strings.TrimSpace(out.Tip); tip != "" {
		fb.Tip = tip
	}
	fb.Provenance = ProvenanceAI
	return fb, nil
}

// call performs the single bounded provider request and decodes its
// output.
func (g *Generator) call(ctx context.Context, purpose string, req llm.Request, schema *llm.Schema, out any) error {
	ctx, cancel := context.WithTimeout(llm.WithPurpose(ctx, purpose), g.cfg.Timeout)
	defer cancel()

	resp, err := g.provider.Generate(ctx, req)
	if err != nil {
		return err
	}
	return decode(resp, schema, out)
}

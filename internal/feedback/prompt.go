package feedback

import (
	"bytes"
	"sort"
	"text/template"

	"github.com/abhisek/examiz/internal/diagnosis"
	"github.com/abhisek/examiz/internal/llm"
	"github.com/abhisek/examiz/internal/question"
	"github.com/abhisek/examiz/internal/scoring"
)

// task is one kind of prompt: its body template and the schema the
// answer must follow.
type task struct {
	body   *template.Template
	schema *llm.Schema
}

type promptData struct {
	PromptContext
	ScaleMax int
	Tier     string
	Fields   []string
}

var systemTemplate = template.Must(template.New("system").Parse(
	`You are the study coach of {{.Product}}, an exam preparation program ({{.Tier}} tier). Scores are reported on a 0-{{.ScaleMax}} scale.
{{- with .Teacher}}
You are writing on behalf of {{.Name}}{{with .Focus}}, whose course focuses on {{.}}{{end}}.
{{- end}}
Write in a warm, direct and specific tone for a secondary-school learner.
Respond with a single JSON object and nothing else, with these fields: {{range $i, $f := .Fields}}{{if $i}}, {{end}}{{$f}}{{end}}.`))

var sessionTemplate = template.Must(template.New("session").Parse(
	`Module: {{.ModuleName}}
Result: {{.Correct}} of {{.Total}} correct ({{printf "%.1f" .Percentage}}%), score {{.Score}}, level {{.Level}}.
{{- if .Unanswered}}
Unanswered: {{.Unanswered}}{{end}}
Time spent: {{.TimeSpent}}
{{- if .Sections}}

Modules:
{{- range .Sections}}
- {{.Name}}: {{.Correct}}/{{.Total}} ({{printf "%.0f" .Percentage}}%)
{{- end}}{{end}}

By competency:
{{- range .ByCompetency}}
- {{.Competency}}: {{.Correct}}/{{.Total}} ({{printf "%.0f" .Percentage}}%)
{{- end}}

By difficulty:
{{- range .ByDifficulty}}
- {{.Difficulty}}: {{.Correct}}/{{.Total}} ({{printf "%.0f" .Percentage}}%)
{{- end}}
{{- if .Incorrect}}

Missed questions:
{{- range .Incorrect}}
- [{{.Competency}}, {{.Difficulty}}{{with .Pattern}}, likely {{.}}{{end}}] {{.Prompt}}
  {{if .Unanswered}}Not answered{{else}}Chose {{.Selected}}: {{.SelectedText}}{{end}}; correct {{.Correct}}: {{.CorrectText}}
{{- end}}{{end}}

Give at most 3 strengths, 3 weaknesses, 5 recommendations and 3 strategies, a score on the 0-{{.ScaleMax}} scale, a level label and a short analysis.`))

var questionTemplate = template.Must(template.New("question").Parse(
	`Module: {{.ModuleName}}
Competency: {{.Question.Competency}} ({{.Question.Difficulty}})
{{- with .Question.Context}}
Context: {{.}}{{end}}
Question: {{.Question.Prompt}}
Options:
{{- range $i, $o := .Options}}
{{$o}}{{end}}
Learner chose: {{.Selected}}
Correct option: {{.Question.Correct}}
{{- with .Question.Explanation}}
Reference explanation: {{.}}{{end}}

Explain in about 120 words why the correct option is right{{if not .IsCorrect}} and why the learner's choice is not{{end}}. Include a short title, one practical tip and a "correct" flag that is {{.IsCorrect}}.`))

var (
	sessionTask  = task{body: sessionTemplate, schema: evaluationSchema}
	questionTask = task{body: questionTemplate, schema: questionSchema}
)

// buildPrompt renders a task under the shared branding and tier context.
func buildPrompt(pc PromptContext, t task, body any, maxTokens int, temperature float64) (llm.Request, error) {
	if pc.Product == "" {
		pc.Product = "examiz"
	}
	if pc.Scale == "" {
		pc.Scale = scoring.ScaleStandard
	}
	data := promptData{
		PromptContext: pc,
		ScaleMax:      pc.Scale.Max(),
		Tier:          string(pc.Scale),
		Fields:        requiredFields(t.schema),
	}

	var sys, user bytes.Buffer
	if err := systemTemplate.Execute(&sys, data); err != nil {
		return llm.Request{}, err
	}
	if err := t.body.Execute(&user, body); err != nil {
		return llm.Request{}, err
	}
	return llm.UserPrompt(sys.String(), user.String(), maxTokens, temperature), nil
}

func requiredFields(s *llm.Schema) []string {
	req, _ := s.Definition["required"].([]any)
	out := make([]string, 0, len(req))
	for _, r := range req {
		if f, ok := r.(string); ok {
			out = append(out, f)
		}
	}
	return out
}

// missedQuestion is the prompt view of one incorrect or unanswered item.
type missedQuestion struct {
	index        int
	Prompt       string
	Competency   string
	Difficulty   question.Difficulty
	Selected     string
	SelectedText string
	Correct      string
	CorrectText  string
	Unanswered   bool
	Pattern      diagnosis.ErrorCategory
}

// mostInformative picks up to MaxIncorrectInPrompt missed questions.
// Wrong answers come before unanswered ones; among wrong answers the
// weakest competencies lead, then the easier questions.
func mostInformative(questions []question.Question, answers map[int]question.Answer, byComp []scoring.CompetencyScore) []missedQuestion {
	compPct := make(map[string]float64, len(byComp))
	for _, c := range byComp {
		compPct[c.Competency] = c.Percentage
	}
	patterns := make(map[int]diagnosis.ErrorCategory)
	for _, d := range diagnosis.Diagnose(questions, answers, byComp) {
		if d.Category != diagnosis.CategoryUnanswered {
			patterns[d.Index] = d.Category
		}
	}

	var missed []missedQuestion
	for i, q := range questions {
		a, answered := answers[i]
		if answered && q.IsCorrect(a.Selected) {
			continue
		}
		m := missedQuestion{
			index:       i,
			Prompt:      q.Prompt,
			Competency:  q.Competency,
			Difficulty:  q.Difficulty,
			Correct:     q.Correct,
			CorrectText: q.OptionText(q.Correct),
			Unanswered:  !answered,
			Pattern:     patterns[i],
		}
		if answered {
			m.Selected = a.Selected
			m.SelectedText = q.OptionText(a.Selected)
		}
		missed = append(missed, m)
	}

	sort.SliceStable(missed, func(i, j int) bool {
		a, b := missed[i], missed[j]
		if a.Unanswered != b.Unanswered {
			return !a.Unanswered
		}
		if pa, pb := compPct[a.Competency], compPct[b.Competency]; pa != pb {
			return pa < pb
		}
		return a.Difficulty.Rank() < b.Difficulty.Rank()
	})

	if len(missed) > MaxIncorrectInPrompt {
		missed = missed[:MaxIncorrectInPrompt]
	}
	return missed
}

type sessionBody struct {
	EvaluationResult
	Sections  []Section
	Incorrect []missedQuestion
	ScaleMax  int
}

type questionBody struct {
	QuestionInput
	Options   []string
	IsCorrect bool
}

func newQuestionBody(in QuestionInput) questionBody {
	opts := make([]string, len(in.Question.Options))
	for i, o := range in.Question.Options {
		opts[i] = question.Letter(i) + ") " + o
	}
	return questionBody{
		QuestionInput: in,
		Options:       opts,
		IsCorrect:     in.Question.IsCorrect(in.Selected),
	}
}

package feedback

import "github.com/abhisek/examiz/internal/llm"

func stringArray(desc string) map[string]any {
	return map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string"},
		"description": desc,
	}
}

// evaluationSchema is the structure requested from the consolidated prompt.
var evaluationSchema = &llm.Schema{
	Name:        "session-feedback",
	Description: "Qualitative feedback for a completed assessment session",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"strengths":       stringArray("Up to 3 strengths"),
			"weaknesses":      stringArray("Up to 3 weaknesses"),
			"recommendations": stringArray("Up to 5 concrete recommendations"),
			"strategies":      stringArray("Up to 3 study strategies"),
			"score": map[string]any{
				"type":        "number",
				"minimum":     0,
				"description": "Score on the external scale",
			},
			"level": map[string]any{
				"type":      "string",
				"minLength": 1,
			},
			"analysis": map[string]any{
				"type":      "string",
				"minLength": 1,
			},
		},
		"required": []any{"strengths", "weaknesses", "recommendations", "strategies", "score", "level", "analysis"},
	},
}

// questionSchema is the structure requested for immediate practice
// feedback.
var questionSchema = &llm.Schema{
	Name:        "question-feedback",
	Description: "Explanation of a single answered question",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":       map[string]any{"type": "string", "minLength": 1},
			"explanation": map[string]any{"type": "string", "minLength": 1},
			"tip":         map[string]any{"type": "string"},
			"correct":     map[string]any{"type": "boolean"},
		},
		"required": []any{"title", "explanation", "tip", "correct"},
	},
}

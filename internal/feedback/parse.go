package feedback

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abhisek/examiz/internal/llm"
)

// stripCodeFences returns the body of the first ``` fence in s, dropping a
// language tag of any case and any prose around the fence. Replies that
// already start with a JSON value only lose a trailing fence.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		return strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}
	body := s[start+3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(body[:nl], "{[") {
		body = body[nl+1:]
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// decode strips fences from a response, validates it against schema and
// unmarshals it into out.
func decode(resp *llm.Response, schema *llm.Schema, out any) error {
	raw := json.RawMessage(stripCodeFences(resp.Text()))
	if len(raw) == 0 {
		return &llm.ErrInvalidResponse{Err: fmt.Errorf("empty response")}
	}
	if err := llm.ValidateContent(schema, raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &llm.ErrInvalidResponse{Content: raw, Err: err}
	}
	return nil
}

type evaluationOutput struct {
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	Recommendations []string `json:"recommendations"`
	Strategies      []string `json:"strategies"`
	Score           float64  `json:"score"`
	Level           string   `json:"level"`
	Analysis        string   `json:"analysis"`
}

type questionOutput struct {
	Title       string `json:"title"`
	Explanation string `json:"explanation"`
	Tip         string `json:"tip"`
	Correct     bool   `json:"correct"`
}

// cleanList drops blank entries and applies the cap.
func cleanList(items []string, n int) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return truncate(out, n)
}

package llm

import "context"

type contextKey string

const purposeKey contextKey = "llm_purpose"

// Purpose labels used for event logging.
const (
	PurposeSessionFeedback    = "session-feedback"
	PurposeQuestionFeedback   = "question-feedback"
	PurposeSimulationFeedback = "simulation-feedback"
)

// Purposes lists the labels the feedback generator records, in the order
// reports show them.
func Purposes() []string {
	return []string{PurposeQuestionFeedback, PurposeSessionFeedback, PurposeSimulationFeedback}
}

// WithPurpose attaches a purpose label to the context for event logging.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey, purpose)
}

// PurposeFrom extracts the purpose label from the context.
func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey).(string); ok {
		return v
	}
	return "unknown"
}

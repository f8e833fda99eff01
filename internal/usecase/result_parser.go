package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/model"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/ports/adapter"
)

func invalidResponse(cause error) error {
	return model.NewExecError(model.ErrorKindProviderFatal, model.CodeInvalidResponse, cause)
}

// parseResult turns raw provider text into the operation's result payload.
func parseResult(pc adapter.PromptContext, text string) (json.RawMessage, error) {
	switch pc.OperationType {
	case model.OperationTypeQuestionGeneration:
		q, err := parseQuestion(text)
		if err != nil {
			return nil, err
		}
		return json.Marshal(model.QuestionResult{
			Question:       q,
			Category:       pc.Category,
			QuestionNumber: pc.QuestionNumber,
		})
	case model.OperationTypeFeedbackAnalysis:
		fb, err := parseFeedback(text)
		if err != nil {
			return nil, err
		}
		return json.Marshal(fb)
	}
	return nil, invalidResponse(fmt.Errorf("unsupported operation type %q", pc.OperationType))
}

func parseQuestion(text string) (string, error) {
	q := strings.TrimSpace(text)
	q = strings.Trim(q, "\"'“”")
	q = strings.TrimSpace(q)
	if q == "" {
		return "", invalidResponse(errors.New("empty question"))
	}
	return q, nil
}

// stripFence removes a surrounding ``` or ```json block if present.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// requiredFeedbackKeys must all be present and non-null; overall_comments is optional.
var requiredFeedbackKeys = []string{
	"technical_accuracy_score",
	"communication_clarity_score",
	"problem_solving_score",
	"relevance_score",
	"technical_feedback",
	"communication_feedback",
	"problem_solving_feedback",
	"relevance_feedback",
	"knowledge_gaps",
	"learning_recommendations",
}

func parseFeedback(text string) (*model.FeedbackResult, error) {
	raw := stripFence(text)
	// tolerate prose around the object
	if start, end := strings.IndexByte(raw, '{'), strings.LastIndexByte(raw, '}'); start >= 0 && end > start {
		raw = raw[start : end+1]
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, invalidResponse(fmt.Errorf("decode feedback: %w", err))
	}
	var missing []string
	for _, k := range requiredFeedbackKeys {
		if v, ok := fields[k]; !ok || string(v) == "null" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, invalidResponse(fmt.Errorf("feedback missing fields: %s", strings.Join(missing, ", ")))
	}

	var fb model.FeedbackResult
	if err := json.Unmarshal([]byte(raw), &fb); err != nil {
		return nil, invalidResponse(fmt.Errorf("decode feedback: %w", err))
	}
	fb.Normalize()
	if fb.KnowledgeGaps == nil {
		fb.KnowledgeGaps = []string{}
	}
	if fb.LearningRecommendations == nil {
		fb.LearningRecommendations = []string{}
	}
	return &fb, nil
}

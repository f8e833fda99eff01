package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/model"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/ports/adapter"
)

var _ adapter.ProviderGateway = (*NoopGateway)(nil)

// NoopGateway returns canned replies for local development without a provider account.
type NoopGateway struct {
	log   *zerolog.Logger
	delay time.Duration
}

func NewNoopGateway(logger *zerolog.Logger) *NoopGateway {
	l := logger.With().Str("component", "noop_ai").Logger()
	return &NoopGateway{log: &l, delay: 100 * time.Millisecond}
}

func (g *NoopGateway) Name() string { return "noop" }

func (g *NoopGateway) Invoke(ctx context.Context, pc adapter.PromptContext, _ adapter.Credential) (adapter.ProviderResult, error) {
	select {
	case <-time.After(g.delay):
	case <-ctx.Done():
		return adapter.ProviderResult{}, ctx.Err()
	}
	g.log.Debug().Str("type", string(pc.OperationType)).Str("session_id", pc.SessionID).Msg("noop provider call")

	var text string
	switch pc.OperationType {
	case model.OperationTypeFeedbackAnalysis:
		b, _ := json.Marshal(model.FeedbackResult{
			FeedbackScores: model.FeedbackScores{TechnicalAccuracy: 70, CommunicationClarity: 70, ProblemSolving: 70, Relevance: 70},
			FeedbackNarrative: model.FeedbackNarrative{
				TechnicalFeedback:       "Noop technical feedback.",
				CommunicationFeedback:   "Noop communication feedback.",
				ProblemSolvingFeedback:  "Noop problem solving feedback.",
				RelevanceFeedback:       "Noop relevance feedback.",
				OverallComments:         "This is a noop analysis.",
				KnowledgeGaps:           []string{},
				LearningRecommendations: []string{},
			},
		})
		text = string(b)
	default:
		text = fmt.Sprintf("Noop %s question #%d?", pc.Category, pc.QuestionNumber)
	}
	return adapter.ProviderResult{Text: text, Provider: "noop", Model: "noop"}, nil
}

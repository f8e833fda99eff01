package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/model"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/ports/repository"
)

// ResultSink hands a completed operation's result to the feature that owns it.
type ResultSink interface {
	Persist(ctx context.Context, op *model.Operation) error
}

type interviewSink struct {
	repo repository.InterviewRepository
}

func NewInterviewSink(repo repository.InterviewRepository) ResultSink {
	return &interviewSink{repo: repo}
}

func persistenceErr(code string, cause error) error {
	return model.NewExecError(model.ErrorKindPersistence, code, cause)
}

func (s *interviewSink) Persist(ctx context.Context, op *model.Operation) error {
	switch op.Type {
	case model.OperationTypeQuestionGeneration:
		var q model.QuestionResult
		if err := json.Unmarshal(op.Result, &q); err != nil {
			return persistenceErr(model.CodeUnexpected, fmt.Errorf("decode question result: %w", err))
		}
		if err := s.repo.SaveQuestion(ctx, op.TargetRef, q.Question, q.Category); err != nil {
			return persistenceErr(model.CodeDBWriteFailed, err)
		}
		return nil

	case model.OperationTypeFeedbackAnalysis:
		var fb model.FeedbackResult
		if err := json.Unmarshal(op.Result, &fb); err != nil {
			return persistenceErr(model.CodeUnexpected, fmt.Errorf("decode feedback result: %w", err))
		}
		err := s.repo.SaveFeedback(ctx, op.TargetRef, fb.FeedbackScores, fb.FeedbackNarrative)
		if errors.Is(err, domain.ErrAlreadyExists) {
			return persistenceErr(model.CodeFeedbackAlreadyExists, err)
		}
		if err != nil {
			return persistenceErr(model.CodeDBWriteFailed, err)
		}
		return nil
	}
	return persistenceErr(model.CodeUnexpected, fmt.Errorf("no sink for operation type %q", op.Type))
}

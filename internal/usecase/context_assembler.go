package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/model"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/ports/adapter"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/ports/repository"
)

// Compile-time check
var _ ContextAssembler = (*contextAssembler)(nil)

// ContextAssembler builds the provider input for an operation. Missing
// prerequisites come back as a context-kind *model.ExecError.
type ContextAssembler interface {
	Assemble(ctx context.Context, targetRef string, opType model.OperationType) (adapter.PromptContext, error)
}

type contextAssembler struct {
	repo    repository.InterviewRepository
	counter TokenCounter
	budget  int
}

func NewContextAssembler(repo repository.InterviewRepository, counter TokenCounter, tokenBudget int) *contextAssembler {
	if counter == nil {
		counter = ApproxCounter{}
	}
	return &contextAssembler{repo: repo, counter: counter, budget: tokenBudget}
}

func contextErr(code string, cause error) error {
	return model.NewExecError(model.ErrorKindContext, code, cause)
}

// loadErr turns a collaborator read failure into a context error; not-found
// maps to the given code.
func loadErr(err error, missingCode, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return contextErr(missingCode, fmt.Errorf("%s not found", what))
	}
	return contextErr(model.CodeUnexpected, fmt.Errorf("load %s: %w", what, err))
}

func (a *contextAssembler) Assemble(ctx context.Context, targetRef string, opType model.OperationType) (adapter.PromptContext, error) {
	session, err := a.repo.LoadSessionContext(ctx, targetRef)
	if err := loadErr(err, model.CodeSessionNotFound, "session"); err != nil {
		return adapter.PromptContext{}, err
	}
	job, err := a.repo.LoadJobPosting(ctx, session.JobPostingID)
	if err := loadErr(err, model.CodeJobPostingRequired, "job posting"); err != nil {
		return adapter.PromptContext{}, err
	}
	resume, err := a.repo.LoadResume(ctx, session.UserID)
	if err := loadErr(err, model.CodeResumeRequired, "résumé"); err != nil {
		return adapter.PromptContext{}, err
	}
	if strings.TrimSpace(resume.Content) == "" {
		return adapter.PromptContext{}, contextErr(model.CodeResumeRequired, errors.New("résumé is empty"))
	}
	msgs, err := a.repo.LoadTranscript(ctx, session.ID)
	if err := loadErr(err, model.CodeSessionNotFound, "transcript"); err != nil {
		return adapter.PromptContext{}, err
	}
	pairs := model.PairTranscript(msgs)

	switch opType {
	case model.OperationTypeQuestionGeneration:
		category := model.CategoryFor(session.CurrentQuestionNumber)
		history := a.trimHistory(pairs)
		return adapter.PromptContext{
			OperationType:  opType,
			SessionID:      session.ID,
			Messages:       buildQuestionMessages(job, resume, history, category),
			Temperature:    questionTemperature,
			MaxTokens:      questionMaxTokens,
			Category:       category,
			QuestionNumber: session.CurrentQuestionNumber + 1,
		}, nil

	case model.OperationTypeFeedbackAnalysis:
		var answered []model.QAPair
		for _, p := range pairs {
			if p.Answered() {
				answered = append(answered, p)
			}
		}
		if len(answered) == 0 {
			return adapter.PromptContext{}, contextErr(model.CodeNoAnswers, errors.New("transcript has no answers"))
		}
		return adapter.PromptContext{
			OperationType: opType,
			SessionID:     session.ID,
			Messages:      buildFeedbackMessages(job, resume, answered),
			Temperature:   feedbackTemperature,
			MaxTokens:     feedbackMaxTokens,
			ExpectJSON:    true,
		}, nil
	}
	return adapter.PromptContext{}, contextErr(model.CodeUnexpected, fmt.Errorf("unsupported operation type %q", opType))
}

// trimHistory drops the oldest pairs until questions and answers fit the token budget.
func (a *contextAssembler) trimHistory(pairs []model.QAPair) []model.QAPair {
	if a.budget <= 0 {
		return pairs
	}
	for len(pairs) > 0 {
		total := 0
		for _, p := range pairs {
			total += a.counter.Count(p.Question) + a.counter.Count(p.Answer)
		}
		if total <= a.budget {
			break
		}
		pairs = pairs[1:]
	}
	return pairs
}

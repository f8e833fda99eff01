//go:build !integration

package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/model"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/usecase"
)

const feedbackJSON = "```json\n" + `{"technical_accuracy_score": 80, "communication_clarity_score": 70,
"problem_solving_score": 60, "relevance_score": 140,
"technical_feedback": "knows the runtime", "communication_feedback": "clear",
"problem_solving_feedback": "methodical", "relevance_feedback": "on topic", "overall_comments": "solid",
"knowledge_gaps": ["indexes"], "learning_recommendations": ["read about btrees"]}` + "\n```"

type executorTestDeps struct {
	ops     *MockOperationRepo
	repo    *MockInterviewRepo
	gateway *MockGateway
	creds   *MockCredentials
	sleeper *recordingSleeper
}

func newExecutorDeps() *executorTestDeps {
	d := &executorTestDeps{
		ops:     NewMockOperationRepo(),
		repo:    NewMockInterviewRepo(),
		gateway: &MockGateway{Text: `"Tell me about a Go service you scaled."`},
		creds:   &MockCredentials{},
		sleeper: &recordingSleeper{},
	}
	d.repo.seedSession("session-1", "user-1", 1)
	return d
}

func (d *executorTestDeps) executor(cfg usecase.ExecutorConfig, opts ...usecase.ExecutorOption) *usecase.Executor {
	assembler := usecase.NewContextAssembler(d.repo, usecase.ApproxCounter{}, 0)
	sink := usecase.NewInterviewSink(d.repo)
	opts = append([]usecase.ExecutorOption{
		usecase.WithSleeper(d.sleeper.Sleep),
		usecase.WithJitterSource(func() float64 { return 0 }),
	}, opts...)
	return usecase.NewExecutor(d.ops, assembler, d.gateway, d.creds, sink, cfg, newTestLogger(), opts...)
}

func (d *executorTestDeps) pending(t *testing.T, opType model.OperationType) *model.Operation {
	t.Helper()
	op, err := model.NewOperation(opType, "session-1", "user-1")
	if err != nil {
		t.Fatalf("NewOperation: %v", err)
	}
	d.ops.Put(op)
	return op
}

func (d *executorTestDeps) reload(t *testing.T, id string) *model.Operation {
	t.Helper()
	op, err := d.ops.FindByID(context.Background(), nil, id)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if !op.Consistent() {
		t.Fatalf("operation %s violates result/error exclusivity: %+v", id, op)
	}
	return op
}

var defaultExecCfg = usecase.ExecutorConfig{MaxRetries: 3, BaseBackoff: time.Second, Jitter: 0.1, RunCeiling: 2 * time.Minute}

func TestExecutor_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("should complete after two retryable failures with 1s and 2s backoff", func(t *testing.T) {
		d := newExecutorDeps()
		d.gateway.Errs = []error{retryable(model.CodeServerError), retryable(model.CodeRateLimit)}
		op := d.pending(t, model.OperationTypeQuestionGeneration)

		if err := d.executor(defaultExecCfg).Run(ctx, op.ID); err != nil {
			t.Fatalf("Run: %v", err)
		}

		got := d.reload(t, op.ID)
		if got.Status != model.OperationStatusCompleted {
			t.Fatalf("expected completed, got %s (%+v)", got.Status, got.Error)
		}
		if d.gateway.Calls() != 3 {
			t.Errorf("expected 3 attempts, got %d", d.gateway.Calls())
		}
		if d.sleeper.Total() != 3*time.Second {
			t.Errorf("expected 3s total backoff, got %s", d.sleeper.Total())
		}
		var q model.QuestionResult
		if err := json.Unmarshal(got.Result, &q); err != nil {
			t.Fatalf("decode result: %v", err)
		}
		if q.Question != "Tell me about a Go service you scaled." {
			t.Errorf("quotes not trimmed: %q", q.Question)
		}
		if q.Category != model.QuestionCategoryBehavioral || q.QuestionNumber != 2 {
			t.Errorf("unexpected category/number: %s/%d", q.Category, q.QuestionNumber)
		}
		if len(d.repo.Questions) != 1 {
			t.Errorf("expected the question to be persisted once, got %d", len(d.repo.Questions))
		}
	})

	t.Run("should keep backoff within jitter bounds", func(t *testing.T) {
		d := newExecutorDeps()
		d.gateway.Errs = []error{retryable(model.CodeServerError), retryable(model.CodeServerError)}
		op := d.pending(t, model.OperationTypeQuestionGeneration)

		ex := d.executor(defaultExecCfg, usecase.WithJitterSource(func() float64 { return 0.999 }))
		if err := ex.Run(ctx, op.ID); err != nil {
			t.Fatalf("Run: %v", err)
		}
		total := d.sleeper.Total()
		if total < 3*time.Second || total > 3300*time.Millisecond {
			t.Errorf("backoff %s outside 3s..3.3s", total)
		}
	})

	t.Run("should fail after exactly four attempts when always retryable", func(t *testing.T) {
		d := newExecutorDeps()
		d.gateway.Always = retryable(model.CodeRateLimit)
		op := d.pending(t, model.OperationTypeQuestionGeneration)

		if err := d.executor(defaultExecCfg).Run(ctx, op.ID); err != nil {
			t.Fatalf("Run: %v", err)
		}

		got := d.reload(t, op.ID)
		if got.Status != model.OperationStatusFailed {
			t.Fatalf("expected failed, got %s", got.Status)
		}
		if d.gateway.Calls() != 4 {
			t.Errorf("expected 4 attempts, got %d", d.gateway.Calls())
		}
		if d.sleeper.Total() != 7*time.Second {
			t.Errorf("expected 1s+2s+4s backoff, got %s", d.sleeper.Total())
		}
		if got.Error.Kind != model.ErrorKindProviderRetryable || got.Error.Code != model.CodeRateLimit || !got.Error.Retriable {
			t.Errorf("unexpected error: %+v", got.Error)
		}
	})

	t.Run("should fail after one attempt on a fatal credential error", func(t *testing.T) {
		d := newExecutorDeps()
		d.gateway.Always = fatal(model.CodeInvalidAPIKey, 401)
		op := d.pending(t, model.OperationTypeQuestionGeneration)

		if err := d.executor(defaultExecCfg).Run(ctx, op.ID); err != nil {
			t.Fatalf("Run: %v", err)
		}

		got := d.reload(t, op.ID)
		if got.Status != model.OperationStatusFailed || got.Error.Code != model.CodeInvalidAPIKey {
			t.Fatalf("unexpected terminal state: %s %+v", got.Status, got.Error)
		}
		if d.gateway.Calls() != 1 || len(d.sleeper.delays) != 0 {
			t.Errorf("expected 1 attempt and no backoff, got %d attempts, %d sleeps", d.gateway.Calls(), len(d.sleeper.delays))
		}
	})

	t.Run("should not call the provider without a credential", func(t *testing.T) {
		d := newExecutorDeps()
		d.creds.Err = model.NewExecError(model.ErrorKindProviderFatal, model.CodeAPIKeyNotConfigured, domain.ErrNoCredential)
		op := d.pending(t, model.OperationTypeQuestionGeneration)

		if err := d.executor(defaultExecCfg).Run(ctx, op.ID); err != nil {
			t.Fatalf("Run: %v", err)
		}
		got := d.reload(t, op.ID)
		if got.Error == nil || got.Error.Code != model.CodeAPIKeyNotConfigured || got.Error.Retriable {
			t.Errorf("unexpected error: %+v", got.Error)
		}
		if d.gateway.Calls() != 0 {
			t.Errorf("provider called %d times", d.gateway.Calls())
		}
	})

	t.Run("should fail fast on missing context", func(t *testing.T) {
		d := newExecutorDeps()
		delete(d.repo.Resumes, "user-1")
		op := d.pending(t, model.OperationTypeQuestionGeneration)

		if err := d.executor(defaultExecCfg).Run(ctx, op.ID); err != nil {
			t.Fatalf("Run: %v", err)
		}
		got := d.reload(t, op.ID)
		if got.Error == nil || got.Error.Kind != model.ErrorKindContext || got.Error.Code != model.CodeResumeRequired {
			t.Errorf("unexpected error: %+v", got.Error)
		}
		if d.gateway.Calls() != 0 {
			t.Errorf("provider called %d times", d.gateway.Calls())
		}
	})

	t.Run("should fail unparseable output without retrying", func(t *testing.T) {
		d := newExecutorDeps()
		d.gateway.Text = "not json at all"
		op := d.pending(t, model.OperationTypeFeedbackAnalysis)

		if err := d.executor(defaultExecCfg).Run(ctx, op.ID); err != nil {
			t.Fatalf("Run: %v", err)
		}
		got := d.reload(t, op.ID)
		if got.Error == nil || got.Error.Code != model.CodeInvalidResponse || got.Error.Kind != model.ErrorKindProviderFatal {
			t.Errorf("unexpected error: %+v", got.Error)
		}
		if d.gateway.Calls() != 1 {
			t.Errorf("expected 1 attempt, got %d", d.gateway.Calls())
		}
	})

	t.Run("should reject an empty feedback object and persist nothing", func(t *testing.T) {
		d := newExecutorDeps()
		d.gateway.Text = "```json\n{}\n```"
		op := d.pending(t, model.OperationTypeFeedbackAnalysis)

		if err := d.executor(defaultExecCfg).Run(ctx, op.ID); err != nil {
			t.Fatalf("Run: %v", err)
		}
		got := d.reload(t, op.ID)
		if got.Status != model.OperationStatusFailed || got.Error.Code != model.CodeInvalidResponse {
			t.Fatalf("unexpected terminal state: %s %+v", got.Status, got.Error)
		}
		if _, ok := d.repo.Feedback["session-1"]; ok {
			t.Error("empty feedback must not be persisted")
		}
	})

	t.Run("should report missing context before a missing credential", func(t *testing.T) {
		d := newExecutorDeps()
		delete(d.repo.Resumes, "user-1")
		d.creds.Err = model.NewExecError(model.ErrorKindProviderFatal, model.CodeAPIKeyNotConfigured, domain.ErrNoCredential)
		op := d.pending(t, model.OperationTypeQuestionGeneration)

		if err := d.executor(defaultExecCfg).Run(ctx, op.ID); err != nil {
			t.Fatalf("Run: %v", err)
		}
		got := d.reload(t, op.ID)
		if got.Error == nil || got.Error.Kind != model.ErrorKindContext || got.Error.Code != model.CodeResumeRequired {
			t.Errorf("unexpected error: %+v", got.Error)
		}
	})

	t.Run("should time out mid-backoff", func(t *testing.T) {
		d := newExecutorDeps()
		d.gateway.Always = retryable(model.CodeServerError)
		op := d.pending(t, model.OperationTypeQuestionGeneration)

		cfg := defaultExecCfg
		cfg.RunCeiling = 50 * time.Millisecond
		ex := d.executor(cfg, usecase.WithSleeper(usecase.SleepContext))

		start := time.Now()
		if err := ex.Run(ctx, op.ID); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if time.Since(start) > 900*time.Millisecond {
			t.Errorf("run did not stop at the ceiling: %s", time.Since(start))
		}
		got := d.reload(t, op.ID)
		if got.Status != model.OperationStatusFailed || got.Error.Kind != model.ErrorKindTimeout || got.Error.Code != model.CodeTimeout {
			t.Fatalf("unexpected terminal state: %s %+v", got.Status, got.Error)
		}
		if d.gateway.Calls() != 1 {
			t.Errorf("expected no attempt after the ceiling, got %d", d.gateway.Calls())
		}
	})

	t.Run("should store normalized feedback", func(t *testing.T) {
		d := newExecutorDeps()
		d.gateway.Text = feedbackJSON
		op := d.pending(t, model.OperationTypeFeedbackAnalysis)

		if err := d.executor(defaultExecCfg).Run(ctx, op.ID); err != nil {
			t.Fatalf("Run: %v", err)
		}
		got := d.reload(t, op.ID)
		var fb model.FeedbackResult
		if err := json.Unmarshal(got.Result, &fb); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if fb.Relevance != 100 || fb.Overall != 78 {
			t.Errorf("expected clamped relevance 100 and overall 78, got %d/%d", fb.Relevance, fb.Overall)
		}
		if _, ok := d.repo.Feedback["session-1"]; !ok {
			t.Error("feedback not persisted")
		}
	})

	t.Run("should stay completed when the result write fails", func(t *testing.T) {
		d := newExecutorDeps()
		d.repo.SaveQuestionErr = errors.New("db down")
		op := d.pending(t, model.OperationTypeQuestionGeneration)

		if err := d.executor(defaultExecCfg).Run(ctx, op.ID); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if got := d.reload(t, op.ID); got.Status != model.OperationStatusCompleted {
			t.Errorf("expected completed, got %s", got.Status)
		}
	})

	t.Run("should be a no-op for an already claimed operation", func(t *testing.T) {
		d := newExecutorDeps()
		op := d.pending(t, model.OperationTypeQuestionGeneration)
		ex := d.executor(defaultExecCfg)

		if err := ex.Run(ctx, op.ID); err != nil {
			t.Fatalf("first Run: %v", err)
		}
		if err := ex.Run(ctx, op.ID); err != nil {
			t.Fatalf("second Run: %v", err)
		}
		if d.gateway.Calls() != 1 {
			t.Errorf("expected a single provider call, got %d", d.gateway.Calls())
		}
	})

	t.Run("should let exactly one of many concurrent runs win the claim", func(t *testing.T) {
		d := newExecutorDeps()
		op := d.pending(t, model.OperationTypeQuestionGeneration)
		ex := d.executor(defaultExecCfg)

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := ex.Run(ctx, op.ID); err != nil {
					t.Errorf("Run: %v", err)
				}
			}()
		}
		wg.Wait()
		if d.gateway.Calls() != 1 {
			t.Errorf("expected a single provider call, got %d", d.gateway.Calls())
		}
	})

	t.Run("should report unknown operations", func(t *testing.T) {
		d := newExecutorDeps()
		err := d.executor(defaultExecCfg).Run(ctx, "missing")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestExecutor_Backoff(t *testing.T) {
	ex := usecase.NewExecutor(nil, nil, nil, nil, nil, defaultExecCfg, newTestLogger(),
		usecase.WithJitterSource(func() float64 { return 0.5 }))

	want := []time.Duration{1050 * time.Millisecond, 2100 * time.Millisecond, 4200 * time.Millisecond}
	for i, w := range want {
		if got := ex.Backoff(i); got != w {
			t.Errorf("Backoff(%d) = %s, want %s", i, got, w)
		}
	}
}

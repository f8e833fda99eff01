//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/model"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/ports/adapter"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func cloneOp(op *model.Operation) *model.Operation {
	c := *op
	if op.Error != nil {
		e := *op.Error
		c.Error = &e
	}
	if op.ParentOperationID != nil {
		p := *op.ParentOperationID
		c.ParentOperationID = &p
	}
	return &c
}

// ---- Operation store ----

type MockOperationRepo struct {
	mu  sync.Mutex
	ops map[string]*model.Operation

	CreateCalls int
}

var _ repository.OperationRepository = (*MockOperationRepo)(nil)

func NewMockOperationRepo() *MockOperationRepo {
	return &MockOperationRepo{ops: make(map[string]*model.Operation)}
}

func (m *MockOperationRepo) Put(op *model.Operation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops[op.ID] = cloneOp(op)
}

func (m *MockOperationRepo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ops)
}

func (m *MockOperationRepo) Create(ctx context.Context, tx repository.Tx, op *model.Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	if _, ok := m.ops[op.ID]; ok {
		return domain.ErrAlreadyExists
	}
	for _, o := range m.ops {
		if o.TargetRef == op.TargetRef && o.Type == op.Type && o.Status.IsActive() {
			return domain.ErrAlreadyExists
		}
	}
	m.ops[op.ID] = cloneOp(op)
	return nil
}

func (m *MockOperationRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.ops[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneOp(op), nil
}

func (m *MockOperationRepo) FindActive(ctx context.Context, tx repository.Tx, targetRef string, opType model.OperationType) (*model.Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.ops {
		if o.TargetRef == targetRef && o.Type == opType && o.Status.IsActive() {
			return cloneOp(o), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockOperationRepo) Claim(ctx context.Context, id string) (*model.Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.ops[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if op.Status != model.OperationStatusPending {
		return nil, domain.ErrClaimConflict
	}
	op.Status = model.OperationStatusProcessing
	op.UpdatedAt = time.Now().UTC()
	return cloneOp(op), nil
}

func (m *MockOperationRepo) ClaimNext(ctx context.Context) (*model.Operation, error) {
	m.mu.Lock()
	var pending []*model.Operation
	for _, o := range m.ops {
		if o.Status == model.OperationStatusPending {
			pending = append(pending, o)
		}
	}
	m.mu.Unlock()
	if len(pending) == 0 {
		return nil, domain.ErrNotFound
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	return m.Claim(ctx, pending[0].ID)
}

func (m *MockOperationRepo) Finalize(ctx context.Context, op *model.Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !op.Status.IsTerminal() || !op.Consistent() {
		return domain.ErrInvalidArgument
	}
	cur, ok := m.ops[op.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Status != model.OperationStatusProcessing {
		return domain.ErrInvalidState
	}
	m.ops[op.ID] = cloneOp(op)
	return nil
}

func (m *MockOperationRepo) ListStaleProcessing(ctx context.Context, olderThan time.Time, limit int) ([]*model.Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Operation
	for _, o := range m.ops {
		if o.Status == model.OperationStatusProcessing && o.UpdatedAt.Before(olderThan) && len(out) < limit {
			out = append(out, cloneOp(o))
		}
	}
	return out, nil
}

func (m *MockOperationRepo) ListLineage(ctx context.Context, id string) ([]*model.Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var chain []*model.Operation
	for cur, ok := m.ops[id]; ok; {
		chain = append([]*model.Operation{cloneOp(cur)}, chain...)
		if cur.ParentOperationID == nil {
			break
		}
		cur, ok = m.ops[*cur.ParentOperationID]
	}
	if len(chain) == 0 {
		return nil, domain.ErrNotFound
	}
	return chain, nil
}

// ---- Interview persistence ----

type MockInterviewRepo struct {
	mu        sync.Mutex
	Sessions  map[string]*model.InterviewSession
	Jobs      map[string]*model.JobPosting
	Resumes   map[string]*model.Resume
	Messages  map[string][]model.SessionMessage
	Questions []string
	Feedback  map[string]model.FeedbackScores

	SaveQuestionErr error
}

var _ repository.InterviewRepository = (*MockInterviewRepo)(nil)

func NewMockInterviewRepo() *MockInterviewRepo {
	return &MockInterviewRepo{
		Sessions: make(map[string]*model.InterviewSession),
		Jobs:     make(map[string]*model.JobPosting),
		Resumes:  make(map[string]*model.Resume),
		Messages: make(map[string][]model.SessionMessage),
		Feedback: make(map[string]model.FeedbackScores),
	}
}

// seedSession stores a complete, answerable session for userID.
func (m *MockInterviewRepo) seedSession(sessionID, userID string, asked int) {
	m.Jobs["job-"+sessionID] = &model.JobPosting{ID: "job-" + sessionID, UserID: userID, Title: "Backend Engineer", Description: "Go services", TechStack: []string{"go", "postgres"}}
	m.Resumes[userID] = &model.Resume{ID: "cv-" + userID, UserID: userID, Content: "Five years of Go."}
	m.Sessions[sessionID] = &model.InterviewSession{ID: sessionID, UserID: userID, JobPostingID: "job-" + sessionID, Status: "active", CurrentQuestionNumber: asked}
	for i := 0; i < asked; i++ {
		m.Messages[sessionID] = append(m.Messages[sessionID],
			model.SessionMessage{Type: model.MessageTypeQuestion, Content: "question", QuestionType: model.CategoryFor(i)},
			model.SessionMessage{Type: model.MessageTypeAnswer, Content: "answer"},
		)
	}
}

func (m *MockInterviewRepo) LoadSessionContext(ctx context.Context, sessionID string) (*model.InterviewSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.Sessions[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (m *MockInterviewRepo) LoadJobPosting(ctx context.Context, id string) (*model.JobPosting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.Jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return j, nil
}

func (m *MockInterviewRepo) LoadResume(ctx context.Context, userID string) (*model.Resume, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.Resumes[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r, nil
}

func (m *MockInterviewRepo) LoadTranscript(ctx context.Context, sessionID string) ([]model.SessionMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.SessionMessage(nil), m.Messages[sessionID]...), nil
}

func (m *MockInterviewRepo) SaveQuestion(ctx context.Context, sessionID, text string, category model.QuestionCategory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveQuestionErr != nil {
		return m.SaveQuestionErr
	}
	m.Questions = append(m.Questions, text)
	if s, ok := m.Sessions[sessionID]; ok {
		s.CurrentQuestionNumber++
	}
	return nil
}

func (m *MockInterviewRepo) SaveFeedback(ctx context.Context, sessionID string, scores model.FeedbackScores, narrative model.FeedbackNarrative) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Feedback[sessionID]; ok {
		return domain.ErrAlreadyExists
	}
	m.Feedback[sessionID] = scores
	return nil
}

// ---- Provider side ----

// MockGateway replays Errs in order, then succeeds with Text.
type MockGateway struct {
	mu     sync.Mutex
	Errs   []error
	Always error
	Text   string
	calls  int
	Creds  []adapter.Credential
}

func (g *MockGateway) Name() string { return "mock" }

func (g *MockGateway) Invoke(ctx context.Context, pc adapter.PromptContext, cred adapter.Credential) (adapter.ProviderResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.Creds = append(g.Creds, cred)
	if g.Always != nil {
		return adapter.ProviderResult{}, g.Always
	}
	if g.calls <= len(g.Errs) {
		return adapter.ProviderResult{}, g.Errs[g.calls-1]
	}
	return adapter.ProviderResult{Text: g.Text, Provider: "mock"}, nil
}

func (g *MockGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func retryable(code string) error {
	return &adapter.ProviderError{Class: adapter.FailureRetryable, Code: code, StatusCode: 503, Provider: "mock", Err: context.DeadlineExceeded}
}

func fatal(code string, status int) error {
	return &adapter.ProviderError{Class: adapter.FailureFatal, Code: code, StatusCode: status, Provider: "mock", Err: io.ErrUnexpectedEOF}
}

type MockCredentials struct {
	Err error
}

func (c *MockCredentials) GetDecryptedCredential(ctx context.Context, userID string) (adapter.Credential, error) {
	if c.Err != nil {
		return adapter.Credential{}, c.Err
	}
	return adapter.Credential{Provider: "mock", Model: "mock-1", APIKey: "sk-test-" + userID}, nil
}

// recordingSleeper captures requested delays without waiting.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) Total() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var t time.Duration
	for _, d := range s.delays {
		t += d
	}
	return t
}

// ---- Facade collaborators ----

type MockScheduler struct {
	mu  sync.Mutex
	IDs []string
}

func (s *MockScheduler) Dispatch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.IDs = append(s.IDs, id)
}

type MockLimiter struct {
	mu    sync.Mutex
	Deny  bool
	Err   error
	calls int
}

func (l *MockLimiter) Allow(ctx context.Context, userID, action string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return !l.Deny, l.Err
}

func (l *MockLimiter) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

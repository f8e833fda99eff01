package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/model"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/ports/repository"
)

var _ repository.InterviewRepository = (*interviewRepo)(nil)

type interviewRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewInterviewRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *interviewRepo {
	return &interviewRepo{pool: pool, tm: tm}
}

func (r *interviewRepo) LoadSessionContext(ctx context.Context, sessionID string) (*model.InterviewSession, error) {
	const q = `
SELECT id, user_id, job_posting_id, status, current_question_number, created_at
FROM interview_sessions
WHERE id = $1;`
	if !validID(sessionID) {
		return nil, domain.ErrNotFound
	}
	row, err := pickRow(ctx, r.pool, nil, q, sessionID)
	if err != nil {
		return nil, err
	}
	var s model.InterviewSession
	if err := row.Scan(&s.ID, &s.UserID, &s.JobPostingID, &s.Status, &s.CurrentQuestionNumber, &s.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *interviewRepo) LoadJobPosting(ctx context.Context, id string) (*model.JobPosting, error) {
	const q = `
SELECT id, user_id, title, company, description, experience_level, tech_stack, language
FROM job_postings
WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, nil, q, id)
	if err != nil {
		return nil, err
	}
	var jp model.JobPosting
	if err := row.Scan(&jp.ID, &jp.UserID, &jp.Title, &jp.Company, &jp.Description,
		&jp.ExperienceLevel, &jp.TechStack, &jp.Language); err != nil {
		return nil, notFound(err)
	}
	return &jp, nil
}

func (r *interviewRepo) LoadResume(ctx context.Context, userID string) (*model.Resume, error) {
	row, err := pickRow(ctx, r.pool, nil, `SELECT id, user_id, content FROM resumes WHERE user_id = $1;`, userID)
	if err != nil {
		return nil, err
	}
	var res model.Resume
	if err := row.Scan(&res.ID, &res.UserID, &res.Content); err != nil {
		return nil, notFound(err)
	}
	return &res, nil
}

func (r *interviewRepo) LoadTranscript(ctx context.Context, sessionID string) ([]model.SessionMessage, error) {
	const q = `
SELECT id, session_id, message_type, content, COALESCE(question_type, ''), created_at
FROM session_messages
WHERE session_id = $1
ORDER BY created_at, id;`
	rows, err := queryRows(ctx, r.pool, nil, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []model.SessionMessage
	for rows.Next() {
		var (
			m         model.SessionMessage
			mtype, qt string
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &mtype, &m.Content, &qt, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Type = model.MessageType(mtype)
		m.QuestionType = model.QuestionCategory(qt)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// SaveQuestion appends the question and advances the session counter atomically.
func (r *interviewRepo) SaveQuestion(ctx context.Context, sessionID, text string, category model.QuestionCategory) error {
	return r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		const bump = `
UPDATE interview_sessions
SET current_question_number = current_question_number + 1, updated_at = now()
WHERE id = $1;`
		tag, err := execSQL(ctx, r.pool, tx, bump, sessionID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}

		const ins = `
INSERT INTO session_messages (id, session_id, message_type, content, question_type)
VALUES ($1, $2, 'question', $3, $4);`
		_, err = execSQL(ctx, r.pool, tx, ins, uuid.NewString(), sessionID, text, string(category))
		return err
	})
}

func (r *interviewRepo) SaveFeedback(ctx context.Context, sessionID string, s model.FeedbackScores, n model.FeedbackNarrative) error {
	const q = `
INSERT INTO interview_feedback (
    id, session_id,
    technical_accuracy_score, communication_clarity_score, problem_solving_score, relevance_score, overall_score,
    technical_feedback, communication_feedback, problem_solving_feedback, relevance_feedback, overall_comments,
    knowledge_gaps, learning_recommendations)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14);`

	_, err := execSQL(ctx, r.pool, nil, q,
		uuid.NewString(), sessionID,
		s.TechnicalAccuracy, s.CommunicationClarity, s.ProblemSolving, s.Relevance, s.Overall,
		n.TechnicalFeedback, n.CommunicationFeedback, n.ProblemSolvingFeedback, n.RelevanceFeedback, n.OverallComments,
		nonNil(n.KnowledgeGaps), nonNil(n.LearningRecommendations))
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

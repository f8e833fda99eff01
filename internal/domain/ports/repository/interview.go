package repository

import (
	"context"

	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/model"
)

// InterviewRepository is the persistence collaborator owning sessions, postings,
// résumés, transcripts and feedback.
type InterviewRepository interface {
	LoadSessionContext(ctx context.Context, sessionID string) (*model.InterviewSession, error)
	LoadJobPosting(ctx context.Context, id string) (*model.JobPosting, error)
	LoadResume(ctx context.Context, userID string) (*model.Resume, error)
	// LoadTranscript returns session messages ordered by creation time.
	LoadTranscript(ctx context.Context, sessionID string) ([]model.SessionMessage, error)
	SaveQuestion(ctx context.Context, sessionID, text string, category model.QuestionCategory) error
	SaveFeedback(ctx context.Context, sessionID string, scores model.FeedbackScores, narrative model.FeedbackNarrative) error
}

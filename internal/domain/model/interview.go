package model

import (
	"math"
	"time"
)

type QuestionCategory string

const (
	QuestionCategoryTechnical   QuestionCategory = "technical"
	QuestionCategoryBehavioral  QuestionCategory = "behavioral"
	QuestionCategorySituational QuestionCategory = "situational"
)

var questionRotation = [...]QuestionCategory{
	QuestionCategoryTechnical,
	QuestionCategoryBehavioral,
	QuestionCategorySituational,
}

// CategoryFor picks the category of the next question given how many were already asked.
func CategoryFor(questionCount int) QuestionCategory {
	if questionCount < 0 {
		questionCount = 0
	}
	return questionRotation[questionCount%len(questionRotation)]
}

type MessageType string

const (
	MessageTypeQuestion MessageType = "question"
	MessageTypeAnswer   MessageType = "answer"
)

type JobPosting struct {
	ID              string
	UserID          string
	Title           string
	Company         string
	Description     string
	ExperienceLevel string
	TechStack       []string
	Language        string
}

type Resume struct {
	ID      string
	UserID  string
	Content string
}

type InterviewSession struct {
	ID                    string
	UserID                string
	JobPostingID          string
	Status                string
	CurrentQuestionNumber int
	CreatedAt             time.Time
}

type SessionMessage struct {
	ID           string
	SessionID    string
	Type         MessageType
	Content      string
	QuestionType QuestionCategory
	CreatedAt    time.Time
}

// QAPair is one asked question and the candidate's answer, if any.
type QAPair struct {
	Question string
	Category QuestionCategory
	Answer   string
}

func (p QAPair) Answered() bool { return p.Answer != "" }

// PairTranscript folds messages ordered by creation into question/answer pairs.
// An answer attaches to the most recent question; orphan answers are dropped.
func PairTranscript(msgs []SessionMessage) []QAPair {
	var pairs []QAPair
	for _, m := range msgs {
		switch m.Type {
		case MessageTypeQuestion:
			pairs = append(pairs, QAPair{Question: m.Content, Category: m.QuestionType})
		case MessageTypeAnswer:
			if n := len(pairs); n > 0 && pairs[n-1].Answer == "" {
				pairs[n-1].Answer = m.Content
			}
		}
	}
	return pairs
}

// QuestionResult is the payload of a completed question_generation operation.
type QuestionResult struct {
	Question       string           `json:"question"`
	Category       QuestionCategory `json:"category"`
	QuestionNumber int              `json:"question_number"`
}

// FeedbackScores holds the four 0-100 dimension scores.
type FeedbackScores struct {
	TechnicalAccuracy    int `json:"technical_accuracy_score"`
	CommunicationClarity int `json:"communication_clarity_score"`
	ProblemSolving       int `json:"problem_solving_score"`
	Relevance            int `json:"relevance_score"`
	Overall              int `json:"overall_score"`
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Normalize clamps every dimension into range and recomputes Overall as the rounded mean.
func (s *FeedbackScores) Normalize() {
	s.TechnicalAccuracy = clampScore(s.TechnicalAccuracy)
	s.CommunicationClarity = clampScore(s.CommunicationClarity)
	s.ProblemSolving = clampScore(s.ProblemSolving)
	s.Relevance = clampScore(s.Relevance)
	sum := s.TechnicalAccuracy + s.CommunicationClarity + s.ProblemSolving + s.Relevance
	s.Overall = int(math.Round(float64(sum) / 4))
}

type FeedbackNarrative struct {
	TechnicalFeedback       string   `json:"technical_feedback"`
	CommunicationFeedback   string   `json:"communication_feedback"`
	ProblemSolvingFeedback  string   `json:"problem_solving_feedback"`
	RelevanceFeedback       string   `json:"relevance_feedback"`
	OverallComments         string   `json:"overall_comments"`
	KnowledgeGaps           []string `json:"knowledge_gaps"`
	LearningRecommendations []string `json:"learning_recommendations"`
}

// FeedbackResult is the payload of a completed feedback_analysis operation.
type FeedbackResult struct {
	FeedbackScores
	FeedbackNarrative
}

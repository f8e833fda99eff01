package usecase

import (
	"fmt"
	"strings"

	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/model"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/ports/adapter"
)

const (
	questionTemperature = 0.7
	questionMaxTokens   = 200
	feedbackTemperature = 0.3
	feedbackMaxTokens   = 1500
)

var categoryInstructions = map[model.QuestionCategory]string{
	model.QuestionCategoryTechnical: "Ask a technical question that probes a concrete skill or piece of knowledge the role needs. " +
		"Tie it to the candidate's background where the résumé allows.",
	model.QuestionCategoryBehavioral: "Ask a behavioral question that invites a STAR-style answer (situation, task, action, result) " +
		"about past work relevant to the role.",
	model.QuestionCategorySituational: "Ask a situational question built around a realistic hypothetical from this role, " +
		"and ask how the candidate would handle it.",
}

func languageLine(lang string) string {
	if strings.EqualFold(lang, "ua") {
		return "Write in Ukrainian."
	}
	return "Write in English."
}

func writeJobContext(b *strings.Builder, job *model.JobPosting, resume *model.Resume) {
	b.WriteString("Role: ")
	b.WriteString(job.Title)
	if job.Company != "" {
		b.WriteString(" at ")
		b.WriteString(job.Company)
	}
	b.WriteString("\n")
	if job.ExperienceLevel != "" {
		fmt.Fprintf(b, "Seniority: %s\n", job.ExperienceLevel)
	}
	if len(job.TechStack) > 0 {
		fmt.Fprintf(b, "Stack: %s\n", strings.Join(job.TechStack, ", "))
	}
	if job.Description != "" {
		fmt.Fprintf(b, "\nJob description:\n%s\n", job.Description)
	}
	fmt.Fprintf(b, "\nCandidate résumé:\n%s\n", resume.Content)
}

func buildQuestionMessages(job *model.JobPosting, resume *model.Resume, history []model.QAPair, category model.QuestionCategory) []adapter.Message {
	sys := "You are an experienced interviewer running a mock interview. " +
		"Reply with exactly one open-ended interview question and nothing else. " + languageLine(job.Language)

	var b strings.Builder
	writeJobContext(&b, job, resume)
	if len(history) > 0 {
		b.WriteString("\nAlready asked (do not repeat):\n")
		for i, p := range history {
			fmt.Fprintf(&b, "%d. %s\n", i+1, p.Question)
			if p.Answered() {
				fmt.Fprintf(&b, "   Candidate answered: %s\n", p.Answer)
			}
		}
	}
	fmt.Fprintf(&b, "\nTask: %s\n", categoryInstructions[category])

	return []adapter.Message{
		{Role: "system", Content: sys},
		{Role: "user", Content: b.String()},
	}
}

func buildFeedbackMessages(job *model.JobPosting, resume *model.Resume, transcript []model.QAPair) []adapter.Message {
	sys := "You are a senior interviewer evaluating a mock interview. " +
		"Respond with a single JSON object and no other text. " + languageLine(job.Language)

	var b strings.Builder
	writeJobContext(&b, job, resume)
	b.WriteString("\nTranscript:\n")
	for i, p := range transcript {
		fmt.Fprintf(&b, "Q%d (%s): %s\n", i+1, p.Category, p.Question)
		answer := p.Answer
		if answer == "" {
			answer = "(no answer)"
		}
		fmt.Fprintf(&b, "A%d: %s\n", i+1, answer)
	}
	b.WriteString(`
Score each dimension from 0 to 100 and return:
{
  "technical_accuracy_score": int,
  "communication_clarity_score": int,
  "problem_solving_score": int,
  "relevance_score": int,
  "technical_feedback": string,
  "communication_feedback": string,
  "problem_solving_feedback": string,
  "relevance_feedback": string,
  "overall_comments": string,
  "knowledge_gaps": [string],
  "learning_recommendations": [string]
}
`)

	return []adapter.Message{
		{Role: "system", Content: sys},
		{Role: "user", Content: b.String()},
	}
}

package usecase

import (
	"strings"

	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/model"
)

type messageTemplate struct {
	message   string
	action    string
	retriable bool
	severity  string
}

// {op} expands to the operation phrase, {Op} to its capitalized subject form.
var errorCatalogue = map[string]messageTemplate{
	model.CodeResumeRequired: {
		"Unable to {op}. A résumé is required.",
		"Add your résumé in your profile settings, then try again.", false, "error",
	},
	model.CodeJobPostingRequired: {
		"Unable to {op}. This session is missing its job posting.",
		"Create or select a job posting for this session, then try again.", false, "error",
	},
	model.CodeNoAnswers: {
		"Unable to {op}. There are no answers to analyze.",
		"Complete at least one interview question, then try again.", false, "error",
	},
	model.CodeSessionNotFound: {
		"Unable to {op}. The session could not be found.",
		"Refresh the page. If the problem persists, return to your sessions list and try again.", false, "error",
	},
	model.CodeAPIKeyNotConfigured: {
		"Unable to {op}. No AI provider API key is configured.",
		"Add your API key in your profile settings, then try again.", false, "error",
	},
	model.CodeAPIKeyDecryptionFailed: {
		"Unable to {op}. Your API key needs to be reconfigured.",
		"Re-enter your API key in your profile settings.", false, "error",
	},
	model.CodeInvalidAPIKey: {
		"Unable to {op}. Your API key appears to be invalid.",
		"Check the API key configured in your profile settings.", false, "error",
	},
	model.CodeQuotaExceeded: {
		"Unable to {op}. Your AI provider account has exceeded its quota.",
		"Check your provider billing and usage, then try again.", false, "error",
	},
	model.CodeRateLimit: {
		"{Op} is taking longer than expected due to high demand.",
		"Wait a moment and try again.", true, "warning",
	},
	model.CodeConnectionError: {
		"Unable to {op} because the AI service could not be reached.",
		"Check your internet connection and try again.", true, "warning",
	},
	model.CodeServerError: {
		"The AI service is temporarily unavailable.",
		"Try again in a few moments.", true, "warning",
	},
	model.CodeInvalidRequest: {
		"Unable to {op}. The AI service rejected the request.",
		"Try again. If the problem persists, contact support.", false, "error",
	},
	model.CodeInvalidResponse: {
		"The AI service returned an unexpected response.",
		"Try again. If the problem persists, contact support.", true, "error",
	},
	model.CodeTimeout: {
		"{Op} took too long and was stopped.",
		"Try again in a few moments.", true, "warning",
	},
	model.CodeProcessingAbandoned: {
		"{Op} was interrupted before it could finish.",
		"Try again.", true, "warning",
	},
	model.CodeFeedbackAlreadyExists: {
		"Feedback has already been generated for this session.",
		"Refresh the page to view the existing feedback.", false, "info",
	},
	model.CodeDBWriteFailed: {
		"We couldn't save the result of this AI operation.",
		"Try again. If the problem persists, contact support.", true, "error",
	},
}

var defaultTemplate = messageTemplate{
	"An unexpected error occurred while contacting the AI service.",
	"Try again. If the problem persists, contact support.", true, "error",
}

func operationPhrases(opType model.OperationType) (phrase, subject string) {
	switch opType {
	case model.OperationTypeQuestionGeneration:
		return "generate your interview question", "Question generation"
	case model.OperationTypeFeedbackAnalysis:
		return "analyze your answers", "Feedback analysis"
	}
	return "complete your request", "This operation"
}

// UserMessage renders the catalogue entry for code. Unknown codes get the generic entry.
func UserMessage(code string, opType model.OperationType) (message, action string, retriable bool) {
	t, ok := errorCatalogue[code]
	if !ok {
		t = defaultTemplate
	}
	phrase, subject := operationPhrases(opType)
	r := strings.NewReplacer("{op}", phrase, "{Op}", subject)
	return r.Replace(t.message), r.Replace(t.action), t.retriable
}

// NewOperationError builds the stored, user-facing error. The cause is never copied.
func NewOperationError(ee *model.ExecError, opType model.OperationType) *model.OperationError {
	code := ee.Code
	if code == "" {
		code = model.CodeUnexpected
	}
	t, ok := errorCatalogue[code]
	if !ok {
		t = defaultTemplate
	}
	msg, action, retriable := UserMessage(code, opType)
	return &model.OperationError{
		Kind:      ee.Kind,
		Code:      code,
		Message:   msg,
		Action:    action,
		Retriable: retriable,
		Severity:  t.severity,
	}
}

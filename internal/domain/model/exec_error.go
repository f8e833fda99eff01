package model

import (
	"errors"
	"fmt"
)

// ErrorKind is the failure taxonomy of an operation run.
type ErrorKind string

const (
	ErrorKindContext           ErrorKind = "context"
	ErrorKindProviderRetryable ErrorKind = "provider_retryable"
	ErrorKindProviderFatal     ErrorKind = "provider_fatal"
	ErrorKindTimeout           ErrorKind = "timeout"
	ErrorKindPersistence       ErrorKind = "persistence"
)

// Error codes keyed into the user-facing message catalogue.
const (
	CodeSessionNotFound        = "SESSION_NOT_FOUND"
	CodeResumeRequired         = "RESUME_REQUIRED"
	CodeJobPostingRequired     = "JOB_POSTING_REQUIRED"
	CodeNoAnswers              = "NO_ANSWERS"
	CodeAPIKeyNotConfigured    = "API_KEY_NOT_CONFIGURED"
	CodeAPIKeyDecryptionFailed = "API_KEY_DECRYPTION_FAILED"
	CodeInvalidAPIKey          = "INVALID_API_KEY"
	CodeQuotaExceeded          = "QUOTA_EXCEEDED"
	CodeRateLimit              = "RATE_LIMIT"
	CodeConnectionError        = "CONNECTION_ERROR"
	CodeServerError            = "SERVER_ERROR"
	CodeInvalidRequest         = "INVALID_REQUEST"
	CodeInvalidResponse        = "INVALID_RESPONSE"
	CodeTimeout                = "TIMEOUT"
	CodeProcessingAbandoned    = "PROCESSING_ABANDONED"
	CodeFeedbackAlreadyExists  = "FEEDBACK_ALREADY_EXISTS"
	CodeDBWriteFailed          = "DB_WRITE_FAILED"
	CodeUnexpected             = "UNEXPECTED_ERROR"
)

// ExecError carries the taxonomy kind and catalogue code of a failed step.
type ExecError struct {
	Kind  ErrorKind
	Code  string
	Cause error
}

func NewExecError(kind ErrorKind, code string, cause error) *ExecError {
	return &ExecError{Kind: kind, Code: code, Cause: cause}
}

func (e *ExecError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Code)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Code, e.Cause)
}

func (e *ExecError) Unwrap() error { return e.Cause }

func (e *ExecError) Retryable() bool { return e.Kind == ErrorKindProviderRetryable }

// AsExecError unwraps err into an *ExecError, classifying unknown errors as fatal.
func AsExecError(err error) *ExecError {
	if err == nil {
		return nil
	}
	var ee *ExecError
	if errors.As(err, &ee) {
		return ee
	}
	return NewExecError(ErrorKindProviderFatal, CodeUnexpected, err)
}

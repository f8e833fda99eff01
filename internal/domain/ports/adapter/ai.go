package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/model"
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Usage for a single provider call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// PromptContext is the assembled provider input for one operation.
type PromptContext struct {
	OperationType  model.OperationType
	SessionID      string
	Messages       []Message
	Temperature    float64
	MaxTokens      int
	Category       model.QuestionCategory
	QuestionNumber int
	// ExpectJSON asks the provider for a JSON object reply.
	ExpectJSON bool
}

// Credential is a decrypted per-user provider secret. It is handed in per call
// and must never be logged; String redacts it.
type Credential struct {
	Provider string
	Model    string
	APIKey   string
}

func (c Credential) String() string {
	return fmt.Sprintf("Credential{Provider:%s Model:%s APIKey:[redacted]}", c.Provider, c.Model)
}

func (c Credential) GoString() string { return c.String() }

// ProviderResult is a successful provider reply.
type ProviderResult struct {
	Text     string
	Provider string
	Model    string
	Usage    Usage
}

type FailureClass string

const (
	FailureRetryable FailureClass = "retryable"
	FailureFatal     FailureClass = "fatal"
)

// ProviderError is a classified provider failure.
type ProviderError struct {
	Class      FailureClass
	Code       string
	StatusCode int
	Provider   string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s (%d): %v", e.Provider, e.Code, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Code, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Retryable() bool { return e.Class == FailureRetryable }

// AsProviderError reports whether err carries a classified provider failure.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	ok := errors.As(err, &pe)
	return pe, ok
}

// ProviderGateway performs exactly one outbound model call per Invoke.
type ProviderGateway interface {
	Name() string
	Invoke(ctx context.Context, pc PromptContext, cred Credential) (ProviderResult, error)
}

// CredentialProvider hands out the caller's decrypted credential.
type CredentialProvider interface {
	GetDecryptedCredential(ctx context.Context, userID string) (Credential, error)
}

package model

import (
	"encoding/json"
	"time"

	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain"

	"github.com/google/uuid"
)

type OperationType string

const (
	OperationTypeQuestionGeneration OperationType = "question_generation"
	OperationTypeFeedbackAnalysis   OperationType = "feedback_analysis"
)

func (t OperationType) Valid() bool {
	switch t {
	case OperationTypeQuestionGeneration, OperationTypeFeedbackAnalysis:
		return true
	}
	return false
}

type OperationStatus string

const (
	OperationStatusPending    OperationStatus = "pending"
	OperationStatusProcessing OperationStatus = "processing"
	OperationStatusCompleted  OperationStatus = "completed"
	OperationStatusFailed     OperationStatus = "failed"
)

func (s OperationStatus) IsTerminal() bool {
	return s == OperationStatusCompleted || s == OperationStatusFailed
}

// IsActive reports whether the status occupies the single in-flight slot of a target+type pair.
func (s OperationStatus) IsActive() bool {
	return s == OperationStatusPending || s == OperationStatusProcessing
}

// CanTransitionTo encodes pending -> processing -> {completed, failed}.
func (s OperationStatus) CanTransitionTo(next OperationStatus) bool {
	switch s {
	case OperationStatusPending:
		return next == OperationStatusProcessing
	case OperationStatusProcessing:
		return next.IsTerminal()
	}
	return false
}

// OperationError is the user-facing failure description stored on a failed operation.
type OperationError struct {
	Kind      ErrorKind `json:"kind"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Action    string    `json:"action,omitempty"`
	Retriable bool      `json:"retriable"`
	Severity  string    `json:"severity,omitempty"`
}

// Operation is one orchestrated AI-backed unit of work.
type Operation struct {
	ID                string
	Type              OperationType
	Status            OperationStatus
	TargetRef         string
	UserID            string
	Result            json.RawMessage
	Error             *OperationError
	ParentOperationID *string
	RetryCount        int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func NewOperation(opType OperationType, targetRef, userID string) (*Operation, error) {
	if !opType.Valid() || targetRef == "" || userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now().UTC()
	return &Operation{
		ID:        uuid.NewString(),
		Type:      opType,
		Status:    OperationStatusPending,
		TargetRef: targetRef,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// NewRetry builds the child operation of a failed one. The receiver is never modified.
func (o *Operation) NewRetry() (*Operation, error) {
	if o.Status != OperationStatusFailed {
		return nil, domain.ErrInvalidState
	}
	child, err := NewOperation(o.Type, o.TargetRef, o.UserID)
	if err != nil {
		return nil, err
	}
	parent := o.ID
	child.ParentOperationID = &parent
	child.RetryCount = o.RetryCount + 1
	return child, nil
}

func (o *Operation) transition(next OperationStatus, now time.Time) error {
	if !o.Status.CanTransitionTo(next) {
		return domain.ErrInvalidState
	}
	o.Status = next
	o.UpdatedAt = now
	return nil
}

func (o *Operation) MarkProcessing(now time.Time) error {
	return o.transition(OperationStatusProcessing, now)
}

func (o *Operation) Complete(result json.RawMessage, now time.Time) error {
	if len(result) == 0 {
		return domain.ErrInvalidArgument
	}
	if err := o.transition(OperationStatusCompleted, now); err != nil {
		return err
	}
	o.Result = result
	o.Error = nil
	return nil
}

func (o *Operation) Fail(e *OperationError, now time.Time) error {
	if e == nil {
		return domain.ErrInvalidArgument
	}
	if err := o.transition(OperationStatusFailed, now); err != nil {
		return err
	}
	o.Error = e
	o.Result = nil
	return nil
}

// Consistent checks the result/error exclusivity for the current status.
func (o *Operation) Consistent() bool {
	hasResult, hasErr := len(o.Result) > 0, o.Error != nil
	if o.Status.IsTerminal() {
		return hasResult != hasErr
	}
	return !hasResult && !hasErr
}

func (o *Operation) IsOwnedBy(userID string) bool { return o != nil && o.UserID == userID }

package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/model"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/ports/repository"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/infra/metrics"
)

// Compile-time check
var _ OrchestratorFacade = (*orchestrator)(nil)

// OrchestratorFacade is the polling-facing entry point for AI operations.
// Get and Lineage never trigger work.
type OrchestratorFacade interface {
	Start(ctx context.Context, userID, targetRef string, opType model.OperationType) (*model.Operation, error)
	Retry(ctx context.Context, userID, operationID string) (*model.Operation, error)
	Get(ctx context.Context, userID, operationID string) (*model.Operation, error)
	Lineage(ctx context.Context, userID, operationID string) ([]*model.Operation, error)
}

// Scheduler hands a freshly created operation to the executor pool.
// Dispatch must not block; dropped work is recovered by the sweep.
type Scheduler interface {
	Dispatch(operationID string)
}

// RateLimiter gates start and retry per user.
type RateLimiter interface {
	Allow(ctx context.Context, userID, action string) (bool, error)
}

type orchestrator struct {
	ops       repository.OperationRepository
	sessions  repository.InterviewRepository
	scheduler Scheduler
	limiter   RateLimiter
	log       *zerolog.Logger
}

// NewOrchestrator wires the facade. scheduler and limiter may be nil.
func NewOrchestrator(
	ops repository.OperationRepository,
	sessions repository.InterviewRepository,
	scheduler Scheduler,
	limiter RateLimiter,
	logger *zerolog.Logger,
) *orchestrator {
	l := logger.With().Str("component", "orchestrator").Logger()
	return &orchestrator{ops: ops, sessions: sessions, scheduler: scheduler, limiter: limiter, log: &l}
}

func (o *orchestrator) allow(ctx context.Context, userID, action string) error {
	if o.limiter == nil {
		return nil
	}
	ok, err := o.limiter.Allow(ctx, userID, action)
	if err != nil {
		// fail open: the limiter is advisory
		o.log.Warn().Err(err).Str("action", action).Msg("rate limiter unavailable")
		return nil
	}
	if !ok {
		metrics.IncRateLimited(action)
		return domain.ErrRateLimited
	}
	return nil
}

func (o *orchestrator) Start(ctx context.Context, userID, targetRef string, opType model.OperationType) (*model.Operation, error) {
	if userID == "" || targetRef == "" || !opType.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	session, err := o.sessions.LoadSessionContext(ctx, targetRef)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, domain.ErrForbidden
	}
	if active, err := o.findActive(ctx, targetRef, opType); active != nil || err != nil {
		return active, err
	}
	if err := o.allow(ctx, userID, "start"); err != nil {
		return nil, err
	}

	op, err := model.NewOperation(opType, targetRef, userID)
	if err != nil {
		return nil, err
	}
	created, err := o.createOrJoin(ctx, op)
	if err != nil || !created {
		return op, err
	}
	metrics.IncOperationStarted(string(opType), "start")
	o.dispatch(op)
	return op, nil
}

func (o *orchestrator) Retry(ctx context.Context, userID, operationID string) (*model.Operation, error) {
	parent, err := o.Get(ctx, userID, operationID)
	if err != nil {
		return nil, err
	}
	if parent.Status != model.OperationStatusFailed {
		return nil, domain.ErrInvalidState
	}
	if active, err := o.findActive(ctx, parent.TargetRef, parent.Type); active != nil || err != nil {
		return active, err
	}
	if err := o.allow(ctx, userID, "retry"); err != nil {
		return nil, err
	}
	child, err := parent.NewRetry()
	if err != nil {
		return nil, err
	}
	created, err := o.createOrJoin(ctx, child)
	if err != nil || !created {
		return child, err
	}
	metrics.IncOperationStarted(string(child.Type), "retry")
	o.dispatch(child)
	return child, nil
}

// findActive returns the in-flight operation for target+type, or nil when the slot is free.
func (o *orchestrator) findActive(ctx context.Context, targetRef string, opType model.OperationType) (*model.Operation, error) {
	active, err := o.ops.FindActive(ctx, repository.NoTX, targetRef, opType)
	switch {
	case err == nil:
		return active, nil
	case errors.Is(err, domain.ErrNotFound):
		return nil, nil
	}
	return nil, fmt.Errorf("find active operation: %w", err)
}

// createOrJoin inserts op unless its target+type already has an active operation,
// in which case *op is overwritten with that one and created is false.
func (o *orchestrator) createOrJoin(ctx context.Context, op *model.Operation) (created bool, err error) {
	for i := 0; i < 2; i++ {
		active, err := o.ops.FindActive(ctx, repository.NoTX, op.TargetRef, op.Type)
		switch {
		case err == nil:
			*op = *active
			return false, nil
		case !errors.Is(err, domain.ErrNotFound):
			return false, fmt.Errorf("find active operation: %w", err)
		}

		err = o.ops.Create(ctx, repository.NoTX, op)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return false, fmt.Errorf("create operation: %w", err)
		}
		// lost the insert race; the winner is now active
	}
	return false, domain.ErrAlreadyExists
}

func (o *orchestrator) dispatch(op *model.Operation) {
	if o.scheduler == nil {
		return
	}
	o.scheduler.Dispatch(op.ID)
}

func (o *orchestrator) Get(ctx context.Context, userID, operationID string) (*model.Operation, error) {
	if operationID == "" {
		return nil, domain.ErrInvalidArgument
	}
	op, err := o.ops.FindByID(ctx, repository.NoTX, operationID)
	if err != nil {
		return nil, err
	}
	if !op.IsOwnedBy(userID) {
		return nil, domain.ErrForbidden
	}
	return op, nil
}

func (o *orchestrator) Lineage(ctx context.Context, userID, operationID string) ([]*model.Operation, error) {
	if _, err := o.Get(ctx, userID, operationID); err != nil {
		return nil, err
	}
	return o.ops.ListLineage(ctx, operationID)
}

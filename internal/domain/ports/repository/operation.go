package repository

import (
	"context"
	"time"

	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/model"
)

// OperationRepository is the durable Operation Store.
type OperationRepository interface {
	// Create inserts a pending operation. A second active operation for the same
	// target+type yields domain.ErrAlreadyExists.
	Create(ctx context.Context, tx Tx, op *model.Operation) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Operation, error)
	// FindActive returns the pending or processing operation for target+type, or domain.ErrNotFound.
	FindActive(ctx context.Context, tx Tx, targetRef string, opType model.OperationType) (*model.Operation, error)
	// Claim moves id from pending to processing. domain.ErrClaimConflict when the row is not pending.
	Claim(ctx context.Context, id string) (*model.Operation, error)
	// ClaimNext picks the oldest unclaimed pending operation and claims it. domain.ErrNotFound when idle.
	ClaimNext(ctx context.Context) (*model.Operation, error)
	// Finalize writes the terminal state of a processing operation exactly once.
	Finalize(ctx context.Context, op *model.Operation) error
	ListStaleProcessing(ctx context.Context, olderThan time.Time, limit int) ([]*model.Operation, error)
	// ListLineage returns the retry chain ending at id, root first.
	ListLineage(ctx context.Context, id string) ([]*model.Operation, error)
}

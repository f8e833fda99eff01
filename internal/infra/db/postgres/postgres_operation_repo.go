package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/model"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/ports/repository"
)

var _ repository.OperationRepository = (*operationRepo)(nil)

type operationRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewOperationRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *operationRepo {
	return &operationRepo{pool: pool, tm: tm}
}

// Ids are uuid columns; anything else cannot exist and would otherwise surface as a cast error.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

const operationColumns = `id, type, status, target_ref, user_id, result, error, parent_operation_id, retry_count, created_at, updated_at`

func scanOperation(row pgx.Row) (*model.Operation, error) {
	var (
		op            model.Operation
		opType, state string
		result, errJS []byte
		parent        *string
	)
	if err := row.Scan(&op.ID, &opType, &state, &op.TargetRef, &op.UserID, &result, &errJS,
		&parent, &op.RetryCount, &op.CreatedAt, &op.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	op.Type = model.OperationType(opType)
	op.Status = model.OperationStatus(state)
	op.ParentOperationID = parent
	if len(result) > 0 {
		op.Result = json.RawMessage(result)
	}
	if len(errJS) > 0 {
		var oe model.OperationError
		if err := json.Unmarshal(errJS, &oe); err != nil {
			return nil, fmt.Errorf("decode operation error: %w", err)
		}
		op.Error = &oe
	}
	return &op, nil
}

func collectOperations(rows pgx.Rows) ([]*model.Operation, error) {
	defer rows.Close()
	var out []*model.Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

func (r *operationRepo) Create(ctx context.Context, tx repository.Tx, op *model.Operation) error {
	if op == nil || op.Status != model.OperationStatusPending || !op.Consistent() {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO operations (id, type, status, target_ref, user_id, parent_operation_id, retry_count, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);`

	_, err := execSQL(ctx, r.pool, tx, q,
		op.ID, string(op.Type), string(op.Status), op.TargetRef, op.UserID,
		op.ParentOperationID, op.RetryCount, op.CreatedAt, op.UpdatedAt)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

func (r *operationRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Operation, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+operationColumns+` FROM operations WHERE id = $1;`, id)
	if err != nil {
		return nil, err
	}
	return scanOperation(row)
}

func (r *operationRepo) FindActive(ctx context.Context, tx repository.Tx, targetRef string, opType model.OperationType) (*model.Operation, error) {
	const q = `
SELECT ` + operationColumns + `
FROM operations
WHERE target_ref = $1 AND type = $2 AND status IN ('pending', 'processing')
LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, targetRef, string(opType))
	if err != nil {
		return nil, err
	}
	return scanOperation(row)
}

// Claim is a compare-and-set on status; concurrent callers see exactly one winner.
func (r *operationRepo) Claim(ctx context.Context, id string) (*model.Operation, error) {
	const q = `
UPDATE operations
SET status = 'processing', updated_at = now()
WHERE id = $1 AND status = 'pending'
RETURNING ` + operationColumns + `;`

	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	row, err := pickRow(ctx, r.pool, nil, q, id)
	if err != nil {
		return nil, err
	}
	op, err := scanOperation(row)
	if errors.Is(err, domain.ErrNotFound) {
		if _, ferr := r.FindByID(ctx, nil, id); ferr != nil {
			return nil, ferr
		}
		return nil, domain.ErrClaimConflict
	}
	return op, err
}

func (r *operationRepo) ClaimNext(ctx context.Context) (*model.Operation, error) {
	var claimed *model.Operation

	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		const pick = `
SELECT id
FROM operations
WHERE status = 'pending'
ORDER BY created_at
LIMIT 1
FOR UPDATE SKIP LOCKED;`

		row, err := pickRow(ctx, r.pool, tx, pick)
		if err != nil {
			return err
		}
		var id string
		if err := row.Scan(&id); err != nil {
			return notFound(err)
		}

		const mark = `
UPDATE operations
SET status = 'processing', updated_at = now()
WHERE id = $1
RETURNING ` + operationColumns + `;`
		row, err = pickRow(ctx, r.pool, tx, mark, id)
		if err != nil {
			return err
		}
		claimed, err = scanOperation(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Finalize only succeeds from processing, so a terminal row is written exactly once.
func (r *operationRepo) Finalize(ctx context.Context, op *model.Operation) error {
	if op == nil || !op.Status.IsTerminal() || !op.Consistent() {
		return domain.ErrInvalidArgument
	}
	var result, errJS []byte
	if len(op.Result) > 0 {
		result = []byte(op.Result)
	}
	if op.Error != nil {
		b, err := json.Marshal(op.Error)
		if err != nil {
			return fmt.Errorf("encode operation error: %w", err)
		}
		errJS = b
	}
	if op.UpdatedAt.IsZero() {
		op.UpdatedAt = time.Now().UTC()
	}

	const q = `
UPDATE operations
SET status = $2, result = $3, error = $4, updated_at = $5
WHERE id = $1 AND status = 'processing';`

	tag, err := execSQL(ctx, r.pool, nil, q, op.ID, string(op.Status), result, errJS, op.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidState
	}
	return nil
}

func (r *operationRepo) ListStaleProcessing(ctx context.Context, olderThan time.Time, limit int) ([]*model.Operation, error) {
	const q = `
SELECT ` + operationColumns + `
FROM operations
WHERE status = 'processing' AND updated_at < $1
ORDER BY updated_at
LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, nil, q, olderThan, limit)
	if err != nil {
		return nil, err
	}
	return collectOperations(rows)
}

func (r *operationRepo) ListLineage(ctx context.Context, id string) ([]*model.Operation, error) {
	const q = `
WITH RECURSIVE lineage AS (
    SELECT o.*, 0 AS depth FROM operations o WHERE o.id = $1
    UNION ALL
    SELECT p.*, l.depth + 1 FROM operations p JOIN lineage l ON p.id = l.parent_operation_id
)
SELECT ` + operationColumns + `
FROM lineage
ORDER BY depth DESC;`
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	rows, err := queryRows(ctx, r.pool, nil, q, id)
	if err != nil {
		return nil, err
	}
	ops, err := collectOperations(rows)
	if err != nil {
		return nil, err
	}
	if len(ops) == 0 {
		return nil, domain.ErrNotFound
	}
	return ops, nil
}

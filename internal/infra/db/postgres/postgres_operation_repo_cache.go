package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/model"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/ports/repository"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/infra/metrics"
	red "github.com/nickunderhill/ai-interviewer-sub002/internal/infra/redis"
)

var _ repository.OperationRepository = (*operationRepoCacheDecorator)(nil)

// operationRepoCacheDecorator serves polling reads of terminal operations from
// Redis. Terminal rows never change, so entries are only ever written, never invalidated.
type operationRepoCacheDecorator struct {
	repository.OperationRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewOperationRepoCacheDecorator(inner repository.OperationRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.OperationRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	l := logger.With().Str("component", "operation_cache").Logger()
	return &operationRepoCacheDecorator{
		OperationRepository: inner,
		cache:               cache,
		ttl:                 ttl,
		log:                 &l,
	}
}

func operationKey(id string) string { return fmt.Sprintf("operation:%s", id) }

func (d *operationRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Operation, error) {
	// transactional reads must see the row, not a cached copy
	if tx != nil {
		return d.OperationRepository.FindByID(ctx, tx, id)
	}

	key := operationKey(id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var op model.Operation
		if json.Unmarshal([]byte(val), &op) == nil {
			metrics.IncCacheRequest("operation", "hit")
			return &op, nil
		}
	} else if !red.IsMiss(err) {
		d.log.Warn().Err(err).Str("operation_id", id).Msg("operation cache read failed")
	}

	metrics.IncCacheRequest("operation", "miss")
	op, err := d.OperationRepository.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if op.Status.IsTerminal() {
		d.store(ctx, op)
	}
	return op, nil
}

func (d *operationRepoCacheDecorator) Finalize(ctx context.Context, op *model.Operation) error {
	if err := d.OperationRepository.Finalize(ctx, op); err != nil {
		return err
	}
	d.store(ctx, op)
	return nil
}

func (d *operationRepoCacheDecorator) store(ctx context.Context, op *model.Operation) {
	b, err := json.Marshal(op)
	if err != nil {
		return
	}
	if err := d.cache.Set(ctx, operationKey(op.ID), b, d.ttl); err != nil {
		d.log.Warn().Err(err).Str("operation_id", op.ID).Msg("operation cache write failed")
	}
}

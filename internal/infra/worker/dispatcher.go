package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/model"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/infra/metrics"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/usecase"
)

var _ usecase.Scheduler = (*Dispatcher)(nil)

// OperationRunner is satisfied by *usecase.Executor.
type OperationRunner interface {
	Run(ctx context.Context, id string) error
	RunClaimed(ctx context.Context, op *model.Operation) error
}

type PendingClaimer interface {
	ClaimNext(ctx context.Context) (*model.Operation, error)
}

// Dispatcher feeds the pool from direct handoff and from a periodic sweep of
// pending rows nobody picked up.
type Dispatcher struct {
	pool     *Pool
	runner   OperationRunner
	claimer  PendingClaimer
	interval time.Duration
	log      *zerolog.Logger
}

func NewDispatcher(pool *Pool, runner OperationRunner, claimer PendingClaimer, interval time.Duration, logger *zerolog.Logger) *Dispatcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	l := logger.With().Str("component", "dispatcher").Logger()
	return &Dispatcher{pool: pool, runner: runner, claimer: claimer, interval: interval, log: &l}
}

func (d *Dispatcher) Dispatch(operationID string) {
	err := d.pool.Submit(func(ctx context.Context) error {
		return d.runner.Run(ctx, operationID)
	})
	if err != nil {
		d.log.Warn().Err(err).Str("operation_id", operationID).Msg("handoff dropped, sweep will pick it up")
	}
}

// Run sweeps immediately and then every interval until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.log.Info().Dur("interval", d.interval).Msg("starting sweep")
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.Sweep()
	for {
		select {
		case <-ctx.Done():
			d.log.Info().Msg("stopping sweep")
			return nil
		case <-ticker.C:
			d.Sweep()
		}
	}
}

// Sweep queues up to one claim per worker. Claims happen on the worker so a
// full queue never strands a claimed row.
func (d *Dispatcher) Sweep() {
	for i := 0; i < d.pool.Workers(); i++ {
		if err := d.pool.Submit(d.claimAndRun); err != nil {
			return
		}
	}
}

func (d *Dispatcher) claimAndRun(ctx context.Context) error {
	op, err := d.claimer.ClaimNext(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("claim next pending operation: %w", err)
	}
	metrics.IncSweepClaim()
	d.log.Info().Str("operation_id", op.ID).Msg("sweep claimed pending operation")
	return d.runner.RunClaimed(ctx, op)
}

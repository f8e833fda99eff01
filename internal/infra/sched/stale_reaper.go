package sched

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/model"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/ports/repository"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/infra/metrics"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/usecase"
)

const reapBatch = 100

// StaleReaper fails operations stuck in processing, e.g. after a crash mid-run.
// staleAfter must exceed the executor run ceiling so live runs are never reaped.
type StaleReaper struct {
	ops        repository.OperationRepository
	interval   time.Duration
	staleAfter time.Duration
	log        *zerolog.Logger
}

func NewStaleReaper(ops repository.OperationRepository, interval, staleAfter time.Duration, logger *zerolog.Logger) *StaleReaper {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 5 * time.Minute
	}
	l := logger.With().Str("component", "StaleReaper").Logger()
	return &StaleReaper{ops: ops, interval: interval, staleAfter: staleAfter, log: &l}
}

func (w *StaleReaper) Run(ctx context.Context) error {
	w.log.Info().Dur("stale_after", w.staleAfter).Msg("Starting stale reaper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping stale reaper")
			return nil
		case <-ticker.C:
			n, err := w.Reap(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("stale reaper error")
			}
			if n > 0 {
				w.log.Warn().Int("count", n).Msg("abandoned operations failed")
			}
		}
	}
}

// Reap finalizes one batch of stale rows and returns how many it failed.
func (w *StaleReaper) Reap(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	stale, err := w.ops.ListStaleProcessing(ctx, now.Add(-w.staleAfter), reapBatch)
	if err != nil {
		return 0, fmt.Errorf("list stale operations: %w", err)
	}
	reaped := 0
	for _, op := range stale {
		lastUpdate := op.UpdatedAt
		ee := model.NewExecError(model.ErrorKindTimeout, model.CodeProcessingAbandoned, nil)
		if err := op.Fail(usecase.NewOperationError(ee, op.Type), now); err != nil {
			w.log.Error().Err(err).Str("operation_id", op.ID).Msg("cannot fail stale operation")
			continue
		}
		err := w.ops.Finalize(ctx, op)
		if errors.Is(err, domain.ErrInvalidState) {
			// finished between list and finalize
			continue
		}
		if err != nil {
			w.log.Error().Err(err).Str("operation_id", op.ID).Msg("finalize stale operation")
			continue
		}
		reaped++
		w.log.Warn().Str("operation_id", op.ID).Str("type", string(op.Type)).Time("last_update", lastUpdate).Msg("reaped abandoned operation")
	}
	metrics.AddStaleReaped(reaped)
	return reaped, nil
}

package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/model"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/ports/adapter"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/ports/repository"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/infra/logging"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/infra/metrics"
)

// finalizeTimeout bounds the terminal write, which runs outside the run ceiling.
const finalizeTimeout = 10 * time.Second

// Sleeper waits for d or until ctx is done, returning ctx.Err() in the latter case.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the production Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type ExecutorConfig struct {
	MaxRetries  int
	BaseBackoff time.Duration
	Jitter      float64
	RunCeiling  time.Duration
}

func (c *ExecutorConfig) applyDefaults() {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = time.Second
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	if c.RunCeiling <= 0 {
		c.RunCeiling = 2 * time.Minute
	}
}

type ExecutorOption func(*Executor)

func WithSleeper(s Sleeper) ExecutorOption {
	return func(e *Executor) { e.sleep = s }
}

// WithJitterSource replaces the uniform [0,1) source used for backoff jitter.
func WithJitterSource(f func() float64) ExecutorOption {
	return func(e *Executor) { e.rand = f }
}

// Executor claims an operation and drives it to exactly one terminal state.
type Executor struct {
	ops       repository.OperationRepository
	assembler ContextAssembler
	gateway   adapter.ProviderGateway
	creds     adapter.CredentialProvider
	sink      ResultSink
	cfg       ExecutorConfig
	sleep     Sleeper
	rand      func() float64
	log       *zerolog.Logger
}

func NewExecutor(
	ops repository.OperationRepository,
	assembler ContextAssembler,
	gateway adapter.ProviderGateway,
	creds adapter.CredentialProvider,
	sink ResultSink,
	cfg ExecutorConfig,
	logger *zerolog.Logger,
	opts ...ExecutorOption,
) *Executor {
	cfg.applyDefaults()
	l := logger.With().Str("component", "executor").Logger()
	e := &Executor{
		ops:       ops,
		assembler: assembler,
		gateway:   gateway,
		creds:     creds,
		sink:      sink,
		cfg:       cfg,
		sleep:     SleepContext,
		rand:      rand.Float64,
		log:       &l,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Backoff returns the delay before retry n (0-based).
func (e *Executor) Backoff(n int) time.Duration {
	d := e.cfg.BaseBackoff << uint(n)
	return d + time.Duration(e.rand()*e.cfg.Jitter*float64(d))
}

// Run claims id and processes it. Losing the claim is not an error.
func (e *Executor) Run(ctx context.Context, id string) error {
	op, err := e.ops.Claim(ctx, id)
	if errors.Is(err, domain.ErrClaimConflict) {
		e.log.Debug().Str("operation_id", id).Msg("claim lost, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("claim operation %s: %w", id, err)
	}
	return e.RunClaimed(ctx, op)
}

// RunClaimed processes an operation already moved to processing by this caller.
func (e *Executor) RunClaimed(ctx context.Context, op *model.Operation) error {
	if op.Status != model.OperationStatusProcessing {
		return domain.ErrInvalidState
	}
	ctx = logging.WithOperationID(logging.WithUserID(ctx, op.UserID), op.ID)
	log := logging.With(ctx, e.log)
	defer logging.TraceDuration(log, "Executor.RunClaimed")()
	start := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, e.cfg.RunCeiling)
	result, attempts, runErr := e.execute(ctx, runCtx, op, log)
	cancel()

	now := time.Now().UTC()
	var kind model.ErrorKind
	if runErr == nil {
		if err := op.Complete(result, now); err != nil {
			return fmt.Errorf("complete operation %s: %w", op.ID, err)
		}
	} else {
		ee := model.AsExecError(runErr)
		kind = ee.Kind
		if err := op.Fail(NewOperationError(ee, op.Type), now); err != nil {
			return fmt.Errorf("fail operation %s: %w", op.ID, err)
		}
		log.Warn().Err(runErr).Str("kind", string(ee.Kind)).Str("code", ee.Code).Int("attempts", attempts).Msg("operation failed")
	}

	finCtx, finCancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer finCancel()
	if err := e.ops.Finalize(finCtx, op); err != nil {
		log.Error().Err(err).Str("status", string(op.Status)).Msg("finalize failed")
		return fmt.Errorf("finalize operation %s: %w", op.ID, err)
	}
	metrics.ObserveOperationFinished(string(op.Type), string(op.Status), string(kind), attempts, time.Since(start))

	if op.Status != model.OperationStatusCompleted || e.sink == nil {
		return nil
	}
	log.Info().Int("attempts", attempts).Msg("operation completed")
	if err := e.sink.Persist(finCtx, op); err != nil {
		code := model.CodeDBWriteFailed
		if ee := model.AsExecError(err); ee.Kind == model.ErrorKindPersistence {
			code = ee.Code
		}
		metrics.IncPersistenceWriteFailure(string(op.Type))
		log.Error().Err(err).Str("code", code).Str("target_ref", op.TargetRef).Msg("result persistence failed")
	}
	return nil
}

// execute returns the result payload and the number of provider attempts made.
func (e *Executor) execute(parent, ctx context.Context, op *model.Operation, log *zerolog.Logger) (json.RawMessage, int, error) {
	pc, err := e.assembler.Assemble(ctx, op.TargetRef, op.Type)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, e.ctxErr(parent, ctx)
		}
		return nil, 0, err
	}
	cred, err := e.creds.GetDecryptedCredential(ctx, op.UserID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, e.ctxErr(parent, ctx)
		}
		return nil, 0, err
	}

	attempts := 0
	for retry := 0; ; retry++ {
		attempts++
		res, err := e.gateway.Invoke(ctx, pc, cred)
		if err == nil {
			payload, perr := parseResult(pc, res.Text)
			return payload, attempts, perr
		}
		if ctx.Err() != nil {
			return nil, attempts, e.ctxErr(parent, ctx)
		}
		ee := providerExecError(err)
		if !ee.Retryable() || retry >= e.cfg.MaxRetries {
			return nil, attempts, ee
		}
		delay := e.Backoff(retry)
		log.Debug().Err(err).Int("attempt", attempts).Dur("backoff", delay).Msg("retryable provider failure")
		if err := e.sleep(ctx, delay); err != nil {
			return nil, attempts, e.ctxErr(parent, ctx)
		}
	}
}

// ctxErr distinguishes the run ceiling from the caller going away.
func (e *Executor) ctxErr(parent, ctx context.Context) error {
	if parent.Err() != nil {
		return model.NewExecError(model.ErrorKindTimeout, model.CodeProcessingAbandoned, parent.Err())
	}
	return model.NewExecError(model.ErrorKindTimeout, model.CodeTimeout,
		fmt.Errorf("run exceeded %s: %w", e.cfg.RunCeiling, ctx.Err()))
}

func providerExecError(err error) *model.ExecError {
	if pe, ok := adapter.AsProviderError(err); ok {
		metrics.IncProviderError(pe.Provider, string(pe.Class), pe.Code)
		kind := model.ErrorKindProviderFatal
		if pe.Retryable() {
			kind = model.ErrorKindProviderRetryable
		}
		return model.NewExecError(kind, pe.Code, pe)
	}
	return model.AsExecError(err)
}

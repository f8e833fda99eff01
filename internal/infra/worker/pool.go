package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var ErrQueueFull = errors.New("worker queue full")

type Task func(ctx context.Context) error

// Pool runs submitted tasks on a fixed set of goroutines with a bounded queue.
type Pool struct {
	wg    sync.WaitGroup
	jobs  chan Task
	n     int
	grace time.Duration
	log   *zerolog.Logger
}

// NewPool sizes the pool; grace is how long Run waits for in-flight tasks on shutdown
// before cancelling their context.
func NewPool(workers, queueSize int, grace time.Duration, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = workers * 4
	}
	l := logger.With().Str("component", "worker_pool").Logger()
	return &Pool{jobs: make(chan Task, queueSize), n: workers, grace: grace, log: &l}
}

func (p *Pool) Workers() int { return p.n }

// Run blocks until ctx is done, then drains. Task contexts outlive ctx by at most grace.
func (p *Pool) Run(ctx context.Context) error {
	taskCtx, cancelTasks := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelTasks()
	quit := make(chan struct{})

	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-quit:
					return
				case task := <-p.jobs:
					if task == nil {
						continue
					}
					if err := task(taskCtx); err != nil {
						p.log.Error().Err(err).Int("worker", id).Msg("task failed")
					}
				}
			}
		}(i)
	}
	p.log.Info().Int("workers", p.n).Int("queue", cap(p.jobs)).Msg("worker pool started")

	<-ctx.Done()
	close(quit)
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	t := time.NewTimer(p.grace)
	defer t.Stop()
	select {
	case <-done:
	case <-t.C:
		p.log.Warn().Dur("grace", p.grace).Msg("cancelling in-flight tasks")
		cancelTasks()
		<-done
	}
	p.log.Info().Msg("worker pool stopped")
	return nil
}

// Submit enqueues without blocking.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	select {
	case p.jobs <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

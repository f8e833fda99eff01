package ai

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/model"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/ports/adapter"
)

var _ adapter.ProviderGateway = (*limitedGateway)(nil)

// limitedGateway bounds concurrent provider calls with a semaphore and paces
// them with a token bucket shared across all users.
type limitedGateway struct {
	inner   adapter.ProviderGateway
	sem     chan struct{}
	limiter *rate.Limiter
}

func NewLimitedGateway(inner adapter.ProviderGateway, maxConcurrent int, rps float64, burst int) adapter.ProviderGateway {
	if maxConcurrent <= 0 && rps <= 0 {
		return inner
	}
	l := &limitedGateway{inner: inner}
	if maxConcurrent > 0 {
		l.sem = make(chan struct{}, maxConcurrent)
	}
	if rps > 0 {
		if burst <= 0 {
			burst = 1
		}
		l.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return l
}

func (l *limitedGateway) Name() string { return l.inner.Name() }

func (l *limitedGateway) Invoke(ctx context.Context, pc adapter.PromptContext, cred adapter.Credential) (adapter.ProviderResult, error) {
	if l.sem != nil {
		select {
		case l.sem <- struct{}{}:
			defer func() { <-l.sem }()
		case <-ctx.Done():
			return adapter.ProviderResult{}, ctx.Err()
		}
	}
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return adapter.ProviderResult{}, ctx.Err()
			}
			// the wait would outlive the deadline; let the caller back off
			return adapter.ProviderResult{}, &adapter.ProviderError{
				Class:    adapter.FailureRetryable,
				Code:     model.CodeRateLimit,
				Provider: l.inner.Name(),
				Err:      fmt.Errorf("local rate limit: %w", err),
			}
		}
	}
	return l.inner.Invoke(ctx, pc, cred)
}

package ai

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/model"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/ports/adapter"
)

type stubGateway struct {
	name  string
	calls int32
	delay time.Duration

	mu       sync.Mutex
	inFlight int
	peak     int
}

func (s *stubGateway) Name() string { return s.name }

func (s *stubGateway) Invoke(ctx context.Context, pc adapter.PromptContext, cred adapter.Credential) (adapter.ProviderResult, error) {
	atomic.AddInt32(&s.calls, 1)
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.peak {
		s.peak = s.inFlight
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return adapter.ProviderResult{Text: s.name, Provider: s.name}, nil
}

func TestMultiGatewayRouting(t *testing.T) {
	t.Parallel()
	oa := &stubGateway{name: "openai"}
	gm := &stubGateway{name: "gemini"}
	m := NewMultiGateway("openai", oa, gm)
	ctx := context.Background()

	cases := []struct {
		cred adapter.Credential
		want string
	}{
		{adapter.Credential{Provider: "gemini"}, "gemini"},
		{adapter.Credential{Provider: "OpenAI"}, "openai"},
		{adapter.Credential{Model: "gemini-2.0-flash"}, "gemini"},
		{adapter.Credential{Model: "gpt-4o"}, "openai"},
		{adapter.Credential{Model: "something-else"}, "openai"},
	}
	for _, tc := range cases {
		res, err := m.Invoke(ctx, adapter.PromptContext{}, tc.cred)
		if err != nil || res.Provider != tc.want {
			t.Errorf("cred %v: got %q, %v; want %q", tc.cred, res.Provider, err, tc.want)
		}
	}

	_, err := m.Invoke(ctx, adapter.PromptContext{}, adapter.Credential{Provider: "anthropic"})
	if pe, ok := adapter.AsProviderError(err); !ok || pe.Retryable() {
		t.Errorf("unknown provider should be fatal, got %v", err)
	}
}

func TestLimitedGatewayBoundsConcurrency(t *testing.T) {
	t.Parallel()
	inner := &stubGateway{name: "openai", delay: 20 * time.Millisecond}
	g := NewLimitedGateway(inner, 2, 0, 0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = g.Invoke(context.Background(), adapter.PromptContext{}, adapter.Credential{})
		}()
	}
	wg.Wait()

	if atomic.LoadInt32(&inner.calls) != 8 {
		t.Errorf("expected 8 calls, got %d", inner.calls)
	}
	if inner.peak > 2 {
		t.Errorf("expected at most 2 concurrent calls, saw %d", inner.peak)
	}
}

func TestLimitedGatewayHonoursContext(t *testing.T) {
	t.Parallel()
	inner := &stubGateway{name: "openai"}
	g := NewLimitedGateway(inner, 1, 0.001, 1)

	// first call drains the single token
	if _, err := g.Invoke(context.Background(), adapter.PromptContext{}, adapter.Credential{}); err != nil {
		t.Fatalf("first call: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := g.Invoke(ctx, adapter.PromptContext{}, adapter.Credential{})
	if err == nil {
		t.Fatal("expected the rate wait to give up before the deadline")
	}
	if ctx.Err() != nil {
		t.Fatalf("expected an early give-up while the context is live, got %v", err)
	}
	pe, ok := adapter.AsProviderError(err)
	if !ok || !pe.Retryable() || pe.Code != model.CodeRateLimit || pe.Provider != "openai" {
		t.Fatalf("want retryable RATE_LIMIT from openai, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner gateway should not be called past the limiter, got %d calls", inner.calls)
	}
}

func TestLimitedGatewayPassthrough(t *testing.T) {
	t.Parallel()
	inner := &stubGateway{name: "gemini"}
	if g := NewLimitedGateway(inner, 0, 0, 0); g != adapter.ProviderGateway(inner) {
		t.Error("expected the inner gateway when no limits are set")
	}
}

package ai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/model"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/ports/adapter"
)

const testAPIKey = "sk-test1234567890abcdef"

func newOpenAIStub(t *testing.T, status int, body string, delay time.Duration) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer "+testAPIKey {
			t.Errorf("unexpected auth header %q", got)
		}
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func questionPrompt() adapter.PromptContext {
	return adapter.PromptContext{
		OperationType: model.OperationTypeQuestionGeneration,
		Messages: []adapter.Message{
			{Role: "system", Content: "You are an interviewer."},
			{Role: "user", Content: "Ask one question."},
		},
		Temperature: 0.7,
		MaxTokens:   200,
	}
}

func TestOpenAIGatewayInvoke(t *testing.T) {
	t.Parallel()
	cred := adapter.Credential{Provider: "openai", Model: "gpt-4o-mini", APIKey: testAPIKey}

	t.Run("success returns the first non-empty choice", func(t *testing.T) {
		t.Parallel()
		srv := newOpenAIStub(t, 200, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  What is a goroutine?  "}}],
			"usage":{"prompt_tokens":12,"completion_tokens":6,"total_tokens":18}}`, 0)
		g := NewOpenAIGateway(srv.URL+"/v1/", "", time.Second)

		res, err := g.Invoke(context.Background(), questionPrompt(), cred)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Text != "What is a goroutine?" || res.Usage.TotalTokens != 18 || res.Provider != "openai" {
			t.Errorf("unexpected result %+v", res)
		}
	})

	cases := []struct {
		name   string
		status int
		body   string
		class  adapter.FailureClass
		code   string
	}{
		{"server error is retryable", 500, `{"error":{"message":"oops","type":"server_error"}}`, adapter.FailureRetryable, model.CodeServerError},
		{"rate limit is retryable", 429, `{"error":{"message":"slow down","type":"requests","code":"rate_limit_exceeded"}}`, adapter.FailureRetryable, model.CodeRateLimit},
		{"quota is fatal", 429, `{"error":{"message":"quota","type":"insufficient_quota","code":"insufficient_quota"}}`, adapter.FailureFatal, model.CodeQuotaExceeded},
		{"bad key is fatal", 401, `{"error":{"message":"Incorrect API key provided: ` + testAPIKey + `","type":"invalid_request_error","code":"invalid_api_key"}}`, adapter.FailureFatal, model.CodeInvalidAPIKey},
		{"bad request is fatal", 400, `{"error":{"message":"bad","type":"invalid_request_error"}}`, adapter.FailureFatal, model.CodeInvalidRequest},
		{"empty content is fatal", 200, `{"id":"c1","object":"chat.completion","created":1,"model":"m","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":""}}]}`, adapter.FailureFatal, model.CodeInvalidResponse},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := newOpenAIStub(t, tc.status, tc.body, 0)
			g := NewOpenAIGateway(srv.URL+"/v1/", "", time.Second)

			_, err := g.Invoke(context.Background(), questionPrompt(), cred)
			pe, ok := adapter.AsProviderError(err)
			if !ok {
				t.Fatalf("expected a ProviderError, got %v", err)
			}
			if pe.Class != tc.class || pe.Code != tc.code {
				t.Errorf("got %s/%s, want %s/%s", pe.Class, pe.Code, tc.class, tc.code)
			}
			if strings.Contains(err.Error(), testAPIKey) {
				t.Errorf("error leaks the credential: %v", err)
			}
		})
	}

	t.Run("per-call timeout is retryable", func(t *testing.T) {
		t.Parallel()
		srv := newOpenAIStub(t, 200, `{}`, 2*time.Second)
		g := NewOpenAIGateway(srv.URL+"/v1/", "", 50*time.Millisecond)

		_, err := g.Invoke(context.Background(), questionPrompt(), cred)
		pe, ok := adapter.AsProviderError(err)
		if !ok || !pe.Retryable() {
			t.Errorf("expected retryable timeout, got %v", err)
		}
	})

	t.Run("expired caller context is not reclassified", func(t *testing.T) {
		t.Parallel()
		srv := newOpenAIStub(t, 200, `{}`, 2*time.Second)
		g := NewOpenAIGateway(srv.URL+"/v1/", "", time.Second)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		_, err := g.Invoke(ctx, questionPrompt(), cred)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected caller deadline, got %v", err)
		}
	})

	t.Run("missing key never reaches the network", func(t *testing.T) {
		t.Parallel()
		g := NewOpenAIGateway("http://127.0.0.1:1/", "", time.Second)
		_, err := g.Invoke(context.Background(), questionPrompt(), adapter.Credential{})
		pe, ok := adapter.AsProviderError(err)
		if !ok || pe.Code != model.CodeInvalidAPIKey {
			t.Errorf("expected INVALID_API_KEY, got %v", err)
		}
	})
}

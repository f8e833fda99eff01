package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/ports/adapter"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/infra/metrics"
)

var _ adapter.ProviderGateway = (*GeminiGateway)(nil)

const providerGemini = "gemini"

// GeminiGateway calls GenerateContent through the official SDK with the caller's key.
type GeminiGateway struct {
	baseURL      string
	defaultModel string
	timeout      time.Duration
	httpClient   *http.Client
}

func NewGeminiGateway(baseURL, defaultModel string, timeout time.Duration) *GeminiGateway {
	if defaultModel == "" {
		defaultModel = "gemini-2.0-flash"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GeminiGateway{
		baseURL:      baseURL,
		defaultModel: defaultModel,
		timeout:      timeout,
		httpClient:   &http.Client{},
	}
}

func (g *GeminiGateway) Name() string { return providerGemini }

func (g *GeminiGateway) Invoke(ctx context.Context, pc adapter.PromptContext, cred adapter.Credential) (adapter.ProviderResult, error) {
	if cred.APIKey == "" {
		return adapter.ProviderResult{}, classifyStatus(providerGemini, http.StatusUnauthorized, "", errors.New("empty api key"))
	}
	modelName := modelOrDefault(cred.Model, g.defaultModel)

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	client, err := genai.NewClient(callCtx, &genai.ClientConfig{
		APIKey:     cred.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.httpClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: g.baseURL,
		},
	})
	if err != nil {
		return adapter.ProviderResult{}, classifyTransport(ctx, providerGemini, err)
	}

	system, contents := toGenAIContents(pc.Messages)
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	if pc.Temperature > 0 {
		t := float32(pc.Temperature)
		cfg.Temperature = &t
	}
	if pc.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(pc.MaxTokens)
	}
	if pc.ExpectJSON {
		cfg.ResponseMIMEType = "application/json"
	}

	start := time.Now()
	resp, err := client.Models.GenerateContent(callCtx, modelName, contents, cfg)
	elapsed := time.Since(start)
	if err != nil {
		metrics.ObserveProviderCall(providerGemini, modelName, 0, 0, elapsed, false)
		if code, status, ok := geminiAPIError(err); ok {
			return adapter.ProviderResult{}, classifyStatus(providerGemini, code, status, err)
		}
		return adapter.ProviderResult{}, classifyTransport(ctx, providerGemini, err)
	}

	text := extractText(resp)
	usage := adapter.Usage{}
	if resp.UsageMetadata != nil {
		usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	metrics.ObserveProviderCall(providerGemini, modelName, usage.PromptTokens, usage.CompletionTokens, elapsed, text != "")
	if text == "" {
		return adapter.ProviderResult{}, invalidResponse(providerGemini, errors.New("gemini api returned empty response"))
	}
	return adapter.ProviderResult{Text: text, Provider: providerGemini, Model: modelName, Usage: usage}, nil
}

func geminiAPIError(err error) (code int, status string, ok bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Status, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, apiErrPtr.Status, true
	}
	return 0, "", false
}

// toGenAIContents lifts system messages into a single instruction; the rest become turns.
func toGenAIContents(msgs []adapter.Message) (string, []*genai.Content) {
	var system []string
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := string(genai.RoleUser)
		switch strings.ToLower(m.Role) {
		case "system":
			system = append(system, m.Content)
			continue
		case "assistant", "model":
			role = string(genai.RoleModel)
		}
		out = append(out, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	return strings.Join(system, "\n\n"), out
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(text)
		}
	}
	return strings.TrimSpace(b.String())
}

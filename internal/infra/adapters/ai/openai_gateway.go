package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/ports/adapter"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/infra/metrics"
)

var _ adapter.ProviderGateway = (*OpenAIGateway)(nil)

const providerOpenAI = "openai"

// OpenAIGateway calls Chat Completions with the caller's own key. A client is
// built per call so no credential outlives the invocation.
type OpenAIGateway struct {
	baseURL      string
	defaultModel string
	timeout      time.Duration
	httpClient   *http.Client
}

func NewOpenAIGateway(baseURL, defaultModel string, timeout time.Duration) *OpenAIGateway {
	if defaultModel == "" {
		defaultModel = "gpt-4o-mini"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIGateway{
		baseURL:      baseURL,
		defaultModel: defaultModel,
		timeout:      timeout,
		httpClient:   &http.Client{},
	}
}

func (g *OpenAIGateway) Name() string { return providerOpenAI }

func (g *OpenAIGateway) Invoke(ctx context.Context, pc adapter.PromptContext, cred adapter.Credential) (adapter.ProviderResult, error) {
	if cred.APIKey == "" {
		return adapter.ProviderResult{}, classifyStatus(providerOpenAI, http.StatusUnauthorized, "", errors.New("empty api key"))
	}
	modelName := modelOrDefault(cred.Model, g.defaultModel)

	opts := []option.RequestOption{
		option.WithAPIKey(cred.APIKey),
		option.WithMaxRetries(0), // retries belong to the executor
		option.WithHTTPClient(g.httpClient),
	}
	if g.baseURL != "" {
		opts = append(opts, option.WithBaseURL(g.baseURL))
	}
	client := openai.NewClient(opts...)

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(modelName),
		Messages: toOpenAIMessages(pc.Messages),
	}
	if pc.Temperature > 0 {
		params.Temperature = openai.Float(pc.Temperature)
	}
	if pc.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(pc.MaxTokens))
	}
	if pc.ExpectJSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := client.Chat.Completions.New(callCtx, params)
	elapsed := time.Since(start)
	if err != nil {
		metrics.ObserveProviderCall(providerOpenAI, modelName, 0, 0, elapsed, false)
		var apierr *openai.Error
		if errors.As(err, &apierr) {
			return adapter.ProviderResult{}, classifyStatus(providerOpenAI, apierr.StatusCode, apierr.Code+" "+apierr.Type, err)
		}
		return adapter.ProviderResult{}, classifyTransport(ctx, providerOpenAI, err)
	}

	var text string
	for _, c := range resp.Choices {
		if t := strings.TrimSpace(c.Message.Content); t != "" {
			text = t
			break
		}
	}
	usage := adapter.Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	metrics.ObserveProviderCall(providerOpenAI, modelName, usage.PromptTokens, usage.CompletionTokens, elapsed, text != "")
	if text == "" {
		return adapter.ProviderResult{}, invalidResponse(providerOpenAI, errors.New("no choice content"))
	}
	return adapter.ProviderResult{Text: text, Provider: providerOpenAI, Model: modelName, Usage: usage}, nil
}

func toOpenAIMessages(msgs []adapter.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch strings.ToLower(m.Role) {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func modelOrDefault(m, def string) string {
	if strings.TrimSpace(m) == "" {
		return def
	}
	return m
}

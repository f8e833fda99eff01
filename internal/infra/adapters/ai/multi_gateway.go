// File: internal/infra/adapters/ai/multi_gateway.go
package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/model"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/ports/adapter"
)

var _ adapter.ProviderGateway = (*MultiGateway)(nil)

// MultiGateway routes each call to the provider named on the credential,
// falling back to the model prefix and then to the default provider.
type MultiGateway struct {
	defaultProvider string
	byProvider      map[string]adapter.ProviderGateway
}

func NewMultiGateway(defaultProvider string, gateways ...adapter.ProviderGateway) *MultiGateway {
	byProvider := make(map[string]adapter.ProviderGateway, len(gateways))
	for _, g := range gateways {
		if g != nil {
			byProvider[strings.ToLower(g.Name())] = g
		}
	}
	return &MultiGateway{
		defaultProvider: strings.ToLower(defaultProvider),
		byProvider:      byProvider,
	}
}

func (m *MultiGateway) Name() string { return "multi" }

func (m *MultiGateway) resolveProvider(cred adapter.Credential) string {
	if p := strings.ToLower(cred.Provider); p != "" {
		return p
	}
	l := strings.ToLower(cred.Model)
	switch {
	case strings.HasPrefix(l, "gemini"):
		return providerGemini
	case strings.HasPrefix(l, "gpt"), strings.HasPrefix(l, "o1"), strings.HasPrefix(l, "o3"), strings.HasPrefix(l, "o4"):
		return providerOpenAI
	default:
		return m.defaultProvider
	}
}

func (m *MultiGateway) Invoke(ctx context.Context, pc adapter.PromptContext, cred adapter.Credential) (adapter.ProviderResult, error) {
	prov := m.resolveProvider(cred)
	g := m.byProvider[prov]
	if g == nil {
		return adapter.ProviderResult{}, &adapter.ProviderError{
			Class:    adapter.FailureFatal,
			Code:     model.CodeInvalidRequest,
			Provider: prov,
			Err:      fmt.Errorf("no gateway configured for provider %q", prov),
		}
	}
	return g.Invoke(ctx, pc, cred)
}

package security

import (
	"context"
	"errors"
	"fmt"

	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/model"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/ports/adapter"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/ports/repository"
)

var _ adapter.CredentialProvider = (*CredentialProvider)(nil)

// CredentialProvider decrypts a user's stored API key on every request; nothing is cached.
type CredentialProvider struct {
	repo            repository.CredentialRepository
	enc             *EncryptionService
	defaultProvider string
	models          map[string]string // provider -> model
}

func NewCredentialProvider(repo repository.CredentialRepository, enc *EncryptionService, defaultProvider string, models map[string]string) *CredentialProvider {
	return &CredentialProvider{repo: repo, enc: enc, defaultProvider: defaultProvider, models: models}
}

func (p *CredentialProvider) GetDecryptedCredential(ctx context.Context, userID string) (adapter.Credential, error) {
	provider, ct, err := p.repo.GetEncrypted(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && ct == "") {
		return adapter.Credential{}, model.NewExecError(model.ErrorKindProviderFatal, model.CodeAPIKeyNotConfigured, domain.ErrNoCredential)
	}
	if err != nil {
		return adapter.Credential{}, fmt.Errorf("load credential: %w", err)
	}
	key, err := p.enc.Decrypt(ct)
	if err != nil {
		// the cause may echo ciphertext details; keep it out of the chain
		return adapter.Credential{}, model.NewExecError(model.ErrorKindProviderFatal, model.CodeAPIKeyDecryptionFailed, errors.New("credential decryption failed"))
	}
	if provider == "" {
		provider = p.defaultProvider
	}
	return adapter.Credential{Provider: provider, Model: p.models[provider], APIKey: key}, nil
}

// StoreCredential encrypts and persists a user's key.
func (p *CredentialProvider) StoreCredential(ctx context.Context, userID, provider, apiKey string) error {
	if userID == "" || apiKey == "" {
		return domain.ErrInvalidArgument
	}
	ct, err := p.enc.Encrypt(apiKey)
	if err != nil {
		return err
	}
	return p.repo.SaveEncrypted(ctx, userID, provider, ct)
}

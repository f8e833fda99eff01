package repository

import "context"

// CredentialRepository stores the user's AI API key encrypted at rest.
type CredentialRepository interface {
	GetEncrypted(ctx context.Context, userID string) (provider, ciphertext string, err error)
	SaveEncrypted(ctx context.Context, userID, provider, ciphertext string) error
}

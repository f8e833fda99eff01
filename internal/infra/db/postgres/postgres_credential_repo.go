package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/ports/repository"
)

var _ repository.CredentialRepository = (*credentialRepo)(nil)

type credentialRepo struct {
	pool *pgxpool.Pool
}

func NewCredentialRepo(pool *pgxpool.Pool) *credentialRepo {
	return &credentialRepo{pool: pool}
}

func (r *credentialRepo) GetEncrypted(ctx context.Context, userID string) (string, string, error) {
	row, err := pickRow(ctx, r.pool, nil, `SELECT provider, encrypted_api_key FROM user_credentials WHERE user_id = $1;`, userID)
	if err != nil {
		return "", "", err
	}
	var provider, ct string
	if err := row.Scan(&provider, &ct); err != nil {
		return "", "", notFound(err)
	}
	return provider, ct, nil
}

func (r *credentialRepo) SaveEncrypted(ctx context.Context, userID, provider, ciphertext string) error {
	const q = `
INSERT INTO user_credentials (user_id, provider, encrypted_api_key, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (user_id) DO UPDATE SET
  provider = EXCLUDED.provider,
  encrypted_api_key = EXCLUDED.encrypted_api_key,
  updated_at = EXCLUDED.updated_at;`
	_, err := execSQL(ctx, r.pool, nil, q, userID, provider, ciphertext)
	return err
}

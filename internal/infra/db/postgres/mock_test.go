//go:build !integration

package postgres

import (
	"context"
	"time"

	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/model"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/ports/repository"
	red "github.com/nickunderhill/ai-interviewer-sub002/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerOperationRepo mocks the database repository that the decorator wraps.
type mockInnerOperationRepo struct {
	repository.OperationRepository
	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Operation, error)
	FinalizeFunc func(ctx context.Context, op *model.Operation) error
}

func (m *mockInnerOperationRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Operation, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerOperationRepo) Finalize(ctx context.Context, op *model.Operation) error {
	return m.FinalizeFunc(ctx, op)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc func(ctx context.Context, key string) (string, error)
	SetFunc func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc == nil {
		return nil
	}
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error { return nil }
func (m *mockRedisClient) Ping(ctx context.Context) error                { return nil }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return 0, nil
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}
func (m *mockRedisClient) Close() error { return nil }

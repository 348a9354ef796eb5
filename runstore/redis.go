package runstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/deepnoodle-ai/helm"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a RunStatusStore backed by Redis. Use it when the process
// that cancels a run is not the process executing it.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// RedisStoreOptions configures a RedisStore.
type RedisStoreOptions struct {
	Client redis.UniversalClient

	// KeyPrefix namespaces the status keys. Defaults to "helm:run:".
	KeyPrefix string
}

// NewRedisStore creates a RedisStore using the given client.
func NewRedisStore(opts RedisStoreOptions) (*RedisStore, error) {
	if opts.Client == nil {
		return nil, errors.New("no redis client provided")
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "helm:run:"
	}
	return &RedisStore{client: opts.Client, keyPrefix: opts.KeyPrefix}, nil
}

func (s *RedisStore) key(runID string) string {
	return s.keyPrefix + runID + ":status"
}

func (s *RedisStore) GetStatus(ctx context.Context, runID string) (helm.RunStatus, error) {
	value, err := s.client.Get(ctx, s.key(runID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("%w: %q", helm.ErrRunNotFound, runID)
		}
		return "", fmt.Errorf("redis status lookup failed: %w", err)
	}
	return helm.RunStatus(value), nil
}

func (s *RedisStore) SetStatus(ctx context.Context, runID string, status helm.RunStatus) error {
	if err := s.client.Set(ctx, s.key(runID), string(status), 0).Err(); err != nil {
		return fmt.Errorf("redis status write failed: %w", err)
	}
	return nil
}

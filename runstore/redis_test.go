package runstore

import (
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisStoreRequiresClient(t *testing.T) {
	_, err := NewRedisStore(RedisStoreOptions{})
	assert.Error(t, err)
}

func TestRedisStoreKeying(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})

	store, err := NewRedisStore(RedisStoreOptions{Client: client})
	require.NoError(t, err)
	assert.Equal(t, "helm:run:run-1:status", store.key("run-1"))

	store, err = NewRedisStore(RedisStoreOptions{Client: client, KeyPrefix: "custom:"})
	require.NoError(t, err)
	assert.Equal(t, "custom:run-1:status", store.key("run-1"))
}

package redisclient

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/tokenguard/config"
)

func TestProvideClient(t *testing.T) {
	t.Run("connects to server", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := &config.Config{Redis: config.RedisConfig{Addr: mr.Addr()}}

		client, err := ProvideClient(cfg, nil)

		require.NoError(t, err)
		defer client.Close()
		require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
		assert.Equal(t, "v", mustGet(t, mr, "k"))
	})

	t.Run("unreachable server", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		client, err := ProvideClient(&config.Config{Redis: config.RedisConfig{Addr: addr}}, nil)

		assert.Error(t, err)
		assert.Nil(t, client)
		assert.Contains(t, err.Error(), "failed to connect to redis")
	})
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}

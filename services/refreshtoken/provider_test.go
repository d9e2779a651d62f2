package refreshtoken

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/tokenguard/config"
	"github.com/tech-arch1tect/tokenguard/services/logging"
	"github.com/tech-arch1tect/tokenguard/testutils"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func TestProvideStore(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		cfg := testutils.GetTestConfig()

		store, err := ProvideStore(StoreParams{Config: cfg})

		require.NoError(t, err)
		assert.IsType(t, &MemoryStore{}, store)
	})

	t.Run("gorm", func(t *testing.T) {
		cfg := testutils.GetTestConfig()
		cfg.RefreshToken.Store = config.StoreGorm

		_, err := ProvideStore(StoreParams{Config: cfg})
		assert.Error(t, err)

		store, err := ProvideStore(StoreParams{Config: cfg, DB: testutils.SetupTestDB(t)})
		require.NoError(t, err)
		assert.IsType(t, &GormStore{}, store)
	})

	t.Run("redis", func(t *testing.T) {
		cfg := testutils.GetTestConfig()
		cfg.RefreshToken.Store = config.StoreRedis

		_, err := ProvideStore(StoreParams{Config: cfg})
		assert.Error(t, err)

		client := redis.NewClient(&redis.Options{Addr: miniredis.RunT(t).Addr()})
		defer client.Close()
		store, err := ProvideStore(StoreParams{Config: cfg, Redis: client})
		require.NoError(t, err)
		assert.IsType(t, &RedisStore{}, store)
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := testutils.GetTestConfig()
		cfg.RefreshToken.Store = "etcd"

		_, err := ProvideStore(StoreParams{Config: cfg})
		assert.Error(t, err)
	})
}

func TestStoreOptions(t *testing.T) {
	cfg := testutils.GetTestConfig()
	cfg.JWT = config.JWTConfig{}

	var janitor *Janitor
	app := fx.New(
		fx.NopLogger,
		fx.Supply(cfg),
		fx.Supply(logging.NewFromZap(zap.NewNop())),
		StoreOptions,
		fx.Populate(&janitor),
	)
	require.NoError(t, app.Err())

	require.NoError(t, app.Start(context.Background()))
	assert.True(t, janitor.Running())

	n, err := janitor.PurgeExpiredOrRevoked(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, app.Stop(context.Background()))
	assert.False(t, janitor.Running())
}

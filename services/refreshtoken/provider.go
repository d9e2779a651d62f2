package refreshtoken

import (
	"context"
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
	"github.com/tech-arch1tect/tokenguard/config"
	"github.com/tech-arch1tect/tokenguard/services/identity"
	jwtservice "github.com/tech-arch1tect/tokenguard/services/jwt"
	"github.com/tech-arch1tect/tokenguard/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type StoreParams struct {
	fx.In

	Config *config.Config
	Logger *logging.Service
	DB     *gorm.DB      `optional:"true"`
	Redis  *redis.Client `optional:"true"`
}

func ProvideStore(p StoreParams) (Store, error) {
	switch p.Config.RefreshToken.Store {
	case config.StoreGorm:
		if p.DB == nil {
			return nil, errors.New("gorm refresh token store requires a database")
		}
		return NewGormStore(p.DB), nil
	case config.StoreRedis:
		if p.Redis == nil {
			return nil, errors.New("redis refresh token store requires a redis client")
		}
		return NewRedisStore(p.Redis, p.Config.Redis.KeyPrefix), nil
	case config.StoreMemory:
		p.Logger.Warn("using in-memory refresh token store, tokens are lost on restart")
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported refresh token store: %s", p.Config.RefreshToken.Store)
	}
}

type ServiceParams struct {
	fx.In

	Config   *config.Config
	Store    Store
	Codec    *jwtservice.Service
	Identity identity.Provider
	Clock    clock.Clock      `optional:"true"`
	Logger   *logging.Service `optional:"true"`
}

func ProvideService(p ServiceParams) *Service {
	return NewService(Deps{
		Store:    p.Store,
		Codec:    p.Codec,
		Identity: p.Identity,
		Clock:    p.Clock,
		Config:   p.Config,
		Logger:   p.Logger,
	})
}

type JanitorParams struct {
	fx.In

	Config *config.Config
	Store  Store
	Clock  clock.Clock      `optional:"true"`
	Logger *logging.Service `optional:"true"`
}

// ProvideJanitor builds a janitor without the rest of the engine, for
// processes that only purge.
func ProvideJanitor(p JanitorParams) *Janitor {
	return NewJanitor(p.Store, p.Clock, p.Config.RefreshToken.CleanupInterval, p.Logger.Named("refreshtoken"))
}

func serviceJanitor(svc *Service) *Janitor {
	return svc.Janitor()
}

// RegisterJanitor ties the cleanup worker to the application lifecycle.
func RegisterJanitor(lc fx.Lifecycle, janitor *Janitor) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			janitor.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			janitor.Stop()
			return nil
		},
	})
}

var Options = fx.Options(
	fx.Provide(ProvideStore),
	fx.Provide(ProvideService),
	fx.Provide(serviceJanitor),
	fx.Invoke(RegisterJanitor),
)

// StoreOptions wires the store and its janitor only. No access token codec
// or identity provider is needed.
var StoreOptions = fx.Options(
	fx.Provide(ProvideStore),
	fx.Provide(ProvideJanitor),
	fx.Invoke(RegisterJanitor),
)

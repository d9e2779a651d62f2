package app

import (
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
	"github.com/tech-arch1tect/tokenguard/config"
	"github.com/tech-arch1tect/tokenguard/database"
	"github.com/tech-arch1tect/tokenguard/redisclient"
	"github.com/tech-arch1tect/tokenguard/services/handoff"
	"github.com/tech-arch1tect/tokenguard/services/identity"
	"github.com/tech-arch1tect/tokenguard/services/jwt"
	"github.com/tech-arch1tect/tokenguard/services/logging"
	"github.com/tech-arch1tect/tokenguard/services/refreshtoken"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type AppBuilder struct {
	config    *config.Config
	services  map[string]bool
	models    []any
	fxOptions []fx.Option
	identity  identity.Provider
	clock     clock.Clock
	errors    []error
}

func NewApp() *AppBuilder {
	return &AppBuilder{
		services:  make(map[string]bool),
		models:    make([]any, 0),
		fxOptions: make([]fx.Option, 0),
		errors:    make([]error, 0),
	}
}

func (b *AppBuilder) WithConfig(cfg *config.Config) *AppBuilder {
	if cfg == nil {
		b.addError("config cannot be nil")
		return b
	}
	b.config = cfg
	return b
}

func (b *AppBuilder) WithAutoConfig() *AppBuilder {
	cfg := &config.Config{}
	if err := config.LoadConfig(cfg); err != nil {
		b.addError(fmt.Sprintf("failed to load config: %v", err))
		return b
	}
	b.config = cfg
	return b
}

func (b *AppBuilder) withStoreConfig() {
	cfg := &config.Config{}
	if err := config.LoadStoreConfig(cfg); err != nil {
		b.addError(fmt.Sprintf("failed to load config: %v", err))
		return
	}
	b.config = cfg
}

func (b *AppBuilder) WithDatabase(models ...any) *AppBuilder {
	b.services["database"] = true
	b.models = append(b.models, models...)
	return b
}

func (b *AppBuilder) WithRedis() *AppBuilder {
	b.services["redis"] = true
	return b
}

// WithRefreshTokens enables the token engine. The backing store follows
// RefreshToken.Store and pulls in the database or redis as needed.
func (b *AppBuilder) WithRefreshTokens() *AppBuilder {
	b.services["refresh_tokens"] = true
	return b
}

// WithTokenStore wires only the configured store and its janitor. Use it for
// processes that purge but never issue or rotate, so no JWT secret or
// identity source is needed.
func (b *AppBuilder) WithTokenStore() *AppBuilder {
	b.services["token_store"] = true
	return b
}

func (b *AppBuilder) WithHandoff() *AppBuilder {
	b.services["handoff"] = true
	b.services["refresh_tokens"] = true
	return b
}

// WithIdentityProvider replaces the default users table lookup.
func (b *AppBuilder) WithIdentityProvider(provider identity.Provider) *AppBuilder {
	if provider == nil {
		b.addError("identity provider cannot be nil")
		return b
	}
	b.identity = provider
	return b
}

func (b *AppBuilder) WithClock(clk clock.Clock) *AppBuilder {
	if clk == nil {
		b.addError("clock cannot be nil")
		return b
	}
	b.clock = clk
	return b
}

func (b *AppBuilder) WithFxOptions(opts ...fx.Option) *AppBuilder {
	b.fxOptions = append(b.fxOptions, opts...)
	return b
}

func (b *AppBuilder) Build() (*App, error) {
	if b.config == nil {
		if b.services["token_store"] && !b.services["refresh_tokens"] {
			b.withStoreConfig()
		} else {
			b.WithAutoConfig()
		}
	}

	if err := b.validate(); err != nil {
		return nil, err
	}

	app := &App{config: b.config}

	fxApp := fx.New(b.buildFxOptions(app)...)
	if err := fxApp.Err(); err != nil {
		return nil, fmt.Errorf("failed to build application: %w", err)
	}
	app.fx = fxApp

	return app, nil
}

func (b *AppBuilder) addError(msg string) {
	b.errors = append(b.errors, errors.New(msg))
}

func (b *AppBuilder) validate() error {
	if len(b.errors) > 0 {
		return fmt.Errorf("configuration errors: %v", b.errors)
	}

	if b.services["refresh_tokens"] || b.services["token_store"] {
		switch b.config.RefreshToken.Store {
		case config.StoreGorm:
			b.services["database"] = true
			b.models = append(b.models, &refreshtoken.RefreshToken{})
		case config.StoreRedis:
			b.services["redis"] = true
		}
	}

	if b.services["refresh_tokens"] && b.identity == nil && !b.services["database"] {
		return errors.New("refresh tokens require an identity provider or database support")
	}

	return nil
}

func (b *AppBuilder) buildFxOptions(app *App) []fx.Option {
	clk := b.clock
	if clk == nil {
		clk = clock.New()
	}

	options := []fx.Option{
		config.NewProvider(b.config),
		logging.Module,
		fx.Provide(func() clock.Clock { return clk }),
		fx.NopLogger,
		fx.Populate(&app.logger),
	}

	if b.services["database"] {
		options = append(options,
			fx.Supply(database.WithModels(b.models...)),
			database.Module,
			fx.Populate(&app.db),
		)
	}

	if b.services["redis"] {
		options = append(options,
			redisclient.Module,
			fx.Populate(&app.redis),
		)
	}

	switch {
	case b.services["refresh_tokens"]:
		options = append(options, jwt.Options, refreshtoken.Options, fx.Populate(&app.tokens, &app.janitor))

		if b.identity != nil {
			provider := b.identity
			options = append(options, fx.Provide(func() identity.Provider { return provider }))
		} else {
			options = append(options, identity.GormModule)
		}
	case b.services["token_store"]:
		options = append(options, refreshtoken.StoreOptions, fx.Populate(&app.janitor))
	}

	if b.services["handoff"] {
		options = append(options, handoff.Options, fx.Populate(&app.handoff))
	}

	return append(options, b.fxOptions...)
}

// ServiceContainer lists what a built App exposes, for callers that prefer
// a single value over the individual accessors.
type ServiceContainer struct {
	Database *gorm.DB
	Redis    *redis.Client
	Tokens   *refreshtoken.Service
	Handoff  *handoff.Service
}

// Package tokenguard issues and rotates refresh tokens with replay
// detection, client binding and family revocation.
package tokenguard

import (
	"github.com/benbjohnson/clock"
	"github.com/tech-arch1tect/tokenguard/app"
	"github.com/tech-arch1tect/tokenguard/config"
	"github.com/tech-arch1tect/tokenguard/internal/options"
	"github.com/tech-arch1tect/tokenguard/services/identity"
	"go.uber.org/fx"
)

type App = app.App

func New(opts ...options.Option) (*App, error) {
	return app.New(opts...)
}

func WithConfig(cfg *config.Config) options.Option {
	return options.WithConfig(cfg)
}

func WithDatabase(models ...any) options.Option {
	return options.WithDatabase(models...)
}

func WithRedis() options.Option {
	return options.WithRedis()
}

func WithHandoff() options.Option {
	return options.WithHandoff()
}

func WithIdentityProvider(provider identity.Provider) options.Option {
	return options.WithIdentityProvider(provider)
}

func WithClock(clk clock.Clock) options.Option {
	return options.WithClock(clk)
}

func WithFxOptions(fxOpts ...fx.Option) options.Option {
	return options.WithFxOptions(fxOpts...)
}

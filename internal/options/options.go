package options

import (
	"github.com/benbjohnson/clock"
	"github.com/tech-arch1tect/tokenguard/config"
	"github.com/tech-arch1tect/tokenguard/services/identity"
	"go.uber.org/fx"
)

type Options struct {
	Config           *config.Config
	EnableDatabase   bool
	DatabaseModels   []any
	EnableRedis      bool
	EnableHandoff    bool
	IdentityProvider identity.Provider
	Clock            clock.Clock
	ExtraFxOptions   []fx.Option
}

type Option func(*Options)

func WithConfig(cfg *config.Config) Option {
	return func(opts *Options) {
		opts.Config = cfg
	}
}

func WithDatabase(models ...any) Option {
	return func(opts *Options) {
		opts.EnableDatabase = true
		opts.DatabaseModels = models
	}
}

func WithRedis() Option {
	return func(opts *Options) {
		opts.EnableRedis = true
	}
}

func WithHandoff() Option {
	return func(opts *Options) {
		opts.EnableHandoff = true
	}
}

func WithIdentityProvider(provider identity.Provider) Option {
	return func(opts *Options) {
		opts.IdentityProvider = provider
	}
}

func WithClock(clk clock.Clock) Option {
	return func(opts *Options) {
		opts.Clock = clk
	}
}

func WithFxOptions(fxOpts ...fx.Option) Option {
	return func(opts *Options) {
		opts.ExtraFxOptions = append(opts.ExtraFxOptions, fxOpts...)
	}
}

package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tech-arch1tect/tokenguard/config"
	"github.com/tech-arch1tect/tokenguard/internal/options"
	"github.com/tech-arch1tect/tokenguard/services/handoff"
	"github.com/tech-arch1tect/tokenguard/services/logging"
	"github.com/tech-arch1tect/tokenguard/services/refreshtoken"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const stopTimeout = 30 * time.Second

type App struct {
	fx      *fx.App
	config  *config.Config
	logger  *logging.Service
	db      *gorm.DB
	redis   *redis.Client
	tokens  *refreshtoken.Service
	janitor *refreshtoken.Janitor
	handoff *handoff.Service
}

// New builds an App from functional options.
func New(opts ...options.Option) (*App, error) {
	o := &options.Options{}
	for _, opt := range opts {
		opt(o)
	}

	b := NewApp()
	if o.Config != nil {
		b.WithConfig(o.Config)
	}
	if o.EnableDatabase {
		b.WithDatabase(o.DatabaseModels...)
	}
	if o.EnableRedis {
		b.WithRedis()
	}
	b.WithRefreshTokens()
	if o.EnableHandoff {
		b.WithHandoff()
	}
	if o.IdentityProvider != nil {
		b.WithIdentityProvider(o.IdentityProvider)
	}
	if o.Clock != nil {
		b.WithClock(o.Clock)
	}
	b.WithFxOptions(o.ExtraFxOptions...)

	return b.Build()
}

func (a *App) Start() error {
	return a.fx.Start(context.Background())
}

func (a *App) Run() {
	if err := a.Start(); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	if a.logger != nil {
		a.logger.Info("Received shutdown signal, stopping gracefully...")
	} else {
		log.Printf("Received signal %v, shutting down gracefully...", sig)
	}

	a.Stop()
}

func (a *App) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if err := a.fx.Stop(ctx); err != nil {
		if a.logger != nil {
			a.logger.Error("Failed to stop application gracefully")
		} else {
			log.Printf("Failed to stop application gracefully: %v", err)
		}
	}
}

func (a *App) Tokens() *refreshtoken.Service {
	return a.tokens
}

// Janitor is set whenever refresh tokens or the bare token store are enabled.
func (a *App) Janitor() *refreshtoken.Janitor {
	return a.janitor
}

func (a *App) Handoff() *handoff.Service {
	return a.handoff
}

func (a *App) DB() *gorm.DB {
	return a.db
}

func (a *App) Redis() *redis.Client {
	return a.redis
}

func (a *App) Logger() *logging.Service {
	return a.logger
}

func (a *App) Config() *config.Config {
	return a.config
}

func (a *App) Services() ServiceContainer {
	return ServiceContainer{
		Database: a.db,
		Redis:    a.redis,
		Tokens:   a.tokens,
		Handoff:  a.handoff,
	}
}

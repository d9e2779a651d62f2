package jwt

import (
	"github.com/benbjohnson/clock"
	"github.com/tech-arch1tect/tokenguard/config"
	"github.com/tech-arch1tect/tokenguard/services/logging"
	"go.uber.org/fx"
)

func NewJWTService(cfg *config.Config, clk clock.Clock, logger *logging.Service) *Service {
	return NewService(cfg, clk, logger)
}

var Options = fx.Options(
	fx.Provide(NewJWTService),
)

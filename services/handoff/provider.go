package handoff

import (
	"github.com/benbjohnson/clock"
	"github.com/tech-arch1tect/tokenguard/config"
	"github.com/tech-arch1tect/tokenguard/services/logging"
	"github.com/tech-arch1tect/tokenguard/services/refreshtoken"
	"go.uber.org/fx"
)

type Params struct {
	fx.In

	Config *config.Config
	Store  refreshtoken.Store
	Clock  clock.Clock      `optional:"true"`
	Logger *logging.Service `optional:"true"`
}

func ProvideService(p Params) *Service {
	return NewService(p.Store, p.Config.Handoff.TTL, p.Clock, p.Logger)
}

var Options = fx.Options(
	fx.Provide(ProvideService),
)

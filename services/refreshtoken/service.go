package refreshtoken

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/tech-arch1tect/tokenguard/config"
	"github.com/tech-arch1tect/tokenguard/services/identity"
	"github.com/tech-arch1tect/tokenguard/services/logging"
	"github.com/tech-arch1tect/tokenguard/services/tokengen"
	"go.uber.org/zap"
)

// Deps collects the collaborators of the engine. Generator and Clock are
// optional.
type Deps struct {
	Store     Store
	Codec     AccessTokenCodec
	Identity  identity.Provider
	Generator TokenGenerator
	Clock     clock.Clock
	Config    *config.Config
	Logger    *logging.Service
}

// Service is the public face of the engine: login, refresh, logout and
// cleanup.
type Service struct {
	store   Store
	issuer  *Issuer
	rotator *Rotator
	revoker *Revoker
	janitor *Janitor
}

func NewService(d Deps) *Service {
	if d.Generator == nil {
		d.Generator = tokengen.New()
	}
	if d.Clock == nil {
		d.Clock = clock.New()
	}

	cfg := d.Config.RefreshToken
	logger := d.Logger.Named("refreshtoken")

	logger.Info("initializing refresh token service",
		zap.String("store", string(cfg.Store)),
		zap.Duration("token_expiry", cfg.Expiry),
		zap.Duration("cleanup_interval", cfg.CleanupInterval),
		zap.Bool("strict_binding", cfg.StrictBinding))

	revoker := &Revoker{store: d.Store, logger: logger}

	return &Service{
		store: d.Store,
		issuer: &Issuer{
			store:     d.Store,
			codec:     d.Codec,
			generator: d.Generator,
			clock:     d.Clock,
			expiry:    cfg.Expiry,
			logger:    logger,
		},
		rotator: &Rotator{
			store:     d.Store,
			codec:     d.Codec,
			generator: d.Generator,
			identity:  d.Identity,
			revoker:   revoker,
			clock:     d.Clock,
			expiry:    cfg.Expiry,
			strict:    cfg.StrictBinding,
			logger:    logger,
		},
		revoker: revoker,
		janitor: NewJanitor(d.Store, d.Clock, cfg.CleanupInterval, logger),
	}
}

func (s *Service) Issue(ctx context.Context, userID string, claims identity.Claims, md TokenMetadata) (*TokenPair, error) {
	return s.issuer.Issue(ctx, userID, claims, md)
}

func (s *Service) Rotate(ctx context.Context, token string, md TokenMetadata) (*TokenPair, error) {
	return s.rotator.Rotate(ctx, token, md)
}

func (s *Service) RevokeOne(ctx context.Context, token string) {
	s.revoker.RevokeOne(ctx, token)
}

func (s *Service) RevokeAllForUser(ctx context.Context, userID string) {
	s.revoker.RevokeAllForUser(ctx, userID)
}

func (s *Service) PurgeExpiredOrRevoked(ctx context.Context) (int64, error) {
	return s.janitor.PurgeExpiredOrRevoked(ctx)
}

func (s *Service) Store() Store {
	return s.store
}

func (s *Service) Janitor() *Janitor {
	return s.janitor
}

// Package handoff passes a completed social login back to the client. The
// callback stores a one-shot token with a short lifetime; the client redeems
// it once for the user id and then logs in through the refresh token issuer.
package handoff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/tech-arch1tect/tokenguard/services/logging"
	"github.com/tech-arch1tect/tokenguard/services/refreshtoken"
	"github.com/tech-arch1tect/tokenguard/services/tokengen"
	"go.uber.org/zap"
)

var (
	ErrInvalidHandoff = errors.New("invalid handoff token")
	ErrHandoffExpired = errors.New("handoff token expired")
)

type Service struct {
	store     refreshtoken.Store
	generator refreshtoken.TokenGenerator
	clock     clock.Clock
	ttl       time.Duration
	logger    *logging.Service
}

func NewService(store refreshtoken.Store, ttl time.Duration, clk clock.Clock, logger *logging.Service) *Service {
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		store:     store,
		generator: tokengen.New(),
		clock:     clk,
		ttl:       ttl,
		logger:    logger.Named("handoff"),
	}
}

func (s *Service) Issue(ctx context.Context, userID string, md refreshtoken.TokenMetadata) (string, error) {
	rec, value, err := refreshtoken.NewRecord(s.generator, s.clock.Now(), userID, refreshtoken.KindHandoff, s.ttl, md)
	if err != nil {
		return "", err
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return "", fmt.Errorf("failed to store handoff token: %w", err)
	}

	s.logger.Debug("handoff token issued",
		zap.String("user_id", userID),
		zap.Time("expires_at", rec.ExpiresAt))

	return value, nil
}

// Redeem consumes a handoff token and returns the user it was issued for.
// A token can be redeemed once.
func (s *Service) Redeem(ctx context.Context, token string) (string, error) {
	if !tokengen.IsWellFormed(token) {
		return "", ErrInvalidHandoff
	}

	rec, err := s.store.FindByTokenHash(ctx, refreshtoken.HashToken(token))
	if err != nil {
		if errors.Is(err, refreshtoken.ErrRecordNotFound) {
			return "", ErrInvalidHandoff
		}
		return "", err
	}

	if rec.Kind != refreshtoken.KindHandoff || rec.IsRevoked {
		return "", ErrInvalidHandoff
	}
	if rec.IsUsed {
		s.logger.Warn("handoff token replayed", zap.String("user_id", rec.UserID))
		return "", ErrInvalidHandoff
	}
	if rec.ExpiredAt(s.clock.Now()) {
		return "", ErrHandoffExpired
	}

	if err := s.store.MarkUsed(ctx, rec.ID); err != nil {
		if errors.Is(err, refreshtoken.ErrConcurrentUse) {
			return "", ErrInvalidHandoff
		}
		return "", err
	}

	s.logger.Info("handoff token redeemed", zap.String("user_id", rec.UserID))
	return rec.UserID, nil
}

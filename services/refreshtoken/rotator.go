package refreshtoken

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/tech-arch1tect/tokenguard/services/identity"
	"github.com/tech-arch1tect/tokenguard/services/logging"
	"github.com/tech-arch1tect/tokenguard/services/tokengen"
	"go.uber.org/zap"
)

// Rotator exchanges a refresh token for a new pair. Checks run in a fixed
// order and the first failing one decides the outcome.
type Rotator struct {
	store     Store
	codec     AccessTokenCodec
	generator TokenGenerator
	identity  identity.Provider
	revoker   *Revoker
	clock     clock.Clock
	expiry    time.Duration
	strict    bool
	logger    *logging.Service
}

func (r *Rotator) Rotate(ctx context.Context, presented string, md TokenMetadata) (*TokenPair, error) {
	if !tokengen.IsWellFormed(presented) {
		r.logger.Warn("refresh rejected", zap.String("reason", ReasonInvalidToken))
		return nil, ErrInvalidToken
	}

	rec, err := r.store.FindByTokenHash(ctx, HashToken(presented))
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			r.logger.Warn("refresh rejected", zap.String("reason", ReasonInvalidToken))
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		if err := r.check(ctx, rec, md); err != nil {
			return nil, err
		}

		pair, err := r.rotate(ctx, rec, md)
		if !errors.Is(err, ErrConcurrentUse) || attempt > 0 {
			return pair, err
		}

		// Lost the race for this token. Re-read and let the state checks
		// decide, which normally lands in the reuse branch.
		rec, err = r.store.FindByID(ctx, rec.ID)
		if err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				return nil, ErrInvalidToken
			}
			return nil, err
		}
	}
}

func (r *Rotator) check(ctx context.Context, rec *RefreshToken, md TokenMetadata) error {
	if rec.Kind != KindRefresh {
		r.reject(ReasonInvalidToken, rec, md)
		return ErrInvalidToken
	}

	if rec.IsRevoked {
		r.reject(ReasonTokenRevoked, rec, md)
		return ErrTokenRevoked
	}

	if rec.IsUsed {
		return r.reuse(ctx, rec, md)
	}

	if rec.ExpiredAt(r.clock.Now()) {
		r.reject(ReasonTokenExpired, rec, md)
		return ErrTokenExpired
	}

	if err := r.checkBinding(rec, md); err != nil {
		r.reject(ReasonMetadataMismatch, rec, md)
		return err
	}

	return nil
}

func (r *Rotator) reuse(ctx context.Context, rec *RefreshToken, md TokenMetadata) error {
	fields := append(recordFields(rec), deviceFields(md)...)

	n, err := r.revoker.RevokeFamily(ctx, rec)
	if err != nil {
		r.logger.Error("refresh token reuse detected, family revocation failed",
			append(fields, zap.Error(err))...)
		return fmt.Errorf("%w: family revocation failed: %w", ErrReuseDetected, err)
	}

	r.logger.Error("refresh token reuse detected, token family revoked",
		append(fields, zap.Int64("revoked", n))...)
	return ErrReuseDetected
}

func (r *Rotator) checkBinding(rec *RefreshToken, md TokenMetadata) error {
	if stored, ok := rec.IPAddress.Get(); ok {
		if presented, _ := clip(md.IPAddress, maxIPAddressLength).Get(); presented != stored {
			return fmt.Errorf("%w: ip address", ErrMetadataMismatch)
		}
	} else if r.strict {
		return fmt.Errorf("%w: no stored ip address", ErrMetadataMismatch)
	} else {
		r.logger.Warn("refresh token has no stored ip address, binding skipped", zap.String("token_id", rec.ID))
	}

	// The stored agent only has to be a prefix of the presented one, so
	// clients may append build suffixes between refreshes.
	if stored, ok := rec.UserAgent.Get(); ok {
		presented, ok := md.UserAgent.Get()
		if !ok || !strings.HasPrefix(presented, stored) {
			return fmt.Errorf("%w: user agent", ErrMetadataMismatch)
		}
	} else if r.strict {
		return fmt.Errorf("%w: no stored user agent", ErrMetadataMismatch)
	} else {
		r.logger.Warn("refresh token has no stored user agent, binding skipped", zap.String("token_id", rec.ID))
	}

	return nil
}

func (r *Rotator) rotate(ctx context.Context, rec *RefreshToken, md TokenMetadata) (*TokenPair, error) {
	claims, err := r.identity.Resolve(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, identity.ErrUnknownIdentity) {
			r.reject(ReasonInvalidToken, rec, md)
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}
		return nil, fmt.Errorf("failed to resolve identity: %w", err)
	}
	if claims.Subject == "" {
		claims.Subject = rec.UserID
	}

	successor, value, err := newRecord(r.generator, r.clock.Now(), rec.UserID, KindRefresh, r.expiry, md)
	if err != nil {
		r.logger.Error("failed to generate refresh token", zap.Error(err))
		return nil, err
	}
	successor.ParentToken = &rec.ID
	successor.RotationCount = rec.RotationCount + 1

	access, err := r.codec.Sign(claims)
	if err != nil {
		r.logger.Error("failed to sign access token", zap.String("user_id", rec.UserID), zap.Error(err))
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	if err := r.store.Rotate(ctx, rec.ID, successor); err != nil {
		if errors.Is(err, ErrTokenCollision) {
			r.logger.Error("refresh token collision, random source is suspect", zap.String("user_id", rec.UserID))
		}
		return nil, err
	}

	r.logger.Info("refresh token rotated",
		zap.String("user_id", rec.UserID),
		zap.String("token_id", successor.ID),
		zap.String("parent_token", rec.ID),
		zap.Int("rotation_count", successor.RotationCount))

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: value,
		ExpiresIn:    r.codec.AccessExpirySeconds(),
	}, nil
}

func (r *Rotator) reject(reason string, rec *RefreshToken, md TokenMetadata) {
	fields := append([]zap.Field{zap.String("reason", reason)}, recordFields(rec)...)
	r.logger.Warn("refresh rejected", append(fields, deviceFields(md)...)...)
}

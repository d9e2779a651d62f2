package refreshtoken

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/tech-arch1tect/tokenguard/services/identity"
	"github.com/tech-arch1tect/tokenguard/services/logging"
	"go.uber.org/zap"
)

// AccessTokenCodec signs the short-lived access token handed out with every
// refresh token.
type AccessTokenCodec interface {
	Sign(claims identity.Claims) (string, error)
	AccessExpirySeconds() int
}

type TokenGenerator interface {
	Generate() (string, error)
}

// Issuer mints root tokens at login.
type Issuer struct {
	store     Store
	codec     AccessTokenCodec
	generator TokenGenerator
	clock     clock.Clock
	expiry    time.Duration
	logger    *logging.Service
}

func (i *Issuer) Issue(ctx context.Context, userID string, claims identity.Claims, md TokenMetadata) (*TokenPair, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	if claims.Subject == "" {
		claims.Subject = userID
	}

	rec, value, err := newRecord(i.generator, i.clock.Now(), userID, KindRefresh, i.expiry, md)
	if err != nil {
		i.logger.Error("failed to generate refresh token", zap.Error(err))
		return nil, err
	}

	access, err := i.codec.Sign(claims)
	if err != nil {
		i.logger.Error("failed to sign access token", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	if err := i.store.Create(ctx, rec); err != nil {
		if errors.Is(err, ErrTokenCollision) {
			i.logger.Error("refresh token collision, random source is suspect", zap.String("user_id", userID))
		}
		return nil, err
	}

	i.logger.Info("refresh token issued",
		zap.String("user_id", userID),
		zap.String("token_id", rec.ID),
		zap.Time("expires_at", rec.ExpiresAt))

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: value,
		ExpiresIn:    i.codec.AccessExpirySeconds(),
	}, nil
}

// Column sizes of the client metadata. Longer values are clipped on the way
// in so a hostile client cannot make inserts fail.
const (
	maxIPAddressLength = 45
	maxUserAgentLength = 500
)

// newRecord builds an unsaved record and returns it with the token value to
// hand to the client. Only the hash of the value is kept on the record.
// Times are cut to milliseconds, the finest precision every store keeps.
func newRecord(gen TokenGenerator, now time.Time, userID string, kind Kind, ttl time.Duration, md TokenMetadata) (*RefreshToken, string, error) {
	value, err := gen.Generate()
	if err != nil {
		return nil, "", err
	}

	now = now.UTC().Truncate(time.Millisecond)
	return &RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: HashToken(value),
		Kind:      kind,
		IPAddress: clip(md.IPAddress, maxIPAddressLength),
		UserAgent: clip(md.UserAgent, maxUserAgentLength),
		ExpiresAt: now.Add(ttl).Truncate(time.Millisecond),
		CreatedAt: now,
	}, value, nil
}

// NewRecord builds an unsaved record of the given kind. Used by packages
// that share the token store, such as social login handoff.
func NewRecord(gen TokenGenerator, now time.Time, userID string, kind Kind, ttl time.Duration, md TokenMetadata) (*RefreshToken, string, error) {
	return newRecord(gen, now, userID, kind, ttl, md)
}

// HashToken returns the SHA-256 hex digest under which a token value is
// stored and looked up.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// clip shortens v to at most n bytes without splitting a UTF-8 sequence.
func clip(v ClientValue, n int) ClientValue {
	s, ok := v.Get()
	if !ok || len(s) <= n {
		return v
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return Some(s[:n])
}

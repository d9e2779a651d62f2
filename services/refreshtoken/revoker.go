package refreshtoken

import (
	"context"

	"github.com/tech-arch1tect/tokenguard/services/logging"
	"go.uber.org/zap"
)

// Revoker handles logout. Failures are logged and swallowed so a logout
// request always succeeds from the caller's point of view.
type Revoker struct {
	store  Store
	logger *logging.Service
}

func (r *Revoker) RevokeOne(ctx context.Context, token string) {
	n, err := r.store.RevokeByTokenHash(ctx, HashToken(token))
	if err != nil {
		r.logger.Error("failed to revoke refresh token", zap.Error(err))
		return
	}
	r.logger.Info("refresh token revoked", zap.Int64("revoked", n))
}

func (r *Revoker) RevokeAllForUser(ctx context.Context, userID string) {
	n, err := r.store.RevokeAllForUser(ctx, userID)
	if err != nil {
		r.logger.Error("failed to revoke user refresh tokens",
			zap.String("user_id", userID),
			zap.Error(err))
		return
	}
	r.logger.Info("all user refresh tokens revoked",
		zap.String("user_id", userID),
		zap.Int64("revoked", n))
}

// RevokeFamily kills everything reachable from a reused token. The scope
// includes every record of the owner, not only the token's lineage, so a
// single replay logs the user out on all devices.
func (r *Revoker) RevokeFamily(ctx context.Context, rec *RefreshToken) (int64, error) {
	return r.store.RevokeFamily(ctx, rec.UserID, rec.ParentToken, rec.ID)
}

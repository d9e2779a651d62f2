package refreshtoken

import (
	"context"
	"time"
)

// Store persists RefreshToken records. Implementations must make the
// unused->used transition linearizable: Rotate and MarkUsed succeed for at
// most one caller per record. Stores only ever see token hashes, never the
// values handed to clients.
type Store interface {
	Create(ctx context.Context, token *RefreshToken) error
	FindByTokenHash(ctx context.Context, hash string) (*RefreshToken, error)
	FindByID(ctx context.Context, id string) (*RefreshToken, error)
	FindByUser(ctx context.Context, userID string) ([]RefreshToken, error)
	FindByParent(ctx context.Context, parentID string) ([]RefreshToken, error)

	// MarkUsed flips IsUsed on a record that is neither used nor revoked.
	MarkUsed(ctx context.Context, id string) error
	// Rotate marks usedID as used and inserts successor as one unit. Nothing
	// is written if either step fails.
	Rotate(ctx context.Context, usedID string, successor *RefreshToken) error

	RevokeByTokenHash(ctx context.Context, hash string) (int64, error)
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
	// RevokeFamily revokes every record owned by userID, sharing parentID, or
	// whose parent is selfID.
	RevokeFamily(ctx context.Context, userID string, parentID *string, selfID string) (int64, error)

	// DeleteExpiredOrRevoked removes records with ExpiresAt < now or
	// IsRevoked set.
	DeleteExpiredOrRevoked(ctx context.Context, now time.Time) (int64, error)
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*GormStore)(nil)
	_ Store = (*RedisStore)(nil)
)

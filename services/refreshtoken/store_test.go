package refreshtoken

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/tokenguard/services/tokengen"
	"github.com/tech-arch1tect/tokenguard/testutils"
)

var baseTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

var storeBackends = []struct {
	name string
	open func(t *testing.T) Store
}{
	{"memory", func(t *testing.T) Store {
		return NewMemoryStore()
	}},
	{"gorm", func(t *testing.T) Store {
		return NewGormStore(testutils.SetupTestDB(t, &RefreshToken{}))
	}},
	{"redis", func(t *testing.T) Store {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return NewRedisStore(client, "test:")
	}},
}

func forEachStore(t *testing.T, fn func(t *testing.T, store Store)) {
	for _, backend := range storeBackends {
		t.Run(backend.name, func(t *testing.T) {
			fn(t, backend.open(t))
		})
	}
}

func newTestRecord(t *testing.T, userID string, parent *RefreshToken) *RefreshToken {
	t.Helper()

	rec, _, err := newRecord(tokengen.New(), baseTime, userID, KindRefresh, 7*24*time.Hour, NewMetadata("10.0.0.1", "UA1"))
	require.NoError(t, err)
	if parent != nil {
		rec.ParentToken = &parent.ID
		rec.RotationCount = parent.RotationCount + 1
	}
	return rec
}

func TestStore_CreateAndFind(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		root := newTestRecord(t, "u1", nil)
		root.UserAgent = None()
		require.NoError(t, store.Create(ctx, root))

		got, err := store.FindByTokenHash(ctx, root.TokenHash)
		require.NoError(t, err)
		assert.Equal(t, root.ID, got.ID)
		assert.Equal(t, "u1", got.UserID)
		assert.Equal(t, KindRefresh, got.Kind)
		assert.Equal(t, Some("10.0.0.1"), got.IPAddress)
		assert.False(t, got.UserAgent.IsSet())
		assert.True(t, root.ExpiresAt.Equal(got.ExpiresAt))
		assert.Nil(t, got.ParentToken)
		assert.False(t, got.IsUsed)
		assert.False(t, got.IsRevoked)

		byID, err := store.FindByID(ctx, root.ID)
		require.NoError(t, err)
		assert.Equal(t, root.TokenHash, byID.TokenHash)

		_, err = store.FindByTokenHash(ctx, "missing")
		assert.ErrorIs(t, err, ErrRecordNotFound)
		_, err = store.FindByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})
}

func TestStore_PersistsOnlyTokenHash(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		rec, value, err := newRecord(tokengen.New(), baseTime, "u1", KindRefresh, time.Hour, TokenMetadata{})
		require.NoError(t, err)
		require.NoError(t, store.Create(ctx, rec))

		recs, err := store.FindByUser(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.NotEqual(t, value, recs[0].TokenHash)
		assert.Equal(t, HashToken(value), recs[0].TokenHash)

		_, err = store.FindByTokenHash(ctx, value)
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})
}

func TestStore_RedisKeysHoldNoTokenValue(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisStore(client, "test:")

	rec, value, err := newRecord(tokengen.New(), baseTime, "u1", KindRefresh, time.Hour, TokenMetadata{})
	require.NoError(t, err)
	require.NoError(t, store.Create(context.Background(), rec))

	for _, key := range mr.Keys() {
		assert.NotContains(t, key, value)
	}
	assert.NotContains(t, mr.HGet("test:rt:rec:"+rec.ID, "token_hash"), value)
	assert.Equal(t, HashToken(value), mr.HGet("test:rt:rec:"+rec.ID, "token_hash"))
}

func TestStore_CreateCollision(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		first := newTestRecord(t, "u1", nil)
		require.NoError(t, store.Create(ctx, first))

		dup := newTestRecord(t, "u2", nil)
		dup.TokenHash = first.TokenHash

		assert.ErrorIs(t, store.Create(ctx, dup), ErrTokenCollision)
	})
}

func TestStore_FindByUserAndParent(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		root := newTestRecord(t, "u1", nil)
		child := newTestRecord(t, "u1", root)
		other := newTestRecord(t, "u2", nil)
		for _, rec := range []*RefreshToken{root, child, other} {
			require.NoError(t, store.Create(ctx, rec))
		}

		recs, err := store.FindByUser(ctx, "u1")
		require.NoError(t, err)
		assert.Len(t, recs, 2)

		children, err := store.FindByParent(ctx, root.ID)
		require.NoError(t, err)
		require.Len(t, children, 1)
		assert.Equal(t, child.ID, children[0].ID)
		require.NotNil(t, children[0].ParentToken)
		assert.Equal(t, root.ID, *children[0].ParentToken)
		assert.Equal(t, 1, children[0].RotationCount)

		none, err := store.FindByUser(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestStore_MarkUsed(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		rec := newTestRecord(t, "u1", nil)
		require.NoError(t, store.Create(ctx, rec))

		require.NoError(t, store.MarkUsed(ctx, rec.ID))
		assert.ErrorIs(t, store.MarkUsed(ctx, rec.ID), ErrConcurrentUse)
		assert.ErrorIs(t, store.MarkUsed(ctx, uuid.NewString()), ErrConcurrentUse)

		got, err := store.FindByID(ctx, rec.ID)
		require.NoError(t, err)
		assert.True(t, got.IsUsed)
	})
}

func TestStore_Rotate(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		root := newTestRecord(t, "u1", nil)
		require.NoError(t, store.Create(ctx, root))

		t.Run("collision writes nothing", func(t *testing.T) {
			dup := newTestRecord(t, "u1", root)
			dup.TokenHash = root.TokenHash

			assert.ErrorIs(t, store.Rotate(ctx, root.ID, dup), ErrTokenCollision)

			got, err := store.FindByID(ctx, root.ID)
			require.NoError(t, err)
			assert.False(t, got.IsUsed)
			_, err = store.FindByID(ctx, dup.ID)
			assert.ErrorIs(t, err, ErrRecordNotFound)
		})

		t.Run("marks used and inserts successor", func(t *testing.T) {
			child := newTestRecord(t, "u1", root)
			require.NoError(t, store.Rotate(ctx, root.ID, child))

			got, err := store.FindByID(ctx, root.ID)
			require.NoError(t, err)
			assert.True(t, got.IsUsed)

			succ, err := store.FindByTokenHash(ctx, child.TokenHash)
			require.NoError(t, err)
			assert.Equal(t, root.ID, *succ.ParentToken)
		})

		t.Run("second rotate loses", func(t *testing.T) {
			again := newTestRecord(t, "u1", root)
			assert.ErrorIs(t, store.Rotate(ctx, root.ID, again), ErrConcurrentUse)
			_, err := store.FindByID(ctx, again.ID)
			assert.ErrorIs(t, err, ErrRecordNotFound)
		})

		t.Run("revoked record cannot rotate", func(t *testing.T) {
			rec := newTestRecord(t, "u3", nil)
			require.NoError(t, store.Create(ctx, rec))
			_, err := store.RevokeByTokenHash(ctx, rec.TokenHash)
			require.NoError(t, err)

			assert.ErrorIs(t, store.Rotate(ctx, rec.ID, newTestRecord(t, "u3", rec)), ErrConcurrentUse)
		})
	})
}

func TestStore_RotateConcurrent(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		root := newTestRecord(t, "u1", nil)
		require.NoError(t, store.Create(ctx, root))

		const workers = 16
		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				succ, _, err := newRecord(tokengen.New(), baseTime, "u1", KindRefresh, time.Hour, TokenMetadata{})
				if err != nil {
					return
				}
				succ.ParentToken = &root.ID
				if store.Rotate(ctx, root.ID, succ) == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
		children, err := store.FindByParent(ctx, root.ID)
		require.NoError(t, err)
		assert.Len(t, children, 1)
	})
}

func TestStore_Revoke(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		a := newTestRecord(t, "u1", nil)
		b := newTestRecord(t, "u1", nil)
		c := newTestRecord(t, "u2", nil)
		for _, rec := range []*RefreshToken{a, b, c} {
			require.NoError(t, store.Create(ctx, rec))
		}

		n, err := store.RevokeByTokenHash(ctx, a.TokenHash)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = store.RevokeByTokenHash(ctx, a.TokenHash)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)

		n, err = store.RevokeByTokenHash(ctx, "unknown")
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)

		n, err = store.RevokeAllForUser(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		got, err := store.FindByID(ctx, c.ID)
		require.NoError(t, err)
		assert.False(t, got.IsRevoked)
	})
}

func TestStore_RevokeFamily(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		// Records under another user id linked by parent only exercise the
		// sibling and child clauses.
		root := newTestRecord(t, "u1", nil)
		reused := newTestRecord(t, "u1", root)
		sibling := newTestRecord(t, "u9", root)
		child := newTestRecord(t, "u8", reused)
		otherDevice := newTestRecord(t, "u1", nil)
		unrelated := newTestRecord(t, "u2", nil)
		for _, rec := range []*RefreshToken{root, reused, sibling, child, otherDevice, unrelated} {
			require.NoError(t, store.Create(ctx, rec))
		}

		n, err := store.RevokeFamily(ctx, reused.UserID, reused.ParentToken, reused.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)

		for _, rec := range []*RefreshToken{root, reused, sibling, child, otherDevice} {
			got, err := store.FindByID(ctx, rec.ID)
			require.NoError(t, err)
			assert.True(t, got.IsRevoked, "record of %s should be revoked", rec.UserID)
		}
		got, err := store.FindByID(ctx, unrelated.ID)
		require.NoError(t, err)
		assert.False(t, got.IsRevoked)

		t.Run("root token without parent", func(t *testing.T) {
			lone := newTestRecord(t, "u5", nil)
			require.NoError(t, store.Create(ctx, lone))

			n, err := store.RevokeFamily(ctx, lone.UserID, nil, lone.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)
		})
	})
}

func TestStore_DeleteExpiredOrRevoked(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		now := baseTime.Add(time.Hour)

		var expired, revoked, both, live, used []*RefreshToken
		for i := 0; i < 3; i++ {
			rec := newTestRecord(t, "u1", nil)
			rec.ExpiresAt = now.Add(-time.Minute)
			expired = append(expired, rec)
		}
		for i := 0; i < 2; i++ {
			revoked = append(revoked, newTestRecord(t, "u2", nil))
		}
		overlap := newTestRecord(t, "u3", nil)
		overlap.ExpiresAt = now.Add(-time.Second)
		both = append(both, overlap)
		for i := 0; i < 4; i++ {
			live = append(live, newTestRecord(t, "u4", nil))
		}
		edge := newTestRecord(t, "u4", nil)
		edge.ExpiresAt = now
		live = append(live, edge)
		usedRec := newTestRecord(t, "u5", nil)
		used = append(used, usedRec)

		for _, group := range [][]*RefreshToken{expired, revoked, both, live, used} {
			for _, rec := range group {
				require.NoError(t, store.Create(ctx, rec))
			}
		}
		for _, rec := range append(revoked, both...) {
			_, err := store.RevokeByTokenHash(ctx, rec.TokenHash)
			require.NoError(t, err)
		}
		require.NoError(t, store.MarkUsed(ctx, usedRec.ID))

		n, err := store.DeleteExpiredOrRevoked(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(len(expired)+len(revoked)+len(both)), n)

		for _, rec := range append(live, used...) {
			got, err := store.FindByTokenHash(ctx, rec.TokenHash)
			require.NoError(t, err)
			assert.Equal(t, rec.ID, got.ID)
		}
		for _, rec := range append(append(expired, revoked...), both...) {
			_, err := store.FindByTokenHash(ctx, rec.TokenHash)
			assert.ErrorIs(t, err, ErrRecordNotFound)
		}

		n, err = store.DeleteExpiredOrRevoked(ctx, now)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

package refreshtoken

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in process. A single mutex serialises every
// write, which is what makes Rotate atomic here.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*RefreshToken
	byHash  map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*RefreshToken),
		byHash:  make(map[string]string),
	}
}

func (s *MemoryStore) Create(ctx context.Context, token *RefreshToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertLocked(token)
}

func (s *MemoryStore) insertLocked(token *RefreshToken) error {
	if _, exists := s.byHash[token.TokenHash]; exists {
		return ErrTokenCollision
	}
	if _, exists := s.records[token.ID]; exists {
		return ErrTokenCollision
	}

	rec := token.clone()
	s.records[rec.ID] = rec
	s.byHash[rec.TokenHash] = rec.ID
	return nil
}

func (s *MemoryStore) FindByTokenHash(ctx context.Context, hash string) (*RefreshToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byHash[hash]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return s.records[id].clone(), nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (*RefreshToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return rec.clone(), nil
}

func (s *MemoryStore) FindByUser(ctx context.Context, userID string) ([]RefreshToken, error) {
	return s.filter(ctx, func(rec *RefreshToken) bool {
		return rec.UserID == userID
	})
}

func (s *MemoryStore) FindByParent(ctx context.Context, parentID string) ([]RefreshToken, error) {
	return s.filter(ctx, func(rec *RefreshToken) bool {
		return rec.ParentToken != nil && *rec.ParentToken == parentID
	})
}

func (s *MemoryStore) filter(ctx context.Context, match func(*RefreshToken) bool) ([]RefreshToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []RefreshToken
	for _, rec := range s.records {
		if match(rec) {
			out = append(out, *rec.clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) MarkUsed(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.markUsedLocked(id)
}

func (s *MemoryStore) markUsedLocked(id string) error {
	rec, ok := s.records[id]
	if !ok || rec.IsUsed || rec.IsRevoked {
		return ErrConcurrentUse
	}
	rec.IsUsed = true
	return nil
}

func (s *MemoryStore) Rotate(ctx context.Context, usedID string, successor *RefreshToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[usedID]
	if !ok || rec.IsUsed || rec.IsRevoked {
		return ErrConcurrentUse
	}
	if err := s.insertLocked(successor); err != nil {
		return err
	}
	rec.IsUsed = true
	return nil
}

func (s *MemoryStore) RevokeByTokenHash(ctx context.Context, hash string) (int64, error) {
	return s.revoke(ctx, func(rec *RefreshToken) bool {
		return rec.TokenHash == hash
	})
}

func (s *MemoryStore) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	return s.revoke(ctx, func(rec *RefreshToken) bool {
		return rec.UserID == userID
	})
}

func (s *MemoryStore) RevokeFamily(ctx context.Context, userID string, parentID *string, selfID string) (int64, error) {
	return s.revoke(ctx, func(rec *RefreshToken) bool {
		if rec.UserID == userID {
			return true
		}
		if rec.ParentToken == nil {
			return false
		}
		if parentID != nil && *rec.ParentToken == *parentID {
			return true
		}
		return *rec.ParentToken == selfID
	})
}

func (s *MemoryStore) revoke(ctx context.Context, match func(*RefreshToken) bool) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, rec := range s.records {
		if !rec.IsRevoked && match(rec) {
			rec.IsRevoked = true
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) DeleteExpiredOrRevoked(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, rec := range s.records {
		if rec.IsRevoked || rec.ExpiresAt.Before(now) {
			delete(s.byHash, rec.TokenHash)
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

// Len reports the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

package refreshtoken

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// GormStore persists records in a relational database. The connection must
// be opened with TranslateError so unique violations surface as
// gorm.ErrDuplicatedKey.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates the refresh_tokens table.
func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(&RefreshToken{})
}

func (s *GormStore) Create(ctx context.Context, token *RefreshToken) error {
	if err := s.db.WithContext(ctx).Create(normalized(token)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrTokenCollision
		}
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

func (s *GormStore) FindByTokenHash(ctx context.Context, hash string) (*RefreshToken, error) {
	return s.take(ctx, "token_hash = ?", hash)
}

func (s *GormStore) FindByID(ctx context.Context, id string) (*RefreshToken, error) {
	return s.take(ctx, "id = ?", id)
}

func (s *GormStore) take(ctx context.Context, query string, arg any) (*RefreshToken, error) {
	var rec RefreshToken
	err := s.db.WithContext(ctx).Where(query, arg).Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	rec.ExpiresAt = rec.ExpiresAt.UTC()
	rec.CreatedAt = rec.CreatedAt.UTC()
	return &rec, nil
}

func (s *GormStore) FindByUser(ctx context.Context, userID string) ([]RefreshToken, error) {
	var recs []RefreshToken
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return recs, nil
}

func (s *GormStore) FindByParent(ctx context.Context, parentID string) ([]RefreshToken, error) {
	var recs []RefreshToken
	if err := s.db.WithContext(ctx).Where("parent_token = ?", parentID).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return recs, nil
}

func (s *GormStore) MarkUsed(ctx context.Context, id string) error {
	return markUsed(s.db.WithContext(ctx), id)
}

func markUsed(tx *gorm.DB, id string) error {
	result := tx.Model(&RefreshToken{}).
		Where("id = ? AND is_used = ? AND is_revoked = ?", id, false, false).
		Update("is_used", true)
	if result.Error != nil {
		return fmt.Errorf("failed to mark refresh token used: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrConcurrentUse
	}
	return nil
}

func (s *GormStore) Rotate(ctx context.Context, usedID string, successor *RefreshToken) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := markUsed(tx, usedID); err != nil {
			return err
		}
		if err := tx.Create(normalized(successor)).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrTokenCollision
			}
			return fmt.Errorf("failed to store successor token: %w", err)
		}
		return nil
	})
}

func (s *GormStore) RevokeByTokenHash(ctx context.Context, hash string) (int64, error) {
	return s.revoke(s.db.WithContext(ctx).Where("token_hash = ?", hash))
}

func (s *GormStore) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	return s.revoke(s.db.WithContext(ctx).Where("user_id = ?", userID))
}

func (s *GormStore) RevokeFamily(ctx context.Context, userID string, parentID *string, selfID string) (int64, error) {
	scope := s.db.WithContext(ctx)
	if parentID != nil {
		scope = scope.Where("(user_id = ? OR parent_token = ? OR parent_token = ?)", userID, *parentID, selfID)
	} else {
		scope = scope.Where("(user_id = ? OR parent_token = ?)", userID, selfID)
	}
	return s.revoke(scope)
}

func (s *GormStore) revoke(scope *gorm.DB) (int64, error) {
	result := scope.Model(&RefreshToken{}).
		Where("is_revoked = ?", false).
		Update("is_revoked", true)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to revoke refresh tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *GormStore) DeleteExpiredOrRevoked(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ? OR is_revoked = ?", now.UTC(), true).
		Delete(&RefreshToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete refresh tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// normalized stores times in UTC. SQLite compares timestamps as text, so
// mixed zones would break the expiry comparison.
func normalized(token *RefreshToken) *RefreshToken {
	token.ExpiresAt = token.ExpiresAt.UTC()
	token.CreatedAt = token.CreatedAt.UTC()
	return token
}

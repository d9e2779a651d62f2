package identity

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

const DefaultUserTable = "users"

// UserRecord is the read-only projection of the application's user table.
// Only the columns needed for claims are read.
type UserRecord struct {
	ID       string `gorm:"primaryKey;size:64"`
	Email    string `gorm:"size:255"`
	Username string `gorm:"size:255"`
	Role     string `gorm:"size:64"`
}

// GormProvider resolves claims from a table owned by the surrounding
// application.
type GormProvider struct {
	db    *gorm.DB
	table string
}

func NewGormProvider(db *gorm.DB, table string) *GormProvider {
	if table == "" {
		table = DefaultUserTable
	}
	return &GormProvider{db: db, table: table}
}

func (p *GormProvider) Resolve(ctx context.Context, userID string) (Claims, error) {
	var rec UserRecord
	err := p.db.WithContext(ctx).
		Table(p.table).
		Select("id", "email", "username", "role").
		Where("id = ?", userID).
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Claims{}, ErrUnknownIdentity
		}
		return Claims{}, fmt.Errorf("failed to load identity: %w", err)
	}

	return Claims{
		Subject:  rec.ID,
		Email:    rec.Email,
		Username: rec.Username,
		Role:     rec.Role,
	}, nil
}

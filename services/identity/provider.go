package identity

import (
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// GormModule binds Provider to the application's users table. Applications
// with their own identity source supply a Provider instead.
var GormModule = fx.Options(
	fx.Provide(func(db *gorm.DB) Provider {
		return NewGormProvider(db, DefaultUserTable)
	}),
)

package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App          AppConfig          `envPrefix:"APP_"`
	Log          LogConfig          `envPrefix:"LOG_"`
	Database     DatabaseConfig     `envPrefix:"DATABASE_"`
	Redis        RedisConfig        `envPrefix:"REDIS_"`
	JWT          JWTConfig          `envPrefix:"JWT_"`
	RefreshToken RefreshTokenConfig `envPrefix:"REFRESH_TOKEN_"`
	Handoff      HandoffConfig      `envPrefix:"HANDOFF_"`
}

type AppConfig struct {
	Name string `env:"NAME" envDefault:"tokenguard"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	Output string `env:"OUTPUT" envDefault:"stdout"`
}

type DatabaseConfig struct {
	Driver      string `env:"DRIVER" envDefault:"sqlite"`
	DSN         string `env:"DSN" envDefault:"tokens.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

type RedisConfig struct {
	Addr      string `env:"ADDR" envDefault:"localhost:6379"`
	Password  string `env:"PASSWORD"`
	DB        int    `env:"DB" envDefault:"0"`
	KeyPrefix string `env:"KEY_PREFIX" envDefault:"tokenguard:"`
}

type JWTConfig struct {
	SecretKey    string        `env:"SECRET_KEY"`
	Algorithm    string        `env:"ALGORITHM" envDefault:"HS256"`
	AccessExpiry time.Duration `env:"ACCESS_EXPIRY" envDefault:"15m"`
	Issuer       string        `env:"ISSUER" envDefault:"tokenguard"`
}

// StoreType selects the RefreshToken persistence backend.
type StoreType string

const (
	StoreGorm   StoreType = "gorm"
	StoreRedis  StoreType = "redis"
	StoreMemory StoreType = "memory"
)

type RefreshTokenConfig struct {
	Store           StoreType     `env:"STORE" envDefault:"gorm"`
	Expiry          time.Duration `env:"EXPIRY" envDefault:"168h"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1h"`
	// StrictBinding rejects rotation when the stored record carries no IP or
	// user-agent to bind against. When false the missing check is skipped and
	// logged.
	StrictBinding bool `env:"STRICT_BINDING" envDefault:"false"`
}

type HandoffConfig struct {
	TTL time.Duration `env:"TTL" envDefault:"2m"`
}

func LoadConfig(cfg any) error {
	if err := parse(cfg); err != nil {
		return err
	}

	if c, ok := cfg.(*Config); ok {
		return Validate(c)
	}

	return nil
}

// LoadStoreConfig loads the full config but validates only what a purge-only
// process touches. JWT settings may be missing.
func LoadStoreConfig(cfg *Config) error {
	if err := parse(cfg); err != nil {
		return err
	}
	return validateRefreshTokenConfig(&cfg.RefreshToken)
}

func parse(cfg any) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}
	return env.Parse(cfg)
}

func Validate(cfg *Config) error {
	if err := validateJWTConfig(&cfg.JWT); err != nil {
		return err
	}
	if err := validateRefreshTokenConfig(&cfg.RefreshToken); err != nil {
		return err
	}
	if cfg.Handoff.TTL <= 0 {
		return errors.New("handoff TTL must be positive")
	}
	return nil
}

var weakSecretPatterns = []string{"password", "secret", "test", "example", "default", "change"}

func validateJWTConfig(cfg *JWTConfig) error {
	if len(cfg.SecretKey) < 32 {
		return errors.New("JWT secret key must be at least 32 characters long")
	}

	lower := strings.ToLower(cfg.SecretKey)
	for _, pattern := range weakSecretPatterns {
		if strings.Contains(lower, pattern) {
			return errors.New("JWT secret key contains weak patterns")
		}
	}

	switch cfg.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("unsupported JWT algorithm: %s (supported: HS256, HS384, HS512)", cfg.Algorithm)
	}

	if cfg.AccessExpiry <= 0 {
		return errors.New("JWT access expiry must be positive")
	}

	return nil
}

func validateRefreshTokenConfig(cfg *RefreshTokenConfig) error {
	switch cfg.Store {
	case StoreGorm, StoreRedis, StoreMemory:
	default:
		return errors.New("refresh token store must be: gorm, redis, or memory")
	}

	if cfg.Expiry <= 0 {
		return errors.New("refresh token expiry must be positive")
	}

	if cfg.CleanupInterval < 0 {
		return errors.New("refresh token cleanup interval cannot be negative")
	}

	return nil
}

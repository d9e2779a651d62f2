package testutils

import (
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/tech-arch1tect/tokenguard/config"
)

func GetTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name: "Test App",
		},
		Log: config.LogConfig{
			Level:  "debug",
			Format: "console",
			Output: "stdout",
		},
		Database: config.DatabaseConfig{
			Driver:      "sqlite",
			DSN:         ":memory:",
			AutoMigrate: true,
		},
		JWT: config.JWTConfig{
			SecretKey:    "k3y-f0r-unit-runs-0123456789abcdef",
			Algorithm:    "HS256",
			AccessExpiry: 15 * time.Minute,
			Issuer:       "test-issuer",
		},
		RefreshToken: config.RefreshTokenConfig{
			Store:           config.StoreMemory,
			Expiry:          7 * 24 * time.Hour,
			CleanupInterval: time.Hour,
		},
		Handoff: config.HandoffConfig{
			TTL: 2 * time.Minute,
		},
	}
}

// Client is a fake device presenting tokens.
type Client struct {
	IP        string
	UserAgent string
}

var faker = gofakeit.New(20260101)

// FakeClient returns a random but reproducible IPv4 address and user agent.
func FakeClient() Client {
	return Client{
		IP:        faker.IPv4Address(),
		UserAgent: faker.UserAgent(),
	}
}

// FakeUserID returns a random opaque user identifier.
func FakeUserID() string {
	return faker.UUID()
}

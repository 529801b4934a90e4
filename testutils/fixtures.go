package testutils

import (
	"time"

	"github.com/tech-arch1tect/backyard/config"
	"golang.org/x/crypto/bcrypt"
)

const TestCookieKey = "AYHpuOn7gTo2BD5q5mCLW-YF3qMmQligq9as3tbFy7w="

func GetTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name: "Backyard Test",
			URL:  "http://localhost:8080",
		},
		Log: config.LogConfig{
			Level:  "debug",
			Format: "console",
			Output: "stdout",
		},
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			DSN:    ":memory:",
		},
		Auth: config.AuthConfig{
			MinLength:                8,
			MaxLength:                15,
			RequireUpper:             true,
			RequireLower:             true,
			RequireSpecial:           true,
			MaxRepeat:                3,
			BcryptCost:               bcrypt.MinCost,
			PasswordResetEnabled:     true,
			PasswordResetTokenLength: 32,
			PasswordResetExpiry:      time.Hour,
		},
		JWT: config.JWTConfig{
			SecretKey:     "k9q2w8e7r6t5y4u3i2o1p0a9s8d7f6g5",
			AccessExpiry:  15 * time.Minute,
			RefreshExpiry: 24 * time.Hour,
			Issuer:        "backyard-test",
		},
		Cookie: config.CookieConfig{
			Name:          "access",
			Path:          "/",
			Secure:        true,
			HTTPOnly:      true,
			SameSite:      "lax",
			EncryptionKey: TestCookieKey,
		},
		OTP: config.OTPConfig{
			Digits:        4,
			ResendWindow:  2 * time.Minute,
			TwoFactorRole: "2fa",
		},
		RateLimit: config.RateLimitConfig{
			Store:     "memory",
			Rate:      100,
			Period:    time.Minute,
			CountMode: config.CountAll,
		},
		ACL: config.ACLConfig{
			ManageModule:     "acl",
			ManagePermission: "manage",
		},
		Metrics: config.MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

var TestPasswords = struct {
	Valid       string
	TooShort    string
	TooLong     string
	NoUpper     string
	NoLower     string
	NoSpecial   string
	Repeated    string
	AlsoValid   string
	WithNumbers string
}{
	Valid:       "Hello@123",
	TooShort:    "He@1",
	TooLong:     "Hello@1234567890",
	NoUpper:     "hello@123",
	NoLower:     "HELLO@123",
	NoSpecial:   "Hello1234",
	Repeated:    "Heeeello@1",
	AlsoValid:   "World#2024",
	WithNumbers: "Passw0rd!",
}

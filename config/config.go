package config

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/fernet/fernet-go"
	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig       `envPrefix:"APP_"`
	Server    ServerConfig    `envPrefix:"SERVER_"`
	Log       LogConfig       `envPrefix:"LOG_"`
	Database  DatabaseConfig  `envPrefix:"DATABASE_"`
	Auth      AuthConfig      `envPrefix:"AUTH_"`
	JWT       JWTConfig       `envPrefix:"JWT_"`
	Cookie    CookieConfig    `envPrefix:"COOKIE_"`
	OTP       OTPConfig       `envPrefix:"OTP_"`
	Mail      MailConfig      `envPrefix:"MAIL_"`
	RateLimit RateLimitConfig `envPrefix:"RATE_LIMIT_"`
	ACL       ACLConfig       `envPrefix:"ACL_"`
	Metrics   MetricsConfig   `envPrefix:"METRICS_"`
}

type AppConfig struct {
	Name string `env:"NAME" envDefault:"backyard"`
	URL  string `env:"URL" envDefault:"http://localhost:8080"`
}

type ServerConfig struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	Host            string        `env:"HOST" envDefault:"localhost"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	TrustedProxies  []string      `env:"TRUSTED_PROXIES" envSeparator:","`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	Output string `env:"OUTPUT" envDefault:"stdout"`
}

type DatabaseConfig struct {
	Driver      string `env:"DRIVER" envDefault:"sqlite"`
	DSN         string `env:"DSN" envDefault:"backyard.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

type AuthConfig struct {
	MinLength                int           `env:"PASSWORD_MIN_LENGTH" envDefault:"8"`
	MaxLength                int           `env:"PASSWORD_MAX_LENGTH" envDefault:"15"`
	RequireUpper             bool          `env:"PASSWORD_REQUIRE_UPPER" envDefault:"true"`
	RequireLower             bool          `env:"PASSWORD_REQUIRE_LOWER" envDefault:"true"`
	RequireNumber            bool          `env:"PASSWORD_REQUIRE_NUMBER" envDefault:"false"`
	RequireSpecial           bool          `env:"PASSWORD_REQUIRE_SPECIAL" envDefault:"true"`
	MaxRepeat                int           `env:"PASSWORD_MAX_REPEAT" envDefault:"3"`
	BcryptCost               int           `env:"BCRYPT_COST" envDefault:"10"`
	PasswordResetEnabled     bool          `env:"PASSWORD_RESET_ENABLED" envDefault:"true"`
	PasswordResetTokenLength int           `env:"PASSWORD_RESET_TOKEN_LENGTH" envDefault:"32"`
	PasswordResetExpiry      time.Duration `env:"PASSWORD_RESET_EXPIRY" envDefault:"1h"`
}

type JWTConfig struct {
	SecretKey     string        `env:"SECRET_KEY,required"`
	AccessExpiry  time.Duration `env:"ACCESS_EXPIRY" envDefault:"15m"`
	RefreshExpiry time.Duration `env:"REFRESH_EXPIRY" envDefault:"24h"`
	Issuer        string        `env:"ISSUER" envDefault:"backyard"`
}

type CookieConfig struct {
	Name          string `env:"NAME" envDefault:"access"`
	Domain        string `env:"DOMAIN"`
	Path          string `env:"PATH" envDefault:"/"`
	Secure        bool   `env:"SECURE" envDefault:"true"`
	HTTPOnly      bool   `env:"HTTP_ONLY" envDefault:"true"`
	SameSite      string `env:"SAME_SITE" envDefault:"lax"`
	EncryptionKey string `env:"ENCRYPTION_KEY,required"`
}

// SameSiteMode maps the configured SAME_SITE value onto net/http's enum.
func (c CookieConfig) SameSiteMode() http.SameSite {
	switch strings.ToLower(c.SameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "lax":
		return http.SameSiteLaxMode
	default:
		return http.SameSiteDefaultMode
	}
}

type OTPConfig struct {
	Digits        int           `env:"DIGITS" envDefault:"4"`
	ResendWindow  time.Duration `env:"RESEND_WINDOW" envDefault:"2m"`
	TwoFactorRole string        `env:"TWO_FACTOR_ROLE" envDefault:"2fa"`
}

type MailConfig struct {
	Enabled      bool   `env:"ENABLED" envDefault:"false"`
	Host         string `env:"HOST" envDefault:"localhost"`
	Port         int    `env:"PORT" envDefault:"587"`
	Username     string `env:"USERNAME"`
	Password     string `env:"PASSWORD"`
	Encryption   string `env:"ENCRYPTION" envDefault:"tls"`
	FromAddress  string `env:"FROM_ADDRESS" envDefault:"no-reply@localhost"`
	FromName     string `env:"FROM_NAME" envDefault:"backyard"`
	TemplatesDir string `env:"TEMPLATES_DIR"`
}

type CountingMode string

const (
	CountAll      CountingMode = "all"
	CountFailures CountingMode = "failures"
	CountSuccess  CountingMode = "success"
)

type RateLimitConfig struct {
	Enabled   bool          `env:"ENABLED" envDefault:"true"`
	Store     string        `env:"STORE" envDefault:"memory"`
	Rate      int           `env:"RATE" envDefault:"10"`
	Period    time.Duration `env:"PERIOD" envDefault:"1m"`
	CountMode CountingMode  `env:"COUNT_MODE" envDefault:"all"`
	RedisAddr string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB   int           `env:"REDIS_DB" envDefault:"0"`
}

type ACLConfig struct {
	EnforcePermissions bool   `env:"ENFORCE_PERMISSIONS" envDefault:"false"`
	ManageModule       string `env:"MANAGE_MODULE" envDefault:"acl"`
	ManagePermission   string `env:"MANAGE_PERMISSION" envDefault:"manage"`
	SeedFile           string `env:"SEED_FILE"`
}

type MetricsConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"true"`
	Path    string `env:"PATH" envDefault:"/metrics"`
}

func LoadConfig(cfg any) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	if err := env.Parse(cfg); err != nil {
		return err
	}

	if c, ok := cfg.(*Config); ok {
		return c.Validate()
	}
	return nil
}

func (c *Config) Validate() error {
	if err := validateJWTConfig(&c.JWT); err != nil {
		return err
	}
	if err := validateCookieConfig(&c.Cookie); err != nil {
		return err
	}
	return validateOTPConfig(&c.OTP)
}

var weakSecretPatterns = []string{"password", "secret", "test", "example", "default", "change"}

func validateJWTConfig(cfg *JWTConfig) error {
	if len(cfg.SecretKey) < 32 {
		return fmt.Errorf("JWT secret key must be at least 32 characters long")
	}

	lower := strings.ToLower(cfg.SecretKey)
	for _, pattern := range weakSecretPatterns {
		if strings.Contains(lower, pattern) {
			return fmt.Errorf("JWT secret key contains weak patterns (%s)", pattern)
		}
	}

	if cfg.AccessExpiry <= 0 || cfg.RefreshExpiry <= 0 {
		return fmt.Errorf("JWT token lifetimes must be positive")
	}
	return nil
}

func validateCookieConfig(cfg *CookieConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("cookie name cannot be empty")
	}
	if _, err := fernet.DecodeKey(cfg.EncryptionKey); err != nil {
		return fmt.Errorf("cookie encryption key must be a url-safe base64 encoded 32-byte key")
	}
	return nil
}

func validateOTPConfig(cfg *OTPConfig) error {
	if cfg.Digits < 4 || cfg.Digits > 8 {
		return fmt.Errorf("OTP digits must be between 4 and 8")
	}
	if cfg.ResendWindow <= 0 {
		return fmt.Errorf("OTP resend window must be positive")
	}
	return nil
}

package ratelimit

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/backyard/apierror"
	"github.com/tech-arch1tect/backyard/config"
	"github.com/tech-arch1tect/backyard/services/logging"
	"go.uber.org/zap"
)

type Config struct {
	Store          Store
	Rate           int
	Period         time.Duration
	CountMode      config.CountingMode
	KeyGenerator   func(c echo.Context) string
	OnLimitReached func(c echo.Context) error
	Logger         *logging.Service
}

// FromConfig builds a middleware config from the RATE_LIMIT_ settings.
func FromConfig(cfg config.RateLimitConfig, store Store, logger *logging.Service) *Config {
	return &Config{
		Store:     store,
		Rate:      cfg.Rate,
		Period:    cfg.Period,
		CountMode: cfg.CountMode,
		Logger:    logger,
	}
}

// Middleware enforces a fixed window per key. Store failures let the request
// through.
func Middleware(cfg *Config) echo.MiddlewareFunc {
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}

	if cfg.Rate <= 0 {
		cfg.Rate = 10
	}

	if cfg.Period <= 0 {
		cfg.Period = time.Minute
	}

	if cfg.KeyGenerator == nil {
		cfg.KeyGenerator = DefaultKeyGenerator
	}

	if cfg.OnLimitReached == nil {
		cfg.OnLimitReached = DefaultOnLimitReached
	}

	if cfg.CountMode == "" {
		cfg.CountMode = config.CountAll
	}

	logger := cfg.Logger.Named("ratelimit")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := cfg.KeyGenerator(c)
			resetTime := time.Now().Add(cfg.Period)

			count, existingResetTime, exists, err := cfg.Store.Get(ctx, key)
			if err != nil {
				logger.Warn("rate limit store unavailable", zap.Error(err), zap.String("key", key))
				return next(c)
			}
			if exists {
				resetTime = existingResetTime
			}

			if count >= cfg.Rate {
				setHeaders(c, cfg.Rate, 0, resetTime)
				logger.Warn("rate limit reached", zap.String("key", key), zap.String("path", c.Path()))
				return cfg.OnLimitReached(c)
			}

			newCount := count + 1
			if cfg.CountMode == config.CountAll {
				if newCount, err = cfg.Store.Increment(ctx, key, resetTime); err != nil {
					logger.Warn("rate limit store unavailable", zap.Error(err), zap.String("key", key))
					return next(c)
				}
			}

			setHeaders(c, cfg.Rate, max(cfg.Rate-newCount, 0), resetTime)

			err = next(c)

			if cfg.CountMode != config.CountAll {
				status := responseStatus(c, err)

				shouldCount := false
				switch cfg.CountMode {
				case config.CountFailures:
					shouldCount = status >= 400
				case config.CountSuccess:
					shouldCount = status < 400
				}

				if shouldCount {
					if _, storeErr := cfg.Store.Increment(ctx, key, resetTime); storeErr != nil {
						logger.Warn("rate limit store unavailable", zap.Error(storeErr), zap.String("key", key))
					}
				}
			}

			return err
		}
	}
}

func setHeaders(c echo.Context, limit, remaining int, resetTime time.Time) {
	header := c.Response().Header()
	header.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	header.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	header.Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))
}

// responseStatus is the status the request will answer with, including
// errors the error handler has not rendered yet.
func responseStatus(c echo.Context, err error) int {
	if err == nil {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	if apiErr, ok := apierror.As(err); ok {
		return apiErr.Status
	}
	return http.StatusInternalServerError
}

func DefaultKeyGenerator(c echo.Context) string {
	realIP := c.RealIP()

	if realIP == "" || realIP == "unknown" {
		realIP = "fallback"
	}

	return "rate_limit:" + realIP
}

// RouteKeyGenerator limits each client per route, so hammering login does
// not lock the client out of signup.
func RouteKeyGenerator(c echo.Context) string {
	return DefaultKeyGenerator(c) + ":" + c.Request().Method + ":" + c.Path()
}

func SecureKeyGenerator(c echo.Context) string {
	realIP := c.RealIP()
	userAgent := c.Request().Header.Get("User-Agent")

	if realIP == "" || realIP == "unknown" {
		realIP = "fallback"
	}

	return fmt.Sprintf("rate_limit:%s:%s", realIP, simpleHash(userAgent))
}

func simpleHash(s string) string {
	if len(s) == 0 {
		return "none"
	}

	hash := uint32(0)
	for _, c := range s {
		hash = hash*31 + uint32(c)
	}

	return fmt.Sprintf("%x", hash%0xFFFFFF)
}

func DefaultOnLimitReached(c echo.Context) error {
	return apierror.RateLimited()
}

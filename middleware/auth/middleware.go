// Package auth resolves the caller of each request and guards routes that
// need an authenticated or authorised principal.
package auth

import (
	"mime"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/backyard/apierror"
	"github.com/tech-arch1tect/backyard/config"
	"github.com/tech-arch1tect/backyard/services/acl"
	"github.com/tech-arch1tect/backyard/services/logging"
	"github.com/tech-arch1tect/backyard/services/session"
	"go.uber.org/zap"
)

const (
	PrincipalKey = "_principal"

	MsgNotAuthenticated = "Authentication credentials were not provided."
	MsgNoPermission     = "You do not have permission to perform this action."
)

// Authenticate resolves the principal from the Authorization header or the
// access cookie. Requests without a credential pass through anonymously; a
// credential that fails to resolve is rejected.
func Authenticate(sessions *session.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, err := sessions.Authenticate(c.Request().Context(), c.Request())
			if err != nil {
				return err
			}
			if principal != nil {
				c.Set(PrincipalKey, principal)
				c.Set(logging.UserIDKey, principal.User.ID)
			}
			return next(c)
		}
	}
}

// RequireAuth rejects anonymous requests. It must run after Authenticate.
func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if GetPrincipal(c) == nil {
				return apierror.Unauthorized(MsgNotAuthenticated)
			}
			return next(c)
		}
	}
}

// RequirePermission checks the principal holds permission inside module.
// With ACL_ENFORCE_PERMISSIONS off any authenticated caller passes.
func RequirePermission(aclService *acl.Service, cfg config.ACLConfig, logger *logging.Service, module, permission string) echo.MiddlewareFunc {
	logger = logger.Named("acl")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal := GetPrincipal(c)
			if principal == nil {
				return apierror.Unauthorized(MsgNotAuthenticated)
			}
			if !cfg.EnforcePermissions {
				return next(c)
			}

			allowed, err := aclService.HasPermission(c.Request().Context(), principal.User.ID, module, permission)
			if err != nil {
				return err
			}
			if !allowed {
				logger.Warn("permission denied",
					logging.UserID(principal.User.ID),
					zap.String("module", module),
					zap.String("permission", permission))
				return apierror.Forbidden(MsgNoPermission)
			}
			return next(c)
		}
	}
}

// RequireJSON rejects request bodies that are not declared as JSON.
func RequireJSON() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch c.Request().Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
			default:
				return next(c)
			}

			mediaType, _, err := mime.ParseMediaType(c.Request().Header.Get(echo.HeaderContentType))
			if err != nil || mediaType != echo.MIMEApplicationJSON {
				return apierror.UnsupportedMediaType()
			}
			return next(c)
		}
	}
}

func GetPrincipal(c echo.Context) *session.Principal {
	if principal, ok := c.Get(PrincipalKey).(*session.Principal); ok {
		return principal
	}
	return nil
}

func GetUserID(c echo.Context) uint {
	if principal := GetPrincipal(c); principal != nil {
		return principal.User.ID
	}
	return 0
}

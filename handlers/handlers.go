// Package handlers exposes the account, session and access-control
// operations over HTTP under /api/v1.
package handlers

import (
	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/backyard/config"
	"github.com/tech-arch1tect/backyard/metrics"
	authmw "github.com/tech-arch1tect/backyard/middleware/auth"
	"github.com/tech-arch1tect/backyard/middleware/ratelimit"
	"github.com/tech-arch1tect/backyard/server"
	"github.com/tech-arch1tect/backyard/services/acl"
	"github.com/tech-arch1tect/backyard/services/auth"
	"github.com/tech-arch1tect/backyard/services/logging"
	"github.com/tech-arch1tect/backyard/services/session"
	"github.com/tech-arch1tect/backyard/services/users"
)

const APIPrefix = "/api/v1"

type Handlers struct {
	cfg       *config.Config
	auth      *auth.Service
	acl       *acl.Service
	users     *users.Service
	sessions  *session.Service
	metrics   *metrics.Metrics
	rateStore ratelimit.Store
	logger    *logging.Service
}

func New(
	cfg *config.Config,
	authService *auth.Service,
	aclService *acl.Service,
	userService *users.Service,
	sessions *session.Service,
	m *metrics.Metrics,
	rateStore ratelimit.Store,
	logger *logging.Service,
) *Handlers {
	return &Handlers{
		cfg:       cfg,
		auth:      authService,
		acl:       aclService,
		users:     userService,
		sessions:  sessions,
		metrics:   m,
		rateStore: rateStore,
		logger:    logger.Named("handlers"),
	}
}

// Register mounts every route on srv.
func (h *Handlers) Register(srv *server.Server) {
	if h.metrics != nil {
		srv.Use(h.metrics.Middleware(server.HealthPath, h.cfg.Metrics.Path))
		srv.Get(h.cfg.Metrics.Path, echo.WrapHandler(h.metrics.Handler()))
	}

	api := srv.Group(APIPrefix, authmw.RequireJSON())
	limited := h.rateLimit()
	authed := h.authenticated()
	manage := h.manageACL()

	accounts := api.Group("/accounts")
	accounts.POST("/signup/", h.SignUp, limited...)
	accounts.POST("/verify-otp/", h.VerifyOTP, limited...)
	accounts.POST("/resend-otp/", h.ResendOTP, limited...)
	accounts.GET("/profile/:id/", h.GetProfile, authed...)
	accounts.PUT("/profile/:id/", h.UpdateProfile, authed...)

	accounts.GET("/modules/", h.ListModules, manage...)
	accounts.POST("/modules/", h.CreateModule, manage...)
	accounts.GET("/modules/:id/", h.GetModule, manage...)
	accounts.PUT("/modules/:id/", h.UpdateModule, manage...)
	accounts.DELETE("/modules/:id/", h.DeleteModule, manage...)

	accounts.GET("/permissions/", h.ListPermissions, manage...)
	accounts.POST("/permissions/", h.CreatePermission, manage...)
	accounts.GET("/permissions/:id/", h.GetPermission, manage...)
	accounts.PUT("/permissions/:id/", h.UpdatePermission, manage...)
	accounts.DELETE("/permissions/:id/", h.DeletePermission, manage...)

	accounts.GET("/roles/", h.ListRoles, manage...)
	accounts.POST("/roles/", h.CreateRole, manage...)
	accounts.GET("/roles/:id/", h.GetRole, manage...)
	accounts.PUT("/roles/:id/", h.UpdateRole, manage...)
	accounts.DELETE("/roles/:id/", h.DeleteRole, manage...)

	accounts.PUT("/users/:id/roles/", h.AssignRoles, manage...)
	accounts.GET("/users-with-roles/", h.UsersWithRoles, authed...)

	tokens := api.Group("/auth")
	tokens.POST("/token/", h.Login, limited...)
	tokens.POST("/token/refresh/", h.Refresh, limited...)
	tokens.GET("/token/details/", h.TokenDetails, authed...)
	tokens.GET("/logout/", h.Logout, authed...)
	tokens.POST("/password-reset/", h.RequestPasswordReset, limited...)
	tokens.POST("/password-reset/confirm/", h.ConfirmPasswordReset, limited...)
}

// rateLimit guards the anonymous endpoints, one window per client and route.
func (h *Handlers) rateLimit() []echo.MiddlewareFunc {
	if !h.cfg.RateLimit.Enabled {
		return nil
	}
	cfg := ratelimit.FromConfig(h.cfg.RateLimit, h.rateStore, h.logger)
	cfg.KeyGenerator = ratelimit.RouteKeyGenerator
	return []echo.MiddlewareFunc{ratelimit.Middleware(cfg)}
}

func (h *Handlers) authenticated() []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{
		authmw.Authenticate(h.sessions),
		authmw.RequireAuth(),
	}
}

func (h *Handlers) manageACL() []echo.MiddlewareFunc {
	return append(h.authenticated(),
		authmw.RequirePermission(h.acl, h.cfg.ACL, h.logger, h.cfg.ACL.ManageModule, h.cfg.ACL.ManagePermission))
}

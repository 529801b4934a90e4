package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/backyard/apierror"
	"github.com/tech-arch1tect/backyard/config"
	"github.com/tech-arch1tect/backyard/services/acl"
	"github.com/tech-arch1tect/backyard/services/cookiecrypt"
	"github.com/tech-arch1tect/backyard/services/jwt"
	"github.com/tech-arch1tect/backyard/services/logging"
	"github.com/tech-arch1tect/backyard/services/revocation"
	"github.com/tech-arch1tect/backyard/services/session"
	"github.com/tech-arch1tect/backyard/services/users"
	"github.com/tech-arch1tect/backyard/testutils"
)

type fixture struct {
	sessions *session.Service
	acl      *acl.Service
	user     *users.User
	cookie   string
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	cfg := testutils.GetTestConfig()
	models := append(acl.Models(), users.Models()...)
	db := testutils.SetupTestDB(t, append(models, revocation.Models()...)...)

	crypt, err := cookiecrypt.NewService(cfg)
	require.NoError(t, err)
	userService := users.NewService(cfg, db, nil)
	sessions := session.NewService(cfg, jwt.NewService(cfg, nil), crypt, revocation.NewService(db, nil), userService, nil)

	user, err := userService.Create(ctx, users.CreateInput{Email: "a@b.com", Password: testutils.TestPasswords.Valid})
	require.NoError(t, err)
	require.NoError(t, userService.Activate(ctx, user))

	tokens, err := sessions.IssueSession(user)
	require.NoError(t, err)

	return &fixture{sessions: sessions, acl: acl.NewService(db, nil), user: user, cookie: tokens.CookieValue}
}

func run(e *echo.Echo, req *http.Request, handler echo.HandlerFunc, mws ...echo.MiddlewareFunc) (echo.Context, error) {
	c := e.NewContext(req, httptest.NewRecorder())
	h := handler
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return c, h(c)
}

func noop(c echo.Context) error { return c.NoContent(http.StatusOK) }

func TestAuthenticate(t *testing.T) {
	f := setup(t)
	e := echo.New()

	t.Run("anonymous passes without principal", func(t *testing.T) {
		c, err := run(e, httptest.NewRequest(http.MethodGet, "/", nil), noop, Authenticate(f.sessions))
		require.NoError(t, err)
		assert.Nil(t, GetPrincipal(c))
		assert.Zero(t, GetUserID(c))
	})

	t.Run("cookie sets principal and log user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "access", Value: f.cookie})

		c, err := run(e, req, noop, Authenticate(f.sessions))
		require.NoError(t, err)
		assert.Equal(t, f.user.ID, GetUserID(c))
		assert.Equal(t, f.user.ID, c.Get(logging.UserIDKey))
	})

	t.Run("bad credential is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer garbage")

		_, err := run(e, req, noop, Authenticate(f.sessions))
		apiErr, ok := apierror.As(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	})
}

func TestRequireAuth(t *testing.T) {
	f := setup(t)
	e := echo.New()

	_, err := run(e, httptest.NewRequest(http.MethodGet, "/", nil), noop, Authenticate(f.sessions), RequireAuth())
	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	assert.Equal(t, apierror.KindUnauthorized, apiErr.Kind)
	assert.Equal(t, []string{MsgNotAuthenticated}, apiErr.Messages)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+f.cookie)
	_, err = run(e, req, noop, Authenticate(f.sessions), RequireAuth())
	assert.NoError(t, err)
}

func TestRequirePermission(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	e := echo.New()
	enforced := config.ACLConfig{EnforcePermissions: true}

	authed := func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "access", Value: f.cookie})
		return req
	}

	t.Run("not enforced lets any principal through", func(t *testing.T) {
		_, err := run(e, authed(), noop, Authenticate(f.sessions), RequirePermission(f.acl, config.ACLConfig{}, nil, "acl", "manage"))
		assert.NoError(t, err)
	})

	t.Run("anonymous is unauthorized", func(t *testing.T) {
		_, err := run(e, httptest.NewRequest(http.MethodGet, "/", nil), noop, Authenticate(f.sessions), RequirePermission(f.acl, enforced, nil, "acl", "manage"))
		assert.True(t, apierror.IsKind(err, apierror.KindUnauthorized))
	})

	t.Run("missing grant is forbidden", func(t *testing.T) {
		_, err := run(e, authed(), noop, Authenticate(f.sessions), RequirePermission(f.acl, enforced, nil, "acl", "manage"))
		assert.True(t, apierror.IsKind(err, apierror.KindForbidden))
	})

	t.Run("granted through a role", func(t *testing.T) {
		module, err := f.acl.CreateModule(ctx, acl.ModuleInput{Name: "ACL"})
		require.NoError(t, err)
		permission, err := f.acl.CreatePermission(ctx, acl.PermissionInput{Name: "Manage", ModuleID: &module.ID})
		require.NoError(t, err)
		role, err := f.acl.CreateRole(ctx, acl.RoleInput{Name: "admin", PermissionIDs: &[]uint{permission.ID}})
		require.NoError(t, err)
		_, err = f.acl.AssignRoles(ctx, f.user.ID, &[]uint{role.ID})
		require.NoError(t, err)

		_, err = run(e, authed(), noop, Authenticate(f.sessions), RequirePermission(f.acl, enforced, nil, "acl", "manage"))
		assert.NoError(t, err)
	})
}

func TestRequireJSON(t *testing.T) {
	e := echo.New()

	tests := []struct {
		name        string
		method      string
		contentType string
		wantErr     bool
	}{
		{"json post", http.MethodPost, "application/json", false},
		{"json with charset", http.MethodPut, "application/json; charset=utf-8", false},
		{"form post", http.MethodPost, "application/x-www-form-urlencoded", true},
		{"missing type", http.MethodPatch, "", true},
		{"get ignores body type", http.MethodGet, "", false},
		{"delete ignores body type", http.MethodDelete, "text/plain", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", strings.NewReader("{}"))
			if tt.contentType != "" {
				req.Header.Set(echo.HeaderContentType, tt.contentType)
			}

			_, err := run(e, req, noop, RequireJSON())
			if tt.wantErr {
				apiErr, ok := apierror.As(err)
				require.True(t, ok)
				assert.Equal(t, http.StatusUnsupportedMediaType, apiErr.Status)
				return
			}
			assert.NoError(t, err)
		})
	}
}

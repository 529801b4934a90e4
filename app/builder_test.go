package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/backyard/config"
	"github.com/tech-arch1tect/backyard/handlers"
	"github.com/tech-arch1tect/backyard/services/acl"
	"github.com/tech-arch1tect/backyard/services/users"
	"github.com/tech-arch1tect/backyard/testutils"
	"go.uber.org/fx"
)

type widget struct {
	ID   uint
	Name string
}

func buildConfig() *config.Config {
	cfg := testutils.GetTestConfig()
	cfg.Database.AutoMigrate = true
	cfg.Log.Level = "error"
	return cfg
}

func TestNewApp(t *testing.T) {
	builder := NewApp()

	assert.Nil(t, builder.config)
	assert.Empty(t, builder.models)
	assert.Empty(t, builder.fxOptions)
	assert.Empty(t, builder.errors)
}

func TestAppBuilder_WithConfig(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := buildConfig()
		builder := NewApp().WithConfig(cfg)

		assert.Same(t, cfg, builder.config)
		assert.NoError(t, builder.validate())
	})

	t.Run("nil config", func(t *testing.T) {
		builder := NewApp().WithConfig(nil)

		err := builder.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config cannot be nil")
	})
}

func TestAppBuilder_WithModels(t *testing.T) {
	builder := NewApp().WithModels(&widget{}).WithModels(&widget{})
	assert.Len(t, builder.models, 2)
}

func TestAppBuilder_WithFxOptions(t *testing.T) {
	builder := NewApp().WithFxOptions(fx.NopLogger, fx.Options())
	assert.Len(t, builder.fxOptions, 2)
}

func TestModels(t *testing.T) {
	models := Models()

	assert.IsType(t, acl.Models()[0], models[0])
	assert.Contains(t, models, users.Models()[0])
	assert.Len(t, models, len(acl.Models())+len(users.Models())+4)
}

func TestAppBuilder_Build(t *testing.T) {
	t.Run("builds the full graph", func(t *testing.T) {
		var h *handlers.Handlers
		app, err := NewApp().
			WithConfig(buildConfig()).
			WithModels(&widget{}).
			WithFxOptions(fx.Populate(&h)).
			Build()
		require.NoError(t, err)
		t.Cleanup(func() { _ = app.Close() })

		assert.NotNil(t, app.Logger())
		assert.NotNil(t, app.DB())
		assert.NotNil(t, app.Server())
		assert.NotNil(t, app.ACL())
		assert.NotNil(t, h)

		assert.True(t, app.DB().Migrator().HasTable(&widget{}))
		assert.True(t, app.DB().Migrator().HasTable(&users.User{}))
	})

	t.Run("registers api routes", func(t *testing.T) {
		app, err := NewApp().WithConfig(buildConfig()).Build()
		require.NoError(t, err)
		t.Cleanup(func() { _ = app.Close() })

		paths := map[string]bool{}
		for _, route := range app.Echo().Routes() {
			paths[route.Path] = true
		}
		assert.True(t, paths[handlers.APIPrefix+"/auth/token/"])
		assert.True(t, paths[handlers.APIPrefix+"/accounts/signup/"])
	})

	t.Run("builder errors stop the build", func(t *testing.T) {
		app, err := NewApp().WithConfig(nil).Build()

		assert.Nil(t, app)
		assert.Error(t, err)
	})

	t.Run("graph errors are reported", func(t *testing.T) {
		cfg := buildConfig()
		cfg.Database.Driver = "oracle"

		app, err := NewApp().WithConfig(cfg).Build()

		assert.Nil(t, app)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to build application")
	})
}

func TestAppBuilder_addError(t *testing.T) {
	builder := NewApp()
	builder.addError("first")
	builder.addError("second")

	err := builder.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first")
	assert.Contains(t, err.Error(), "second")
}

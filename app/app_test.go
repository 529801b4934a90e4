package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/backyard/config"
	"github.com/tech-arch1tect/backyard/server"
	"github.com/tech-arch1tect/backyard/services/logging"
	"github.com/tech-arch1tect/backyard/testutils"
	"go.uber.org/fx"
)

func newTestApp(t *testing.T, opts ...fx.Option) *App {
	t.Helper()
	cfg := testutils.GetTestConfig()
	cfg.Server.ShutdownTimeout = time.Second
	return &App{
		fx:     fx.New(append([]fx.Option{fx.NopLogger}, opts...)...),
		config: cfg,
		logger: logging.NewNop(),
	}
}

func TestApp_Start(t *testing.T) {
	t.Run("successful start", func(t *testing.T) {
		app := newTestApp(t)

		require.NoError(t, app.Start())
		app.Stop()
	})

	t.Run("start with error", func(t *testing.T) {
		app := newTestApp(t, fx.Invoke(func() error {
			return assert.AnError
		}))

		assert.Error(t, app.Start())
	})
}

func TestApp_Stop(t *testing.T) {
	t.Run("runs stop hooks", func(t *testing.T) {
		stopped := false
		app := newTestApp(t, fx.Invoke(func(lc fx.Lifecycle) {
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					stopped = true
					return nil
				},
			})
		}))

		require.NoError(t, app.Start())
		app.Stop()

		assert.True(t, stopped)
	})

	t.Run("stop hook error is logged not returned", func(t *testing.T) {
		app := newTestApp(t, fx.Invoke(func(lc fx.Lifecycle) {
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					return assert.AnError
				},
			})
		}))

		require.NoError(t, app.Start())
		assert.NotPanics(t, app.Stop)
	})

	t.Run("slow stop hook is cut off by the shutdown timeout", func(t *testing.T) {
		app := newTestApp(t, fx.Invoke(func(lc fx.Lifecycle) {
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(5 * time.Second):
						return nil
					}
				},
			})
		}))
		app.config.Server.ShutdownTimeout = 50 * time.Millisecond

		require.NoError(t, app.Start())
		start := time.Now()
		app.Stop()

		assert.Less(t, time.Since(start), 2*time.Second)
	})
}

func TestApp_Accessors(t *testing.T) {
	cfg := testutils.GetTestConfig()
	db := testutils.SetupTestDB(t)
	logger := logging.NewNop()
	srv := server.New(cfg, logger, nil)

	app := &App{config: cfg, logger: logger, db: db, server: srv}

	assert.Same(t, cfg, app.Config())
	assert.Same(t, logger, app.Logger())
	assert.Same(t, db, app.DB())
	assert.Same(t, srv, app.Server())
	assert.Same(t, srv.Echo(), app.Echo())
	assert.Nil(t, app.ACL())
}

func TestApp_EchoWithNilServer(t *testing.T) {
	app := &App{config: &config.Config{}}
	assert.Nil(t, app.Echo())
}

func TestApp_Close(t *testing.T) {
	db := testutils.SetupTestDB(t)
	app := &App{db: db, logger: logging.NewNop()}

	require.NoError(t, app.Close())

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Error(t, sqlDB.Ping())
}

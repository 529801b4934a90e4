package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/backyard/config"
	"github.com/tech-arch1tect/backyard/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func createTestConfig(driver, dsn string, autoMigrate bool) config.Config {
	return config.Config{
		Database: config.DatabaseConfig{
			Driver:      driver,
			DSN:         dsn,
			AutoMigrate: autoMigrate,
		},
	}
}

type widget struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:255;uniqueIndex"`
}

func TestWithModels(t *testing.T) {
	option := WithModels(widget{}, &widget{})
	assert.Len(t, option.models, 2)

	assert.Empty(t, WithModels().models)
}

func TestProvideDatabase_SQLite(t *testing.T) {
	t.Run("in-memory connection", func(t *testing.T) {
		db, err := ProvideDatabase(createTestConfig("sqlite", ":memory:", false), nil, logging.NewNop())

		require.NoError(t, err)
		sqlDB, err := db.DB()
		require.NoError(t, err)
		assert.NoError(t, sqlDB.Ping())
		assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
	})

	t.Run("file database with migration", func(t *testing.T) {
		dsn := filepath.Join(t.TempDir(), "backyard.db")

		db, err := ProvideDatabase(createTestConfig("sqlite", dsn, true), WithModels(&widget{}), logging.NewNop())

		require.NoError(t, err)
		assert.True(t, db.Migrator().HasTable(&widget{}))
	})

	t.Run("migration skipped when disabled", func(t *testing.T) {
		db, err := ProvideDatabase(createTestConfig("sqlite", ":memory:", false), WithModels(&widget{}), nil)

		require.NoError(t, err)
		assert.False(t, db.Migrator().HasTable(&widget{}))
	})

	t.Run("duplicate keys are translated", func(t *testing.T) {
		db, err := ProvideDatabase(createTestConfig("sqlite", ":memory:", true), WithModels(&widget{}), nil)
		require.NoError(t, err)

		require.NoError(t, db.Create(&widget{Name: "one"}).Error)
		err = db.Create(&widget{Name: "one"}).Error

		assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey))
	})
}

func TestProvideDatabase_UnsupportedDriver(t *testing.T) {
	db, err := ProvideDatabase(createTestConfig("oracle", "whatever", false), nil, nil)

	assert.Nil(t, db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver: oracle")
}

func TestModule(t *testing.T) {
	cfg := createTestConfig("sqlite", ":memory:", true)

	var db *gorm.DB
	app := fx.New(
		Module,
		fx.Supply(&cfg),
		fx.Supply(logging.NewNop()),
		fx.Supply(WithModels(&widget{})),
		fx.NopLogger,
		fx.Populate(&db),
	)
	require.NoError(t, app.Err())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, app.Start(ctx))
	assert.True(t, db.Migrator().HasTable(&widget{}))
	require.NoError(t, app.Stop(ctx))
}

func TestGormLogger(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	logger := NewGormLogger(logging.NewFromZap(zap.New(core)))

	t.Run("errors are logged", func(t *testing.T) {
		logger.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 0 }, errors.New("boom"))

		logs := recorded.TakeAll()
		require.Len(t, logs, 1)
		assert.Equal(t, "query failed", logs[0].Message)
		assert.Equal(t, "gorm", logs[0].LoggerName)
	})

	t.Run("record not found is quiet", func(t *testing.T) {
		logger.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 0 }, gorm.ErrRecordNotFound)

		assert.Empty(t, recorded.TakeAll())
	})

	t.Run("silent mode", func(t *testing.T) {
		silent := logger.LogMode(gormlogger.Silent)
		silent.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 0 }, errors.New("boom"))
		silent.Error(context.Background(), "ignored")

		assert.Empty(t, recorded.TakeAll())
	})

	t.Run("info mode traces queries", func(t *testing.T) {
		verbose := logger.LogMode(gormlogger.Info)
		verbose.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)

		logs := recorded.TakeAll()
		require.Len(t, logs, 1)
		assert.Equal(t, "query", logs[0].Message)
	})
}

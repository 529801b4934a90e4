package app

import (
	"fmt"

	"github.com/tech-arch1tect/backyard/config"
	"github.com/tech-arch1tect/backyard/database"
	"github.com/tech-arch1tect/backyard/handlers"
	"github.com/tech-arch1tect/backyard/metrics"
	"github.com/tech-arch1tect/backyard/middleware/ratelimit"
	"github.com/tech-arch1tect/backyard/server"
	"github.com/tech-arch1tect/backyard/services/acl"
	"github.com/tech-arch1tect/backyard/services/auth"
	"github.com/tech-arch1tect/backyard/services/cookiecrypt"
	"github.com/tech-arch1tect/backyard/services/jwt"
	"github.com/tech-arch1tect/backyard/services/logging"
	"github.com/tech-arch1tect/backyard/services/mail"
	"github.com/tech-arch1tect/backyard/services/notification"
	"github.com/tech-arch1tect/backyard/services/otp"
	"github.com/tech-arch1tect/backyard/services/revocation"
	"github.com/tech-arch1tect/backyard/services/session"
	"github.com/tech-arch1tect/backyard/services/users"
	"github.com/tech-arch1tect/backyard/validation"
	"go.uber.org/fx"
)

type AppBuilder struct {
	config    *config.Config
	models    []any
	fxOptions []fx.Option
	errors    []error
}

func NewApp() *AppBuilder {
	return &AppBuilder{
		models:    make([]any, 0),
		fxOptions: make([]fx.Option, 0),
		errors:    make([]error, 0),
	}
}

func (b *AppBuilder) WithConfig(cfg *config.Config) *AppBuilder {
	if cfg == nil {
		b.addError("config cannot be nil")
		return b
	}
	b.config = cfg
	return b
}

func (b *AppBuilder) WithAutoConfig() *AppBuilder {
	cfg := &config.Config{}
	if err := config.LoadConfig(cfg); err != nil {
		b.addError(fmt.Sprintf("failed to load config: %v", err))
		return b
	}
	b.config = cfg
	return b
}

// WithModels migrates extra models alongside the built-in tables.
func (b *AppBuilder) WithModels(models ...any) *AppBuilder {
	b.models = append(b.models, models...)
	return b
}

func (b *AppBuilder) WithFxOptions(opts ...fx.Option) *AppBuilder {
	b.fxOptions = append(b.fxOptions, opts...)
	return b
}

func (b *AppBuilder) Build() (*App, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	if b.config == nil {
		if err := b.WithAutoConfig().validate(); err != nil {
			return nil, err
		}
	}

	app := &App{config: b.config}

	options := append(b.buildFxOptions(),
		fx.Populate(&app.logger, &app.db, &app.server, &app.acl),
	)
	app.fx = fx.New(options...)
	if err := app.fx.Err(); err != nil {
		return nil, fmt.Errorf("failed to build application: %w", err)
	}

	return app, nil
}

func (b *AppBuilder) addError(msg string) {
	b.errors = append(b.errors, fmt.Errorf("%s", msg))
}

func (b *AppBuilder) validate() error {
	if len(b.errors) > 0 {
		return fmt.Errorf("configuration errors: %v", b.errors)
	}
	return nil
}

// Models lists every built-in table in migration order.
func Models() []any {
	models := append(acl.Models(), users.Models()...)
	models = append(models, otp.Models()...)
	models = append(models, notification.Models()...)
	models = append(models, revocation.Models()...)
	return append(models, auth.Models()...)
}

func (b *AppBuilder) buildFxOptions() []fx.Option {
	options := []fx.Option{
		fx.NopLogger,
		config.NewProvider(b.config),
		logging.Module,
		fx.Supply(database.WithModels(append(Models(), b.models...)...)),
		database.Module,
		metrics.Module,
		fx.Provide(validation.New),

		users.Module,
		acl.Options,
		mail.Module,
		notification.Module,
		otp.Module,
		jwt.Options,
		cookiecrypt.Module,
		revocation.Module,
		session.Module,
		auth.Module,
		ratelimit.Module,

		server.NewProvider(),
		handlers.Module,
	}

	return append(options, b.fxOptions...)
}

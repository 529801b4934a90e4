package server

import (
	"context"

	"github.com/tech-arch1tect/backyard/config"
	"github.com/tech-arch1tect/backyard/services/logging"
	"github.com/tech-arch1tect/backyard/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func ProvideServer(cfg *config.Config, logger *logging.Service, v *validation.Validator) *Server {
	return New(cfg, logger, v)
}

func NewProvider() fx.Option {
	return fx.Options(
		fx.Provide(ProvideServer),
		fx.Invoke(func(lc fx.Lifecycle, srv *Server, shutdowner fx.Shutdowner) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					go func() {
						if err := srv.Start(); err != nil {
							srv.logger.Error("server failed, shutting down", zap.Error(err))
							_ = shutdowner.Shutdown(fx.ExitCode(1))
						}
					}()
					return nil
				},
				OnStop: func(ctx context.Context) error {
					return srv.Shutdown(ctx)
				},
			})
		}),
	)
}
